package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"line-patcher/internal/config"
	"line-patcher/internal/filesystem"
	"line-patcher/internal/lock"
	"line-patcher/internal/logging"
	"line-patcher/internal/service"
)

// app carries the state shared by all subcommands of one invocation.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	return (&app{cfg: config.Default()}).rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "line-patcher",
		Short:        "Apply line-anchored insert and replace directives to files",
		SilenceUsage: true,
	}
	a.cfg.RegisterFlags(root)

	root.AddCommand(a.newApplyCmd(), a.newShowCmd(), a.newServeCmd())
	return root
}

// setup validates the configuration and builds the logger. console selects
// human-readable log lines for interactive commands.
func (a *app) setup(console bool) error {
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if a.logger != nil {
		return nil
	}
	logger, err := logging.New(logging.Options{
		Verbose: a.cfg.Verbose,
		Output:  logging.OutputFor(a.cfg.Transport),
		Console: console,
	})
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

func (a *app) newService() (*service.DefaultPatchService, error) {
	svc, err := service.NewDefaultPatchService(
		filesystem.NewDefaultFileSystemAdapter(),
		lock.NewLockManager(a.logger),
		a.cfg,
		a.logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize patch service: %w", err)
	}
	return svc, nil
}
