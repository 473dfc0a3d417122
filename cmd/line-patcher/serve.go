package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"line-patcher/internal/transport"
)

func (a *app) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve patch_file and read_file over stdio JSON-RPC or HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Diffs go into JSON payloads.
			a.cfg.Color = false
			if err := a.setup(false); err != nil {
				return err
			}
			defer a.logger.Sync() //nolint:errcheck

			a.logger.Info("Effective configuration",
				zap.String("working_directory", a.cfg.WorkingDirectory),
				zap.String("transport", a.cfg.Transport),
				zap.Int("port", a.cfg.Port),
				zap.Int("max_file_size_mb", a.cfg.MaxFileSizeMB),
				zap.Int("max_directives", a.cfg.MaxDirectives),
				zap.Int("operation_timeout_sec", a.cfg.OperationTimeoutSec))

			svc, err := a.newService()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			switch a.cfg.Transport {
			case "http":
				return transport.NewHTTPHandler(svc, a.logger).StartServer(ctx, a.cfg.Port)
			case "stdio":
				return transport.NewStdioHandler(svc, a.logger).Start(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			default:
				return fmt.Errorf("unsupported transport %q", a.cfg.Transport)
			}
		},
	}
	cmd.Flags().StringVarP(&a.cfg.Transport, "transport", "t", a.cfg.Transport, "transport: stdio or http")
	cmd.Flags().IntVarP(&a.cfg.Port, "port", "p", a.cfg.Port, "HTTP port")
	return cmd
}
