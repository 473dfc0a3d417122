package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"line-patcher/internal/filesystem"
)

// Config holds all runtime settings shared by the CLI commands and servers.
type Config struct {
	WorkingDirectory    string
	Transport           string
	Port                int
	MaxFileSizeMB       int
	MaxDirectives       int
	OperationTimeoutSec int
	Verbose             bool
	Color               bool
}

// Default returns the configuration used when no flags are given.
func Default() *Config {
	return &Config{
		WorkingDirectory:    ".",
		Transport:           "stdio",
		Port:                8080,
		MaxFileSizeMB:       10,
		MaxDirectives:       1000,
		OperationTimeoutSec: 30,
	}
}

// RegisterFlags binds the persistent flags of the root command to c.
func (c *Config) RegisterFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVarP(&c.WorkingDirectory, "dir", "C", c.WorkingDirectory, "working directory; patch targets are resolved inside it")
	flags.IntVar(&c.MaxFileSizeMB, "max-file-size", c.MaxFileSizeMB, "maximum file size in MB")
	flags.IntVar(&c.MaxDirectives, "max-directives", c.MaxDirectives, "maximum directives per patch")
	flags.IntVar(&c.OperationTimeoutSec, "timeout", c.OperationTimeoutSec, "lock wait and operation timeout in seconds")
	flags.BoolVarP(&c.Verbose, "verbose", "v", c.Verbose, "enable debug logging")
	flags.BoolVar(&c.Color, "color", c.Color, "colour diff output")
}

// OperationTimeout returns OperationTimeoutSec as a duration.
func (c *Config) OperationTimeout() time.Duration {
	return time.Duration(c.OperationTimeoutSec) * time.Second
}

// Validate checks if the configuration values are valid.
func (c *Config) Validate() error {
	if c.WorkingDirectory == "" {
		return errors.New("working directory is required")
	}
	if err := filesystem.CheckDirectoryIsWritable(c.WorkingDirectory); err != nil {
		return fmt.Errorf("working directory is not usable: %w", err)
	}
	if c.Transport != "http" && c.Transport != "stdio" {
		return errors.New("transport must be 'http' or 'stdio'")
	}
	if c.Port < 1024 || c.Port > 65535 {
		return errors.New("port must be between 1024 and 65535")
	}
	if c.MaxFileSizeMB < 1 || c.MaxFileSizeMB > 100 {
		return errors.New("max file size must be between 1 and 100 MB")
	}
	if c.MaxDirectives < 1 || c.MaxDirectives > 10000 {
		return errors.New("max directives must be between 1 and 10000")
	}
	if c.OperationTimeoutSec < 1 || c.OperationTimeoutSec > 300 {
		return errors.New("operation timeout must be between 1 and 300 seconds")
	}
	return nil
}
