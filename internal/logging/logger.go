// Package logging builds the zap loggers used by the CLI and the servers.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects level, destination and encoding.
type Options struct {
	// Verbose enables debug level.
	Verbose bool
	// Output is a zap sink path such as "stderr" or "stdout". Defaults to stderr.
	Output string
	// Console switches from JSON to human-readable lines.
	Console bool
}

// New builds a production zap logger configured by opts.
func New(opts Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if opts.Verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	out := opts.Output
	if out == "" {
		out = "stderr"
	}
	cfg.OutputPaths = []string{out}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if opts.Console {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.DisableStacktrace = true
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// OutputFor returns where logs go for a transport: stdio owns stdout for
// JSON-RPC responses, so its logs must go to stderr.
func OutputFor(transport string) string {
	if transport == "http" {
		return "stdout"
	}
	return "stderr"
}
