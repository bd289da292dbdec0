// Package cli holds the start-up steps shared by the flowpic commands.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/glo-fi/flowpic/config"
	"github.com/glo-fi/flowpic/logging"
)

const (
	Version   = "0.1b"
	COPYRIGHT = "Licensed under the Apache License, Version 2.0 (the \"License\"); " +
		"you may not use this file except in compliance with the License. " +
		"You may obtain a copy of the License at\n" +
		"\n    http://www.apache.org/licenses/LICENSE-2.0\n"
)

// Common flags every command accepts.
type Common struct {
	ConfigPath string
	LogLevel   string
	Metrics    string
}

// Register adds the common flags to fs.
func (c *Common) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.ConfigPath, "config", "", "YAML or TOML configuration file")
	fs.StringVar(&c.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&c.Metrics, "metrics", "", "Write Prometheus metrics to this textfile when done")
}

// Usage installs a usage message for fs.
func Usage(fs *flag.FlagSet, synopsis string) {
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "%s [options] %s\n", fs.Name(), synopsis)
		fmt.Fprintf(fs.Output(), "options:\n")
		fs.PrintDefaults()
	}
}

// Setup loads the configuration, lets overlay apply command-line overrides,
// validates the result and builds the logger.
func (c *Common) Setup(overlay func(*config.Config) error) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	if c.LogLevel != "" {
		cfg.Log.Level = c.LogLevel
	}
	if c.Metrics != "" {
		cfg.Metrics.Textfile = c.Metrics
	}
	if overlay != nil {
		if err := overlay(cfg); err != nil {
			return nil, nil, fmt.Errorf("config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config: validation failed: %w", err)
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// Welcome logs the banner of a command.
func Welcome(log *zap.Logger, name string) {
	log.Info("Welcome to "+name+" "+Version, zap.String("license", COPYRIGHT))
}

// Context is cancelled on SIGINT or SIGTERM.
func Context() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Fail prints err and returns the failure exit status.
func Fail(w io.Writer, err error) int {
	fmt.Fprintln(w, "error:", err)
	return 1
}
