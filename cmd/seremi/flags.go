package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/seremi/internal/logger"
	"github.com/samcharles93/seremi/pkg/tia"
)

var (
	logLevel  string
	logFormat string
	debug     bool
	noMmap    bool

	// cfg is loaded once by setup.
	cfg Config
)

// configLoader is a seam for tests.
var configLoader = LoadConfig

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
		&cli.BoolFlag{
			Name:        "no-mmap",
			Usage:       "read files into memory instead of mapping them",
			Destination: &noMmap,
		},
	}
}

// setup loads the config file, applies it under any explicitly set flags and
// installs the logger on the context.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg = configLoader()
	applyGlobalConfig(cmd, cfg, &logLevel, &logFormat, &noMmap)
	if debug {
		logLevel = "debug"
	}
	log := logger.Build(cmd.Root().ErrWriter, logLevel, logFormat)
	return logger.WithContext(ctx, log), nil
}

func openOptions() []tia.Option {
	return []tia.Option{tia.WithMmap(!noMmap)}
}
