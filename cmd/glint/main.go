package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/glint/internal/logger"
)

// fileConfig holds the config file loaded by the root Before hook.
var fileConfig Config

func main() {
	app := &cli.Command{
		Name:  "glint",
		Usage: "Text and image search over a local image gallery",
		Flags: loggingFlags(),
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			cfg, err := LoadConfig(configFile)
			if err != nil {
				return ctx, cli.Exit(err.Error(), 1)
			}
			fileConfig = cfg
			applyLoggingConfig(cmd, cfg)
			level := logLevel
			if debug {
				level = "debug"
			}
			return logger.WithContext(ctx, logger.Setup(logFormat, level, os.Stderr)), nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			searchCmd(),
			buildCmd(),
			serveCmd(),
			tokenizeCmd(),
			inspectCmd(),
			versionCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
