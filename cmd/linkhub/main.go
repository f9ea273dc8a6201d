package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"linkhub/global/config"
	"linkhub/logger"
)

func main() {
	app := &cli.Command{
		Name:  "linkhub",
		Usage: "realtime gateway for feed updates, notifications and direct messages",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file; LINKHUB_* variables override it",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			tokenCommand(),
			emitCommand(),
		},
	}
	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		logger.Sync()
		os.Exit(1)
	}
}

func loadConfig(c *cli.Command) (*config.AppConfig, error) {
	cfg, err := config.Load(c.String("config"), os.LookupEnv)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Init(cfg.Log.Level, cfg.Log.Development)
	return cfg, nil
}
