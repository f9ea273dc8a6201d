package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"

	"linkhub/global"
	"linkhub/logger"
	"linkhub/tools/ids"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "http-addr", Usage: "override http_addr"},
			&cli.StringFlag{Name: "node-id", Usage: "override node_id"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if v := c.String("http-addr"); v != "" {
				cfg.HTTPAddr = v
			}
			if v := c.String("node-id"); v != "" {
				cfg.NodeID = v
			}
			if err := global.ConfigNacos(cfg); err != nil {
				return err
			}
			ids.SetNodeID(ids.NodeFromName(cfg.NodeID))
			if !cfg.Log.Development {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			app, err := global.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()
			return app.Run(ctx)
		},
	}
}
