package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"linkhub/tools/errs"
	"linkhub/tools/security"
)

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:      "token",
		Usage:     "mint a token for an identity or a publishing service",
		ArgsUsage: "<identity>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "scope", Usage: "scope to grant, e.g. events:publish"},
			&cli.DurationFlag{Name: "ttl", Usage: "lifetime, defaults to security.token_ttl"},
		},
		Action: func(_ context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			identity := c.Args().First()
			if identity == "" {
				return errs.ErrArgs.WrapMsg("token needs an identity")
			}
			opts := security.DefaultOptions([]byte(cfg.Security.JWTSecret))
			opts.Alg = cfg.Security.JWTAlg
			opts.TTL = cfg.Security.TokenTTL
			if ttl := c.Duration("ttl"); ttl > 0 {
				opts.TTL = ttl
			}
			tok, exp, err := security.Generate(opts, identity, c.StringSlice("scope")...)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			fmt.Println("expires", exp.Format(time.RFC3339))
			return nil
		},
	}
}
