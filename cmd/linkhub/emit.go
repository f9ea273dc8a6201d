package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"linkhub/module/realtime"
	"linkhub/service/kafka"
	"linkhub/service/natsx"
	"linkhub/tools/errs"
	"linkhub/tools/ids"
)

// emitCommand publishes one domain event onto the configured bus, the way
// other services feed the gateway.
func emitCommand() *cli.Command {
	return &cli.Command{
		Name:      "emit",
		Usage:     "publish a domain event to nats or kafka",
		ArgsUsage: "<event.json | ->",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bus", Value: "nats", Usage: "nats or kafka"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			ev, err := readEvent(c.Args().First())
			if err != nil {
				return err
			}
			if err := ev.Validate(); err != nil {
				return err
			}
			if ev.ID == "" {
				ev.ID = ids.NewEventID()
			}

			switch c.String("bus") {
			case "nats":
				mode, err := natsx.ParseMode(cfg.Nats.Mode)
				if err != nil {
					return err
				}
				client, err := natsx.NewNatsxClient(natsx.NatsxConfig{
					Servers:  cfg.Nats.Servers,
					Name:     "linkhub-emit",
					User:     cfg.Nats.User,
					Password: cfg.Nats.Password,
				})
				if err != nil {
					return err
				}
				defer client.Close()
				if err := client.RegisterRoute(natsx.NatsxRoute{Biz: natsx.EventBiz, Subject: cfg.Nats.Subject, Mode: mode}); err != nil {
					return err
				}
				if err := natsx.NewNatsxProducer(client).PublishEvent(ctx, natsx.EventBiz, ev); err != nil {
					return err
				}
				fmt.Println("published", ev.ID, "to", cfg.Nats.Subject)
			case "kafka":
				if len(cfg.Kafka.Topics) == 0 {
					return errs.ErrArgs.WrapMsg("kafka.topics is empty")
				}
				p, err := kafka.NewProducer(cfg.Kafka)
				if err != nil {
					return err
				}
				defer p.Close()
				part, off, err := p.PublishEvent(cfg.Kafka.Topics[0], ev)
				if err != nil {
					return err
				}
				fmt.Printf("published %s to %s/%d@%d\n", ev.ID, cfg.Kafka.Topics[0], part, off)
			default:
				return errs.ErrArgs.WrapMsg("unknown bus", "bus", c.String("bus"))
			}
			return nil
		},
	}
}

func readEvent(path string) (realtime.Event, error) {
	var (
		b   []byte
		err error
	)
	switch path {
	case "":
		return realtime.Event{}, errs.ErrArgs.WrapMsg("emit needs an event file or -")
	case "-":
		b, err = io.ReadAll(os.Stdin)
	default:
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return realtime.Event{}, errs.ErrArgs.WrapMsg("read event: " + err.Error())
	}
	return realtime.DecodeEvent(b)
}
