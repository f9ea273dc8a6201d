package natsx

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"

	"linkhub/module/realtime"
	"linkhub/tools/errs"
)

type NatsxProducer struct{ c *NatsxClient }

func NewNatsxProducer(c *NatsxClient) *NatsxProducer { return &NatsxProducer{c: c} }

// Publish sends data on biz's subject.
func (p *NatsxProducer) Publish(ctx context.Context, biz string, data []byte, hdr map[string]string) error {
	r, ok := p.c.route(biz)
	if !ok {
		return errs.ErrArgs.WrapMsg("route not found", "biz", biz)
	}
	msg := nats.NewMsg(r.Subject)
	msg.Data = data
	for k, v := range hdr {
		msg.Header.Add(k, v)
	}
	switch r.Mode {
	case Core:
		if err := p.c.nc.PublishMsg(msg); err != nil {
			return errs.WrapMsg(err, "nats publish", "subject", r.Subject)
		}
	case JetStreamPush, JetStreamPull:
		if _, err := p.c.jetStream().PublishMsg(msg, nats.Context(ctx)); err != nil {
			return errs.WrapMsg(err, "jetstream publish", "subject", r.Subject)
		}
	default:
		return errs.ErrArgs.WrapMsg("unsupported mode", "mode", r.Mode)
	}
	return nil
}

// PublishEvent encodes ev and uses its id as Nats-Msg-Id, which JetStream
// also uses for server side duplicate detection.
func (p *NatsxProducer) PublishEvent(ctx context.Context, biz string, ev realtime.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return errs.ErrArgs.WrapMsg("encode event: " + err.Error())
	}
	var hdr map[string]string
	if ev.ID != "" {
		hdr = map[string]string{nats.MsgIdHdr: ev.ID}
	}
	return p.Publish(ctx, biz, b, hdr)
}
