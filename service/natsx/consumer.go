package natsx

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go"

	"linkhub/tools/errs"
)

type NatsxConsumer struct {
	c   *NatsxClient
	mws []NatsxMiddleware
}

func NewNatsxConsumer(c *NatsxClient, mws ...NatsxMiddleware) *NatsxConsumer {
	return &NatsxConsumer{c: c, mws: mws}
}

// Subscribe starts a Core or JetStream push subscription for biz.
// JetStream messages are acked manually from the handler result.
func (cs *NatsxConsumer) Subscribe(biz string, h NatsxHandler) error {
	r, ok := cs.c.route(biz)
	if !ok {
		return errs.ErrArgs.WrapMsg("route not found", "biz", biz)
	}
	h = NatsxChain(h, cs.mws...)

	switch r.Mode {
	case Core:
		cb := func(m *nats.Msg) { _ = h(context.Background(), toMessage(m)) }
		var (
			sub *nats.Subscription
			err error
		)
		if r.Queue == "" {
			sub, err = cs.c.nc.Subscribe(r.Subject, cb)
		} else {
			sub, err = cs.c.nc.QueueSubscribe(r.Subject, r.Queue, cb)
		}
		if err != nil {
			return errs.WrapMsg(err, "nats subscribe", "subject", r.Subject)
		}
		_ = sub.SetPendingLimits(1_000_000, 64*1024*1024)
		cs.c.track(biz, sub)
		return nil

	case JetStreamPush:
		js := cs.c.jetStream()
		if js == nil {
			return errs.ErrArgs.WrapMsg("jetstream not initialized")
		}
		opts := []nats.SubOpt{
			nats.ManualAck(),
			nats.AckWait(r.AckWait),
			nats.MaxAckPending(r.MaxAckPending),
		}
		if r.Durable != "" {
			opts = append(opts, nats.Durable(r.Durable))
		}
		cb := func(m *nats.Msg) { settle(m, h(context.Background(), toMessage(m))) }
		var (
			sub *nats.Subscription
			err error
		)
		if r.Queue == "" {
			sub, err = js.Subscribe(r.Subject, cb, opts...)
		} else {
			sub, err = js.QueueSubscribe(r.Subject, r.Queue, cb, opts...)
		}
		if err != nil {
			return errs.WrapMsg(err, "jetstream subscribe", "subject", r.Subject)
		}
		cs.c.track(biz, sub)
		return nil

	default:
		return errs.ErrArgs.WrapMsg("mode not supported in Subscribe", "mode", r.Mode)
	}
}

// PullConsume fetches batches from a durable pull consumer until ctx ends.
func (cs *NatsxConsumer) PullConsume(ctx context.Context, biz string, batch int, wait time.Duration, h NatsxHandler) error {
	r, ok := cs.c.route(biz)
	if !ok {
		return errs.ErrArgs.WrapMsg("route not found", "biz", biz)
	}
	js := cs.c.jetStream()
	if r.Mode != JetStreamPull || js == nil {
		return errs.ErrArgs.WrapMsg("route is not a jetstream pull route", "biz", biz)
	}
	if r.Durable == "" {
		return errs.ErrArgs.WrapMsg("jetstream pull requires a durable name", "biz", biz)
	}
	sub, err := js.PullSubscribe(r.Subject, r.Durable, nats.PullMaxWaiting(8))
	if err != nil {
		return errs.WrapMsg(err, "jetstream pull subscribe", "subject", r.Subject)
	}
	cs.c.track(biz, sub)
	h = NatsxChain(h, cs.mws...)
	if batch <= 0 {
		batch = 64
	}
	if wait <= 0 {
		wait = 500 * time.Millisecond
	}

	for ctx.Err() == nil {
		msgs, err := sub.Fetch(batch, nats.MaxWait(wait))
		if errors.Is(err, nats.ErrTimeout) {
			continue
		}
		if err != nil {
			select {
			case <-ctx.Done():
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}
		for _, m := range msgs {
			settle(m, h(ctx, toMessage(m)))
		}
	}
	return nil
}

// settle acks success, terminates malformed messages and naks the rest so
// they are redelivered.
func settle(m *nats.Msg, err error) {
	switch {
	case err == nil:
		_ = m.Ack()
	case errors.Is(err, errs.ErrArgs):
		_ = m.Term()
	default:
		_ = m.Nak()
	}
}

func toMessage(m *nats.Msg) NatsxMessage {
	return NatsxMessage{
		Subject: m.Subject,
		Data:    append([]byte(nil), m.Data...),
		Header:  headerToMap(m.Header),
	}
}

func headerToMap(h nats.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
