package natsx

import (
	"context"

	"linkhub/module/realtime"
)

// EventBiz is the route name of the domain event ingest subject.
const EventBiz = "events"

type Publisher interface {
	Publish(ctx context.Context, ev realtime.Event) (realtime.Receipt, error)
}

// EventHandler feeds domain events from NATS into the router. A message
// without an id in its body takes the Nats-Msg-Id header, so JetStream
// redeliveries are deduplicated by the router.
func EventHandler(pub Publisher) NatsxHandler {
	return func(ctx context.Context, msg NatsxMessage) error {
		ev, err := realtime.DecodeEvent(msg.Data)
		if err != nil {
			return err
		}
		if ev.ID == "" {
			ev.ID = msgIDFromHeader(msg.Header)
		}
		_, err = pub.Publish(ctx, ev)
		return err
	}
}
