package kafka

import (
	"context"
	"fmt"
	"sync"

	"github.com/Shopify/sarama"

	"linkhub/module/realtime"
)

// MessageHandler returns nil to commit the offset. Errors wrapping ErrArgs
// mark the record as malformed: it is logged and committed anyway.
type MessageHandler func(ctx context.Context, msg *sarama.ConsumerMessage) error

type Handlers struct {
	mu sync.RWMutex
	m  map[string]MessageHandler
}

func NewHandlers() *Handlers { return &Handlers{m: make(map[string]MessageHandler)} }

func (h *Handlers) Register(topic string, handler MessageHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.m[topic] = handler
}

func (h *Handlers) Get(topic string) (MessageHandler, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	handler, ok := h.m[topic]
	return handler, ok
}

func (h *Handlers) Topics() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.m))
	for t := range h.m {
		out = append(out, t)
	}
	return out
}

type Publisher interface {
	Publish(ctx context.Context, ev realtime.Event) (realtime.Receipt, error)
}

// EventHandler feeds domain events into the router. The event id falls back
// to the record key, then to topic/partition/offset, so a record replayed
// after a failed commit keeps its id.
func EventHandler(pub Publisher) MessageHandler {
	return func(ctx context.Context, msg *sarama.ConsumerMessage) error {
		ev, err := realtime.DecodeEvent(msg.Value)
		if err != nil {
			return err
		}
		if ev.ID == "" {
			if len(msg.Key) > 0 {
				ev.ID = string(msg.Key)
			} else {
				ev.ID = fmt.Sprintf("%s-%d-%d", msg.Topic, msg.Partition, msg.Offset)
			}
		}
		_, err = pub.Publish(ctx, ev)
		return err
	}
}
