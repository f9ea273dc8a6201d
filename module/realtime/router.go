package realtime

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"linkhub/logger"
	"linkhub/module/counter"
	"linkhub/module/notification"
	"linkhub/tools/errs"
	"linkhub/tools/ids"
)

// Transport is the live channel. Send must not block; a failure means the
// connection is stale and is only logged.
type Transport interface {
	Send(connID string, frame []byte) error
}

// NotificationRecorder persists a notification record and bumps the
// recipient's notificationUnread counter, returning its new value.
type NotificationRecorder interface {
	Record(ctx context.Context, n *notification.Notification) (int64, error)
}

// Receipt summarises one Publish call.
type Receipt struct {
	EventID        string `json:"eventId"`
	Duplicate      bool   `json:"duplicate,omitempty"`
	Delivered      int    `json:"delivered"`
	Failed         int    `json:"failed"`
	Counter        int64  `json:"counter,omitempty"`
	NotificationID string `json:"notificationId,omitempty"`
}

// Router turns domain events into durable counter updates and live frames.
// Publish calls are serialized: each one finishes, counters included,
// before the next starts, which gives per-recipient FIFO delivery.
type Router struct {
	mu        sync.Mutex
	reg       *Registry
	transport Transport
	counters  counter.Store
	notes     NotificationRecorder
	dedupe    Deduper
	now       func() time.Time
	log       *zap.Logger
}

type RouterOption func(*Router)

func WithDeduper(d Deduper) RouterOption { return func(r *Router) { r.dedupe = d } }

func WithRouterLogger(l *zap.Logger) RouterOption { return func(r *Router) { r.log = l } }

func WithRouterClock(now func() time.Time) RouterOption { return func(r *Router) { r.now = now } }

func NewRouter(reg *Registry, transport Transport, counters counter.Store, notes NotificationRecorder, opts ...RouterOption) *Router {
	r := &Router{
		reg:       reg,
		transport: transport,
		counters:  counters,
		notes:     notes,
		now:       time.Now,
		log:       logger.Named("router"),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Publish validates ev, applies its durable effect, then delivers its frames
// to the live connections of the recipient and, for post events, of the
// feed room. A durable failure is returned and nothing is delivered;
// delivery failures are logged and never returned.
func (r *Router) Publish(ctx context.Context, ev Event) (Receipt, error) {
	if err := ev.Validate(); err != nil {
		return Receipt{}, err
	}
	if ev.ID == "" {
		ev.ID = ids.NewEventID()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = r.now()
	}
	rc := Receipt{EventID: ev.ID}
	log := r.log.With(zap.String("event_id", ev.ID), zap.Stringer("kind", ev.Kind))

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dedupe != nil {
		seen, err := r.dedupe.Seen(ctx, ev.ID)
		if err != nil {
			log.Warn("dedupe lookup failed, publishing anyway", zap.Error(err))
		} else if seen {
			log.Debug("duplicate event skipped")
			rc.Duplicate = true
			return rc, nil
		}
	}

	note, err := r.applyDurable(ctx, &ev, &rc)
	if err != nil {
		log.Error("durable effect failed", zap.String("recipient", ev.RecipientID), zap.Error(err))
		return rc, err
	}

	out, err := frames(&ev, note)
	if err != nil {
		// the durable effect already happened; the client will catch up on fetch
		log.Error("encode frames failed", zap.Error(err))
	} else {
		if len(out.target) > 0 {
			r.deliver(log, r.reg.LiveConnections(ev.RecipientID), out.target, &rc)
		}
		if len(out.feed) > 0 {
			r.deliver(log, r.reg.RoomMembers(FeedRoom), out.feed, &rc)
		}
	}

	if r.dedupe != nil {
		if err := r.dedupe.Mark(ctx, ev.ID); err != nil {
			log.Warn("dedupe mark failed", zap.Error(err))
		}
	}
	return rc, nil
}

func (r *Router) applyDurable(ctx context.Context, ev *Event, rc *Receipt) (*notification.Notification, error) {
	switch routes[ev.Kind].effect {
	case effectNotification:
		if ev.selfEngagement() {
			return nil, nil
		}
		if r.notes == nil {
			return nil, errs.ErrStoreUnavailable.WrapMsg("no notification store configured")
		}
		n := ev.notification()
		v, err := r.notes.Record(ctx, n)
		if err != nil {
			return nil, err
		}
		rc.Counter = v
		rc.NotificationID = n.ID
		return n, nil
	case effectConversation:
		v, err := r.counters.Increment(ctx, counter.ConversationKey(ev.ConversationID, ev.RecipientID))
		if err != nil {
			return nil, err
		}
		rc.Counter = v
	}
	return nil, nil
}

func (r *Router) deliver(log *zap.Logger, conns []string, batch [][]byte, rc *Receipt) {
	for _, connID := range conns {
		for _, f := range batch {
			if err := r.transport.Send(connID, f); err != nil {
				rc.Failed++
				log.Warn("live delivery failed", zap.String("conn_id", connID), zap.Error(err))
				continue
			}
			rc.Delivered++
		}
	}
}
