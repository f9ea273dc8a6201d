package realtime

import (
	"context"

	"go.uber.org/zap"

	"linkhub/logger"
	"linkhub/tools/errs"
)

// Presence mirrors online/offline transitions to an external store. It is
// informational; the registry stays the source of truth for delivery.
type Presence interface {
	Online(ctx context.Context, identity string) error
	Offline(ctx context.Context, identity string) error
}

// Lifecycle drives registry membership from transport events: connect,
// join handshake, explicit leave, disconnect.
type Lifecycle struct {
	reg      *Registry
	presence Presence
	log      *zap.Logger
}

type LifecycleOption func(*Lifecycle)

func WithPresence(p Presence) LifecycleOption { return func(l *Lifecycle) { l.presence = p } }

func WithLifecycleLogger(lg *zap.Logger) LifecycleOption {
	return func(l *Lifecycle) { l.log = lg }
}

func NewLifecycle(reg *Registry, opts ...LifecycleOption) *Lifecycle {
	l := &Lifecycle{reg: reg, log: logger.Named("lifecycle")}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Lifecycle) Registry() *Registry { return l.reg }

// Connect subscribes a fresh connection to the feed room.
func (l *Lifecycle) Connect(connID string) error {
	return l.reg.Join(connID, FeedRoom)
}

// Join completes the handshake: the connection becomes one of identity's
// live connections.
func (l *Lifecycle) Join(ctx context.Context, connID, identity string) error {
	first, err := l.reg.Register(identity, connID)
	if err != nil {
		return err
	}
	l.log.Debug("joined", zap.String("conn_id", connID), zap.String("user_id", identity), zap.Bool("first", first))
	if first && l.presence != nil {
		if err := l.presence.Online(ctx, identity); err != nil {
			l.log.Warn("presence online failed", zap.String("user_id", identity), zap.Error(err))
		}
	}
	return nil
}

// Subscribe adds the connection to a named room.
func (l *Lifecycle) Subscribe(connID, room string) error {
	return l.reg.Join(connID, room)
}

// Leave removes the connection from a named room. The identity binding
// itself only ends with Disconnect.
func (l *Lifecycle) Leave(connID, room string) error {
	if room == "" {
		return errs.ErrArgs.WrapMsg("leave needs a room")
	}
	l.reg.Leave(connID, room)
	return nil
}

// Disconnect must run for every closed transport session.
func (l *Lifecycle) Disconnect(ctx context.Context, connID string) {
	identity, last := l.reg.Unregister(connID)
	if identity == "" {
		return
	}
	l.log.Debug("disconnected", zap.String("conn_id", connID), zap.String("user_id", identity), zap.Bool("last", last))
	if last && l.presence != nil {
		if err := l.presence.Offline(ctx, identity); err != nil {
			l.log.Warn("presence offline failed", zap.String("user_id", identity), zap.Error(err))
		}
	}
}
