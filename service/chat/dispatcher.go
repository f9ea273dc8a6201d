package chat

import (
	"context"

	"linkhub/tools/errs"
)

// Handler processes one client frame. data is the frame's decoded "data"
// member.
type Handler func(ctx context.Context, w *WsConn, data any) error

type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

func (d *Dispatcher) Register(event string, h Handler) { d.handlers[event] = h }

func (d *Dispatcher) GetHandler(event string) (Handler, bool) {
	h, ok := d.handlers[event]
	return h, ok
}

func (d *Dispatcher) Dispatch(ctx context.Context, w *WsConn, f *ClientFrame) error {
	h, ok := d.handlers[f.Event]
	if !ok {
		return errs.ErrArgs.WrapMsg("unknown frame", "event", f.Event)
	}
	return h(ctx, w, f.Data)
}
