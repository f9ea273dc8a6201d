package natsx

import (
	"context"
	"time"

	"go.uber.org/zap"

	"linkhub/tools/errs"
)

type NatsxMessage struct {
	Subject string
	Data    []byte
	Header  map[string]string
}

// NatsxHandler returns nil to ack. Errors wrapping ErrArgs mark the message
// as malformed: it is terminated instead of redelivered.
type NatsxHandler func(ctx context.Context, msg NatsxMessage) error

type NatsxMiddleware func(NatsxHandler) NatsxHandler

func NatsxChain(h NatsxHandler, mws ...NatsxMiddleware) NatsxHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// LogMiddleware logs failures and recovers handler panics.
func LogMiddleware(log *zap.Logger) NatsxMiddleware {
	return func(next NatsxHandler) NatsxHandler {
		return func(ctx context.Context, msg NatsxMessage) (err error) {
			start := time.Now()
			defer func() {
				if r := recover(); r != nil {
					err = errs.ErrPanic(r)
				}
				if err != nil {
					log.Warn("nats message failed", zap.String("subject", msg.Subject),
						zap.Duration("took", time.Since(start)), zap.Error(err))
				}
			}()
			return next(ctx, msg)
		}
	}
}

// TimeoutMiddleware bounds each handler call.
func TimeoutMiddleware(d time.Duration) NatsxMiddleware {
	return func(next NatsxHandler) NatsxHandler {
		return func(ctx context.Context, msg NatsxMessage) error {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, msg)
		}
	}
}

func msgIDFromHeader(h map[string]string) string {
	for _, k := range []string{"Nats-Msg-Id", "nats-msg-id", "X-Msg-Id", "x-msg-id"} {
		if v, ok := h[k]; ok && v != "" {
			return v
		}
	}
	return ""
}
