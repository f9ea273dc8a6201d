package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"linkhub/tools/errs"
)

// presence key: im:presence:<user>, value: gateway id
func presenceKey(user string) string { return "im:presence:" + user }

// Presence mirrors which gateway a user is connected to. The TTL bounds how
// long a crashed gateway can leave a user marked online.
type Presence struct {
	rdb       redis.Cmdable
	gatewayID string
	ttl       time.Duration
}

func NewPresence(rdb redis.Cmdable, gatewayID string, ttl time.Duration) *Presence {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Presence{rdb: rdb, gatewayID: gatewayID, ttl: ttl}
}

func (p *Presence) Online(ctx context.Context, user string) error {
	if err := p.rdb.Set(ctx, presenceKey(user), p.gatewayID, p.ttl).Err(); err != nil {
		return errs.ErrStoreUnavailable.WrapMsg(err.Error(), "user", user)
	}
	return nil
}

// compare-and-delete: the key is only removed while it names this gateway
var luaOffline = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Offline clears the key unless another gateway has taken it over.
func (p *Presence) Offline(ctx context.Context, user string) error {
	if err := luaOffline.Run(ctx, p.rdb, []string{presenceKey(user)}, p.gatewayID).Err(); err != nil {
		return errs.ErrStoreUnavailable.WrapMsg(err.Error(), "user", user)
	}
	return nil
}

// Lookup reports the gateway holding user, if any.
func (p *Presence) Lookup(ctx context.Context, user string) (gatewayID string, online bool, err error) {
	val, err := p.rdb.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errs.ErrStoreUnavailable.WrapMsg(err.Error(), "user", user)
	}
	return val, true, nil
}
