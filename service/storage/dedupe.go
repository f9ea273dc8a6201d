package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"linkhub/tools/errs"
)

const dedupePrefix = "im:dedupe:"

// Deduper stores published event ids in Redis so that redeliveries are
// recognised across gateway restarts.
type Deduper struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewDeduper(rdb redis.Cmdable, ttl time.Duration) *Deduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Deduper{rdb: rdb, ttl: ttl}
}

func (d *Deduper) Seen(ctx context.Context, id string) (bool, error) {
	n, err := d.rdb.Exists(ctx, dedupePrefix+id).Result()
	if err != nil {
		return false, errs.ErrStoreUnavailable.WrapMsg(err.Error(), "event_id", id)
	}
	return n > 0, nil
}

func (d *Deduper) Mark(ctx context.Context, id string) error {
	if err := d.rdb.Set(ctx, dedupePrefix+id, 1, d.ttl).Err(); err != nil {
		return errs.ErrStoreUnavailable.WrapMsg(err.Error(), "event_id", id)
	}
	return nil
}
