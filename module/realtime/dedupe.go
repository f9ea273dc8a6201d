package realtime

import (
	"context"
	"sync"
	"time"
)

// Deduper remembers event ids that were published successfully. Seen is
// checked before any effect and Mark only runs after the durable effects
// succeed, so a failed publish can be retried with the same id.
type Deduper interface {
	Seen(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, id string) error
}

// MemoryDeduper keeps ids for ttl in process memory.
type MemoryDeduper struct {
	mu   sync.Mutex
	m    map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	d := &MemoryDeduper{
		m:    make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
		stop: make(chan struct{}),
	}
	go d.sweeper(time.Minute)
	return d
}

func (d *MemoryDeduper) sweeper(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			d.sweepOnce()
		case <-d.stop:
			return
		}
	}
}

func (d *MemoryDeduper) sweepOnce() {
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, exp := range d.m {
		if !exp.After(now) {
			delete(d.m, k)
		}
	}
}

func (d *MemoryDeduper) Seen(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	exp, ok := d.m[id]
	return ok && exp.After(d.now()), nil
}

func (d *MemoryDeduper) Mark(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.m[id] = d.now().Add(d.ttl)
	return nil
}

func (d *MemoryDeduper) Close() {
	d.once.Do(func() { close(d.stop) })
}
