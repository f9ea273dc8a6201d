package mgo

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"linkhub/data/database/mgo/mongoutil"
	"linkhub/logger"
	"linkhub/tools/errs"
)

const (
	baseBackoff = 200 * time.Millisecond
	maxBackoff  = 5 * time.Second
	healthEvery = 10 * time.Second
	failThresh  = 3
)

// Manager keeps one Mongo client alive: it connects with backoff, pings
// periodically and reconnects after failThresh consecutive failed pings.
type Manager struct {
	cfg *mongoutil.Config

	mu        sync.RWMutex
	client    *mongoutil.Client
	readyCh   chan struct{}
	readyOnce sync.Once
	lastErr   atomic.Value // error
	log       *zap.Logger

	connect func(ctx context.Context, cfg *mongoutil.Config) (*mongoutil.Client, error)
}

func NewManager(cfg *mongoutil.Config) *Manager {
	return &Manager{
		cfg:     cfg,
		readyCh: make(chan struct{}),
		log:     logger.Named("mongo"),
		connect: mongoutil.NewMongoDB,
	}
}

// StartAsync runs until ctx is done. Ready is closed after the first
// successful connect.
func (m *Manager) StartAsync(ctx context.Context) {
	go m.run(ctx)
}

func (m *Manager) run(ctx context.Context) {
	for {
		if !m.dial(ctx) {
			return
		}
		m.watch(ctx)
		if ctx.Err() != nil {
			return
		}
	}
}

func (m *Manager) dial(ctx context.Context) bool {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return false
		}
		cli, err := m.connect(ctx, m.cfg)
		if err == nil {
			m.mu.Lock()
			m.client = cli
			m.mu.Unlock()
			m.readyOnce.Do(func() { close(m.readyCh) })
			m.log.Info("connected", zap.String("database", m.cfg.Database))
			return true
		}
		m.lastErr.Store(err)
		m.log.Warn("connect failed", zap.Int("attempt", attempt), zap.Error(err))

		backoff := baseBackoff << attempt
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		jitter := time.Duration(rand.Int63n(int64(backoff/5) + 1))
		timer := time.NewTimer(backoff - jitter/2)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
		if attempt < 6 {
			attempt++
		}
	}
}

func (m *Manager) watch(ctx context.Context) {
	t := time.NewTicker(healthEvery)
	defer t.Stop()
	fail := 0
	for {
		select {
		case <-ctx.Done():
			m.drop()
			return
		case <-t.C:
			m.mu.RLock()
			c := m.client
			m.mu.RUnlock()
			if c == nil {
				return
			}
			if err := c.Ping(ctx); err != nil {
				fail++
				m.lastErr.Store(err)
				if fail >= failThresh {
					m.log.Warn("mongo unreachable, reconnecting", zap.Error(err))
					m.drop()
					return
				}
				continue
			}
			fail = 0
		}
	}
}

func (m *Manager) drop() {
	m.mu.Lock()
	c := m.client
	m.client = nil
	m.mu.Unlock()
	if c != nil {
		_ = c.Close(context.Background())
	}
}

func (m *Manager) Ready() <-chan struct{} { return m.readyCh }

// Err is the most recent connect or ping error.
func (m *Manager) Err() error {
	if v := m.lastErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

func (m *Manager) TryGetDB() (*mongo.Database, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.client == nil {
		return nil, false
	}
	return m.client.GetDB(), true
}

// WaitReady blocks until the first connect succeeded or ctx ends.
func (m *Manager) WaitReady(ctx context.Context) (*mongo.Database, error) {
	select {
	case <-m.readyCh:
	case <-ctx.Done():
		if err := m.Err(); err != nil {
			return nil, errs.ErrStoreUnavailable.WrapMsg("mongo not ready: " + err.Error())
		}
		return nil, errs.ErrStoreUnavailable.WrapMsg("mongo not ready: " + ctx.Err().Error())
	}
	db, ok := m.TryGetDB()
	if !ok {
		return nil, errs.ErrStoreUnavailable.WrapMsg("mongo disconnected")
	}
	return db, nil
}

// Ping reports whether the current client answers.
func (m *Manager) Ping(ctx context.Context) error {
	m.mu.RLock()
	c := m.client
	m.mu.RUnlock()
	if c == nil {
		return errs.ErrStoreUnavailable.WrapMsg("mongo not connected")
	}
	return c.Ping(ctx)
}
