package chat

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manual builds a manager whose connections are inserted directly, without
// sockets or writers.
func manual(conf ManagerConf) *ConnManager {
	m := NewConnManager(conf, "gw-unit")
	return m
}

func (m *ConnManager) insert(snowID string, created time.Time) *WsConn {
	w := &WsConn{
		SnowID:    snowID,
		CreatedAt: created,
		TTL:       m.conf.UnauthTTL,
		ExpireAt:  created.Add(m.conf.UnauthTTL),
		send:      make(chan []byte, 1),
		done:      make(chan struct{}),
	}
	m.mu.Lock()
	m.bySnow[snowID] = w
	m.mu.Unlock()
	return w
}

func TestConnManager_BindAndLimit(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := manual(ManagerConf{MaxPerUser: 2, Clock: func() time.Time { return now }})
	defer m.Close()

	m.insert("a", now)
	m.insert("b", now.Add(time.Second))
	m.insert("c", now.Add(2*time.Second))

	_, err := m.BindUser("a", "u1")
	require.NoError(t, err)
	_, err = m.BindUser("b", "u1")
	require.NoError(t, err)
	_, err = m.BindUser("c", "u1")
	assert.True(t, errors.Is(err, ErrConnLimit))

	_, err = m.BindUser("a", "u2")
	assert.True(t, errors.Is(err, ErrAlreadyBound))
	evicted, err := m.BindUser("a", "u1")
	require.NoError(t, err)
	assert.Empty(t, evicted)

	_, err = m.BindUser("missing", "u1")
	assert.True(t, errors.Is(err, ErrConnNotFound))
}

func TestConnManager_EvictOldest(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := manual(ManagerConf{MaxPerUser: 2, EvictOldest: true, Clock: func() time.Time { return now }})
	defer m.Close()

	a := m.insert("a", now)
	m.insert("b", now.Add(time.Second))
	m.insert("c", now.Add(2*time.Second))
	for _, sid := range []string{"a", "b"} {
		_, err := m.BindUser(sid, "u1")
		require.NoError(t, err)
	}
	evicted, err := m.BindUser("c", "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, evicted)
	assert.ElementsMatch(t, []string{"b", "c"}, m.UserConns("u1"))

	select {
	case <-a.done:
	default:
		t.Fatal("evicted connection still open")
	}
}

func TestConnManager_SweepExpired(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := now
	m := manual(ManagerConf{UnauthTTL: time.Minute, AuthTTL: 5 * time.Minute, Clock: func() time.Time { return clock }})
	defer m.Close()

	m.insert("anon", now)
	m.insert("joined", now)
	_, err := m.BindUser("joined", "u1")
	require.NoError(t, err)

	assert.Equal(t, 0, m.sweepOnce(now.Add(30*time.Second)))
	assert.Equal(t, 1, m.sweepOnce(now.Add(2*time.Minute)))
	m.mu.RLock()
	_, ok := m.bySnow["anon"]
	m.mu.RUnlock()
	assert.False(t, ok)

	clock = now.Add(4 * time.Minute)
	require.NoError(t, m.Heartbeat("joined"))
	assert.Equal(t, 0, m.sweepOnce(now.Add(6*time.Minute)))
	assert.Equal(t, 1, m.sweepOnce(now.Add(10*time.Minute)))
	assert.Empty(t, m.UserConns("u1"))
}

func TestConnManager_SendQueue(t *testing.T) {
	m := manual(ManagerConf{})
	defer m.Close()

	m.insert("a", time.Now())
	require.NoError(t, m.Send("a", []byte("1")))
	assert.True(t, errors.Is(m.Send("a", []byte("2")), ErrSendQueueFull))
	assert.True(t, errors.Is(m.Send("nope", []byte("x")), ErrConnNotFound))

	m.Remove("a")
	assert.True(t, errors.Is(m.Send("a", []byte("x")), ErrConnNotFound))
}
