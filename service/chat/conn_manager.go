package chat

import (
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"linkhub/logger"
	"linkhub/tools/errs"
	"linkhub/tools/ids"
	"linkhub/tools/safe"
)

var (
	ErrConnNotFound  = errs.NewCodeError(2001, "ConnNotFound")
	ErrSendQueueFull = errs.NewCodeError(2002, "SendQueueFull")
	ErrConnLimit     = errs.NewCodeError(2003, "ConnLimitExceeded")
	ErrAlreadyBound  = errs.NewCodeError(2004, "ConnAlreadyJoined")
)

type ManagerConf struct {
	UnauthTTL    time.Duration // lifetime of a connection that never joins
	AuthTTL      time.Duration // idle lifetime of a joined connection, renewed by heartbeats
	SweepEvery   time.Duration
	MaxPerUser   int  // <=0 means unlimited
	EvictOldest  bool // over the limit: evict the oldest connection, otherwise refuse the join
	SendQueue    int
	WriteTimeout time.Duration
	PingInterval time.Duration
	Clock        func() time.Time
}

func (c *ManagerConf) norm() {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = 10 * time.Second
	}
	if c.UnauthTTL <= 0 {
		c.UnauthTTL = 60 * time.Second
	}
	if c.AuthTTL <= 0 {
		c.AuthTTL = 2 * time.Minute
	}
	if c.SendQueue <= 0 {
		c.SendQueue = 256
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
}

// WsConn is one live socket. Frames are written by a single writer
// goroutine draining send.
type WsConn struct {
	SnowID     string
	UserID     string
	Authorized bool

	Conn   *websocket.Conn
	Remote net.Addr

	CreatedAt time.Time
	UpdatedAt time.Time
	TTL       time.Duration
	ExpireAt  time.Time
	Heartbeat time.Time

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (w *WsConn) shutdown() {
	w.closeOnce.Do(func() { close(w.done) })
}

// Done is closed once the connection has been removed from the manager.
// ConnManager owns every socket of this gateway node and implements the
// realtime Transport: Send enqueues without blocking.
type ConnManager struct {
	mu     sync.RWMutex
	bySnow map[string]*WsConn
	byUser map[string]map[string]*WsConn

	conf     ManagerConf
	gwID     string
	stopOnce sync.Once
	stopCh   chan struct{}
	log      *zap.Logger
}

func NewConnManager(conf ManagerConf, gwID string) *ConnManager {
	conf.norm()
	m := &ConnManager{
		bySnow: make(map[string]*WsConn),
		byUser: make(map[string]map[string]*WsConn),
		conf:   conf,
		gwID:   gwID,
		stopCh: make(chan struct{}),
		log:    logger.Named("conn_manager").With(zap.String("gw_id", gwID)),
	}
	safe.Go("conn_sweeper", m.sweeper)
	return m
}

// Add registers a fresh, not yet joined socket and starts its writer.
func (m *ConnManager) Add(conn *websocket.Conn) (*WsConn, error) {
	if conn == nil {
		return nil, errs.ErrArgs.WrapMsg("nil conn")
	}
	now := m.conf.Clock()
	w := &WsConn{
		SnowID:    ids.GenerateString(),
		Conn:      conn,
		Remote:    conn.RemoteAddr(),
		CreatedAt: now,
		UpdatedAt: now,
		Heartbeat: now,
		TTL:       m.conf.UnauthTTL,
		ExpireAt:  now.Add(m.conf.UnauthTTL),
		send:      make(chan []byte, m.conf.SendQueue),
		done:      make(chan struct{}),
	}

	m.mu.Lock()
	m.bySnow[w.SnowID] = w
	m.mu.Unlock()

	safe.Go("conn_writer", func() { m.writePump(w) })
	return w, nil
}

// BindUser marks the socket as joined by user and applies the per-user
// limit. It returns the ids of connections evicted to make room.
func (m *ConnManager) BindUser(snowID, user string) ([]string, error) {
	if snowID == "" || user == "" {
		return nil, errs.ErrArgs.WrapMsg("snowID/user empty")
	}
	now := m.conf.Clock()
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.bySnow[snowID]
	if !ok {
		return nil, ErrConnNotFound.WrapMsg("bind", "snow_id", snowID)
	}
	if w.Authorized {
		if w.UserID == user {
			return nil, nil
		}
		return nil, ErrAlreadyBound.WrapMsg("connection already joined", "user", w.UserID)
	}

	evicted, err := m.ensureRoomForUserLocked(user)
	if err != nil {
		return nil, err
	}

	if m.byUser[user] == nil {
		m.byUser[user] = make(map[string]*WsConn)
	}
	m.byUser[user][snowID] = w
	w.UserID = user
	w.Authorized = true
	w.TTL = m.conf.AuthTTL
	w.ExpireAt = now.Add(m.conf.AuthTTL)
	w.UpdatedAt = now
	w.Heartbeat = now
	return evicted, nil
}

// Heartbeat renews the connection's expiry.
func (m *ConnManager) Heartbeat(snowID string) error {
	now := m.conf.Clock()
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.bySnow[snowID]
	if !ok {
		return ErrConnNotFound.WrapMsg("heartbeat", "snow_id", snowID)
	}
	w.Heartbeat = now
	w.ExpireAt = now.Add(w.TTL)
	w.UpdatedAt = now
	return nil
}

// AttachPongHandler renews the connection on every pong.
func (m *ConnManager) AttachPongHandler(w *WsConn) {
	w.Conn.SetPongHandler(func(string) error {
		_ = m.Heartbeat(w.SnowID) // may already be swept
		return nil
	})
}

// Remove forgets the connection and stops its writer, which closes the socket.
func (m *ConnManager) Remove(snowID string) {
	m.mu.Lock()
	w, ok := m.bySnow[snowID]
	if ok {
		m.dropLocked(w)
	}
	m.mu.Unlock()
	if ok {
		w.shutdown()
	}
}

func (m *ConnManager) dropLocked(w *WsConn) {
	delete(m.bySnow, w.SnowID)
	if w.Authorized && w.UserID != "" {
		if mm := m.byUser[w.UserID]; mm != nil {
			delete(mm, w.SnowID)
			if len(mm) == 0 {
				delete(m.byUser, w.UserID)
			}
		}
	}
}

// Send queues one text frame for snowID.
func (m *ConnManager) Send(snowID string, data []byte) error {
	m.mu.RLock()
	w, ok := m.bySnow[snowID]
	m.mu.RUnlock()
	if !ok {
		return ErrConnNotFound.WrapMsg("send", "snow_id", snowID)
	}
	select {
	case <-w.done:
		return ErrConnNotFound.WrapMsg("send on closed conn", "snow_id", snowID)
	default:
	}
	select {
	case w.send <- data:
		return nil
	default:
		return ErrSendQueueFull.WrapMsg("send", "snow_id", snowID)
	}
}

// UserConns lists the joined connection ids of user.
func (m *ConnManager) UserConns(user string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.byUser[user]))
	for sid := range m.byUser[user] {
		out = append(out, sid)
	}
	return out
}

func (m *ConnManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bySnow)
}

// Close stops the sweeper and drops every connection.
func (m *ConnManager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.mu.Lock()
	all := make([]*WsConn, 0, len(m.bySnow))
	for _, w := range m.bySnow {
		all = append(all, w)
	}
	m.bySnow = make(map[string]*WsConn)
	m.byUser = make(map[string]map[string]*WsConn)
	m.mu.Unlock()
	for _, w := range all {
		w.shutdown()
	}
}

func (m *ConnManager) writePump(w *WsConn) {
	ping := time.NewTicker(m.conf.PingInterval)
	defer func() {
		ping.Stop()
		closeQuiet(w.Conn)
	}()
	for {
		select {
		case <-w.done:
			_ = w.Conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		case data := <-w.send:
			if err := writeText(w.Conn, data, m.conf.WriteTimeout); err != nil {
				m.log.Debug("write failed", zap.String("snow_id", w.SnowID), zap.Error(err))
				m.Remove(w.SnowID)
				return
			}
		case <-ping.C:
			if err := w.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(m.conf.WriteTimeout)); err != nil {
				m.Remove(w.SnowID)
				return
			}
		}
	}
}

func (m *ConnManager) sweeper() {
	t := time.NewTicker(m.conf.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-t.C:
			m.sweepOnce(m.conf.Clock())
		}
	}
}

func (m *ConnManager) sweepOnce(now time.Time) int {
	var expired []*WsConn
	m.mu.Lock()
	for _, w := range m.bySnow {
		if now.After(w.ExpireAt) {
			expired = append(expired, w)
			m.dropLocked(w)
		}
	}
	m.mu.Unlock()

	for _, w := range expired {
		m.log.Info("connection expired", zap.String("snow_id", w.SnowID), zap.String("user_id", w.UserID))
		w.shutdown()
	}
	return len(expired)
}

// must hold m.mu
func (m *ConnManager) ensureRoomForUserLocked(user string) ([]string, error) {
	if m.conf.MaxPerUser <= 0 {
		return nil, nil
	}
	mm := m.byUser[user]
	if len(mm) < m.conf.MaxPerUser {
		return nil, nil
	}
	if !m.conf.EvictOldest {
		return nil, ErrConnLimit.WrapMsg("too many connections", "user", user, "max", m.conf.MaxPerUser)
	}
	var evicted []string
	for len(mm) >= m.conf.MaxPerUser {
		var oldest *WsConn
		for _, w := range mm {
			if oldest == nil || w.CreatedAt.Before(oldest.CreatedAt) ||
				(w.CreatedAt.Equal(oldest.CreatedAt) && w.SnowID < oldest.SnowID) {
				oldest = w
			}
		}
		m.dropLocked(oldest)
		oldest.shutdown()
		evicted = append(evicted, oldest.SnowID)
		mm = m.byUser[user]
	}
	return evicted, nil
}

func writeText(conn *websocket.Conn, data []byte, timeout time.Duration) error {
	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func closeQuiet(c *websocket.Conn) {
	if c != nil {
		_ = c.Close()
	}
}
