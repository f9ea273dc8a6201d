package chat

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"linkhub/module/conversation"
	"linkhub/module/counter"
	"linkhub/module/notification"
	"linkhub/module/realtime"
	"linkhub/tools/errs"
	"linkhub/tools/security"
)

type wireFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type harness struct {
	url      string
	mgr      *ConnManager
	lc       *realtime.Lifecycle
	router   *realtime.Router
	counters *counter.MemoryStore
	secOpts  security.Options
}

func newHarness(t *testing.T, requireToken bool) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := &harness{
		counters: counter.NewMemoryStore(),
		secOpts:  security.DefaultOptions([]byte("test-secret")),
	}
	h.mgr = NewConnManager(ManagerConf{MaxPerUser: 4, EvictOldest: true}, "gw-test")
	reg := realtime.NewRegistry()
	h.lc = realtime.NewLifecycle(reg, realtime.WithLifecycleLogger(zap.NewNop()))
	notes := notification.NewService(notification.NewMemoryStore(), h.counters, notification.WithLogger(zap.NewNop()))
	h.router = realtime.NewRouter(reg, h.mgr, h.counters, notes, realtime.WithRouterLogger(zap.NewNop()))
	convs := conversation.NewService(conversation.NewMemoryStore(), h.counters, h.router, conversation.WithLogger(zap.NewNop()))

	srv := NewServer(h.mgr, h.lc, convs, ServerConf{RequireJoinToken: requireToken, Security: h.secOpts})
	r := gin.New()
	r.GET("/ws", srv.HandleWS)
	ts := httptest.NewServer(r)
	t.Cleanup(func() {
		h.mgr.Close()
		ts.Close()
	})
	h.url = "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	return h
}

func (h *harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(h.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func send(t *testing.T, c *websocket.Conn, event string, data any) {
	t.Helper()
	b, err := json.Marshal(map[string]any{"event": event, "data": data})
	require.NoError(t, err)
	require.NoError(t, c.WriteMessage(websocket.TextMessage, b))
}

// readUntil skips frames until event arrives.
func readUntil(t *testing.T, c *websocket.Conn, event string) wireFrame {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	require.NoError(t, c.SetReadDeadline(deadline))
	for {
		_, b, err := c.ReadMessage()
		require.NoError(t, err, "waiting for %q", event)
		var f wireFrame
		require.NoError(t, json.Unmarshal(b, &f))
		if f.Event == event {
			return f
		}
	}
}

func (h *harness) join(t *testing.T, user string) *websocket.Conn {
	t.Helper()
	c := h.dial(t)
	send(t, c, EventJoin, user)
	f := readUntil(t, c, ReplyJoined)
	assert.Contains(t, string(f.Data), user)
	return c
}

func errorCode(t *testing.T, f wireFrame) int {
	t.Helper()
	var body struct {
		Code int `json:"code"`
	}
	require.NoError(t, json.Unmarshal(f.Data, &body))
	return body.Code
}

func TestServer_PingPong(t *testing.T) {
	h := newHarness(t, false)
	c := h.dial(t)
	send(t, c, EventPing, nil)
	readUntil(t, c, ReplyPong)
}

func TestServer_UnknownFrame(t *testing.T) {
	h := newHarness(t, false)
	c := h.dial(t)
	send(t, c, "teleport", nil)
	assert.Equal(t, errs.ArgsError, errorCode(t, readUntil(t, c, ReplyError)))

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, errs.ArgsError, errorCode(t, readUntil(t, c, ReplyError)))
}

func TestServer_SendBeforeJoin(t *testing.T) {
	h := newHarness(t, false)
	c := h.dial(t)
	send(t, c, EventSendMessage, map[string]any{"recipientId": "bob", "text": "hi"})
	assert.Equal(t, errs.NoPermissionError, errorCode(t, readUntil(t, c, ReplyError)))
}

func TestServer_DirectMessage(t *testing.T) {
	h := newHarness(t, false)
	alice := h.join(t, "alice")
	bob := h.join(t, "bob")

	send(t, bob, EventSendMessage, map[string]any{"recipientId": "alice", "text": "  hello  "})
	sent := readUntil(t, bob, ReplyMessageSent)
	var msg conversation.Message
	require.NoError(t, json.Unmarshal(sent.Data, &msg))
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, "alice", msg.RecipientID)

	got := readUntil(t, alice, realtime.FrameReceiveMessage)
	assert.Contains(t, string(got.Data), "hello")
	note := readUntil(t, alice, realtime.FrameNotification)
	assert.Contains(t, string(note.Data), msg.ConversationID)

	ctx := context.Background()
	v, err := h.counters.Get(ctx, counter.ConversationKey(msg.ConversationID, "alice"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)

	send(t, alice, EventMarkRead, map[string]any{"conversationId": msg.ConversationID})
	readUntil(t, alice, ReplyRead)
	v, err = h.counters.Get(ctx, counter.ConversationKey(msg.ConversationID, "alice"))
	require.NoError(t, err)
	assert.EqualValues(t, 0, v)
}

func TestServer_FeedReachesAnonymous(t *testing.T) {
	h := newHarness(t, false)
	anon := h.dial(t)
	send(t, anon, EventPing, nil)
	readUntil(t, anon, ReplyPong) // socket is registered once it answers

	_, err := h.router.Publish(context.Background(), realtime.Event{
		Kind:     realtime.KindPostCreated,
		SenderID: "carol",
		Payload:  json.RawMessage(`{"postId":"p1"}`),
	})
	require.NoError(t, err)
	f := readUntil(t, anon, realtime.FrameNewPost)
	assert.JSONEq(t, `{"postId":"p1"}`, string(f.Data))
}

func TestServer_DisconnectUnregisters(t *testing.T) {
	h := newHarness(t, false)
	c := h.join(t, "dave")
	require.True(t, h.lc.Registry().Online("dave"))

	require.NoError(t, c.Close())
	require.Eventually(t, func() bool { return !h.lc.Registry().Online("dave") }, 3*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return h.mgr.Count() == 0 }, 3*time.Second, 10*time.Millisecond)
}

func TestServer_JoinToken(t *testing.T) {
	h := newHarness(t, true)

	c := h.dial(t)
	send(t, c, EventJoin, "erin")
	assert.Equal(t, errs.TokenInvalidError, errorCode(t, readUntil(t, c, ReplyError)))

	token, _, err := security.Generate(h.secOpts, "erin")
	require.NoError(t, err)
	send(t, c, EventJoin, map[string]any{"userId": "mallory", "token": token})
	assert.Equal(t, errs.TokenInvalidError, errorCode(t, readUntil(t, c, ReplyError)))

	send(t, c, EventJoin, map[string]any{"token": token})
	f := readUntil(t, c, ReplyJoined)
	assert.Contains(t, string(f.Data), "erin")
	assert.True(t, h.lc.Registry().Online("erin"))
}

func TestServer_EvictOldestOverLimit(t *testing.T) {
	h := newHarness(t, false)
	first := h.join(t, "frank")
	for i := 0; i < 4; i++ {
		h.join(t, "frank")
	}
	require.NoError(t, first.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}
	assert.Eventually(t, func() bool {
		return len(h.lc.Registry().LiveConnections("frank")) == 4
	}, 3*time.Second, 10*time.Millisecond)
}

func TestServer_Leave(t *testing.T) {
	h := newHarness(t, false)
	alice := h.join(t, "alice")

	send(t, alice, EventLeave, "alice")
	assert.Equal(t, errs.ArgsError, errorCode(t, readUntil(t, alice, ReplyError)))

	send(t, alice, EventLeave, map[string]any{"room": realtime.FeedRoom})
	readUntil(t, alice, ReplyLeft)

	_, err := h.router.Publish(context.Background(), realtime.Event{Kind: realtime.KindPostCreated, SenderID: "carol"})
	require.NoError(t, err)
	send(t, alice, EventPing, nil)

	require.NoError(t, alice.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, b, err := alice.ReadMessage()
		require.NoError(t, err)
		var f wireFrame
		require.NoError(t, json.Unmarshal(b, &f))
		assert.NotEqual(t, realtime.FrameNewPost, f.Event)
		if f.Event == ReplyPong {
			break
		}
	}
}

func TestServer_SubscribeRejoinsFeed(t *testing.T) {
	h := newHarness(t, false)
	alice := h.join(t, "alice")

	send(t, alice, EventLeave, realtime.FeedRoom)
	readUntil(t, alice, ReplyLeft)

	send(t, alice, EventSubscribe, "bob")
	assert.Equal(t, errs.ArgsError, errorCode(t, readUntil(t, alice, ReplyError)))

	send(t, alice, EventSubscribe, map[string]any{"room": realtime.FeedRoom})
	readUntil(t, alice, ReplySubscribed)

	_, err := h.router.Publish(context.Background(), realtime.Event{
		Kind:     realtime.KindPostCreated,
		SenderID: "carol",
		Payload:  json.RawMessage(`{"postId":"p2"}`),
	})
	require.NoError(t, err)
	f := readUntil(t, alice, realtime.FrameNewPost)
	assert.JSONEq(t, `{"postId":"p2"}`, string(f.Data))
}

func TestServer_JoinReportsDevices(t *testing.T) {
	h := newHarness(t, false)
	h.join(t, "dave")

	c := h.dial(t)
	send(t, c, EventJoin, "dave")
	f := readUntil(t, c, ReplyJoined)
	var body struct {
		Devices int `json:"devices"`
	}
	require.NoError(t, json.Unmarshal(f.Data, &body))
	assert.Equal(t, 2, body.Devices)
}
