package chat

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"linkhub/logger"
	"linkhub/module/conversation"
	"linkhub/module/realtime"
	"linkhub/tools/decode"
	"linkhub/tools/errs"
	"linkhub/tools/security"
)

// Conversations is the slice of the conversation service reachable from a
// socket.
type Conversations interface {
	AppendMessage(ctx context.Context, conversationID, sender, text string) (*conversation.Message, error)
	Send(ctx context.Context, sender, recipient, text string) (*conversation.Conversation, *conversation.Message, error)
	MarkRead(ctx context.Context, conversationID, identity string) (int64, error)
}

type ServerConf struct {
	RequireJoinToken bool
	Security         security.Options
	ReadLimit        int64
	HandlerTimeout   time.Duration
}

type Server struct {
	mgr   *ConnManager
	lc    *realtime.Lifecycle
	convs Conversations
	disp  *Dispatcher
	conf  ServerConf
	log   *zap.Logger

	upgrader websocket.Upgrader
}

func NewServer(mgr *ConnManager, lc *realtime.Lifecycle, convs Conversations, conf ServerConf) *Server {
	if conf.ReadLimit <= 0 {
		conf.ReadLimit = 64 << 10
	}
	if conf.HandlerTimeout <= 0 {
		conf.HandlerTimeout = 5 * time.Second
	}
	s := &Server{
		mgr:   mgr,
		lc:    lc,
		convs: convs,
		disp:  NewDispatcher(),
		conf:  conf,
		log:   logger.Named("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.disp.Register(EventJoin, s.handleJoin)
	s.disp.Register(EventLeave, s.handleLeave)
	s.disp.Register(EventSubscribe, s.handleSubscribe)
	s.disp.Register(EventPing, s.handlePing)
	s.disp.Register(EventSendMessage, s.handleSendMessage)
	s.disp.Register(EventMarkRead, s.handleMarkRead)
	return s
}

// HandleWS upgrades the request and serves the socket until it closes. Every
// socket starts anonymous and subscribed to the feed room.
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Info("upgrade failed", zap.Error(err))
		return
	}
	w, err := s.mgr.Add(ws)
	if err != nil {
		closeQuiet(ws)
		return
	}
	log := s.log.With(zap.String("snow_id", w.SnowID))
	defer func() {
		s.mgr.Remove(w.SnowID)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.lc.Disconnect(ctx, w.SnowID)
	}()

	if err := s.lc.Connect(w.SnowID); err != nil {
		log.Warn("connect failed", zap.Error(err))
		return
	}
	s.mgr.AttachPongHandler(w)
	ws.SetReadLimit(s.conf.ReadLimit)

	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			var ne net.Error
			switch {
			case websocket.IsCloseError(rerr, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
				log.Debug("peer closed")
			case errors.As(rerr, &ne) && ne.Timeout():
				log.Info("read timeout")
			default:
				log.Debug("read stopped", zap.Error(rerr))
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		_ = s.mgr.Heartbeat(w.SnowID)
		s.serveFrame(w, data)
	}
}

func (s *Server) serveFrame(w *WsConn, data []byte) {
	f, err := ParseFrameJSON(data)
	if err != nil {
		sample := data
		if len(sample) > 256 {
			sample = sample[:256]
		}
		s.log.Debug("bad frame", zap.String("snow_id", w.SnowID), zap.ByteString("sample", sample), zap.Error(err))
		_ = s.mgr.Send(w.SnowID, buildError(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.conf.HandlerTimeout)
	defer cancel()
	if err := s.disp.Dispatch(ctx, w, f); err != nil {
		s.log.Debug("frame rejected", zap.String("snow_id", w.SnowID), zap.String("event", f.Event), zap.Error(err))
		_ = s.mgr.Send(w.SnowID, buildError(err))
	}
}

func (s *Server) reply(w *WsConn, event string, data any) error {
	b, err := realtime.EncodeFrame(event, data)
	if err != nil {
		return err
	}
	return s.mgr.Send(w.SnowID, b)
}

func (s *Server) identity(w *WsConn) (string, error) {
	user, ok := s.lc.Registry().IdentityOf(w.SnowID)
	if !ok || user == "" {
		return "", errs.ErrNoPermission.WrapMsg("join first")
	}
	return user, nil
}

func (s *Server) handleJoin(ctx context.Context, w *WsConn, data any) error {
	p, err := ExtractJoinPayload(data)
	if err != nil {
		return err
	}
	user := strings.TrimSpace(p.UserID)
	if p.Token != "" || s.conf.RequireJoinToken {
		claims, err := security.Verify(s.conf.Security, p.Token)
		if err != nil {
			return err
		}
		if user == "" {
			user = claims.Subject
		} else if user != claims.Subject {
			return errs.ErrTokenInvalid.WrapMsg("token subject mismatch")
		}
	}
	if user == "" {
		return errs.ErrArgs.WrapMsg("join needs a user id")
	}

	evicted, err := s.mgr.BindUser(w.SnowID, user)
	if err != nil {
		return err
	}
	for _, sid := range evicted {
		s.lc.Disconnect(ctx, sid)
	}
	if err := s.lc.Join(ctx, w.SnowID, user); err != nil {
		return err
	}
	return s.reply(w, ReplyJoined, map[string]any{
		"userId":  user,
		"connId":  w.SnowID,
		"devices": len(s.mgr.UserConns(user)),
	})
}

func roomOf(data any) (string, error) {
	if str, ok := data.(string); ok {
		return strings.TrimSpace(str), nil
	}
	p, err := decode.Decode[RoomPayload](data)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(p.Room), nil
}

func (s *Server) handleLeave(_ context.Context, w *WsConn, data any) error {
	room, err := roomOf(data)
	if err != nil {
		return err
	}
	if user, ok := s.lc.Registry().IdentityOf(w.SnowID); ok && user != "" && user == room {
		return errs.ErrArgs.WrapMsg("cannot leave the identity room")
	}
	if err := s.lc.Leave(w.SnowID, room); err != nil {
		return err
	}
	return s.reply(w, ReplyLeft, map[string]any{"room": room})
}

// handleSubscribe rejoins a shared room after a leave. Only the feed room is
// shared; identity rooms come from join.
func (s *Server) handleSubscribe(_ context.Context, w *WsConn, data any) error {
	room, err := roomOf(data)
	if err != nil {
		return err
	}
	if room != realtime.FeedRoom {
		return errs.ErrArgs.WrapMsg("unknown room", "room", room)
	}
	if err := s.lc.Subscribe(w.SnowID, room); err != nil {
		return err
	}
	return s.reply(w, ReplySubscribed, map[string]any{"room": room})
}

func (s *Server) handlePing(_ context.Context, w *WsConn, _ any) error {
	return s.reply(w, ReplyPong, map[string]any{"ts": time.Now().UnixMilli()})
}

func (s *Server) handleSendMessage(ctx context.Context, w *WsConn, data any) error {
	user, err := s.identity(w)
	if err != nil {
		return err
	}
	p, err := decode.Decode[SendMessagePayload](data)
	if err != nil {
		return err
	}
	var msg *conversation.Message
	switch {
	case p.ConversationID != "":
		msg, err = s.convs.AppendMessage(ctx, p.ConversationID, user, p.Text)
	case p.RecipientID != "":
		_, msg, err = s.convs.Send(ctx, user, p.RecipientID, p.Text)
	default:
		err = errs.ErrArgs.WrapMsg("send_message needs conversationId or recipientId")
	}
	if err != nil {
		return err
	}
	return s.reply(w, ReplyMessageSent, msg)
}

func (s *Server) handleMarkRead(ctx context.Context, w *WsConn, data any) error {
	user, err := s.identity(w)
	if err != nil {
		return err
	}
	var convID string
	if str, ok := data.(string); ok {
		convID = str
	} else {
		p, err := decode.Decode[MarkReadPayload](data)
		if err != nil {
			return err
		}
		convID = p.ConversationID
	}
	if strings.TrimSpace(convID) == "" {
		return errs.ErrArgs.WrapMsg("mark_read needs conversationId")
	}
	if _, err := s.convs.MarkRead(ctx, convID, user); err != nil {
		return err
	}
	return s.reply(w, ReplyRead, map[string]any{"conversationId": convID, "unread": 0})
}
