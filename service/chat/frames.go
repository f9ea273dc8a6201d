package chat

import (
	"encoding/json"
	"strings"

	"linkhub/module/realtime"
	"linkhub/tools/decode"
	"linkhub/tools/errs"
)

// Client to server frames.
const (
	EventJoin        = "join"
	EventLeave       = "leave"
	EventSubscribe   = "subscribe"
	EventPing        = "ping"
	EventSendMessage = "send_message"
	EventMarkRead    = "mark_read"
)

// Server replies that are not domain events.
const (
	ReplyJoined      = "joined"
	ReplyPong        = "pong"
	ReplyError       = "error"
	ReplyMessageSent = "message_sent"
	ReplyRead        = "read"
	ReplyLeft        = "left"
	ReplySubscribed  = "subscribed"
)

type ClientFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

func ParseFrameJSON(raw []byte) (*ClientFrame, error) {
	var f ClientFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errs.ErrArgs.WrapMsg("unmarshal frame failed: " + err.Error())
	}
	f.Event = strings.TrimSpace(f.Event)
	if f.Event == "" {
		return nil, errs.ErrArgs.WrapMsg("frame without event")
	}
	return &f, nil
}

type JoinPayload struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

// ExtractJoinPayload accepts the bare identity string clients send as well
// as the object form carrying a token.
func ExtractJoinPayload(data any) (*JoinPayload, error) {
	if s, ok := data.(string); ok {
		return &JoinPayload{UserID: strings.TrimSpace(s)}, nil
	}
	return decode.Decode[JoinPayload](data)
}

// RoomPayload is the data of leave and subscribe; a bare string also works.
type RoomPayload struct {
	Room string `json:"room"`
}

type SendMessagePayload struct {
	ConversationID string `json:"conversationId"`
	RecipientID    string `json:"recipientId"`
	Text           string `json:"text"`
}

type MarkReadPayload struct {
	ConversationID string `json:"conversationId"`
}

func buildError(err error) []byte {
	code, msg := errs.ServerInternalError, "internal error"
	if ce, ok := errs.As(err); ok {
		code, msg = ce.Code, ce.Msg
		if ce.Detail != "" {
			msg = ce.Detail
		}
	}
	b, _ := realtime.EncodeFrame(ReplyError, map[string]any{"code": code, "msg": msg})
	return b
}
