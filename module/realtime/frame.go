package realtime

import (
	"encoding/json"
	"time"

	"linkhub/module/notification"
)

// Frame names sent to clients.
const (
	FrameNewPost        = "new_post"
	FrameUpdatePost     = "update_post"
	FrameDeletePost     = "delete_post"
	FrameReceiveMessage = "receive_message"
	FrameNotification   = "notification"
)

type effect int

const (
	effectNone effect = iota
	effectNotification
	effectConversation
)

// route describes how one kind is handled. Every kind has an entry; the
// router never falls back to string matching.
type route struct {
	feedOnly   bool
	feedFrame  string // broadcast to the feed room ("" = none)
	engagement bool
	effect     effect
	noteType   notification.Type
	content    string
}

var routes = map[EventKind]route{
	KindPostCreated: {feedOnly: true, feedFrame: FrameNewPost},
	KindPostUpdated: {feedOnly: true, feedFrame: FrameUpdatePost},
	KindPostDeleted: {feedOnly: true, feedFrame: FrameDeletePost},
	KindPostLiked: {feedFrame: FrameUpdatePost, engagement: true, effect: effectNotification,
		noteType: notification.TypePostLike, content: "liked your post"},
	KindCommentAdded: {feedFrame: FrameUpdatePost, engagement: true, effect: effectNotification,
		noteType: notification.TypePostComment, content: "commented on your post"},
	KindConnectionRequest: {effect: effectNotification,
		noteType: notification.TypeConnectionRequest, content: "sent you a connection request"},
	KindConnectionAccepted: {effect: effectNotification,
		noteType: notification.TypeConnectionAccepted, content: "accepted your connection request"},
	KindNewFollower: {effect: effectNotification,
		noteType: notification.TypeNewFollower, content: "started following you"},
	KindNotification: {effect: effectNotification, noteType: notification.TypeGeneric},
	KindMessage:      {effect: effectConversation, noteType: notification.TypeMessage, content: "New message received"},
}

// Frame is the JSON text message exchanged over the socket.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

func EncodeFrame(event string, data any) ([]byte, error) {
	return json.Marshal(Frame{Event: event, Data: data})
}

// Envelope is the short notification shape pushed to live sockets. The
// full record is served by the REST API.
type Envelope struct {
	Type           notification.Type `json:"type"`
	Sender         string            `json:"sender"`
	SenderID       string            `json:"senderId,omitempty"`
	Content        string            `json:"content"`
	NotificationID string            `json:"notificationId,omitempty"`
	RelatedID      string            `json:"relatedId,omitempty"`
	ConversationID string            `json:"conversationId,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
}

type outbound struct {
	feed   [][]byte
	target [][]byte
}

// frames renders what a published event puts on the wire. note is the
// stored record when one was created.
func frames(ev *Event, note *notification.Notification) (outbound, error) {
	var out outbound
	rt := routes[ev.Kind]

	if rt.feedFrame != "" && (rt.feedOnly || len(ev.Payload) > 0) {
		b, err := EncodeFrame(rt.feedFrame, ev.Payload)
		if err != nil {
			return out, err
		}
		out.feed = append(out.feed, b)
	}

	switch rt.effect {
	case effectConversation:
		b, err := EncodeFrame(FrameReceiveMessage, ev.Payload)
		if err != nil {
			return out, err
		}
		out.target = append(out.target, b)
		content := ev.Content
		if content == "" {
			content = rt.content
		}
		b, err = EncodeFrame(FrameNotification, Envelope{
			Type:           rt.noteType,
			Sender:         ev.senderLabel(),
			SenderID:       ev.SenderID,
			Content:        content,
			ConversationID: ev.ConversationID,
			CreatedAt:      ev.CreatedAt,
		})
		if err != nil {
			return out, err
		}
		out.target = append(out.target, b)
	case effectNotification:
		if note == nil {
			break
		}
		b, err := EncodeFrame(FrameNotification, Envelope{
			Type:           note.Type,
			Sender:         ev.senderLabel(),
			SenderID:       note.SenderID,
			Content:        note.Content,
			NotificationID: note.ID,
			RelatedID:      note.RelatedID,
			CreatedAt:      note.CreatedAt,
		})
		if err != nil {
			return out, err
		}
		out.target = append(out.target, b)
	}
	return out, nil
}
