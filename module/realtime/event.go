package realtime

import (
	"encoding/json"
	"strings"
	"time"

	"linkhub/module/notification"
	"linkhub/tools/errs"
)

// EventKind is the closed set of domain events the router understands.
type EventKind int

const (
	KindUnknown EventKind = iota
	KindPostCreated
	KindPostUpdated
	KindPostDeleted
	KindPostLiked
	KindCommentAdded
	KindConnectionRequest
	KindConnectionAccepted
	KindNewFollower
	KindMessage
	KindNotification
)

var kindNames = [...]string{
	KindUnknown:            "unknown",
	KindPostCreated:        "post_created",
	KindPostUpdated:        "post_updated",
	KindPostDeleted:        "post_deleted",
	KindPostLiked:          "post_liked",
	KindCommentAdded:       "comment_added",
	KindConnectionRequest:  "connection_request",
	KindConnectionAccepted: "connection_accepted",
	KindNewFollower:        "new_follower",
	KindMessage:            "message",
	KindNotification:       "notification",
}

// Kinds lists every valid kind in declaration order.
func Kinds() []EventKind {
	out := make([]EventKind, 0, len(kindNames)-1)
	for k := KindPostCreated; int(k) < len(kindNames); k++ {
		out = append(out, k)
	}
	return out
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

func (k EventKind) Valid() bool { return k > KindUnknown && int(k) < len(kindNames) }

func ParseEventKind(s string) (EventKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range kindNames {
		if i > 0 && name == s {
			return EventKind(i), nil
		}
	}
	return KindUnknown, errs.ErrArgs.WrapMsg("unknown event kind", "kind", s)
}

func (k EventKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, errs.ErrArgs.WrapMsg("unknown event kind", "kind", int(k))
	}
	return []byte(k.String()), nil
}

func (k *EventKind) UnmarshalText(b []byte) error {
	v, err := ParseEventKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Feed reports whether the kind is broadcast to the feed room rather than
// targeted at one recipient.
func (k EventKind) Feed() bool { return routes[k].feedOnly }

// Event is one immutable domain occurrence handed to Router.Publish.
type Event struct {
	// ID identifies the occurrence across redeliveries. Publish fills it
	// when empty, which disables dedupe for that event.
	ID             string    `json:"id,omitempty"`
	Kind           EventKind `json:"kind"`
	RecipientID    string    `json:"recipientId,omitempty"`
	SenderID       string    `json:"senderId,omitempty"`
	SenderName     string    `json:"senderName,omitempty"`
	ConversationID string    `json:"conversationId,omitempty"`
	RelatedID      string    `json:"relatedId,omitempty"`
	// NotificationType and Content override the defaults derived from Kind.
	NotificationType notification.Type `json:"notificationType,omitempty"`
	Content          string            `json:"content,omitempty"`
	Payload          json.RawMessage   `json:"payload,omitempty"`
	CreatedAt        time.Time         `json:"createdAt,omitempty"`
}

func (e *Event) Validate() error {
	if !e.Kind.Valid() {
		return errs.ErrArgs.WrapMsg("unknown event kind", "kind", int(e.Kind))
	}
	rt := routes[e.Kind]
	if rt.feedOnly {
		if e.RecipientID != "" {
			return errs.ErrArgs.WrapMsg("feed event must not carry a recipient", "kind", e.Kind)
		}
	} else if strings.TrimSpace(e.RecipientID) == "" {
		return errs.ErrArgs.WrapMsg("event needs a recipient", "kind", e.Kind)
	}
	if rt.effect == effectConversation && e.ConversationID == "" {
		return errs.ErrArgs.WrapMsg("message event needs a conversation id")
	}
	if e.NotificationType != "" && !e.NotificationType.Valid() {
		return errs.ErrArgs.WrapMsg("unknown notification type", "type", e.NotificationType)
	}
	if len(e.Payload) > 0 && !json.Valid(e.Payload) {
		return errs.ErrArgs.WrapMsg("payload is not valid json", "kind", e.Kind)
	}
	return nil
}

// selfEngagement is a like or comment on the actor's own post. Those still
// refresh the feed but notify nobody.
func (e *Event) selfEngagement() bool {
	return routes[e.Kind].engagement && e.SenderID != "" && e.SenderID == e.RecipientID
}

func (e *Event) senderLabel() string {
	if e.SenderName != "" {
		return e.SenderName
	}
	return e.SenderID
}

// notification builds the durable record for notification-class kinds.
func (e *Event) notification() *notification.Notification {
	rt := routes[e.Kind]
	typ := rt.noteType
	if e.NotificationType != "" {
		typ = e.NotificationType
	}
	content := e.Content
	if content == "" {
		content = rt.content
	}
	return &notification.Notification{
		RecipientID: e.RecipientID,
		SenderID:    e.SenderID,
		SenderName:  e.SenderName,
		Type:        typ,
		Content:     content,
		RelatedID:   e.RelatedID,
		CreatedAt:   e.CreatedAt,
	}
}

// DecodeEvent parses the JSON form used by the ingest buses and the HTTP
// API. Kinds are given by name.
func DecodeEvent(raw []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Event{}, errs.ErrArgs.WrapMsg("malformed event: " + err.Error())
	}
	return ev, nil
}
