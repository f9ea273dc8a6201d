package counter

import (
	"context"
	"strconv"
	"strings"

	"linkhub/tools/errs"
)

// Scope names a family of delivery counters.
type Scope string

const (
	// NotificationUnread is keyed by recipient.
	NotificationUnread Scope = "notification_unread"
	// ConversationUnread is keyed by (conversation, participant).
	ConversationUnread Scope = "conversation_unread"
)

func (s Scope) Valid() bool {
	return s == NotificationUnread || s == ConversationUnread
}

// Key identifies one counter. ConversationID is empty for NotificationUnread.
type Key struct {
	Scope          Scope
	Recipient      string
	ConversationID string
}

func NotificationKey(recipient string) Key {
	return Key{Scope: NotificationUnread, Recipient: recipient}
}

func ConversationKey(conversationID, participant string) Key {
	return Key{Scope: ConversationUnread, Recipient: participant, ConversationID: conversationID}
}

func (k Key) Validate() error {
	if !k.Scope.Valid() {
		return errs.ErrArgs.WrapMsg("unknown counter scope", "scope", k.Scope)
	}
	if strings.TrimSpace(k.Recipient) == "" {
		return errs.ErrArgs.WrapMsg("counter recipient is empty")
	}
	if k.Scope == ConversationUnread && k.ConversationID == "" {
		return errs.ErrArgs.WrapMsg("conversation counter without conversation id")
	}
	if k.Scope == NotificationUnread && k.ConversationID != "" {
		return errs.ErrArgs.WrapMsg("notification counter with conversation id")
	}
	return nil
}

// String is the flat key used by Redis. The conversation id is length
// prefixed, so ids containing ':' cannot collide.
func (k Key) String() string {
	if k.ConversationID == "" {
		return string(k.Scope) + ":" + k.Recipient
	}
	return string(k.Scope) + ":" + strconv.Itoa(len(k.ConversationID)) + ":" + k.ConversationID + ":" + k.Recipient
}

// Store maintains running unread totals. Implementations must make Increment
// and Reset single atomic operations against their backend; callers never
// read-modify-write. Values never go below zero because nothing subtracts.
type Store interface {
	// Increment adds one, creating the counter at zero first, and returns
	// the new value.
	Increment(ctx context.Context, key Key) (int64, error)
	// Reset sets the counter to zero. Resetting a missing counter is a no-op.
	Reset(ctx context.Context, key Key) error
	// Get returns the current value, zero when absent.
	Get(ctx context.Context, key Key) (int64, error)
}

// unavailable wraps a backend failure so callers can tell it from a
// validation error.
func unavailable(err error, op string, key Key) error {
	return errs.ErrStoreUnavailable.WrapMsg(err.Error(), "op", op, "key", key.String())
}
