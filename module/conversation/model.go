package conversation

import (
	"strconv"
	"time"
)

const (
	CollConversation = "conversation"
	CollMessage      = "message"

	FieldID             = "_id"
	FieldPairKey        = "pair_key"
	FieldParticipants   = "participants"
	FieldLastMessageID  = "last_message_id"
	FieldLastMessageAt  = "last_message_at"
	FieldUpdatedAt      = "updated_at"
	FieldConversationID = "conversation_id"
	FieldRecipientID    = "recipient_id"
	FieldRead           = "read"
	FieldCreatedAt      = "created_at"
)

// Conversation is a two-party thread. Participants is sorted and PairKey is
// derived from it, so one unordered pair maps to exactly one key.
type Conversation struct {
	ID            string    `json:"id" bson:"_id"`
	PairKey       string    `json:"-" bson:"pair_key"`
	Participants  []string  `json:"participants" bson:"participants"`
	LastMessageID string    `json:"lastMessageId,omitempty" bson:"last_message_id,omitempty"`
	LastMessageAt time.Time `json:"lastMessageAt" bson:"last_message_at"`
	CreatedAt     time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" bson:"updated_at"`
}

func (Conversation) GetTableName() string { return CollConversation }

func (c *Conversation) Has(identity string) bool {
	for _, p := range c.Participants {
		if p == identity {
			return true
		}
	}
	return false
}

// Other returns the participant that is not identity.
func (c *Conversation) Other(identity string) (string, bool) {
	if len(c.Participants) != 2 || !c.Has(identity) {
		return "", false
	}
	if c.Participants[0] == identity {
		return c.Participants[1], true
	}
	return c.Participants[0], true
}

type Message struct {
	ID             string    `json:"id" bson:"_id"`
	ConversationID string    `json:"conversationId" bson:"conversation_id"`
	SenderID       string    `json:"senderId" bson:"sender_id"`
	RecipientID    string    `json:"recipientId" bson:"recipient_id"`
	Text           string    `json:"text" bson:"text"`
	Read           bool      `json:"read" bson:"read"`
	CreatedAt      time.Time `json:"createdAt" bson:"created_at"`
}

func (Message) GetTableName() string { return CollMessage }

// PairKey normalizes an unordered pair. The length prefix keeps ids that
// contain the separator unambiguous.
func PairKey(a, b string) (string, []string) {
	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}
	return strconv.Itoa(len(lo)) + ":" + lo + "|" + hi, []string{lo, hi}
}

// Summary is one row of a user's conversation list.
type Summary struct {
	Conversation *Conversation `json:"conversation"`
	Participant  string        `json:"participant"`
	LastMessage  *Message      `json:"lastMessage,omitempty"`
	UnreadCount  int64         `json:"unreadCount"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage bounds client supplied page numbers so offsets stay small.
	MaxPage = 1 << 20
)

type MessagePage struct {
	Messages   []*Message `json:"messages"`
	Total      int64      `json:"total"`
	Page       int        `json:"currentPage"`
	TotalPages int        `json:"totalPages"`
}
