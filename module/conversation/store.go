package conversation

import "context"

// Store persists conversations and their messages. Lookups of unknown ids
// return errs.ErrRecordNotFound; Create returns errs.ErrDuplicate when the
// pair key is taken.
type Store interface {
	FindByPair(ctx context.Context, pairKey string) (*Conversation, error)
	Create(ctx context.Context, c *Conversation) error
	Get(ctx context.Context, id string) (*Conversation, error)
	// ListByParticipant returns the identity's conversations, most recent
	// activity first.
	ListByParticipant(ctx context.Context, identity string) ([]*Conversation, error)

	// AppendMessage stores m and moves the conversation's last-message
	// pointer forward.
	AppendMessage(ctx context.Context, m *Message) error
	GetMessage(ctx context.Context, id string) (*Message, error)
	// Messages returns one page newest first, plus the total count.
	Messages(ctx context.Context, conversationID string, page, limit int) ([]*Message, int64, error)
	// MarkRead flags every unread message addressed to recipient.
	MarkRead(ctx context.Context, conversationID, recipient string) (int64, error)
}
