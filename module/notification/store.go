package notification

import "context"

// Store persists notification records. Get, MarkRead and Delete report
// errs.ErrRecordNotFound for unknown ids.
type Store interface {
	Create(ctx context.Context, n *Notification) error
	Get(ctx context.Context, id string) (*Notification, error)
	// List returns one page, newest first, and the total matching the filter.
	List(ctx context.Context, recipient string, f Filter) ([]*Notification, int64, error)
	TypeCounts(ctx context.Context, recipient string) (map[Type]int64, error)
	CountUnread(ctx context.Context, recipient string) (int64, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, recipient string) (int64, error)
	Delete(ctx context.Context, id string) error
}
