package notification

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"linkhub/logger"
	"linkhub/module/counter"
	"linkhub/tools/errs"
	"linkhub/tools/ids"
)

const lockStripes = 64

// Service keeps notification records and the notificationUnread counter
// moving together. Every path that touches both runs under the recipient's
// stripe lock, so a mark-read in this process cannot interleave with a
// record+increment for the same recipient.
type Service struct {
	store    Store
	counters counter.Store
	locks    [lockStripes]sync.Mutex
	now      func() time.Time
	log      *zap.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.log = l } }

func NewService(store Store, counters counter.Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		counters: counters,
		now:      time.Now,
		log:      logger.Named("notification"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) lock(recipient string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(recipient))
	mu := &s.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// Record persists n as unread and bumps the recipient's counter. It returns
// the counter value after the increment.
func (s *Service) Record(ctx context.Context, n *Notification) (int64, error) {
	if strings.TrimSpace(n.RecipientID) == "" {
		return 0, errs.ErrArgs.WrapMsg("notification without recipient")
	}
	if !n.Type.Valid() {
		return 0, errs.ErrArgs.WrapMsg("unknown notification type", "type", n.Type)
	}
	if n.ID == "" {
		n.ID = ids.GenerateString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	n.Read = false

	defer s.lock(n.RecipientID)()
	if err := s.store.Create(ctx, n); err != nil {
		return 0, err
	}
	v, err := s.counters.Increment(ctx, counter.NotificationKey(n.RecipientID))
	if err != nil {
		s.log.Error("notification stored but counter increment failed",
			zap.String("recipient", n.RecipientID), zap.String("id", n.ID), zap.Error(err))
		return 0, err
	}
	return v, nil
}

func (s *Service) List(ctx context.Context, recipient string, f Filter) (*Page, error) {
	f = f.normalize()
	items, total, err := s.store.List(ctx, recipient, f)
	if err != nil {
		return nil, err
	}
	unread, err := s.counters.Get(ctx, counter.NotificationKey(recipient))
	if err != nil {
		return nil, err
	}
	types, err := s.store.TypeCounts(ctx, recipient)
	if err != nil {
		return nil, err
	}
	return &Page{
		Notifications: items,
		Total:         total,
		Page:          f.Page,
		TotalPages:    int((total + int64(f.Limit) - 1) / int64(f.Limit)),
		UnreadCount:   unread,
		TypeCounts:    types,
	}, nil
}

func (s *Service) Unread(ctx context.Context, recipient string) (int64, error) {
	return s.counters.Get(ctx, counter.NotificationKey(recipient))
}

func (s *Service) owned(ctx context.Context, recipient, id string) (*Notification, error) {
	n, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.RecipientID != recipient {
		return nil, errs.ErrForbidden.WrapMsg("notification belongs to another user", "id", id)
	}
	return n, nil
}

// MarkRead marks one record read. The counter only resets once no unread
// record is left; it is never decremented.
func (s *Service) MarkRead(ctx context.Context, recipient, id string) (*Notification, error) {
	defer s.lock(recipient)()
	n, err := s.owned(ctx, recipient, id)
	if err != nil {
		return nil, err
	}
	if !n.Read {
		if err := s.store.MarkRead(ctx, id); err != nil {
			return nil, err
		}
		n.Read = true
	}
	return n, s.resetIfDrained(ctx, recipient)
}

// MarkAllRead marks every record read and resets the counter.
func (s *Service) MarkAllRead(ctx context.Context, recipient string) (int64, error) {
	defer s.lock(recipient)()
	if err := s.counters.Reset(ctx, counter.NotificationKey(recipient)); err != nil {
		return 0, err
	}
	return s.store.MarkAllRead(ctx, recipient)
}

func (s *Service) Delete(ctx context.Context, recipient, id string) error {
	defer s.lock(recipient)()
	if _, err := s.owned(ctx, recipient, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	return s.resetIfDrained(ctx, recipient)
}

func (s *Service) resetIfDrained(ctx context.Context, recipient string) error {
	left, err := s.store.CountUnread(ctx, recipient)
	if err != nil {
		return err
	}
	if left > 0 {
		return nil
	}
	return s.counters.Reset(ctx, counter.NotificationKey(recipient))
}
