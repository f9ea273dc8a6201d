package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"linkhub/logger"
	"linkhub/module/counter"
	"linkhub/module/realtime"
	"linkhub/tools/errs"
	"linkhub/tools/ids"
)

// Publisher is the part of the realtime router the service needs.
type Publisher interface {
	Publish(ctx context.Context, ev realtime.Event) (realtime.Receipt, error)
}

// UserDirectory answers whether an identity exists in the domain store.
type UserDirectory interface {
	Exists(ctx context.Context, identity string) (bool, error)
}

type Service struct {
	store     Store
	counters  counter.Store
	publisher Publisher
	users     UserDirectory
	now       func() time.Time
	log       *zap.Logger
}

type Option func(*Service)

func WithUserDirectory(d UserDirectory) Option { return func(s *Service) { s.users = d } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.log = l } }

func NewService(store Store, counters counter.Store, publisher Publisher, opts ...Option) *Service {
	s := &Service{
		store:     store,
		counters:  counters,
		publisher: publisher,
		now:       time.Now,
		log:       logger.Named("conversation"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// GetOrCreate returns the single conversation of the unordered pair (a, b),
// creating it on first use. When two callers race to create it, the unique
// pair key rejects the loser, which then reads the winner's record.
func (s *Service) GetOrCreate(ctx context.Context, a, b string) (*Conversation, error) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return nil, errs.ErrArgs.WrapMsg("conversation needs two identities")
	}
	if a == b {
		return nil, errs.ErrArgs.WrapMsg("cannot create conversation with yourself")
	}
	key, pair := PairKey(a, b)

	c, err := s.store.FindByPair(ctx, key)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, errs.ErrRecordNotFound) {
		return nil, err
	}

	if s.users != nil {
		for _, id := range pair {
			ok, err := s.users.Exists(ctx, id)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, errs.ErrUserNotFound.WrapMsg("unknown identity", "user", id)
			}
		}
	}

	now := s.now()
	c = &Conversation{
		ID:           ids.GenerateString(),
		PairKey:      key,
		Participants: pair,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.store.Create(ctx, c)
	if errors.Is(err, errs.ErrDuplicate) {
		s.log.Debug("lost create race, refetching", zap.String("pair", key))
		return s.store.FindByPair(ctx, key)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) participant(ctx context.Context, conversationID, identity string) (*Conversation, error) {
	c, err := s.store.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !c.Has(identity) {
		return nil, errs.ErrForbidden.WrapMsg("you are not part of this conversation", "conversation", conversationID)
	}
	return c, nil
}

// AppendMessage stores a message from sender and publishes it to the other
// participant; the router bumps that participant's unread counter.
func (s *Service) AppendMessage(ctx context.Context, conversationID, sender, text string) (*Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errs.ErrArgs.WrapMsg("message text is empty")
	}
	c, err := s.participant(ctx, conversationID, sender)
	if err != nil {
		return nil, err
	}
	recipient, _ := c.Other(sender)

	m := &Message{
		ID:             ids.GenerateString(),
		ConversationID: c.ID,
		SenderID:       sender,
		RecipientID:    recipient,
		Text:           text,
		CreatedAt:      s.now(),
	}
	if err := s.store.AppendMessage(ctx, m); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(m)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	_, err = s.publisher.Publish(ctx, realtime.Event{
		ID:             "message:" + m.ID,
		Kind:           realtime.KindMessage,
		RecipientID:    recipient,
		SenderID:       sender,
		ConversationID: c.ID,
		RelatedID:      m.ID,
		Payload:        payload,
		CreatedAt:      m.CreatedAt,
	})
	if err != nil {
		s.log.Error("message stored but publish failed",
			zap.String("conversation", c.ID), zap.String("message", m.ID), zap.Error(err))
		return m, err
	}
	return m, nil
}

// Send appends text to the sender/recipient conversation, creating it lazily.
func (s *Service) Send(ctx context.Context, sender, recipient, text string) (*Conversation, *Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil, errs.ErrArgs.WrapMsg("message text is empty")
	}
	c, err := s.GetOrCreate(ctx, sender, recipient)
	if err != nil {
		return nil, nil, err
	}
	m, err := s.AppendMessage(ctx, c.ID, sender, text)
	return c, m, err
}

// MarkRead marks the messages addressed to identity as read and resets
// identity's own counter. The counter is reset before the messages are
// flagged so a concurrent append can only over-report, never under-report.
func (s *Service) MarkRead(ctx context.Context, conversationID, identity string) (int64, error) {
	if _, err := s.participant(ctx, conversationID, identity); err != nil {
		return 0, err
	}
	if err := s.counters.Reset(ctx, counter.ConversationKey(conversationID, identity)); err != nil {
		return 0, err
	}
	return s.store.MarkRead(ctx, conversationID, identity)
}

func (s *Service) Unread(ctx context.Context, conversationID, identity string) (int64, error) {
	return s.counters.Get(ctx, counter.ConversationKey(conversationID, identity))
}

// ListForUser returns identity's conversations, most recent first, with the
// other participant, the last message and identity's unread count.
func (s *Service) ListForUser(ctx context.Context, identity string) ([]*Summary, error) {
	convs, err := s.store.ListByParticipant(ctx, identity)
	if err != nil {
		return nil, err
	}
	out := make([]*Summary, 0, len(convs))
	for _, c := range convs {
		other, _ := c.Other(identity)
		sum := &Summary{Conversation: c, Participant: other}
		if c.LastMessageID != "" {
			m, err := s.store.GetMessage(ctx, c.LastMessageID)
			if err != nil && !errors.Is(err, errs.ErrRecordNotFound) {
				return nil, err
			}
			sum.LastMessage = m
		}
		if sum.UnreadCount, err = s.Unread(ctx, c.ID, identity); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}

// Messages returns one page, oldest to newest within the page, with page 1
// holding the most recent messages. Reading marks the caller's messages read.
func (s *Service) Messages(ctx context.Context, conversationID, identity string, page, limit int) (*MessagePage, error) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if _, err := s.participant(ctx, conversationID, identity); err != nil {
		return nil, err
	}
	msgs, total, err := s.store.Messages(ctx, conversationID, page, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	if _, err := s.MarkRead(ctx, conversationID, identity); err != nil {
		return nil, err
	}
	return &MessagePage{
		Messages:   msgs,
		Total:      total,
		Page:       page,
		TotalPages: int((total + int64(limit) - 1) / int64(limit)),
	}, nil
}
