package conversation

import (
	"context"
	"sort"
	"sync"

	"linkhub/tools/errs"
)

type MemoryStore struct {
	mu       sync.RWMutex
	byID     map[string]*Conversation
	byPair   map[string]string
	messages map[string][]*Message // conversation -> append order
	msgByID  map[string]*Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:     make(map[string]*Conversation),
		byPair:   make(map[string]string),
		messages: make(map[string][]*Message),
		msgByID:  make(map[string]*Message),
	}
}

func copyConv(c *Conversation) *Conversation {
	cp := *c
	cp.Participants = append([]string(nil), c.Participants...)
	return &cp
}

func (m *MemoryStore) FindByPair(_ context.Context, pairKey string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byPair[pairKey]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("conversation", "pair", pairKey)
	}
	return copyConv(m.byID[id]), nil
}

func (m *MemoryStore) Create(_ context.Context, c *Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byPair[c.PairKey]; ok {
		return errs.ErrDuplicate.WrapMsg("conversation pair exists", "pair", c.PairKey)
	}
	m.byID[c.ID] = copyConv(c)
	m.byPair[c.PairKey] = c.ID
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("conversation", "id", id)
	}
	return copyConv(c), nil
}

func (m *MemoryStore) ListByParticipant(_ context.Context, identity string) ([]*Conversation, error) {
	m.mu.RLock()
	var out []*Conversation
	for _, c := range m.byID {
		if c.Has(identity) {
			out = append(out, copyConv(c))
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (m *MemoryStore) AppendMessage(_ context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[msg.ConversationID]
	if !ok {
		return errs.ErrRecordNotFound.WrapMsg("conversation", "id", msg.ConversationID)
	}
	cp := *msg
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], &cp)
	m.msgByID[msg.ID] = &cp
	if !msg.CreatedAt.Before(c.LastMessageAt) {
		c.LastMessageID = msg.ID
		c.LastMessageAt = msg.CreatedAt
		c.UpdatedAt = msg.CreatedAt
	}
	return nil
}

func (m *MemoryStore) GetMessage(_ context.Context, id string) (*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.msgByID[id]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("message", "id", id)
	}
	cp := *msg
	return &cp, nil
}

func (m *MemoryStore) Messages(_ context.Context, conversationID string, page, limit int) ([]*Message, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.messages[conversationID]
	total := int64(len(all))
	skip := int64(page-1) * int64(limit)
	if page < 1 || limit <= 0 || skip >= total {
		return []*Message{}, total, nil
	}
	// newest first: walk the append order backwards
	start := len(all) - int(skip)
	out := make([]*Message, 0, limit)
	for i := start - 1; i >= 0 && len(out) < limit; i-- {
		cp := *all[i]
		out = append(out, &cp)
	}
	return out, total, nil
}

func (m *MemoryStore) MarkRead(_ context.Context, conversationID, recipient string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, msg := range m.messages[conversationID] {
		if msg.RecipientID == recipient && !msg.Read {
			msg.Read = true
			n++
		}
	}
	return n, nil
}
