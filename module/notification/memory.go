package notification

import (
	"context"
	"sort"
	"sync"

	"linkhub/tools/errs"
)

type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]*Notification
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Notification)}
}

func (m *MemoryStore) Create(_ context.Context, n *Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[n.ID]; ok {
		return errs.ErrDuplicate.WrapMsg("notification exists", "id", n.ID)
	}
	cp := *n
	m.byID[n.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.byID[id]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("notification", "id", id)
	}
	cp := *n
	return &cp, nil
}

func (m *MemoryStore) List(_ context.Context, recipient string, f Filter) ([]*Notification, int64, error) {
	f = f.normalize()
	m.mu.RLock()
	var all []*Notification
	for _, n := range m.byID {
		if n.RecipientID == recipient && f.match(n) {
			cp := *n
			all = append(all, &cp)
		}
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	total := int64(len(all))
	if f.skip() >= total {
		return []*Notification{}, total, nil
	}
	start := int(f.skip())
	end := start + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (m *MemoryStore) TypeCounts(_ context.Context, recipient string) (map[Type]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[Type]int64)
	for _, n := range m.byID {
		if n.RecipientID == recipient {
			out[n.Type]++
		}
	}
	return out, nil
}

func (m *MemoryStore) CountUnread(_ context.Context, recipient string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var c int64
	for _, n := range m.byID {
		if n.RecipientID == recipient && !n.Read {
			c++
		}
	}
	return c, nil
}

func (m *MemoryStore) MarkRead(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.byID[id]
	if !ok {
		return errs.ErrRecordNotFound.WrapMsg("notification", "id", id)
	}
	n.Read = true
	return nil
}

func (m *MemoryStore) MarkAllRead(_ context.Context, recipient string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c int64
	for _, n := range m.byID {
		if n.RecipientID == recipient && !n.Read {
			n.Read = true
			c++
		}
	}
	return c, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return errs.ErrRecordNotFound.WrapMsg("notification", "id", id)
	}
	delete(m.byID, id)
	return nil
}
