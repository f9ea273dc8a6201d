package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"linkhub/module/counter"
	"linkhub/tools/errs"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestService(t *testing.T) (*Service, *counter.MemoryStore) {
	t.Helper()
	clk := &stepClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	cs := counter.NewMemoryStore()
	return NewService(NewMemoryStore(), cs, WithClock(clk.now), WithLogger(zap.NewNop())), cs
}

func record(t *testing.T, s *Service, recipient string, typ Type) *Notification {
	t.Helper()
	n := &Notification{RecipientID: recipient, SenderID: "u2", Type: typ, Content: "x"}
	_, err := s.Record(context.Background(), n)
	require.NoError(t, err)
	return n
}

func TestRecordIncrementsCounter(t *testing.T) {
	s, cs := newTestService(t)
	ctx := context.Background()

	n := &Notification{RecipientID: "u1", SenderID: "u2", Type: TypePostLike, Content: "liked your post"}
	v, err := s.Record(ctx, n)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.CreatedAt.IsZero())

	got, err := cs.Get(ctx, counter.NotificationKey("u1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)

	page, err := s.List(ctx, "u1", Filter{})
	require.NoError(t, err)
	require.Len(t, page.Notifications, 1)
	assert.False(t, page.Notifications[0].Read)
	assert.Equal(t, int64(1), page.UnreadCount)
}

func TestRecordValidates(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.Record(context.Background(), &Notification{Type: TypePostLike})
	assert.True(t, errors.Is(err, errs.ErrArgs))
	_, err = s.Record(context.Background(), &Notification{RecipientID: "u1", Type: "bogus"})
	assert.True(t, errors.Is(err, errs.ErrArgs))
}

func TestListFiltersAndPages(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		record(t, s, "u1", TypePostLike)
	}
	first := record(t, s, "u1", TypeConnectionRequest)
	record(t, s, "u9", TypePostLike)

	page, err := s.List(ctx, "u1", Filter{})
	require.NoError(t, err)
	assert.Len(t, page.Notifications, DefaultLimit)
	assert.Equal(t, int64(26), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, first.ID, page.Notifications[0].ID, "newest first")
	assert.Equal(t, map[Type]int64{TypePostLike: 25, TypeConnectionRequest: 1}, page.TypeCounts)

	page, err = s.List(ctx, "u1", Filter{Page: 2})
	require.NoError(t, err)
	assert.Len(t, page.Notifications, 6)

	page, err = s.List(ctx, "u1", Filter{Type: TypeConnectionRequest})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	_, err = s.MarkRead(ctx, "u1", first.ID)
	require.NoError(t, err)
	unread := false
	page, err = s.List(ctx, "u1", Filter{Read: &unread, Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, int64(25), page.Total)
	assert.Len(t, page.Notifications, 25)

	page, err = s.List(ctx, "u1", Filter{Since: first.CreatedAt})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
}

func TestMarkAllReadResetsCounter(t *testing.T) {
	s, cs := newTestService(t)
	ctx := context.Background()
	record(t, s, "u1", TypePostLike)
	record(t, s, "u1", TypePostComment)

	n, err := s.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for i := 0; i < 2; i++ {
		v, err := cs.Get(ctx, counter.NotificationKey("u1"))
		require.NoError(t, err)
		assert.Zero(t, v)
		_, err = s.MarkAllRead(ctx, "u1")
		require.NoError(t, err)
	}
}

func TestMarkReadResetsOnlyWhenDrained(t *testing.T) {
	s, cs := newTestService(t)
	ctx := context.Background()
	a := record(t, s, "u1", TypePostLike)
	b := record(t, s, "u1", TypePostLike)

	_, err := s.MarkRead(ctx, "u1", a.ID)
	require.NoError(t, err)
	v, _ := cs.Get(ctx, counter.NotificationKey("u1"))
	assert.Equal(t, int64(2), v, "counter is never decremented")

	require.NoError(t, s.Delete(ctx, "u1", b.ID))
	v, _ = cs.Get(ctx, counter.NotificationKey("u1"))
	assert.Zero(t, v)
}

func TestOwnershipChecks(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	n := record(t, s, "u1", TypePostLike)

	_, err := s.MarkRead(ctx, "u2", n.ID)
	assert.True(t, errors.Is(err, errs.ErrForbidden))
	assert.True(t, errors.Is(s.Delete(ctx, "u2", n.ID), errs.ErrForbidden))
	_, err = s.MarkRead(ctx, "u1", "missing")
	assert.True(t, errors.Is(err, errs.ErrRecordNotFound))
}

type failingCounters struct{ counter.Store }

func (failingCounters) Increment(context.Context, counter.Key) (int64, error) {
	return 0, errs.ErrStoreUnavailable.WrapMsg("down")
}

func TestRecordSurfacesCounterFailure(t *testing.T) {
	s := NewService(NewMemoryStore(), failingCounters{counter.NewMemoryStore()}, WithLogger(zap.NewNop()))
	_, err := s.Record(context.Background(), &Notification{RecipientID: "u1", Type: TypeMessage})
	assert.True(t, errors.Is(err, errs.ErrStoreUnavailable))
}

func TestListHugePageIsEmpty(t *testing.T) {
	s, _ := newTestService(t)
	record(t, s, "u1", TypePostLike)

	page, err := s.List(context.Background(), "u1", Filter{Page: 461168601842738792, Limit: 20})
	require.NoError(t, err)
	assert.Empty(t, page.Notifications)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, MaxPage, page.Page)
}
