package notification

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"linkhub/module/counter"
	"linkhub/tools/ids"
)

func TestMongoStoreRoundTrip(t *testing.T) {
	uri := os.Getenv("LINKHUB_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("LINKHUB_TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	defer cli.Disconnect(context.Background())

	store := NewMongoStore(cli.Database("linkhub_test"))
	require.NoError(t, store.EnsureIndexes(ctx))
	s := NewService(store, counter.NewMemoryStore())

	user := "u-" + ids.GenerateString()
	for _, typ := range []Type{TypePostLike, TypePostLike, TypeNewFollower} {
		_, err := s.Record(ctx, &Notification{RecipientID: user, Type: typ, Content: "x"})
		require.NoError(t, err)
	}
	page, err := s.List(ctx, user, Filter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Notifications, 2)
	assert.Equal(t, int64(2), page.TypeCounts[TypePostLike])

	n, err := s.MarkAllRead(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	left, err := store.CountUnread(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, left)
}
