package conversation

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"linkhub/tools/ids"
)

func TestMongoStoreConcurrentCreate(t *testing.T) {
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
	f := newFixture(t, store)

	run := ids.GenerateString()
	a, b := "a-"+run, "b-"+run
	got := make([]string, 16)
	var wg sync.WaitGroup
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			x, y := a, b
			if i%2 == 0 {
				x, y = y, x
			}
			c, err := f.svc.GetOrCreate(ctx, x, y)
			if assert.NoError(t, err) {
				got[i] = c.ID
			}
		}(i)
	}
	wg.Wait()
	for _, id := range got {
		assert.Equal(t, got[0], id)
	}

	m, err := f.svc.AppendMessage(ctx, got[0], a, "hello")
	require.NoError(t, err)
	c, err := store.Get(ctx, got[0])
	require.NoError(t, err)
	assert.Equal(t, m.ID, c.LastMessageID)
	n, err := f.svc.MarkRead(ctx, got[0], b)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
