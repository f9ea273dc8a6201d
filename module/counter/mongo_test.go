package counter

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("LINKHUB_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("LINKHUB_TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	defer cli.Disconnect(context.Background())
	require.NoError(t, cli.Ping(ctx, nil))

	s := NewMongoStore(cli.Database("linkhub_test"))
	require.NoError(t, s.EnsureIndexes(ctx))
	storeContract(t, s)
}
