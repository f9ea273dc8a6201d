package counter

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkhub/tools/errs"
	"linkhub/tools/ids"
)

// storeContract runs the behaviour every backend must share. Keys are made
// unique per run so the suite can hit a shared database.
func storeContract(t *testing.T, s Store) {
	ctx := context.Background()
	run := ids.GenerateString()
	user := "u-" + run
	conv := "c-" + run

	t.Run("missing counter reads zero", func(t *testing.T) {
		v, err := s.Get(ctx, NotificationKey(user+"-none"))
		require.NoError(t, err)
		assert.Zero(t, v)
	})

	t.Run("increment creates and adds", func(t *testing.T) {
		key := NotificationKey(user)
		for i := int64(1); i <= 3; i++ {
			v, err := s.Increment(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, i, v)
		}
		v, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(3), v)
	})

	t.Run("scopes are independent", func(t *testing.T) {
		ck := ConversationKey(conv, user)
		_, err := s.Increment(ctx, ck)
		require.NoError(t, err)

		other := ConversationKey(conv, user+"-peer")
		v, err := s.Get(ctx, other)
		require.NoError(t, err)
		assert.Zero(t, v)

		v, err = s.Get(ctx, ck)
		require.NoError(t, err)
		assert.Equal(t, int64(1), v)
	})

	t.Run("reset twice stays zero", func(t *testing.T) {
		key := NotificationKey(user)
		require.NoError(t, s.Reset(ctx, key))
		v, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Zero(t, v)

		require.NoError(t, s.Reset(ctx, key))
		v, err = s.Get(ctx, key)
		require.NoError(t, err)
		assert.Zero(t, v)

		require.NoError(t, s.Reset(ctx, NotificationKey(user+"-never")))
		v, err = s.Increment(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(1), v)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		key := ConversationKey(conv+"-hot", user)
		const workers, each = 8, 25
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < each; i++ {
					_, err := s.Increment(ctx, key)
					assert.NoError(t, err)
				}
			}()
		}
		wg.Wait()
		v, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(workers*each), v)
	})

	t.Run("invalid keys are rejected", func(t *testing.T) {
		_, err := s.Increment(ctx, Key{Scope: "bogus", Recipient: user})
		assert.True(t, errors.Is(err, errs.ErrArgs))
		_, err = s.Increment(ctx, Key{Scope: ConversationUnread, Recipient: user})
		assert.True(t, errors.Is(err, errs.ErrArgs))
		err = s.Reset(ctx, NotificationKey(" "))
		assert.True(t, errors.Is(err, errs.ErrArgs))
	})
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "notification_unread:u1", NotificationKey("u1").String())
	assert.Equal(t, "conversation_unread:2:c1:u1", ConversationKey("c1", "u1").String())

	a := ConversationKey("c:1", "u1").String()
	b := ConversationKey("c", "1:u1").String()
	assert.NotEqual(t, a, b)
}
