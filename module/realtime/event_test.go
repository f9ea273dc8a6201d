package realtime

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkhub/tools/errs"
)

func TestEveryKindHasRoute(t *testing.T) {
	kinds := Kinds()
	assert.Len(t, kinds, 10)
	for _, k := range kinds {
		_, ok := routes[k]
		assert.True(t, ok, k.String())
		parsed, err := ParseEventKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	_, err := ParseEventKind("unknown")
	assert.Error(t, err)
}

func TestFeedKinds(t *testing.T) {
	for _, k := range Kinds() {
		want := k == KindPostCreated || k == KindPostUpdated || k == KindPostDeleted
		assert.Equal(t, want, k.Feed(), k.String())
	}
}

func TestEventJSON(t *testing.T) {
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"Connection_Request","recipientId":"u1","senderId":"u2"}`), &ev))
	assert.Equal(t, KindConnectionRequest, ev.Kind)
	assert.NoError(t, ev.Validate())

	b, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"kind":"connection_request"`)

	assert.Error(t, json.Unmarshal([]byte(`{"kind":"poke"}`), &ev))
}

func TestDecodeEvent(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"id":"e1","kind":"post_created","payload":{"postId":"p1"}}`))
	require.NoError(t, err)
	assert.Equal(t, "e1", ev.ID)
	assert.Equal(t, KindPostCreated, ev.Kind)
	assert.JSONEq(t, `{"postId":"p1"}`, string(ev.Payload))

	_, err = DecodeEvent([]byte(`{"kind":`))
	assert.True(t, errors.Is(err, errs.ErrArgs))
	_, err = DecodeEvent([]byte(`{"kind":"poke"}`))
	assert.True(t, errors.Is(err, errs.ErrArgs))
}
