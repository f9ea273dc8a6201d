package decode

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkhub/tools/errs"
)

type sendPayload struct {
	ConversationID string         `json:"conversationId"`
	Text           string         `json:"text"`
	Limit          int            `json:"limit"`
	Wait           time.Duration  `json:"wait"`
	Meta           map[string]any `json:"meta"`
}

func TestDecodeFromJSONMap(t *testing.T) {
	var in any
	require.NoError(t, json.Unmarshal([]byte(`{"conversationId":"c1","text":"hi","limit":"5","wait":"2s","meta":"{\"a\":1}"}`), &in))

	out, err := Decode[sendPayload](in)
	require.NoError(t, err)
	assert.Equal(t, "c1", out.ConversationID)
	assert.Equal(t, "hi", out.Text)
	assert.Equal(t, 5, out.Limit)
	assert.Equal(t, 2*time.Second, out.Wait)
	assert.Equal(t, float64(1), out.Meta["a"])
}

func TestDecodeRejects(t *testing.T) {
	_, err := Decode[sendPayload](nil)
	assert.True(t, errors.Is(err, errs.ErrArgs))

	_, err = Decode[sendPayload]("not a map")
	assert.True(t, errors.Is(err, errs.ErrArgs))
}
