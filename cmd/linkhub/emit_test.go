package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkhub/module/realtime"
	"linkhub/tools/errs"
)

func TestReadEvent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ev.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"kind":"new_follower","recipientId":"U1","senderId":"U2"}`), 0o600))

	ev, err := readEvent(path)
	require.NoError(t, err)
	assert.Equal(t, realtime.KindNewFollower, ev.Kind)
	assert.Equal(t, "U1", ev.RecipientID)

	_, err = readEvent("")
	assert.ErrorIs(t, err, errs.ErrArgs)

	_, err = readEvent(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, errs.ErrArgs)
}
