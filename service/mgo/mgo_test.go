package mgo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkhub/data/database/mgo/mongoutil"
	"linkhub/tools/errs"
)

func TestWaitReady_TimesOutWithLastError(t *testing.T) {
	m := NewManager(&mongoutil.Config{Database: "x"})
	m.connect = func(context.Context, *mongoutil.Config) (*mongoutil.Client, error) {
		return nil, errors.New("no route to host")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartAsync(ctx)

	wctx, wcancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer wcancel()
	_, err := m.WaitReady(wctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrStoreUnavailable))
	assert.Contains(t, err.Error(), "no route to host")

	_, ok := m.TryGetDB()
	assert.False(t, ok)
	assert.True(t, errors.Is(m.Ping(context.Background()), errs.ErrStoreUnavailable))
}
