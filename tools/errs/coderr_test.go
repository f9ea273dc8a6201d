package errs

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapMsgKeepsCode(t *testing.T) {
	err := ErrArgs.WrapMsg("text is empty", "conversation", "c1")
	require.Error(t, err)

	assert.True(t, errors.Is(err, ErrArgs))
	assert.False(t, errors.Is(err, ErrForbidden))
	assert.Equal(t, ArgsError, Code(err))

	ce, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "text is empty, conversation=c1", ce.Detail)
	assert.Empty(t, ErrArgs.Detail, "shared sentinel must not be mutated")
}

func TestCodeRelation(t *testing.T) {
	err := ErrUserNotFound.WrapMsg("u9")
	assert.True(t, errors.Is(err, ErrRecordNotFound))
	assert.False(t, errors.Is(ErrRecordNotFound.Wrap(), ErrUserNotFound))
}

func TestWrapForeignError(t *testing.T) {
	base := errors.New("connection refused")
	err := WrapMsg(ErrStoreUnavailable.WrapMsg(base.Error()), "increment")
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(err))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(base))
	assert.Nil(t, Wrap(nil))
	assert.Nil(t, WrapMsg(nil, "x"))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[*CodeError]int{
		ErrArgs:           http.StatusBadRequest,
		ErrForbidden:      http.StatusForbidden,
		ErrRecordNotFound: http.StatusNotFound,
		ErrUserNotFound:   http.StatusNotFound,
		ErrDuplicate:      http.StatusConflict,
		ErrTokenExpired:   http.StatusUnauthorized,
	}
	for ce, status := range cases {
		assert.Equal(t, status, HTTPStatus(ce.Wrap()), ce.Msg)
	}
}

func TestErrPanic(t *testing.T) {
	assert.Nil(t, ErrPanic(nil))
	err := ErrPanic("boom")
	assert.Equal(t, ServerInternalError, Code(err))
	assert.Contains(t, err.Error(), "boom")
}
