package errs

import "net/http"

const (
	ServerInternalError = 500

	ArgsError           = 1001
	NoPermissionError   = 1002
	ForbiddenError      = 1003
	RecordNotFoundError = 1004
	UserNotFoundError   = 1005
	DuplicateKeyError   = 1009

	TokenInvalidError = 1401
	TokenExpiredError = 1402

	StoreUnavailableError = 1500
)

var (
	ErrInternalServer   = NewCodeError(ServerInternalError, "ServerInternalError")
	ErrArgs             = NewCodeError(ArgsError, "ArgsError")
	ErrNoPermission     = NewCodeError(NoPermissionError, "NoPermissionError")
	ErrForbidden        = NewCodeError(ForbiddenError, "ForbiddenError")
	ErrRecordNotFound   = NewCodeError(RecordNotFoundError, "RecordNotFoundError")
	ErrUserNotFound     = NewCodeError(UserNotFoundError, "UserNotFoundError")
	ErrDuplicate        = NewCodeError(DuplicateKeyError, "DuplicateKeyError")
	ErrTokenInvalid     = NewCodeError(TokenInvalidError, "TokenInvalidError")
	ErrTokenExpired     = NewCodeError(TokenExpiredError, "TokenExpiredError")
	ErrStoreUnavailable = NewCodeError(StoreUnavailableError, "StoreUnavailableError")
)

func init() {
	_ = DefaultCodeRelation.Add(RecordNotFoundError, UserNotFoundError)
	_ = DefaultCodeRelation.Add(TokenInvalidError, TokenExpiredError)
}

// HTTPStatus maps an error chain to the status the API answers with.
func HTTPStatus(err error) int {
	switch Code(err) {
	case ArgsError:
		return http.StatusBadRequest
	case TokenInvalidError, TokenExpiredError:
		return http.StatusUnauthorized
	case NoPermissionError, ForbiddenError:
		return http.StatusForbidden
	case RecordNotFoundError, UserNotFoundError:
		return http.StatusNotFound
	case DuplicateKeyError:
		return http.StatusConflict
	case StoreUnavailableError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
