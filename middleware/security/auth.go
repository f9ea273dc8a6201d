package security

import (
	"strings"

	"github.com/gin-gonic/gin"

	"linkhub/tools/errs"
	"linkhub/tools/security"
)

// context keys set by Middleware
const (
	CtxUserKey   = "userId"
	CtxScopesKey = "scopes"
)

type Options struct {
	// HeaderToken is read before Authorization: Bearer.
	HeaderToken               string
	EnableAuthorizationBearer bool
	JWT                       security.Options
}

func DefaultOptions(jwt security.Options) *Options {
	return &Options{
		HeaderToken:               "authorization-token",
		EnableAuthorizationBearer: true,
		JWT:                       jwt,
	}
}

func tokenFrom(c *gin.Context, opts *Options) string {
	token := strings.TrimSpace(c.GetHeader(opts.HeaderToken))
	if token == "" && opts.EnableAuthorizationBearer {
		if authz := strings.TrimSpace(c.GetHeader("Authorization")); len(authz) > 7 &&
			strings.EqualFold(authz[:7], "bearer ") {
			token = strings.TrimSpace(authz[7:])
		}
	}
	return token
}

// Middleware verifies the JWT and stores its subject as the caller identity.
func Middleware(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFrom(c, opts)
		if token == "" {
			Abort(c, errs.ErrTokenInvalid.WrapMsg("missing token"))
			return
		}
		claims, err := security.Verify(opts.JWT, token)
		if err != nil {
			Abort(c, err)
			return
		}
		c.Set(CtxUserKey, claims.Subject)
		c.Set(CtxScopesKey, claims.Scopes)
		c.Next()
	}
}

// RequireScope must run after Middleware.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, s := range c.GetStringSlice(CtxScopesKey) {
			if s == scope {
				c.Next()
				return
			}
		}
		Abort(c, errs.ErrNoPermission.WrapMsg("missing scope", "scope", scope))
	}
}

func UserID(c *gin.Context) string { return c.GetString(CtxUserKey) }

// Abort writes {code,msg} with the status matching err's code.
func Abort(c *gin.Context, err error) {
	code, msg := errs.ServerInternalError, "internal error"
	if ce, ok := errs.As(err); ok {
		code, msg = ce.Code, ce.Msg
		if ce.Detail != "" {
			msg = ce.Detail
		}
	}
	c.AbortWithStatusJSON(errs.HTTPStatus(err), gin.H{"code": code, "msg": msg})
}
