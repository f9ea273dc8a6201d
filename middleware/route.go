package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"linkhub/tools/errs"
)

type RouteOpt struct {
	IsAuth bool
	Extra  []gin.HandlerFunc // run after auth
}

// Routes registers handlers behind an optional auth middleware.
type Routes struct {
	r    gin.IRoutes
	auth gin.HandlerFunc
}

func NewRoutes(r gin.IRoutes, auth gin.HandlerFunc) *Routes { return &Routes{r: r, auth: auth} }

func (rt *Routes) handle(method, path string, handler gin.HandlerFunc, opt RouteOpt) {
	chain := make([]gin.HandlerFunc, 0, len(opt.Extra)+2)
	if opt.IsAuth {
		chain = append(chain, rt.auth)
	}
	chain = append(chain, opt.Extra...)
	chain = append(chain, handler)
	rt.r.Handle(method, path, chain...)
}

func (rt *Routes) GET(path string, h gin.HandlerFunc, opt RouteOpt) {
	rt.handle(http.MethodGet, path, h, opt)
}

func (rt *Routes) POST(path string, h gin.HandlerFunc, opt RouteOpt) {
	rt.handle(http.MethodPost, path, h, opt)
}

func (rt *Routes) PUT(path string, h gin.HandlerFunc, opt RouteOpt) {
	rt.handle(http.MethodPut, path, h, opt)
}

func (rt *Routes) DELETE(path string, h gin.HandlerFunc, opt RouteOpt) {
	rt.handle(http.MethodDelete, path, h, opt)
}

// AccessLog logs one line per request.
func AccessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("user_id", c.GetString("userId")),
		)
	}
}

// Recovery turns handler panics into a 500 {code,msg} body.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				err := errs.ErrPanic(r)
				log.Error("http panic", zap.String("path", c.Request.URL.Path), zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					gin.H{"code": errs.ServerInternalError, "msg": "internal error"})
			}
		}()
		c.Next()
	}
}
