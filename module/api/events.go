package api

import (
	"io"

	"github.com/gin-gonic/gin"

	"linkhub/module/realtime"
	"linkhub/tools/errs"
)

// PublishEvent hands a domain event from another service to the router.
func (a *API) PublishEvent(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		fail(c, errs.ErrArgs.WrapMsg("read body: "+err.Error()))
		return
	}
	ev, err := realtime.DecodeEvent(body)
	if err != nil {
		fail(c, err)
		return
	}
	rc, err := a.events.Publish(c.Request.Context(), ev)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, rc)
}
