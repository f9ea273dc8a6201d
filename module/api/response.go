package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	midsec "linkhub/middleware/security"
	"linkhub/tools/errs"
)

func ok(c *gin.Context, data any) { c.JSON(http.StatusOK, data) }

func fail(c *gin.Context, err error) { midsec.Abort(c, err) }

func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		fail(c, errs.ErrArgs.WrapMsg("bad request body: "+err.Error()))
		return false
	}
	return true
}
