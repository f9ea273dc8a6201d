package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	midsec "linkhub/middleware/security"
	"linkhub/module/notification"
	"linkhub/tools/errs"
)

func parseFilter(c *gin.Context) (notification.Filter, error) {
	var f notification.Filter
	if t := c.Query("type"); t != "" {
		f.Type = notification.Type(t)
		if !f.Type.Valid() {
			return f, errs.ErrArgs.WrapMsg("unknown notification type", "type", t)
		}
	}
	if r := c.Query("read"); r != "" {
		b, err := strconv.ParseBool(r)
		if err != nil {
			return f, errs.ErrArgs.WrapMsg("read must be a boolean")
		}
		f.Read = &b
	}
	for name, dst := range map[string]*time.Time{"since": &f.Since, "until": &f.Until} {
		if v := c.Query(name); v != "" {
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return f, errs.ErrArgs.WrapMsg(name + " must be RFC3339")
			}
			*dst = ts
		}
	}
	f.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "0"))
	return f, nil
}

func (a *API) ListNotifications(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		fail(c, err)
		return
	}
	p, err := a.notes.List(c.Request.Context(), midsec.UserID(c), f)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, p)
}

func (a *API) MarkNotificationRead(c *gin.Context) {
	n, err := a.notes.MarkRead(c.Request.Context(), midsec.UserID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, n)
}

func (a *API) MarkAllNotificationsRead(c *gin.Context) {
	n, err := a.notes.MarkAllRead(c.Request.Context(), midsec.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"marked": n})
}

func (a *API) DeleteNotification(c *gin.Context) {
	if err := a.notes.Delete(c.Request.Context(), midsec.UserID(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"deleted": c.Param("id")})
}

// Unread returns every unread counter of the caller.
func (a *API) Unread(c *gin.Context) {
	ctx := c.Request.Context()
	user := midsec.UserID(c)
	notes, err := a.notes.Unread(ctx, user)
	if err != nil {
		fail(c, err)
		return
	}
	list, err := a.convs.ListForUser(ctx, user)
	if err != nil {
		fail(c, err)
		return
	}
	convs := make(map[string]int64, len(list))
	for _, s := range list {
		convs[s.Conversation.ID] = s.UnreadCount
	}
	ok(c, gin.H{"notifications": notes, "conversations": convs})
}
