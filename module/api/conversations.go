package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	midsec "linkhub/middleware/security"
)

type createConversationReq struct {
	RecipientID string `json:"recipientId" binding:"required"`
}

type sendMessageReq struct {
	Text string `json:"text"`
}

func (a *API) CreateConversation(c *gin.Context) {
	var req createConversationReq
	if !bind(c, &req) {
		return
	}
	conv, err := a.convs.GetOrCreate(c.Request.Context(), midsec.UserID(c), req.RecipientID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, conv)
}

func (a *API) ListConversations(c *gin.Context) {
	list, err := a.convs.ListForUser(c.Request.Context(), midsec.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"conversations": list})
}

func (a *API) ListMessages(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	p, err := a.convs.Messages(c.Request.Context(), c.Param("id"), midsec.UserID(c), page, limit)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, p)
}

func (a *API) SendMessage(c *gin.Context) {
	var req sendMessageReq
	if !bind(c, &req) {
		return
	}
	msg, err := a.convs.AppendMessage(c.Request.Context(), c.Param("id"), midsec.UserID(c), req.Text)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, msg)
}

func (a *API) MarkConversationRead(c *gin.Context) {
	n, err := a.convs.MarkRead(c.Request.Context(), c.Param("id"), midsec.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"conversationId": c.Param("id"), "marked": n})
}
