package api

import (
	"context"

	"github.com/gin-gonic/gin"

	"linkhub/middleware"
	midsec "linkhub/middleware/security"
	"linkhub/module/conversation"
	"linkhub/module/notification"
	"linkhub/module/realtime"
)

// PublishScope is the token scope other services need for POST /api/events.
const PublishScope = "events:publish"

type Publisher interface {
	Publish(ctx context.Context, ev realtime.Event) (realtime.Receipt, error)
}

type Conversations interface {
	GetOrCreate(ctx context.Context, a, b string) (*conversation.Conversation, error)
	ListForUser(ctx context.Context, identity string) ([]*conversation.Summary, error)
	Messages(ctx context.Context, conversationID, identity string, page, limit int) (*conversation.MessagePage, error)
	AppendMessage(ctx context.Context, conversationID, sender, text string) (*conversation.Message, error)
	MarkRead(ctx context.Context, conversationID, identity string) (int64, error)
}

type Notifications interface {
	List(ctx context.Context, recipient string, f notification.Filter) (*notification.Page, error)
	Unread(ctx context.Context, recipient string) (int64, error)
	MarkRead(ctx context.Context, recipient, id string) (*notification.Notification, error)
	MarkAllRead(ctx context.Context, recipient string) (int64, error)
	Delete(ctx context.Context, recipient, id string) error
}

type API struct {
	events Publisher
	convs  Conversations
	notes  Notifications
}

func New(events Publisher, convs Conversations, notes Notifications) *API {
	return &API{events: events, convs: convs, notes: notes}
}

// Register mounts the /api routes. auth must set the caller identity.
func (a *API) Register(r gin.IRouter, auth gin.HandlerFunc) {
	rt := middleware.NewRoutes(r.Group("/api"), auth)
	authed := middleware.RouteOpt{IsAuth: true}

	rt.POST("/events", a.PublishEvent, middleware.RouteOpt{IsAuth: true, Extra: []gin.HandlerFunc{midsec.RequireScope(PublishScope)}})

	rt.POST("/conversations", a.CreateConversation, authed)
	rt.GET("/conversations", a.ListConversations, authed)
	rt.GET("/conversations/:id/messages", a.ListMessages, authed)
	rt.POST("/conversations/:id/messages", a.SendMessage, authed)
	rt.PUT("/conversations/:id/read", a.MarkConversationRead, authed)

	rt.GET("/notifications", a.ListNotifications, authed)
	rt.PUT("/notifications/read-all", a.MarkAllNotificationsRead, authed)
	rt.PUT("/notifications/:id/read", a.MarkNotificationRead, authed)
	rt.DELETE("/notifications/:id", a.DeleteNotification, authed)

	rt.GET("/unread", a.Unread, authed)
}
