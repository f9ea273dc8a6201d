package notification

import "time"

type Type string

const (
	TypeConnectionRequest      Type = "connection_request"
	TypeConnectionAccepted     Type = "connection_accepted"
	TypeNewFollower            Type = "new_follower"
	TypePostLike               Type = "post_like"
	TypePostComment            Type = "post_comment"
	TypeMessage                Type = "message"
	TypeJobApplication         Type = "job_application"
	TypeApplicationStatus      Type = "application_status"
	TypeSkillEndorsement       Type = "skill_endorsement"
	TypeRecommendationReceived Type = "recommendation_received"
	TypeGeneric                Type = "notification"
)

var knownTypes = map[Type]struct{}{
	TypeConnectionRequest: {}, TypeConnectionAccepted: {}, TypeNewFollower: {},
	TypePostLike: {}, TypePostComment: {}, TypeMessage: {},
	TypeJobApplication: {}, TypeApplicationStatus: {},
	TypeSkillEndorsement: {}, TypeRecommendationReceived: {},
	TypeGeneric: {},
}

func (t Type) Valid() bool {
	_, ok := knownTypes[t]
	return ok
}

const (
	CollNotification = "notification"

	FieldID          = "_id"
	FieldRecipientID = "recipient_id"
	FieldType        = "type"
	FieldRead        = "read"
	FieldCreatedAt   = "created_at"
)

// Notification is the durable record returned by the REST API. Live sockets
// get the shorter envelope built by the realtime package.
type Notification struct {
	ID          string    `json:"id" bson:"_id"`
	RecipientID string    `json:"recipientId" bson:"recipient_id"`
	SenderID    string    `json:"senderId,omitempty" bson:"sender_id,omitempty"`
	SenderName  string    `json:"senderName,omitempty" bson:"sender_name,omitempty"`
	Type        Type      `json:"type" bson:"type"`
	Content     string    `json:"content" bson:"content"`
	RelatedID   string    `json:"relatedId,omitempty" bson:"related_id,omitempty"`
	Read        bool      `json:"read" bson:"read"`
	CreatedAt   time.Time `json:"createdAt" bson:"created_at"`
}

func (Notification) GetTableName() string { return CollNotification }

const (
	DefaultLimit = 20
	MaxLimit     = 100
	// MaxPage bounds client supplied page numbers so offsets stay small.
	MaxPage = 1 << 20
)

// Filter narrows a recipient's notification list. Zero values mean "any".
type Filter struct {
	Type  Type
	Read  *bool
	Since time.Time
	Until time.Time
	Page  int
	Limit int
}

func (f Filter) normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Page > MaxPage {
		f.Page = MaxPage
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	return f
}

func (f Filter) skip() int64 { return int64(f.Page-1) * int64(f.Limit) }

func (f Filter) match(n *Notification) bool {
	if f.Type != "" && n.Type != f.Type {
		return false
	}
	if f.Read != nil && n.Read != *f.Read {
		return false
	}
	if !f.Since.IsZero() && n.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && n.CreatedAt.After(f.Until) {
		return false
	}
	return true
}

// Page is one page of a recipient's notifications plus the summary the
// client renders alongside it.
type Page struct {
	Notifications []*Notification `json:"notifications"`
	Total         int64           `json:"total"`
	Page          int             `json:"currentPage"`
	TotalPages    int             `json:"totalPages"`
	UnreadCount   int64           `json:"unreadCount"`
	TypeCounts    map[Type]int64  `json:"typeCounts"`
}
