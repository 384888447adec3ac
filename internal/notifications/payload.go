package notifications

import (
	"encoding/json"
	"fmt"
	"time"

	"ripple/internal/models"
)

// Payload is the live frame pushed to a recipient for a domain event.
type Payload struct {
	Type           string                    `json:"type"`
	Action         models.NotificationAction `json:"action"`
	Content        string                    `json:"content"`
	UserID         uint                      `json:"user_id"`
	From           string                    `json:"from"`
	PostID         uint                      `json:"post_id"`
	CreatedAt      time.Time                 `json:"created_at"`
	NotificationID uint                      `json:"notification_id,omitempty"`
}

// RenderMessage produces the stored notification text for an event.
func RenderMessage(ev models.Event) string {
	switch ev.Kind {
	case models.EventCommentPosted:
		return fmt.Sprintf("%s commented on your post: %s", ev.ActorUsername, ev.Content)
	case models.EventPostUnliked:
		return fmt.Sprintf("%s unliked your post", ev.ActorUsername)
	default:
		return fmt.Sprintf("%s liked your post", ev.ActorUsername)
	}
}

// NewPayload builds the live frame for a persisted notification.
func NewPayload(ev models.Event, n *models.Notification) Payload {
	return Payload{
		Type:           "notification",
		Action:         n.Action,
		Content:        n.Message,
		UserID:         n.UserID,
		From:           ev.ActorUsername,
		PostID:         n.PostID,
		CreatedAt:      n.CreatedAt,
		NotificationID: n.ID,
	}
}

// Encode marshals the payload.
func (p Payload) Encode() ([]byte, error) {
	return json.Marshal(p)
}
