package models

import "time"

// NotificationAction names the engagement that produced a notification.
type NotificationAction string

const (
	ActionComment NotificationAction = "comment"
	ActionLike    NotificationAction = "like"
	ActionUnlike  NotificationAction = "unlike"
)

// Notification is a persisted record of an engagement addressed to a post owner.
// Rows are only written by the notification dispatcher.
type Notification struct {
	ID        uint               `gorm:"primaryKey" json:"id"`
	UserID    uint               `gorm:"not null;index:idx_notifications_recipient,priority:1" json:"user_id"`
	ActorID   uint               `gorm:"not null" json:"actor_id"`
	PostID    uint               `gorm:"not null;index" json:"post_id"`
	Action    NotificationAction `gorm:"size:16;not null" json:"action"`
	Message   string             `gorm:"type:text;not null" json:"message"`
	IsRead    bool               `gorm:"not null;default:false" json:"is_read"`
	CreatedAt time.Time          `gorm:"index:idx_notifications_recipient,priority:2" json:"created_at"`
}
