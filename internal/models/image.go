package models

import "time"

// Image records an uploaded file and the user who uploaded it.
type Image struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	URL       string    `gorm:"size:512;not null;uniqueIndex" json:"url"`
	CreatedAt time.Time `json:"created_at"`
}
