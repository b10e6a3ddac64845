package models

import "time"

const (
	PostTypeGenerated = "generated"
	PostTypeOptimized = "optimized"
)

// PostHistory records every generated or optimized post for the dashboard
// history view.
type PostHistory struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Subreddit string    `gorm:"type:varchar(100);not null" json:"subreddit"`
	Title     string    `gorm:"type:varchar(300)" json:"title"`
	Content   string    `gorm:"type:longtext" json:"content"`
	PostType  string    `gorm:"type:varchar(16);not null;default:'generated'" json:"post_type"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
