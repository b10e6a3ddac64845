package models

import "time"

// UserProfile holds the dashboard-facing identity of a user. It is created
// lazily on first data fetch with the email local part as display name.
type UserProfile struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	Email       string    `gorm:"type:varchar(200);not null;index" json:"email"`
	DisplayName string    `gorm:"type:varchar(150)" json:"display_name"`
	Bio         string    `gorm:"type:text" json:"bio"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
