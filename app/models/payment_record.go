package models

import "time"

const (
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// PaymentRecord is the append-mostly payment log. PaymentID is the
// provider-issued checkout/session id; its unique index is the idempotency
// guard for plan activation — concurrent activations for the same id race
// on this constraint, not on a prior read.
type PaymentRecord struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	PaymentID    string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"payment_id"`
	UserID       uint       `gorm:"not null;index" json:"user_id"`
	PlanType     string     `gorm:"type:varchar(50);not null" json:"plan_type"`
	Amount       float64    `gorm:"not null;default:0" json:"amount"`
	BillingCycle string     `gorm:"type:varchar(16);not null;default:'monthly'" json:"billing_cycle"`
	Status       string     `gorm:"type:varchar(16);not null;index" json:"status"`
	VerifiedAt   *time.Time `gorm:"type:timestamp;default:null" json:"verified_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
