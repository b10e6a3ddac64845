package models

import "time"

const (
	PlanFree         = "free"
	PlanStarter      = "starter"
	PlanProfessional = "professional"
	PlanEnterprise   = "enterprise"
)

const (
	BillingCycleMonthly = "monthly"
	BillingCycleYearly  = "yearly"
)

const (
	PlanStatusActive   = "active"
	PlanStatusInactive = "inactive"
)

// FreeTierCredits is the default grant for accounts without a paid plan.
const FreeTierCredits = 10

// UserPlan is the plan ledger: exactly one row per user, upserted wholesale
// by the activation engine on every confirmed payment.
type UserPlan struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	UserID           uint       `gorm:"not null;uniqueIndex" json:"user_id"`
	PlanType         string     `gorm:"type:varchar(50);not null;default:'free';index" json:"plan_type"`
	BillingCycle     string     `gorm:"type:varchar(16);not null;default:'monthly'" json:"billing_cycle"`
	CreditsRemaining int        `gorm:"not null;default:0" json:"credits_remaining"`
	PostsPerMonth    int        `gorm:"not null;default:0" json:"posts_per_month"`
	Amount           float64    `gorm:"not null;default:0" json:"amount"`
	Status           string     `gorm:"type:varchar(16);not null;default:'active';index" json:"status"`
	ActivatedAt      *time.Time `gorm:"type:timestamp;default:null" json:"activated_at,omitempty"`
	ExpiresAt        *time.Time `gorm:"type:timestamp;default:null" json:"expires_at,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// DefaultFreePlan returns the lazily created free-tier ledger row.
func DefaultFreePlan(userID uint) *UserPlan {
	return &UserPlan{
		UserID:           userID,
		PlanType:         PlanFree,
		BillingCycle:     BillingCycleMonthly,
		CreditsRemaining: FreeTierCredits,
		PostsPerMonth:    FreeTierCredits,
		Status:           PlanStatusActive,
	}
}
