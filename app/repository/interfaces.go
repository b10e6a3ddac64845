package repository

import "github.com/redrule/reddigen/app/models"

// UserRepository defines operations for user accounts.
type UserRepository interface {
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPITokenHash(hash string) (*models.User, error)
	Update(user *models.User) error
}

// ProfileRepository defines operations for dashboard profiles.
type ProfileRepository interface {
	GetOrCreate(userID uint, email string) (*models.UserProfile, error)
	GetByEmail(email string) (*models.UserProfile, error)
	Update(profile *models.UserProfile) error
}

// PlanRepository is the plan ledger store: one row per user, upsert-by-user.
type PlanRepository interface {
	GetByUserID(userID uint) (*models.UserPlan, error)
	GetOrCreateDefault(userID uint) (*models.UserPlan, error)
	Upsert(plan *models.UserPlan) error
	DeductCredit(userID uint) (int, error)
}

// PaymentRepository is the payment record store. CreateIfNotExists is the
// idempotency primitive: it inserts against the unique payment_id index and
// reports whether this call created the row.
type PaymentRepository interface {
	CreateIfNotExists(record *models.PaymentRecord) (bool, *models.PaymentRecord, error)
	GetCompleted(paymentID string) (*models.PaymentRecord, error)
	ListByUserID(userID uint) ([]models.PaymentRecord, error)
	MarkFailed(paymentID string) error
	FindUserByPaymentID(paymentID string) (uint, error)
	CreateWebhookEventIfNotExists(event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

// HistoryRepository defines operations for generated post history.
type HistoryRepository interface {
	Create(entry *models.PostHistory) error
	ListByUserID(userID uint, limit int) ([]models.PostHistory, error)
}
