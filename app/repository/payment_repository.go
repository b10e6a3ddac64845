package repository

import (
	"time"

	"github.com/redrule/reddigen/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// paymentRepository implements the PaymentRepository interface
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment record repository instance
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// CreateIfNotExists inserts a payment record against the unique payment_id
// index. A conflict means another reconciliation path already recorded this
// payment; the stored row is returned either way.
func (r *paymentRepository) CreateIfNotExists(record *models.PaymentRecord) (bool, *models.PaymentRecord, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "payment_id"},
		},
		DoNothing: true,
	}).Create(record)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.PaymentRecord
	if err := r.db.Where("payment_id = ?", record.PaymentID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

// GetCompleted retrieves the completed record for a payment id, if any
func (r *paymentRepository) GetCompleted(paymentID string) (*models.PaymentRecord, error) {
	var record models.PaymentRecord
	err := r.db.Where("payment_id = ? AND status = ?", paymentID, models.PaymentStatusCompleted).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByUserID retrieves all payment records for a user, newest first
func (r *paymentRepository) ListByUserID(userID uint) ([]models.PaymentRecord, error) {
	var records []models.PaymentRecord
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&records).Error
	return records, err
}

// MarkFailed transitions the record for a payment id to failed
func (r *paymentRepository) MarkFailed(paymentID string) error {
	return r.db.Model(&models.PaymentRecord{}).
		Where("payment_id = ?", paymentID).
		Update("status", models.PaymentStatusFailed).Error
}

// FindUserByPaymentID resolves the owning user of a payment/subscription id
func (r *paymentRepository) FindUserByPaymentID(paymentID string) (uint, error) {
	var record models.PaymentRecord
	err := r.db.Select("user_id").Where("payment_id = ?", paymentID).First(&record).Error
	if err != nil {
		return 0, err
	}
	return record.UserID, nil
}

// CreateWebhookEventIfNotExists persists a webhook delivery once per
// provider event id.
func (r *paymentRepository) CreateWebhookEventIfNotExists(event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.PaymentWebhookEvent
	if err := r.db.Where("provider_event_id = ?", event.ProviderEventID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

// MarkWebhookProcessed marks an event as processed and stores an optional error
func (r *paymentRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.PaymentWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
