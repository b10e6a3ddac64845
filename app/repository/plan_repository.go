package repository

import (
	"errors"

	"github.com/redrule/reddigen/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// planRepository implements the PlanRepository interface
type planRepository struct {
	db *gorm.DB
}

// NewPlanRepository creates a new plan ledger repository instance
func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &planRepository{db: db}
}

// GetByUserID retrieves the plan ledger row for a user
func (r *planRepository) GetByUserID(userID uint) (*models.UserPlan, error) {
	var plan models.UserPlan
	err := r.db.Where("user_id = ?", userID).First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// GetOrCreateDefault returns the user's plan, creating the free-tier default
// on first access.
func (r *planRepository) GetOrCreateDefault(userID uint) (*models.UserPlan, error) {
	plan, err := r.GetByUserID(userID)
	if err == nil {
		return plan, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	plan = models.DefaultFreePlan(userID)
	if err := r.Upsert(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// Upsert writes the plan row keyed by user_id; the last writer for a given
// user wins.
func (r *planRepository) Upsert(plan *models.UserPlan) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"plan_type",
			"billing_cycle",
			"credits_remaining",
			"posts_per_month",
			"amount",
			"status",
			"activated_at",
			"expires_at",
			"updated_at",
		}),
	}).Create(plan).Error; err != nil {
		return err
	}

	// Ensure ID and timestamps are populated after upsert.
	return r.db.Where("user_id = ?", plan.UserID).First(plan).Error
}

// DeductCredit atomically consumes one credit and returns the remaining
// balance. gorm.ErrRecordNotFound signals an exhausted balance.
func (r *planRepository) DeductCredit(userID uint) (int, error) {
	tx := r.db.Model(&models.UserPlan{}).
		Where("user_id = ? AND credits_remaining > 0", userID).
		UpdateColumn("credits_remaining", gorm.Expr("credits_remaining - 1"))
	if tx.Error != nil {
		return 0, tx.Error
	}
	if tx.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}

	plan, err := r.GetByUserID(userID)
	if err != nil {
		return 0, err
	}
	return plan.CreditsRemaining, nil
}
