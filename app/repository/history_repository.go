package repository

import (
	"github.com/redrule/reddigen/app/models"
	"gorm.io/gorm"
)

// historyRepository implements the HistoryRepository interface
type historyRepository struct {
	db *gorm.DB
}

// NewHistoryRepository creates a new post history repository instance
func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

// Create appends a history entry
func (r *historyRepository) Create(entry *models.PostHistory) error {
	return r.db.Create(entry).Error
}

// ListByUserID retrieves the most recent history entries for a user
func (r *historyRepository) ListByUserID(userID uint, limit int) ([]models.PostHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []models.PostHistory
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Find(&entries).Error
	return entries, err
}
