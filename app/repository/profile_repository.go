package repository

import (
	"errors"
	"strings"

	"github.com/redrule/reddigen/app/models"
	"gorm.io/gorm"
)

// profileRepository implements the ProfileRepository interface
type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new profile repository instance
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

// GetOrCreate returns the user's profile, creating the default one on first
// access. The display name defaults to the email local part.
func (r *profileRepository) GetOrCreate(userID uint, email string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := r.db.Where("user_id = ?", userID).First(&profile).Error
	if err == nil {
		return &profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	displayName := email
	if at := strings.Index(email, "@"); at > 0 {
		displayName = email[:at]
	}
	profile = models.UserProfile{
		UserID:      userID,
		Email:       email,
		DisplayName: displayName,
	}
	if err := r.db.Create(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetByEmail resolves a profile by its checkout email
func (r *profileRepository) GetByEmail(email string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := r.db.Where("email = ?", email).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// Update persists profile changes
func (r *profileRepository) Update(profile *models.UserProfile) error {
	return r.db.Save(profile).Error
}
