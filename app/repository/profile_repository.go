package repository

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/candicemaschek-bit/dream-interpreter-ai-app/app/models"
)

// profileRepository implements the ProfileRepository interface
type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new profile repository instance
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

// Create creates a new user profile in the database
func (r *profileRepository) Create(profile *models.UserProfile) error {
	return r.db.Create(profile).Error
}

// GetByUserID retrieves a profile by the external user id
func (r *profileRepository) GetByUserID(userID string) (*models.UserProfile, error) {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return nil, gorm.ErrRecordNotFound
	}

	var profile models.UserProfile
	err := r.db.Where("user_id = ?", trimmed).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// Update persists changes to an existing profile
func (r *profileRepository) Update(profile *models.UserProfile) error {
	return r.db.Save(profile).Error
}

// RecordTranscription bumps both usage counters atomically in the database.
// When the stored usage month differs from the given one (first use in a new
// month) the monthly counter restarts at 1 and the window key moves along.
// Returns gorm.ErrRecordNotFound when no profile row exists for the user.
func (r *profileRepository) RecordTranscription(userID string, month string) error {
	res := r.db.Model(&models.UserProfile{}).
		Where("user_id = ? AND usage_month = ?", userID, month).
		UpdateColumns(map[string]interface{}{
			"transcriptions_this_month": gorm.Expr("transcriptions_this_month + 1"),
			"transcriptions_total":      gorm.Expr("transcriptions_total + 1"),
			"updated_at":                time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	res = r.db.Model(&models.UserProfile{}).
		Where("user_id = ?", userID).
		UpdateColumns(map[string]interface{}{
			"transcriptions_this_month": 1,
			"usage_month":               month,
			"transcriptions_total":      gorm.Expr("transcriptions_total + 1"),
			"updated_at":                time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Count returns the number of stored profiles
func (r *profileRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.UserProfile{}).Count(&count).Error
	return count, err
}
