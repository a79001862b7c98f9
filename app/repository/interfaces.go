package repository

import (
	"gorm.io/gorm"

	"github.com/candicemaschek-bit/dream-interpreter-ai-app/app/models"
)

// ProfileRepository defines the interface for user-profile database operations
type ProfileRepository interface {
	Create(profile *models.UserProfile) error
	GetByUserID(userID string) (*models.UserProfile, error)
	Update(profile *models.UserProfile) error
	// RecordTranscription bumps the usage counters for one successful
	// transcription inside the given usage month.
	RecordTranscription(userID string, month string) error
	Count() (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Profile ProfileRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Profile: NewProfileRepository(db),
	}
}
