package billing

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/candicemaschek-bit/dream-interpreter-ai-app/app/models"
)

// Repository provides DB operations used by the billing service.
type Repository interface {
	CreateEventIfNotExists(event *models.BillingEvent) (bool, *models.BillingEvent, error)
	MarkProcessed(id uint, processingError string) error
	SetTierByEmail(email, tier string) (bool, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateEventIfNotExists(event *models.BillingEvent) (bool, *models.BillingEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.BillingEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) SetTierByEmail(email, tier string) (bool, error) {
	tx := r.db.Model(&models.UserProfile{}).
		Where("email = ?", email).
		Update("subscription_tier", tier)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}
