package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// UserProfile stores per-user subscription tier and transcription usage
// counters. UserID is the subject of the auth provider's bearer token, so a
// profile row may not exist yet when a user transcribes for the first time;
// callers treat absence as a zero-usage free account.
type UserProfile struct {
	ID                      uint           `gorm:"primaryKey" json:"id"`
	UserID                  string         `gorm:"type:varchar(64);uniqueIndex" json:"user_id" validate:"required,max=64"`
	Email                   string         `gorm:"type:varchar(200);default:null" json:"email" validate:"omitempty,email,max=200"`
	SubscriptionTier        string         `gorm:"type:varchar(50);default:'free'" json:"subscription_tier"`
	TranscriptionsThisMonth int            `gorm:"default:0" json:"transcriptions_this_month"`
	TranscriptionsTotal     int            `gorm:"default:0" json:"transcriptions_total"`
	UsageMonth              string         `gorm:"type:char(7);default:''" json:"usage_month"`
	CreatedAt               time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt               gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *UserProfile) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// CurrentUsageMonth formats the usage window key for a point in time.
func CurrentUsageMonth(now time.Time) string {
	return now.UTC().Format("2006-01")
}

// MonthlyUsage returns the transcriptions used in the current month. A
// profile last touched in an earlier month reports zero; the stale counter
// is reset when the next transcription is recorded.
func (p *UserProfile) MonthlyUsage(now time.Time) int {
	if p.UsageMonth != CurrentUsageMonth(now) {
		return 0
	}
	return p.TranscriptionsThisMonth
}
