package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/candicemaschek-bit/dream-interpreter-ai-app/app/models"
	"github.com/candicemaschek-bit/dream-interpreter-ai-app/app/repository"
	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/alerts"
	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/audiostore"
	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/credits"
	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/metrics/counter"
	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/quota"
	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/replicate"
	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/transcription"
	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/usercontext"
)

const (
	// maxTranscriptLength caps returned text; longer transcripts are
	// truncated, never rejected.
	maxTranscriptLength = 10000

	providerName = "replicate"

	manualEntryHint = "You can still type your dream as text instead."

	lowCreditAlertKey      = "replicate_low_credits"
	depletedCreditAlertKey = "replicate_credits_depleted"
)

var validate = validator.New()

// TranscribeRequest is the body of POST /api/v1/transcribe. Either audioUrl
// or (with the audio store configured) audioKey must be present.
type TranscribeRequest struct {
	AudioURL string `json:"audioUrl" validate:"omitempty,url"`
	AudioKey string `json:"audioKey" validate:"omitempty,max=512"`
	Language string `json:"language" validate:"omitempty,max=16"`
}

// transcriber is the orchestrator surface the handler depends on.
type transcriber interface {
	Transcribe(ctx context.Context, audioURL, language string) (*transcription.Result, error)
}

// TranscribeController sequences auth context, quota gate, orchestration,
// usage accounting and operator alerting for one transcription request.
type TranscribeController struct {
	throttle  *alerts.Throttle
	gauge     credits.Gauge
	presigner *audiostore.Presigner

	newTranscriber func() (transcriber, error)
	profiles       func() repository.ProfileRepository
	now            func() time.Time
}

// NewTranscribeController wires the controller from operator configuration.
func NewTranscribeController(store alerts.Store) *TranscribeController {
	var presigner *audiostore.Presigner
	if cfg, err := audiostore.LoadConfig(); err != nil {
		log.Warnf("[Transcribe] audio store misconfigured: %v", err)
	} else if cfg.IsEnabled() {
		presigner, err = audiostore.NewPresigner(cfg)
		if err != nil {
			log.Warnf("[Transcribe] audio store disabled: %v", err)
		}
	}

	return &TranscribeController{
		throttle:  alerts.NewThrottleFromEnv(store),
		gauge:     credits.CacheGauge{},
		presigner: presigner,
		newTranscriber: func() (transcriber, error) {
			client, err := replicate.NewClientFromEnv()
			if err != nil {
				return nil, err
			}
			return transcription.NewOrchestrator(client, nil), nil
		},
		profiles: func() repository.ProfileRepository {
			factory := repository.GetGlobalFactory()
			if factory == nil {
				return nil
			}
			return factory.GetProfileRepository()
		},
		now: time.Now,
	}
}

// HandleTranscribe converts an uploaded dream recording into text.
func (tc *TranscribeController) HandleTranscribe(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing or invalid authentication", "code": "UNAUTHORIZED"})
	}

	now := tc.now()
	repo := tc.profiles()
	profile := tc.loadProfile(repo, userCtx.UserID)

	tier := string(quota.TierFree)
	usedThisMonth, usedLifetime := 0, 0
	if profile != nil {
		tier = profile.SubscriptionTier
		usedThisMonth = profile.MonthlyUsage(now)
		usedLifetime = profile.TranscriptionsTotal
	}

	switch result := quota.Check(tier, usedThisMonth, usedLifetime); result.Decision {
	case quota.DenyLifetime:
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error": fmt.Sprintf("You have used all %d transcriptions included in the free plan. Upgrade to keep transcribing your dreams.", result.Limit),
			"code":  "LIFETIME_LIMIT_REACHED",
			"limit": result.Limit,
		})
	case quota.DenyMonthly:
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error": fmt.Sprintf("You have reached your monthly limit of %d transcriptions.", result.Limit),
			"code":  "TRANSCRIPTION_LIMIT_REACHED",
			"limit": result.Limit,
		})
	}

	var req TranscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON body", "code": "VALIDATION_ERROR"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "audioUrl must be a valid URL", "code": "VALIDATION_ERROR"})
	}

	audioURL, err := tc.resolveAudioURL(c, &req)
	if err != nil {
		log.Errorf("[Transcribe] failed to presign audio key: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not access the uploaded recording", "code": "AUDIO_STORE_ERROR", "hint": manualEntryHint})
	}
	if audioURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "audioUrl is required", "code": "VALIDATION_ERROR"})
	}

	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = transcription.DefaultLanguage
	}

	// Low-credit heads-up for operators; informational only, never blocks
	// the request.
	var alertsSent []string
	if remaining, ok := tc.gauge.Remaining(); ok && remaining < credits.Threshold() {
		if tc.throttle.Notify(lowCreditAlertKey,
			"Replicate credits running low",
			fmt.Sprintf("Remaining credits: %.2f (threshold %.2f). Top up soon to keep transcription working.", remaining, credits.Threshold()),
		) {
			alertsSent = append(alertsSent, "low_credits")
		}
	}

	orchestrator, err := tc.newTranscriber()
	if err != nil {
		log.Errorf("[Transcribe] provider not configured: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Transcription is not configured on this server", "code": "CONFIG_ERROR", "hint": manualEntryHint})
	}

	requestID := uuid.NewString()
	log.Infof("[Transcribe] request %s user=%s language=%s", requestID, userCtx.UserID, language)

	result, err := orchestrator.Transcribe(c.Context(), audioURL, language)
	if err != nil {
		return tc.respondTranscriptionError(c, requestID, err, &alertsSent)
	}

	text := truncateText(strings.TrimSpace(result.Text), maxTranscriptLength)
	log.Infof("[Transcribe] request %s succeeded job=%s version=%s chars=%d", requestID, result.JobID, result.ModelVersion, len(text))
	recordOutcome("succeeded")

	// Best-effort: a ledger hiccup must not discard a finished transcription.
	if err := tc.recordUsage(repo, userCtx, profile, now); err != nil {
		log.Errorf("[Transcribe] request %s failed to record usage for user %s: %v", requestID, userCtx.UserID, err)
	}

	response := fiber.Map{
		"text":     text,
		"provider": providerName,
	}
	if len(alertsSent) > 0 {
		response["alerts"] = alertsSent
	}
	return c.JSON(response)
}

// HandleGetAccount returns the caller's tier, usage counters and limits.
func (tc *TranscribeController) HandleGetAccount(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing or invalid authentication", "code": "UNAUTHORIZED"})
	}

	now := tc.now()
	profile := tc.loadProfile(tc.profiles(), userCtx.UserID)

	tier := quota.TierFree
	usedThisMonth, usedLifetime := 0, 0
	if profile != nil {
		tier = quota.Normalize(profile.SubscriptionTier)
		usedThisMonth = profile.MonthlyUsage(now)
		usedLifetime = profile.TranscriptionsTotal
	}

	monthlyLimit := quota.MonthlyLimit(tier)
	response := fiber.Map{
		"user_id": userCtx.UserID,
		"tier":    string(tier),
		"usage": fiber.Map{
			"this_month": usedThisMonth,
			"lifetime":   usedLifetime,
		},
		"limits": fiber.Map{
			"monthly":           monthlyLimit,
			"monthly_remaining": maxInt(0, monthlyLimit-usedThisMonth),
		},
	}
	if lifetimeLimit, ok := quota.LifetimeLimit(tier); ok {
		limits := response["limits"].(fiber.Map)
		limits["lifetime"] = lifetimeLimit
		limits["lifetime_remaining"] = maxInt(0, lifetimeLimit-usedLifetime)
	}

	return c.JSON(response)
}

// loadProfile reads the caller's usage profile. Absence and read errors both
// degrade to "no profile", which downstream treats as a zero-usage free
// account; a flaky profile store must not block transcription.
func (tc *TranscribeController) loadProfile(repo repository.ProfileRepository, userID string) *models.UserProfile {
	if repo == nil {
		log.Warn("[Transcribe] profile store unavailable, assuming free tier")
		return nil
	}
	profile, err := repo.GetByUserID(userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Errorf("[Transcribe] failed to load profile for user %s: %v", userID, err)
		}
		return nil
	}
	return profile
}

func (tc *TranscribeController) resolveAudioURL(c *fiber.Ctx, req *TranscribeRequest) (string, error) {
	if audioURL := strings.TrimSpace(req.AudioURL); audioURL != "" {
		return audioURL, nil
	}
	audioKey := strings.TrimSpace(req.AudioKey)
	if audioKey == "" {
		return "", nil
	}
	if tc.presigner == nil {
		return "", errors.New("audioKey given but no audio store is configured")
	}
	return tc.presigner.PresignGet(c.Context(), audioKey, audiostore.DefaultURLTTL)
}

func (tc *TranscribeController) respondTranscriptionError(c *fiber.Ctx, requestID string, err error, alertsSent *[]string) error {
	var terr *transcription.Error
	if errors.As(err, &terr) {
		log.Errorf("[Transcribe] request %s failed: %s: %s", requestID, terr.Kind, terr.Message)
		recordOutcome(string(terr.Kind))

		switch terr.Kind {
		case transcription.KindInsufficientCredits:
			if tc.throttle.Notify(depletedCreditAlertKey,
				"Replicate credits exhausted",
				"A transcription was rejected with HTTP 402. Top up provider credits; users are seeing failures.",
			) {
				*alertsSent = append(*alertsSent, "credits_depleted")
			}
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "The transcription service is out of credits", "code": "INSUFFICIENT_CREDITS", "hint": manualEntryHint})
		case transcription.KindRateLimited:
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "The transcription service is busy, please try again shortly", "code": "RATE_LIMITED"})
		case transcription.KindTimeout:
			return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": "The transcription took too long", "code": "TRANSCRIPTION_TIMEOUT", "hint": manualEntryHint})
		}
	} else {
		log.Errorf("[Transcribe] request %s failed: %v", requestID, err)
		recordOutcome("error")
	}

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Transcription failed", "code": "TRANSCRIPTION_FAILED", "hint": manualEntryHint})
}

// recordUsage bumps the usage counters after a successful transcription, or
// creates a minimal default profile when none exists yet.
func (tc *TranscribeController) recordUsage(repo repository.ProfileRepository, userCtx usercontext.UserContext, profile *models.UserProfile, now time.Time) error {
	if repo == nil {
		return errors.New("profile store unavailable")
	}

	month := models.CurrentUsageMonth(now)
	if profile == nil {
		return repo.Create(&models.UserProfile{
			UserID:                  userCtx.UserID,
			Email:                   userCtx.Email,
			SubscriptionTier:        string(quota.TierFree),
			TranscriptionsThisMonth: 1,
			TranscriptionsTotal:     1,
			UsageMonth:              month,
		})
	}

	err := repo.RecordTranscription(userCtx.UserID, month)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// The profile vanished between read and write; recreate it.
		return repo.Create(&models.UserProfile{
			UserID:                  userCtx.UserID,
			Email:                   userCtx.Email,
			SubscriptionTier:        string(quota.TierFree),
			TranscriptionsThisMonth: 1,
			TranscriptionsTotal:     1,
			UsageMonth:              month,
		})
	}
	return err
}

// recordOutcome bumps the operator-facing outcome counter. Best-effort; a
// missing cache server only costs the statistic.
func recordOutcome(outcome string) {
	if err := counter.AddOutcome(outcome); err != nil {
		log.Debugf("[Transcribe] outcome counter unavailable: %v", err)
	}
}

// truncateText caps text at limit characters without splitting a rune.
func truncateText(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
