package transcription

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/env"
	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/replicate"
)

const (
	// DefaultLanguage is assumed when the caller does not pick one.
	DefaultLanguage = "en"

	whisperModel      = "large-v3"
	submitWaitSeconds = 5

	maxPollAttempts   = 15
	initialPollDelay  = 1500 * time.Millisecond
	maxPollDelay      = 5 * time.Second
	pollBackoffFactor = 1.25
)

// DefaultVersions is the ordered model-version fallback chain: the current
// whisper large-v3 revision first, then the previous revision we know to be
// stable.
var DefaultVersions = []string{
	"3c08daf437fe359eb158a5123c395673f0a113dd8b4bd01ddce5936850e2a981",
	"91ee9c0c3df30478510ff8c8a3a545add1ad0259ad3a9f78fba57fbc05ee8328",
}

// VersionsFromEnv returns the model-version chain, honoring the
// WHISPER_VERSIONS override (comma-separated, primary first).
func VersionsFromEnv() []string {
	raw := env.GetEnv("WHISPER_VERSIONS", "")
	var versions []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			versions = append(versions, v)
		}
	}
	if len(versions) == 0 {
		return DefaultVersions
	}
	return versions
}

// Orchestrator submits a transcription job across an ordered fallback chain
// of model versions and polls it to completion. State lives only for the
// lifetime of one request; there is no resumption across requests.
type Orchestrator struct {
	client   *replicate.Client
	versions []string

	// sleep is swapped out in tests so polling does not take real time.
	sleep func(time.Duration)
}

// Result is a successful transcription.
type Result struct {
	Text         string
	ModelVersion string
	JobID        string
}

// NewOrchestrator builds an orchestrator over the given provider client.
// An empty version chain falls back to VersionsFromEnv.
func NewOrchestrator(client *replicate.Client, versions []string) *Orchestrator {
	if len(versions) == 0 {
		versions = VersionsFromEnv()
	}
	return &Orchestrator{
		client:   client,
		versions: versions,
		sleep:    time.Sleep,
	}
}

// Transcribe runs the fallback chain until one model version produces text.
// Generic submission failures, failed jobs and poll exhaustion advance to
// the next version; insufficient credits, rate limiting and cancellation
// abort the whole chain. When every version is exhausted the last classified
// failure is surfaced.
func (o *Orchestrator) Transcribe(ctx context.Context, audioURL, language string) (*Result, error) {
	if strings.TrimSpace(language) == "" {
		language = DefaultLanguage
	}

	var lastErr *Error
	for i, version := range o.versions {
		result, terr := o.attempt(ctx, version, audioURL, language)
		if terr == nil {
			return result, nil
		}

		lastErr = terr
		if abortsChain(terr.Kind) {
			return nil, terr
		}
		if i < len(o.versions)-1 {
			log.Warnf("[Transcription] model version %s gave no result (%s), falling back to next version", shortVersion(version), terr.Kind)
		}
	}
	return nil, lastErr
}

// attempt runs one model version: submit, inspect the initial status, then
// poll until the job resolves or the attempt budget runs out.
func (o *Orchestrator) attempt(ctx context.Context, version, audioURL, language string) (*Result, *Error) {
	input := replicate.PredictionInput{
		Audio:         audioURL,
		Language:      language,
		Model:         whisperModel,
		Transcription: "plain text",
		Translate:     false,
	}

	prediction, err := o.client.CreatePrediction(ctx, version, input, submitWaitSeconds)
	if err != nil {
		if terr := classifyHTTPError(err); terr != nil {
			return nil, terr
		}
		return nil, newError(KindSubmissionFailed, "model version %s: %v", shortVersion(version), err)
	}

	switch prediction.Status {
	case replicate.StatusSucceeded:
		return o.succeed(version, prediction), nil
	case replicate.StatusFailed:
		return nil, newError(KindJobFailed, "%s", providerMessage(prediction))
	case replicate.StatusCanceled:
		return nil, newError(KindCanceled, "job %s was canceled", prediction.ID)
	}

	return o.poll(ctx, version, prediction.ID)
}

// poll checks the job with increasing intervals. Provider HTTP errors other
// than the billing/rate-limit statuses are not fatal here; the job may still
// resolve on a later check.
func (o *Orchestrator) poll(ctx context.Context, version, jobID string) (*Result, *Error) {
	delay := initialPollDelay
	for attempt := 1; attempt <= maxPollAttempts; attempt++ {
		o.sleep(delay)
		delay = nextDelay(delay)

		prediction, err := o.client.GetPrediction(ctx, jobID)
		if err != nil {
			if terr := classifyHTTPError(err); terr != nil {
				return nil, terr
			}
			log.Warnf("[Transcription] poll %d/%d for job %s failed: %v", attempt, maxPollAttempts, jobID, err)
			continue
		}

		switch prediction.Status {
		case replicate.StatusSucceeded:
			return o.succeed(version, prediction), nil
		case replicate.StatusFailed:
			return nil, newError(KindJobFailed, "%s", providerMessage(prediction))
		case replicate.StatusCanceled:
			return nil, newError(KindCanceled, "job %s was canceled", jobID)
		}
	}
	return nil, newError(KindTimeout, "job %s still pending after %d checks", jobID, maxPollAttempts)
}

func (o *Orchestrator) succeed(version string, prediction *replicate.Prediction) *Result {
	return &Result{
		Text:         ExtractText(prediction.Output),
		ModelVersion: version,
		JobID:        prediction.ID,
	}
}

// classifyHTTPError maps billing and rate-limit statuses to their terminal
// kinds. These are classified at the HTTP level, before any job-state
// parsing, so they can never be masked by generic failure text.
func classifyHTTPError(err error) *Error {
	var apiErr *replicate.APIError
	if !errors.As(err, &apiErr) {
		return nil
	}
	switch apiErr.StatusCode {
	case http.StatusPaymentRequired:
		return newError(KindInsufficientCredits, "provider account is out of credits")
	case http.StatusTooManyRequests:
		return newError(KindRateLimited, "provider rate limit hit")
	}
	return nil
}

func nextDelay(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * pollBackoffFactor)
	if next > maxPollDelay {
		return maxPollDelay
	}
	return next
}

func providerMessage(p *replicate.Prediction) string {
	if msg := strings.TrimSpace(p.Error); msg != "" {
		return msg
	}
	return "job " + p.ID + " failed without a provider message"
}

func shortVersion(version string) string {
	if len(version) > 8 {
		return version[:8]
	}
	return version
}
