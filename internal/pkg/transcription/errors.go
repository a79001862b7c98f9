package transcription

import "fmt"

// Kind classifies why a transcription could not be produced.
type Kind string

const (
	// KindInsufficientCredits means the provider account is out of credits.
	// Switching model versions cannot fix this, so it always aborts the chain.
	KindInsufficientCredits Kind = "insufficient_credits"
	// KindRateLimited means the provider rejected the call with HTTP 429.
	KindRateLimited Kind = "rate_limited"
	// KindSubmissionFailed means no model version accepted the job.
	KindSubmissionFailed Kind = "submission_failed"
	// KindJobFailed means the last attempted job ended in a failed state.
	KindJobFailed Kind = "job_failed"
	// KindCanceled means the job was canceled on the provider side.
	KindCanceled Kind = "canceled"
	// KindTimeout means the job never resolved within the polling budget.
	KindTimeout Kind = "timeout"
)

// Error is a classified transcription failure.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("transcription: %s", e.Kind)
	}
	return fmt.Sprintf("transcription: %s: %s", e.Kind, e.Message)
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// abortsChain reports whether a failure kind ends the fallback chain
// immediately. Account-level conditions abort; "no usable result" conditions
// let the orchestrator try the next model version.
func abortsChain(kind Kind) bool {
	switch kind {
	case KindInsufficientCredits, KindRateLimited, KindCanceled:
		return true
	default:
		return false
	}
}
