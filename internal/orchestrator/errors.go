package orchestrator

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrPromptTooShort       = errors.New("prompt too short")
	ErrInsufficientCredits  = errors.New("insufficient credits")
	ErrInterpretationFailed = errors.New("interpretation failed")
	ErrVideoUnavailable     = errors.New("video unavailable")
	ErrPersistenceFailed    = errors.New("persistence failed")
	ErrCancelled            = fmt.Errorf("generation cancelled: %w", context.Canceled)

	// ErrCreditsRestored is joined to a failure whose debit went back to
	// the purchased balance.
	ErrCreditsRestored = errors.New("credits restored")
)

// UserMessage renders err for display. Validation problems get their own
// message; other failures only promise a refund when one happened.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPromptTooShort):
		return "Please describe your dream in a little more detail."
	case errors.Is(err, ErrInsufficientCredits):
		return "You don't have enough credits or demo uses left."
	case errors.Is(err, ErrCancelled) && errors.Is(err, ErrCreditsRestored):
		return "Generation cancelled. Your credits have been restored."
	case errors.Is(err, ErrCancelled):
		return "Generation cancelled."
	case errors.Is(err, ErrCreditsRestored):
		return "Generation failed. Your credits have been restored."
	default:
		return "Generation failed. Please try again."
	}
}
