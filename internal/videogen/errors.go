package videogen

import (
	"errors"
	"fmt"
)

var (
	ErrServiceUnavailable = errors.New("video generation service is not configured")
	ErrTimeout            = errors.New("video generation did not finish in time")
	ErrMissingAsset       = errors.New("completed generation has no video asset")
	ErrMalformedResponse  = errors.New("malformed video generation response")
)

// SubmissionRejectedError is returned when the API refuses a new job.
type SubmissionRejectedError struct {
	StatusCode int
	Reason     string
}

func (e *SubmissionRejectedError) Error() string {
	return fmt.Sprintf("video submission rejected (%d): %s", e.StatusCode, e.Reason)
}

// GenerationFailedError is returned when a job ends in the failed state.
type GenerationFailedError struct {
	JobID  string
	Reason string
}

func (e *GenerationFailedError) Error() string {
	return fmt.Sprintf("video generation %s failed: %s", e.JobID, e.Reason)
}

// RemoteError is returned for non-2xx poll and download responses.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("video service responded %d: %s", e.StatusCode, e.Message)
}
