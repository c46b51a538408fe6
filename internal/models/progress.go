package models

// RemoteState is the lifecycle state reported by the video generation API.
type RemoteState string

const (
	StateQueued     RemoteState = "queued"
	StateDreaming   RemoteState = "dreaming"
	StateProcessing RemoteState = "processing"
	StateCompleted  RemoteState = "completed"
	StateFailed     RemoteState = "failed"
)

func (s RemoteState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// GenerationProgress is emitted once per poll of a remote job.
type GenerationProgress struct {
	Attempt                   int         `json:"attempt"`
	MaxAttempts               int         `json:"max_attempts"`
	State                     RemoteState `json:"state"`
	EstimatedSecondsRemaining int         `json:"eta_seconds"`
}

// Percentage maps attempts onto [0, 0.95] and reports 1 only once the job
// has completed.
func (p GenerationProgress) Percentage() float64 {
	if p.State == StateCompleted {
		return 1
	}
	if p.MaxAttempts <= 0 {
		return 0
	}
	return min(float64(p.Attempt)/float64(p.MaxAttempts)*0.9, 0.95)
}
