package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Color is an RGB triple with components in [0,1].
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// Hex renders the color as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", channel(c.R), channel(c.G), channel(c.B))
}

func channel(v float64) uint8 {
	return uint8(min(max(v, 0), 1)*255 + 0.5)
}

// Interpretation is the three-part text produced for a prompt.
type Interpretation struct {
	Summary             string `json:"summary"`
	Advice              string `json:"advice"`
	RelationshipInsight string `json:"relationship_insight"`
}

// Combined joins the non empty parts with blank lines.
func (i Interpretation) Combined() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{i.Summary, i.Advice, i.RelationshipInsight} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n\n")
}

// DreamArtifact is a persisted generation result.
type DreamArtifact struct {
	ID                    uuid.UUID `json:"id"`
	Prompt                string    `json:"prompt"`
	CreatedAt             time.Time `json:"created_at"`
	MediaFileName         string    `json:"file_name"`
	Palette               [3]Color  `json:"palette"`
	InterpretationSummary *string   `json:"interpretation,omitempty"`
	RemoteVideoURL        *string   `json:"remote_video_url,omitempty"`
}

// DreamLogRecord is a row of the offline dream log.
type DreamLogRecord struct {
	ID             int64     `json:"id"`
	Prompt         string    `json:"prompt"`
	Interpretation *string   `json:"interpretation,omitempty"`
	RemoteURL      *string   `json:"remote_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// RemoteDream is a row of the remote dreams collection.
type RemoteDream struct {
	ID              string     `json:"id,omitempty"`
	UserID          string     `json:"user_id"`
	Prompt          string     `json:"prompt"`
	Interpretation  *string    `json:"interpretation,omitempty"`
	CelestialAdvice *string    `json:"celestial_advice,omitempty"`
	GenerationID    *string    `json:"generation_id,omitempty"`
	VideoURL        *string    `json:"video_url,omitempty"`
	LocalFilename   *string    `json:"local_filename,omitempty"`
	Resolution      string     `json:"resolution,omitempty"`
	Duration        string     `json:"duration,omitempty"`
	IsShared        bool       `json:"is_shared"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
}

// Ptr returns a pointer to s, or nil when s is empty.
func Ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
