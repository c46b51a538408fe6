package dreamlog

import (
	"context"
	"path/filepath"

	"github.com/dmitrijs2005/ruya/internal/models"
)

// AnonymousUserID is logged when there is no signed in user.
const AnonymousUserID = "anonymous"

// Entry describes one finished generation.
type Entry struct {
	Artifact       models.DreamArtifact
	Interpretation models.Interpretation
	GenerationID   string
	Resolution     string
	Duration       string
}

// Logger maps generated artifacts onto dream log rows.
type Logger struct {
	sink   Sink
	userID func(ctx context.Context) string
}

// NewLogger logs to sink on behalf of the user returned by userID. A nil
// userID logs as AnonymousUserID.
func NewLogger(sink Sink, userID func(ctx context.Context) string) *Logger {
	return &Logger{sink: sink, userID: userID}
}

func (l *Logger) Log(ctx context.Context, e Entry) (models.RemoteDream, error) {
	user := ""
	if l.userID != nil {
		user = l.userID(ctx)
	}
	if user == "" {
		user = AnonymousUserID
	}

	a := e.Artifact
	return l.sink.Create(ctx, models.RemoteDream{
		UserID:          user,
		Prompt:          a.Prompt,
		Interpretation:  models.Ptr(e.Interpretation.Summary),
		CelestialAdvice: models.Ptr(e.Interpretation.Advice),
		GenerationID:    models.Ptr(e.GenerationID),
		VideoURL:        a.RemoteVideoURL,
		LocalFilename:   models.Ptr(filepath.Base(a.MediaFileName)),
		Resolution:      e.Resolution,
		Duration:        e.Duration,
	})
}
