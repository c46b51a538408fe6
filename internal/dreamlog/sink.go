// Package dreamlog writes generated dreams to the remote dreams collection,
// either through the PostgREST API or straight into Postgres.
package dreamlog

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/ruya/internal/models"
)

const DefaultListLimit = 50

var (
	ErrNotFound      = errors.New("dream not found")
	ErrEmptyResponse = errors.New("dream log returned no record")
	ErrNotConfigured = errors.New("dream log not configured")
)

type Sink interface {
	Create(ctx context.Context, d models.RemoteDream) (models.RemoteDream, error)
	List(ctx context.Context, userID string, limit int) ([]models.RemoteDream, error)
	Delete(ctx context.Context, id string) error
}

// RemoteError is a non 2xx response of the REST API.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("dream log: status %d", e.StatusCode)
	}
	return fmt.Sprintf("dream log: status %d: %s", e.StatusCode, e.Message)
}
