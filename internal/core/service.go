// Package core wires the dream generation components into one Service
// shared by the daemon and the REPL.
package core

import (
	"context"

	"github.com/dmitrijs2005/ruya/internal/models"
	"github.com/dmitrijs2005/ruya/internal/orchestrator"
)

// Offer is a credit package with its store price.
type Offer struct {
	Package      models.PurchasePackage `json:"package"`
	DisplayPrice string                 `json:"display_price"`
}

// Service is the surface both the in-process core and the control API
// client implement.
type Service interface {
	Balance(ctx context.Context) (models.CreditBalance, error)
	Packages(ctx context.Context) ([]Offer, error)
	Purchase(ctx context.Context, productID string) (models.CreditBalance, error)
	Restore(ctx context.Context) (int, error)
	History(ctx context.Context) ([]models.DreamArtifact, error)
	Delete(ctx context.Context, id string) error
	OfflineLogs(ctx context.Context, limit int) ([]models.DreamLogRecord, error)
	Interpret(ctx context.Context, prompt string) (models.Interpretation, error)
	Generate(ctx context.Context, prompt string, onProgress orchestrator.ProgressFunc) (models.DreamArtifact, error)
}
