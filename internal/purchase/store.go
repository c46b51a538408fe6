// Package purchase applies verified store transactions to the credit ledger
// exactly once.
package purchase

import (
	"context"

	"github.com/dmitrijs2005/ruya/internal/models"
)

// Product is a store listing for one of the catalog packages.
type Product struct {
	ID           string
	DisplayPrice string
	Price        float64
}

type PurchaseStatus int

const (
	StatusUnknown PurchaseStatus = iota
	StatusSuccess
	StatusCancelled
	StatusPending
)

func (s PurchaseStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusCancelled:
		return "cancelled"
	case StatusPending:
		return "pending"
	default:
		return "unknown"
	}
}

// VerificationResult carries a transaction reported by the store. It is
// trustworthy only when Err is nil.
type VerificationResult struct {
	Transaction models.Transaction
	Err         error
}

func (v VerificationResult) Verified() bool { return v.Err == nil }

// PurchaseResult is the outcome of Store.Purchase. Verification is set only
// for StatusSuccess.
type PurchaseResult struct {
	Status       PurchaseStatus
	Verification VerificationResult
}

// Store is the platform store the manager talks to.
type Store interface {
	Products(ctx context.Context, ids []string) ([]Product, error)
	Purchase(ctx context.Context, productID string) (PurchaseResult, error)
	// Updates streams transactions completed outside Purchase, such as
	// approved deferred purchases. The channel is closed when ctx is done.
	Updates(ctx context.Context) <-chan VerificationResult
	Unfinished(ctx context.Context) ([]VerificationResult, error)
	CurrentEntitlements(ctx context.Context) ([]VerificationResult, error)
	Sync(ctx context.Context) error
	Finish(ctx context.Context, transactionID string) error
}
