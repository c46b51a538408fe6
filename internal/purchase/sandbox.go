package purchase

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/ruya/internal/models"
	"github.com/google/uuid"
)

const sandboxEnvironment = "Sandbox"

// SandboxStore is an in-process Store. It signs its own transactions and
// verifies them like a platform store would. Tests and headless runs use it
// to script outcomes, deferred approvals and interrupted purchases.
type SandboxStore struct {
	signer   *JWSSigner
	verifier *JWSVerifier
	now      func() time.Time

	mu           sync.Mutex
	products     []Product
	next         []PurchaseStatus
	pending      map[string]models.Transaction
	unfinished   map[string]string
	entitlements []string
	updates      chan VerificationResult
	syncErr      error
	finished     []string
}

// NewSandboxStore lists every catalog package at its fallback price. A nil
// key generates a fresh P-256 key.
func NewSandboxStore(key *ecdsa.PrivateKey, catalog []models.PurchasePackage) (*SandboxStore, error) {
	if key == nil {
		var err error
		key, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate sandbox key: %w", err)
		}
	}

	products := make([]Product, 0, len(catalog))
	for _, p := range catalog {
		products = append(products, Product{ID: p.ProductID, DisplayPrice: p.FallbackPrice, Price: float64(p.Credits)})
	}

	signer := NewJWSSigner(key)
	return &SandboxStore{
		signer:     signer,
		verifier:   signer.Verifier(),
		now:        time.Now,
		products:   products,
		pending:    make(map[string]models.Transaction),
		unfinished: make(map[string]string),
		updates:    make(chan VerificationResult, 16),
	}, nil
}

// SetProducts replaces the listed products.
func (s *SandboxStore) SetProducts(products []Product) {
	s.mu.Lock()
	s.products = products
	s.mu.Unlock()
}

// QueueOutcome makes the next Purchase calls end with the given statuses in
// order. Without a queued outcome purchases succeed.
func (s *SandboxStore) QueueOutcome(statuses ...PurchaseStatus) {
	s.mu.Lock()
	s.next = append(s.next, statuses...)
	s.mu.Unlock()
}

// FailSync makes Sync return err.
func (s *SandboxStore) FailSync(err error) {
	s.mu.Lock()
	s.syncErr = err
	s.mu.Unlock()
}

func (s *SandboxStore) Products(_ context.Context, ids []string) ([]Product, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Product
	for _, p := range s.products {
		if want[p.ID] {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out, nil
}

func (s *SandboxStore) Purchase(ctx context.Context, productID string) (PurchaseResult, error) {
	if err := ctx.Err(); err != nil {
		return PurchaseResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.listed(productID) {
		return PurchaseResult{}, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}

	status := StatusSuccess
	if len(s.next) > 0 {
		status, s.next = s.next[0], s.next[1:]
	}

	tx := s.newTransaction(productID)
	switch status {
	case StatusSuccess:
		token, err := s.signer.Sign(tx)
		if err != nil {
			return PurchaseResult{}, err
		}
		s.track(tx.ID, token)
		return PurchaseResult{Status: status, Verification: s.verifier.Verify(token)}, nil
	case StatusPending:
		s.pending[tx.ID] = tx
	}
	return PurchaseResult{Status: status}, nil
}

// Pending lists deferred transaction ids.
func (s *SandboxStore) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Approve completes a deferred purchase and delivers it on Updates.
func (s *SandboxStore) Approve(transactionID string) error {
	s.mu.Lock()
	tx, ok := s.pending[transactionID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("no pending transaction %s", transactionID)
	}
	delete(s.pending, transactionID)

	token, err := s.signer.Sign(tx)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.track(tx.ID, token)
	s.mu.Unlock()

	s.updates <- s.verifier.Verify(token)
	return nil
}

// Interrupt records a completed but unfinished purchase of productID, as
// left behind by a crash between payment and crediting. With forged set the
// payload is signed by a foreign key and fails verification.
func (s *SandboxStore) Interrupt(productID string, forged bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.newTransaction(productID)
	signer := s.signer
	if forged {
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return "", err
		}
		signer = NewJWSSigner(key)
	}

	token, err := signer.Sign(tx)
	if err != nil {
		return "", err
	}
	s.track(tx.ID, token)
	return tx.ID, nil
}

// Deliver pushes an already tracked unfinished transaction on Updates
// again, the way a platform store may redeliver.
func (s *SandboxStore) Deliver(transactionID string) error {
	s.mu.Lock()
	token, ok := s.unfinished[transactionID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no unfinished transaction %s", transactionID)
	}
	s.updates <- s.verifier.Verify(token)
	return nil
}

func (s *SandboxStore) Updates(ctx context.Context) <-chan VerificationResult {
	out := make(chan VerificationResult)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case r := <-s.updates:
				select {
				case out <- r:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (s *SandboxStore) Unfinished(context.Context) ([]VerificationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.unfinished))
	for id := range s.unfinished {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]VerificationResult, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.verifier.Verify(s.unfinished[id]))
	}
	return out, nil
}

func (s *SandboxStore) CurrentEntitlements(context.Context) ([]VerificationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]VerificationResult, 0, len(s.entitlements))
	for _, token := range s.entitlements {
		out = append(out, s.verifier.Verify(token))
	}
	return out, nil
}

func (s *SandboxStore) Sync(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncErr
}

func (s *SandboxStore) Finish(_ context.Context, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.unfinished, transactionID)
	s.finished = append(s.finished, transactionID)
	return nil
}

// Finished lists Finish calls in order, duplicates included.
func (s *SandboxStore) Finished() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.finished...)
}

func (s *SandboxStore) listed(productID string) bool {
	for _, p := range s.products {
		if p.ID == productID {
			return true
		}
	}
	return false
}

func (s *SandboxStore) newTransaction(productID string) models.Transaction {
	id := uuid.NewString()
	return models.Transaction{
		ID:           id,
		OriginalID:   id,
		ProductID:    productID,
		PurchaseDate: s.now().UTC().Truncate(time.Millisecond),
		Environment:  sandboxEnvironment,
	}
}

func (s *SandboxStore) track(id, token string) {
	s.unfinished[id] = token
	s.entitlements = append(s.entitlements, token)
}
