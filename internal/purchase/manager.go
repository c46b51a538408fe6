package purchase

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/ruya/internal/logging"
	"github.com/dmitrijs2005/ruya/internal/metrics"
	"github.com/dmitrijs2005/ruya/internal/models"
	"github.com/dmitrijs2005/ruya/internal/repositories/transactions"
)

// Granter receives credits for verified transactions. Credit returns an
// error when the credits were not durably stored.
type Granter interface {
	Credit(ctx context.Context, amount int) error
}

// Manager turns store transactions into ledger grants. Every transaction
// goes through apply, which journals it before granting so that the
// purchase, listener and reconcile paths together grant at most once per
// transaction id.
type Manager struct {
	store    Store
	ledger   Granter
	journal  transactions.Repository
	packages []models.PurchasePackage
	logger   logging.Logger
	metrics  *metrics.Metrics

	mu sync.Mutex

	productsMu sync.RWMutex
	products   map[string]Product
	loaded     bool
}

func NewManager(store Store, ledger Granter, journal transactions.Repository, packages []models.PurchasePackage,
	logger logging.Logger, m *metrics.Metrics) *Manager {
	return &Manager{
		store:    store,
		ledger:   ledger,
		journal:  journal,
		packages: packages,
		logger:   logger.With("module", "purchase"),
		metrics:  m,
		products: make(map[string]Product),
	}
}

func (m *Manager) Packages() []models.PurchasePackage {
	return append([]models.PurchasePackage(nil), m.packages...)
}

// LoadProducts fetches store listings for the packages. Once any product was
// loaded further calls do nothing.
func (m *Manager) LoadProducts(ctx context.Context) error {
	m.productsMu.Lock()
	defer m.productsMu.Unlock()

	if m.loaded {
		return nil
	}

	ids := make([]string, 0, len(m.packages))
	for _, p := range m.packages {
		ids = append(ids, p.ProductID)
	}

	products, err := m.store.Products(ctx, ids)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}
	for _, p := range products {
		m.products[p.ID] = p
	}
	m.loaded = len(m.products) > 0

	if !m.loaded {
		m.logger.Warn(ctx, "store returned no products")
	} else {
		m.logger.Info(ctx, "products loaded", "count", len(m.products))
	}
	return nil
}

func (m *Manager) product(id string) (Product, bool) {
	m.productsMu.RLock()
	defer m.productsMu.RUnlock()
	p, ok := m.products[id]
	return p, ok
}

// DisplayPrice is the store price of pkg, or its fallback price while
// products are not loaded.
func (m *Manager) DisplayPrice(pkg models.PurchasePackage) string {
	if p, ok := m.product(pkg.ProductID); ok && p.DisplayPrice != "" {
		return p.DisplayPrice
	}
	return pkg.FallbackPrice
}

// Purchase buys pkg and grants its credits once the transaction verifies.
// Unverified transactions are left unfinished.
func (m *Manager) Purchase(ctx context.Context, pkg models.PurchasePackage) error {
	if _, ok := m.product(pkg.ProductID); !ok {
		if err := m.LoadProducts(ctx); err != nil {
			m.logger.Warn(ctx, "product reload failed", "error", err)
		}
		if _, ok := m.product(pkg.ProductID); !ok {
			return fmt.Errorf("%w: %s", ErrProductNotFound, pkg.ProductID)
		}
	}

	res, err := m.store.Purchase(ctx, pkg.ProductID)
	if err != nil {
		return fmt.Errorf("purchase %s: %w", pkg.ProductID, err)
	}

	switch res.Status {
	case StatusSuccess:
		v := res.Verification
		if v.Err != nil {
			m.logger.Error(ctx, "purchase verification failed",
				"product_id", pkg.ProductID, "transaction_id", v.Transaction.ID, "error", v.Err)
			return fmt.Errorf("%w: %v", ErrVerificationFailed, v.Err)
		}
		return m.apply(ctx, v.Transaction, "purchase")
	case StatusCancelled:
		return ErrCancelled
	case StatusPending:
		m.logger.Info(ctx, "purchase pending", "product_id", pkg.ProductID)
		return ErrPending
	default:
		return ErrUnknown
	}
}

// Listen applies store updates until ctx is done.
func (m *Manager) Listen(ctx context.Context) {
	updates := m.store.Updates(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-updates:
			if !ok {
				return
			}
			m.handle(ctx, r, "listener")
		}
	}
}

// ReconcileUnfinished applies every unfinished verified transaction and
// returns how many were handled.
func (m *Manager) ReconcileUnfinished(ctx context.Context) (int, error) {
	results, err := m.store.Unfinished(ctx)
	if err != nil {
		return 0, fmt.Errorf("list unfinished transactions: %w", err)
	}

	n := 0
	for _, r := range results {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if m.handle(ctx, r, "reconcile") {
			n++
		}
	}
	return n, nil
}

// RestorePurchases syncs with the store and counts verified entitlements of
// catalog products. Consumables are never granted again here.
func (m *Manager) RestorePurchases(ctx context.Context) (int, error) {
	if err := m.store.Sync(ctx); err != nil {
		return 0, fmt.Errorf("sync store: %w", err)
	}

	results, err := m.store.CurrentEntitlements(ctx)
	if err != nil {
		return 0, fmt.Errorf("list entitlements: %w", err)
	}

	n := 0
	for _, r := range results {
		if !r.Verified() {
			continue
		}
		if _, ok := m.pkg(r.Transaction.ProductID); ok {
			n++
			m.logger.Debug(ctx, "entitlement found", "product_id", r.Transaction.ProductID)
		}
	}

	if n == 0 {
		return 0, ErrNoPurchasesToRestore
	}
	return n, nil
}

func (m *Manager) handle(ctx context.Context, r VerificationResult, source string) bool {
	if !r.Verified() {
		m.logger.Warn(ctx, "transaction verification failed",
			"source", source, "transaction_id", r.Transaction.ID, "error", r.Err)
		return false
	}
	if err := m.apply(ctx, r.Transaction, source); err != nil {
		m.logger.Error(ctx, "failed to apply transaction",
			"source", source, "transaction_id", r.Transaction.ID, "error", err)
		return false
	}
	return true
}

// apply journals tx, grants its credits if it was not journaled before and
// finishes it. A journal or grant failure leaves the transaction unjournaled
// and unfinished so the next sweep retries it.
func (m *Manager) apply(ctx context.Context, tx models.Transaction, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	log := m.logger.With("source", source, "transaction_id", tx.ID, "product_id", tx.ProductID)

	pkg, ok := m.pkg(tx.ProductID)
	if !ok {
		log.Warn(ctx, "transaction for unknown product, finishing without credit")
		m.finish(ctx, log, tx.ID)
		return nil
	}

	fresh, err := m.journal.MarkProcessed(ctx, tx, pkg.Credits)
	if err != nil {
		return err
	}

	if fresh {
		if err := m.ledger.Credit(ctx, pkg.Credits); err != nil {
			if uerr := m.journal.Unmark(context.WithoutCancel(ctx), tx.ID); uerr != nil {
				log.Error(ctx, "failed to unmark transaction after grant failure", "error", uerr)
			}
			return fmt.Errorf("grant %d credits: %w", pkg.Credits, err)
		}
		m.metrics.CreditsGranted(pkg.Credits)
		log.Info(ctx, "credits granted", "credits", pkg.Credits)
	} else {
		log.Info(ctx, "transaction already credited")
	}

	m.finish(ctx, log, tx.ID)
	return nil
}

func (m *Manager) finish(ctx context.Context, log logging.Logger, id string) {
	if err := m.store.Finish(ctx, id); err != nil {
		log.Warn(ctx, "failed to finish transaction", "error", err)
	}
}

func (m *Manager) pkg(productID string) (models.PurchasePackage, bool) {
	for _, p := range m.packages {
		if p.ProductID == productID {
			return p, true
		}
	}
	return models.PurchasePackage{}, false
}
