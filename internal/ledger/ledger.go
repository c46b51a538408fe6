// Package ledger tracks spendable generation credits: a purchased balance
// and a one-time demo allowance. Purchased credits are spent first.
//
// Every mutation is a check-then-act under one mutex and is persisted
// before the call returns.
package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/ruya/internal/logging"
	"github.com/dmitrijs2005/ruya/internal/models"
	"github.com/dmitrijs2005/ruya/internal/securestore"
)

// Observer is notified after every committed change.
type Observer func(models.CreditBalance)

type Ledger struct {
	mu        sync.RWMutex
	store     securestore.CounterStore
	logger    logging.Logger
	purchased int
	demoUsed  int
	demoLimit int
	observers []Observer
}

// New loads the counters from store. Missing values start at zero;
// out-of-range values are clamped.
func New(ctx context.Context, store securestore.CounterStore, demoLimit int, logger logging.Logger) (*Ledger, error) {
	purchased, _, err := store.Int(ctx, securestore.KeyCreditBalance)
	if err != nil {
		return nil, err
	}
	demoUsed, _, err := store.Int(ctx, securestore.KeyDemoUsage)
	if err != nil {
		return nil, err
	}

	l := &Ledger{
		store:     store,
		logger:    logger.With("module", "ledger"),
		purchased: max(purchased, 0),
		demoUsed:  min(max(demoUsed, 0), max(demoLimit, 0)),
		demoLimit: max(demoLimit, 0),
	}
	return l, nil
}

// OnChange registers fn to be called after each committed change.
func (l *Ledger) OnChange(fn Observer) {
	l.mu.Lock()
	l.observers = append(l.observers, fn)
	l.mu.Unlock()
}

func (l *Ledger) Balance() models.CreditBalance {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshot()
}

func (l *Ledger) DemoRemaining() int {
	return l.Balance().DemoRemaining()
}

// HasSufficientCredits reports whether Consume(cost) would currently succeed.
func (l *Ledger) HasSufficientCredits(cost int) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cost > 0 && (l.purchased >= cost || l.demoLimit-l.demoUsed >= cost)
}

// Debit records where a successful Consume took its credits from.
type Debit struct {
	Cost     int
	FromDemo bool
}

// Refundable is the amount a failed generation gives back. Demo usage is
// never returned.
func (d Debit) Refundable() int {
	if d.FromDemo {
		return 0
	}
	return d.Cost
}

// Consume debits cost from the purchased balance when it covers the whole
// cost, otherwise from the demo allowance. It returns false without any
// change if neither does, or if the new value could not be persisted.
func (l *Ledger) Consume(ctx context.Context, cost int) bool {
	_, ok := l.Spend(ctx, cost)
	return ok
}

// Spend is Consume reporting which counter paid.
func (l *Ledger) Spend(ctx context.Context, cost int) (Debit, bool) {
	if cost <= 0 {
		return Debit{}, false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Persisted even when ctx is already cancelled.
	wctx := context.WithoutCancel(ctx)
	d := Debit{Cost: cost}
	switch {
	case l.purchased >= cost:
		if err := l.store.SetInt(wctx, securestore.KeyCreditBalance, l.purchased-cost); err != nil {
			l.logger.Error(ctx, "failed to persist purchased balance", "error", err)
			return Debit{}, false
		}
		l.purchased -= cost
	case l.demoLimit-l.demoUsed >= cost:
		if err := l.store.SetInt(wctx, securestore.KeyDemoUsage, l.demoUsed+cost); err != nil {
			l.logger.Error(ctx, "failed to persist demo usage", "error", err)
			return Debit{}, false
		}
		l.demoUsed += cost
		d.FromDemo = true
	default:
		return Debit{}, false
	}

	l.logger.Debug(ctx, "credits consumed", "cost", cost, "demo", d.FromDemo, "purchased", l.purchased, "demo_used", l.demoUsed)
	l.notify()
	return d, true
}

// Refund returns amount to the purchased balance. A failed write is logged
// and leaves the balance unchanged.
func (l *Ledger) Refund(ctx context.Context, amount int) {
	if err := l.Credit(ctx, amount); err != nil {
		l.logger.Error(ctx, "refund not persisted", "amount", amount, "error", err)
	}
}

// Grant adds amount purchased credits, logging a failed write.
func (l *Ledger) Grant(ctx context.Context, amount int) {
	if err := l.Credit(ctx, amount); err != nil {
		l.logger.Error(ctx, "grant not persisted", "amount", amount, "error", err)
	}
}

// Credit adds amount to the purchased balance. The new balance is written
// before it becomes visible; on a write error nothing changes and the error
// is returned. Non-positive amounts are ignored.
func (l *Ledger) Credit(ctx context.Context, amount int) error {
	if amount <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.purchased + amount
	if err := l.store.SetInt(context.WithoutCancel(ctx), securestore.KeyCreditBalance, next); err != nil {
		return fmt.Errorf("persist purchased balance: %w", err)
	}
	l.purchased = next

	l.logger.Info(ctx, "credits added", "amount", amount, "purchased", l.purchased)
	l.notify()
	return nil
}

func (l *Ledger) snapshot() models.CreditBalance {
	return models.CreditBalance{Purchased: l.purchased, DemoUsed: l.demoUsed, DemoLimit: l.demoLimit}
}

// notify must be called with mu held.
func (l *Ledger) notify() {
	b := l.snapshot()
	for _, fn := range l.observers {
		fn(b)
	}
}
