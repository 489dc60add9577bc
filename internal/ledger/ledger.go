package ledger

import (
	"context"
	"fmt"
	"sync"
)

// Ledger serializes access to a Store. Mutations run under an exclusive
// lock and follow a strict load-modify-save cycle: the table is reloaded
// from the store at the start of every cycle, so each mutation sees the
// latest persisted state. Reads take a shared lock and work on a snapshot.
//
// Uses a mutex for serialized execution (single-instance); running several
// processes against one store is not supported.
type Ledger struct {
	store Store
	mu    sync.RWMutex
}

func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// Update runs fn inside one exclusive load-modify-save cycle. fn may
// mutate the table in place; the result is persisted only when fn returns
// nil. When fn returns an error nothing is written and the error is
// returned unwrapped, so callers can match sentinel values.
func (l *Ledger) Update(ctx context.Context, fn func(table Table) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	table, err := l.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("ledger: load: %w", err)
	}
	if err := fn(table); err != nil {
		return err
	}
	if err := l.store.SaveAll(ctx, table); err != nil {
		return fmt.Errorf("ledger: save: %w", err)
	}
	return nil
}

// View runs fn against a consistent snapshot of the table. fn must not
// retain references to the table past its return unless the store hands
// out copies.
func (l *Ledger) View(ctx context.Context, fn func(table Table) error) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	table, err := l.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("ledger: load: %w", err)
	}
	return fn(table)
}
