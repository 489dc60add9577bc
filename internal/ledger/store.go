// Package ledger owns account persistence. A Store reads and writes the
// whole account table in one shot; the Ledger wraps a Store with the
// locking discipline that keeps mutations serialized.
package ledger

import (
	"context"

	"github.com/commodex/paper-engine/internal/model"
)

// Table is the full account table keyed by username.
type Table map[string]*model.Account

// Clone deep-copies the table so callers can mutate freely.
func (t Table) Clone() Table {
	cp := make(Table, len(t))
	for username, acct := range t {
		cp[username] = acct.Clone()
	}
	return cp
}

// Store persists the account table as a whole. There are no per-record
// operations: every read loads the entire table and every write replaces
// it. Implementations must make SaveAll all-or-nothing — a reader never
// observes a partially written table.
type Store interface {
	// LoadAll returns the complete table. A store with no data yet
	// returns an empty, non-nil table.
	LoadAll(ctx context.Context) (Table, error)

	// SaveAll atomically replaces the stored table.
	SaveAll(ctx context.Context, table Table) error
}
