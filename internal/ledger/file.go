package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/commodex/paper-engine/internal/model"
)

// DefaultLegacySymbol is the symbol assigned to data written before
// accounts tracked per-symbol holdings. Early files carried one implicit
// position per account; it was always the gold contract.
const DefaultLegacySymbol = "GOLD"

// FileStore keeps the whole account table in a single JSON file. Writes go
// to a temp file in the same directory followed by a rename, so a crash
// mid-write leaves the previous file intact and concurrent readers see
// either the old table or the new one, never a torn mix.
//
// Loading upgrades records written in older formats (see migrate) and
// immediately rewrites the file so the on-disk shape converges after one
// pass.
type FileStore struct {
	path         string
	legacySymbol string
}

func NewFileStore(path, legacySymbol string) *FileStore {
	if legacySymbol == "" {
		legacySymbol = DefaultLegacySymbol
	}
	return &FileStore{path: path, legacySymbol: legacySymbol}
}

// rawAccount is a decoding superset of model.Account: it carries the
// current fields plus the pre-holdings legacy fields, so one pass can read
// any generation of the file.
type rawAccount struct {
	PasswordHash string                   `json:"passwordHash,omitempty"`
	Balance      decimal.Decimal          `json:"balance"`
	Holdings     map[string]model.Holding `json:"holdings"`
	History      []model.TradeRecord      `json:"history"`
	CreatedAt    time.Time                `json:"createdAt"`

	// Legacy single-position shape.
	LegacyPosition *decimal.Decimal `json:"position,omitempty"`
	LegacyAvgCost  *decimal.Decimal `json:"avgCost,omitempty"`
}

func (s *FileStore) LoadAll(ctx context.Context) (Table, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(Table), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var raw map[string]rawAccount
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}

	table := make(Table, len(raw))
	migrated := false
	for username, r := range raw {
		acct, changed := s.migrate(username, r)
		table[username] = acct
		migrated = migrated || changed
	}

	if migrated {
		if err := s.SaveAll(ctx, table); err != nil {
			return nil, fmt.Errorf("rewrite migrated table: %w", err)
		}
		slog.Info("migrated legacy account file", "path", s.path, "accounts", len(table))
	}
	return table, nil
}

// migrate upgrades one decoded record to the current shape. It folds the
// old single-position fields into a holdings entry under the legacy symbol
// and stamps history entries that predate symbol tagging. The bool reports
// whether anything changed, which triggers a rewrite of the file.
func (s *FileStore) migrate(username string, r rawAccount) (*model.Account, bool) {
	changed := false

	holdings := r.Holdings
	if holdings == nil {
		holdings = make(map[string]model.Holding)
	}
	if r.LegacyPosition != nil && r.LegacyPosition.IsPositive() {
		if _, ok := holdings[s.legacySymbol]; !ok {
			h := model.Holding{Position: *r.LegacyPosition}
			if r.LegacyAvgCost != nil {
				h.AverageCost = *r.LegacyAvgCost
			}
			holdings[s.legacySymbol] = h
		}
		changed = true
	}

	history := r.History
	for i := range history {
		if history[i].Symbol == "" {
			history[i].Symbol = s.legacySymbol
			changed = true
		}
	}

	return &model.Account{
		Username:     username,
		PasswordHash: r.PasswordHash,
		Balance:      r.Balance,
		Holdings:     holdings,
		History:      history,
		CreatedAt:    r.CreatedAt,
	}, changed
}

func (s *FileStore) SaveAll(ctx context.Context, table Table) error {
	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return fmt.Errorf("encode table: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	// Rename within one directory is atomic on POSIX filesystems.
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
