package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/commodex/paper-engine/internal/model"
)

// PostgresStore persists the account table in a single accounts relation.
// It keeps the same whole-table contract as the file store: LoadAll reads
// every row, SaveAll replaces them all inside one transaction.
//
// Balances are NUMERIC columns selected as ::TEXT and parsed with
// decimal.NewFromString, which avoids any float conversion. Holdings and
// history travel as JSONB, reusing the exact JSON shape of the file store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the accounts table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			username      TEXT PRIMARY KEY,
			password_hash TEXT NOT NULL DEFAULT '',
			balance       NUMERIC(20,4) NOT NULL,
			holdings      JSONB NOT NULL DEFAULT '{}',
			history       JSONB NOT NULL DEFAULT '[]',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("ensure accounts schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadAll(ctx context.Context) (Table, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT username, password_hash, balance::TEXT, holdings, history, created_at
		FROM accounts`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	table := make(Table)
	for rows.Next() {
		var (
			username     string
			passwordHash string
			balanceStr   string
			holdingsJSON []byte
			historyJSON  []byte
			createdAt    time.Time
		)
		if err := rows.Scan(&username, &passwordHash, &balanceStr, &holdingsJSON, &historyJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}

		balance, err := decimal.NewFromString(balanceStr)
		if err != nil {
			return nil, fmt.Errorf("parse balance for %s: %w", username, err)
		}
		acct := &model.Account{
			Username:     username,
			PasswordHash: passwordHash,
			Balance:      balance,
			CreatedAt:    createdAt,
		}
		if err := json.Unmarshal(holdingsJSON, &acct.Holdings); err != nil {
			return nil, fmt.Errorf("decode holdings for %s: %w", username, err)
		}
		if err := json.Unmarshal(historyJSON, &acct.History); err != nil {
			return nil, fmt.Errorf("decode history for %s: %w", username, err)
		}
		if acct.Holdings == nil {
			acct.Holdings = make(map[string]model.Holding)
		}
		table[username] = acct
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return table, nil
}

func (s *PostgresStore) SaveAll(ctx context.Context, table Table) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM accounts`); err != nil {
		return fmt.Errorf("clear accounts: %w", err)
	}
	for username, acct := range table {
		holdingsJSON, err := json.Marshal(acct.Holdings)
		if err != nil {
			return fmt.Errorf("encode holdings for %s: %w", username, err)
		}
		historyJSON, err := json.Marshal(acct.History)
		if err != nil {
			return fmt.Errorf("encode history for %s: %w", username, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO accounts (username, password_hash, balance, holdings, history, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			username, acct.PasswordHash, acct.Balance.String(), holdingsJSON, historyJSON, acct.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert account %s: %w", username, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}
