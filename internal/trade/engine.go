// Package trade implements the account engine: validated trade execution
// against the ledger, account summaries, and history queries.
package trade

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/commodex/paper-engine/internal/ledger"
	"github.com/commodex/paper-engine/internal/model"
	"github.com/commodex/paper-engine/internal/position"
)

// Execution failures. Validation runs in a fixed order and the first
// failure wins; a failed trade never changes any account state.
var (
	// ErrInvalidSide is returned when the side is neither buy nor sell.
	ErrInvalidSide = errors.New("trade: side must be buy or sell")

	// ErrInvalidSymbol is returned when the symbol is empty or malformed.
	ErrInvalidSymbol = errors.New("trade: invalid symbol")

	// ErrInvalidAmount is returned when quantity or price is not a
	// positive finite number.
	ErrInvalidAmount = errors.New("trade: quantity and price must be positive")

	// ErrUnknownAccount is returned when the account does not exist.
	ErrUnknownAccount = errors.New("trade: unknown account")

	// ErrInsufficientFunds is returned when a buy costs more than the
	// account balance.
	ErrInsufficientFunds = errors.New("trade: insufficient funds")

	// ErrInsufficientPosition is returned when a sell exceeds the held
	// position.
	ErrInsufficientPosition = position.ErrInsufficientPosition
)

var symbolRe = regexp.MustCompile(`^[A-Z][A-Z0-9]{0,11}$`)

// NormalizeSymbol trims and upper-cases a raw symbol. It returns
// ErrInvalidSymbol when the result is empty or not a plausible ticker.
func NormalizeSymbol(raw string) (string, error) {
	symbol := strings.ToUpper(strings.TrimSpace(raw))
	if !symbolRe.MatchString(symbol) {
		return "", ErrInvalidSymbol
	}
	return symbol, nil
}

// Engine executes trades against a ledger. The clock and id source are
// injectable for tests.
type Engine struct {
	ledger *ledger.Ledger
	now    func() time.Time
	newID  func() string
}

func NewEngine(l *ledger.Ledger) *Engine {
	return &Engine{
		ledger: l,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
	}
}

// Execute validates and applies one trade, persisting the updated account
// and returning the appended trade record. Checks run in order: side,
// symbol, amounts, account existence, then funds or position. On any
// failure the ledger is untouched.
func (e *Engine) Execute(ctx context.Context, username, rawSide, rawSymbol string, quantity, price decimal.Decimal) (model.TradeRecord, error) {
	side, ok := model.ParseSide(rawSide)
	if !ok {
		return model.TradeRecord{}, ErrInvalidSide
	}
	symbol, err := NormalizeSymbol(rawSymbol)
	if err != nil {
		return model.TradeRecord{}, err
	}
	if !quantity.IsPositive() || !price.IsPositive() {
		return model.TradeRecord{}, ErrInvalidAmount
	}

	var record model.TradeRecord
	err = e.ledger.Update(ctx, func(table ledger.Table) error {
		acct, ok := table[username]
		if !ok {
			return ErrUnknownAccount
		}
		if acct.Holdings == nil {
			acct.Holdings = make(map[string]model.Holding)
		}

		var (
			holding  = acct.Holdings[symbol]
			realized = decimal.Zero
		)
		switch side {
		case model.SideBuy:
			cost := price.Mul(quantity)
			if acct.Balance.LessThan(cost) {
				return ErrInsufficientFunds
			}
			acct.Balance = acct.Balance.Sub(cost)
			holding = position.ApplyBuy(holding, quantity, price)
		case model.SideSell:
			holding, realized, err = position.ApplySell(holding, quantity, price)
			if err != nil {
				return err
			}
			acct.Balance = acct.Balance.Add(price.Mul(quantity))
		}

		if holding.Position.IsZero() {
			delete(acct.Holdings, symbol)
		} else {
			acct.Holdings[symbol] = holding
		}

		record = model.TradeRecord{
			ID:            e.newID(),
			Timestamp:     e.now(),
			Side:          side,
			Symbol:        symbol,
			Quantity:      quantity,
			Price:         price,
			BalanceAfter:  acct.Balance,
			PositionAfter: holding.Position,
			RealizedPnL:   realized,
		}
		acct.History = append([]model.TradeRecord{record}, acct.History...)
		return nil
	})
	if err != nil {
		return model.TradeRecord{}, err
	}

	slog.Info("trade executed",
		"user", username,
		"side", side,
		"symbol", symbol,
		"quantity", quantity,
		"price", price,
		"balance_after", record.BalanceAfter,
		"realized_pnl", record.RealizedPnL,
	)
	return record, nil
}

// Summary returns the balance and holdings of one account.
func (e *Engine) Summary(ctx context.Context, username string) (model.Summary, error) {
	var summary model.Summary
	err := e.ledger.View(ctx, func(table ledger.Table) error {
		acct, ok := table[username]
		if !ok {
			return ErrUnknownAccount
		}
		summary = model.Summary{
			Username: username,
			Balance:  acct.Balance,
			Holdings: make(map[string]model.Holding, len(acct.Holdings)),
		}
		for sym, h := range acct.Holdings {
			summary.Holdings[sym] = h
		}
		return nil
	})
	if err != nil {
		return model.Summary{}, err
	}
	return summary, nil
}

// History returns the account's trade records, newest first. A non-empty
// symbol restricts the result to that symbol; matching is case-insensitive
// and a symbol the account never traded yields an empty slice.
func (e *Engine) History(ctx context.Context, username, symbol string) ([]model.TradeRecord, error) {
	filter := strings.ToUpper(strings.TrimSpace(symbol))

	var records []model.TradeRecord
	err := e.ledger.View(ctx, func(table ledger.Table) error {
		acct, ok := table[username]
		if !ok {
			return ErrUnknownAccount
		}
		records = make([]model.TradeRecord, 0, len(acct.History))
		for _, rec := range acct.History {
			if filter == "" || rec.Symbol == filter {
				records = append(records, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
