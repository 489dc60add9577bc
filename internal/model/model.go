// Package model defines the core domain types shared across the paper engine.
// All monetary values use shopspring/decimal — never float64 for money.
//
// JSON field names are camelCase so the service stays compatible with the
// account files and clients of earlier deployments.
package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide normalizes a raw side string. The second return is false for
// anything other than buy or sell (any case).
func ParseSide(raw string) (Side, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy":
		return SideBuy, true
	case "sell":
		return SideSell, true
	}
	return "", false
}

// TradeRecord is an immutable record of one executed trade and the account
// state immediately after it. Once created, these are never modified or
// deleted; account history keeps them newest-first.
type TradeRecord struct {
	ID            string          `json:"id"`
	Timestamp     time.Time       `json:"timestamp"`
	Side          Side            `json:"side"`
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	BalanceAfter  decimal.Decimal `json:"balanceAfter"`
	PositionAfter decimal.Decimal `json:"positionAfter"`
	RealizedPnL   decimal.Decimal `json:"realizedPnl"` // zero for buys
}

// Holding is an aggregate position in one symbol.
type Holding struct {
	Position    decimal.Decimal `json:"position"`    // never negative
	AverageCost decimal.Decimal `json:"averageCost"` // weighted average, meaningful while Position > 0
}

// Account is one row of the ledger table: virtual cash, holdings keyed by
// symbol, and the full trade history. The username is the table key and is
// not repeated inside the persisted value.
type Account struct {
	Username     string             `json:"-"`
	PasswordHash string             `json:"passwordHash,omitempty"`
	Balance      decimal.Decimal    `json:"balance"` // never negative
	Holdings     map[string]Holding `json:"holdings"`
	History      []TradeRecord      `json:"history"` // newest first
	CreatedAt    time.Time          `json:"createdAt"`
}

// Clone returns a deep copy safe to hand out or mutate independently.
func (a *Account) Clone() *Account {
	cp := *a
	cp.Holdings = make(map[string]Holding, len(a.Holdings))
	for sym, h := range a.Holdings {
		cp.Holdings[sym] = h
	}
	cp.History = make([]TradeRecord, len(a.History))
	copy(cp.History, a.History)
	return &cp
}

// Summary is the balance-and-holdings view of an account.
type Summary struct {
	Username string             `json:"username"`
	Balance  decimal.Decimal    `json:"balance"`
	Holdings map[string]Holding `json:"holdings"`
}
