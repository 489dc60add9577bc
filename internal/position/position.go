// Package position implements the pure holding arithmetic for the engine:
// weighted-average cost on buys, realized profit-and-loss on sells.
//
// Buying q units at price p moves a holding with position n and average
// cost a to:
//
//	position    = n + q
//	averageCost = (a*n + p*q) / (n + q)
//
// Selling q units realizes (p - a) * q and leaves the average cost
// untouched; the remaining position keeps its cost basis. Both the new
// average cost and the realized amount are rounded to CostScale decimal
// places at the point of computation, matching the stored account files.
//
// The package is stateless and does no validation beyond the position
// check on sells: callers pass positive quantities and prices.
package position

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/commodex/paper-engine/internal/model"
)

// ErrInsufficientPosition is returned by ApplySell when the sell quantity
// exceeds the held position.
var ErrInsufficientPosition = errors.New("position: sell quantity exceeds held position")

// CostScale is the number of decimal places average cost and realized PnL
// are rounded to. Exposed for tests.
var CostScale int32 = 2

// --- Buy side ---

// ApplyBuy folds a purchase of quantity units at price into h and returns
// the updated holding. A zero-value Holding is a valid starting point.
func ApplyBuy(h model.Holding, quantity, price decimal.Decimal) model.Holding {
	newPosition := h.Position.Add(quantity)
	totalCost := h.AverageCost.Mul(h.Position).Add(price.Mul(quantity))
	return model.Holding{
		Position:    newPosition,
		AverageCost: totalCost.Div(newPosition).Round(CostScale),
	}
}

// --- Sell side ---

// ApplySell removes quantity units sold at price from h. It returns the
// updated holding and the realized PnL against the average cost. When the
// position reaches exactly zero the holding resets entirely, so a later
// buy starts from a fresh cost basis.
func ApplySell(h model.Holding, quantity, price decimal.Decimal) (model.Holding, decimal.Decimal, error) {
	if h.Position.LessThan(quantity) {
		return h, decimal.Zero, ErrInsufficientPosition
	}
	realized := price.Sub(h.AverageCost).Mul(quantity).Round(CostScale)
	remaining := h.Position.Sub(quantity)
	if remaining.IsZero() {
		return model.Holding{Position: decimal.Zero, AverageCost: decimal.Zero}, realized, nil
	}
	return model.Holding{Position: remaining, AverageCost: h.AverageCost}, realized, nil
}

// --- Valuation ---

// MarketValue is the current worth of a holding at the given price.
func MarketValue(h model.Holding, price decimal.Decimal) decimal.Decimal {
	return h.Position.Mul(price)
}

// UnrealizedPnL is the gain or loss if the whole holding were closed at the
// given price, rounded to CostScale.
func UnrealizedPnL(h model.Holding, price decimal.Decimal) decimal.Decimal {
	return price.Sub(h.AverageCost).Mul(h.Position).Round(CostScale)
}
