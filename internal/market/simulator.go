// Package market simulates commodity prices. Each symbol follows a
// geometric random walk: every tick the price moves by a drift term plus
// Gaussian noise scaled by the symbol's volatility. Prices are quoted to
// two decimal places and never fall below MinPrice.
package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/commodex/paper-engine/internal/metrics"
)

// ErrUnknownSymbol is returned for symbols the simulator does not quote.
var ErrUnknownSymbol = errors.New("market: unknown symbol")

// MinPrice is the floor a simulated price can never cross.
var MinPrice = decimal.NewFromFloat(0.01)

// SymbolConfig describes one simulated instrument.
type SymbolConfig struct {
	Symbol     string
	Name       string
	StartPrice decimal.Decimal
	Volatility float64 // per-tick standard deviation of the relative move
	Drift      float64 // per-tick deterministic relative move
}

// DefaultSymbols is the built-in commodity catalog used when no symbols
// file is configured.
func DefaultSymbols() []SymbolConfig {
	return []SymbolConfig{
		{Symbol: "HOG", Name: "Lean Hogs", StartPrice: decimal.NewFromInt(120), Volatility: 0.004, Drift: 0.0001},
		{Symbol: "CORN", Name: "Corn", StartPrice: decimal.NewFromInt(450), Volatility: 0.003, Drift: 0.0001},
		{Symbol: "WTI", Name: "Crude Oil WTI", StartPrice: decimal.NewFromInt(78), Volatility: 0.006, Drift: 0.0002},
		{Symbol: "GOLD", Name: "Gold", StartPrice: decimal.NewFromInt(2400), Volatility: 0.002, Drift: 0.0001},
		{Symbol: "COPPER", Name: "Copper", StartPrice: decimal.NewFromFloat(4.55), Volatility: 0.005, Drift: 0.0002},
	}
}

// PricePoint is one entry of a symbol's retained price history.
type PricePoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
}

// Quote is the current state of one symbol. ChangePct is the percentage
// move since the oldest retained price point.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	ChangePct decimal.Decimal `json:"changePct"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type symbolState struct {
	cfg     SymbolConfig
	price   decimal.Decimal
	history []PricePoint
}

// Simulator advances all symbols on a fixed interval and keeps a bounded
// price history per symbol. Reads are safe concurrently with ticks.
type Simulator struct {
	mu          sync.RWMutex
	interval    time.Duration
	historySize int
	order       []string
	state       map[string]*symbolState
	noise       distuv.Normal
	onTick      func(Quote)
	now         func() time.Time
}

// NewSimulator builds a simulator over the given catalog. A zero seed
// derives one from the clock; any other value makes the walk fully
// deterministic, which tests rely on.
func NewSimulator(symbols []SymbolConfig, interval time.Duration, historySize int, seed uint64) *Simulator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	s := &Simulator{
		interval:    interval,
		historySize: historySize,
		order:       make([]string, 0, len(symbols)),
		state:       make(map[string]*symbolState, len(symbols)),
		noise:       distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(seed, seed>>1)},
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, cfg := range symbols {
		symbol := strings.ToUpper(strings.TrimSpace(cfg.Symbol))
		cfg.Symbol = symbol
		price := cfg.StartPrice.Round(2)
		s.order = append(s.order, symbol)
		s.state[symbol] = &symbolState{
			cfg:     cfg,
			price:   price,
			history: []PricePoint{{Timestamp: s.now(), Price: price}},
		}
	}
	return s
}

// OnTick registers a callback invoked with every fresh quote after a step.
// Must be set before Run.
func (s *Simulator) OnTick(fn func(Quote)) {
	s.onTick = fn
}

// Run advances prices on the configured interval until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	slog.Info("price simulator started", "symbols", len(s.order), "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("price simulator stopped")
			return
		case <-ticker.C:
			for _, q := range s.Step() {
				if s.onTick != nil {
					s.onTick(q)
				}
			}
		}
	}
}

// Step advances every symbol by one tick and returns the new quotes in
// catalog order.
func (s *Simulator) Step() []Quote {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	quotes := make([]Quote, 0, len(s.order))
	for _, symbol := range s.order {
		st := s.state[symbol]

		step := st.cfg.Drift + st.cfg.Volatility*s.noise.Rand()
		next := st.price.Mul(decimal.NewFromFloat(1 + step)).Round(2)
		if next.LessThan(MinPrice) {
			next = MinPrice
		}
		st.price = next
		st.history = append(st.history, PricePoint{Timestamp: now, Price: next})
		if len(st.history) > s.historySize {
			st.history = st.history[len(st.history)-s.historySize:]
		}
		metrics.PriceTicks.Inc()
		quotes = append(quotes, s.quoteLocked(st, now))
	}
	return quotes
}

// quoteLocked builds a quote from state. Callers hold at least a read lock.
func (s *Simulator) quoteLocked(st *symbolState, at time.Time) Quote {
	base := st.history[0].Price
	changePct := decimal.Zero
	if !base.IsZero() {
		changePct = st.price.Sub(base).Div(base).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return Quote{
		Symbol:    st.cfg.Symbol,
		Name:      st.cfg.Name,
		Price:     st.price,
		ChangePct: changePct,
		UpdatedAt: at,
	}
}

// Quote returns the current quote for one symbol. Lookup is
// case-insensitive.
func (s *Simulator) Quote(symbol string) (Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.state[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return s.quoteLocked(st, st.history[len(st.history)-1].Timestamp), nil
}

// Quotes returns current quotes for the whole catalog in catalog order.
func (s *Simulator) Quotes() []Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()

	quotes := make([]Quote, 0, len(s.order))
	for _, symbol := range s.order {
		st := s.state[symbol]
		quotes = append(quotes, s.quoteLocked(st, st.history[len(st.history)-1].Timestamp))
	}
	return quotes
}

// HistoryOf returns a copy of the retained price history for one symbol,
// oldest first.
func (s *Simulator) HistoryOf(symbol string) ([]PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.state[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	points := make([]PricePoint, len(st.history))
	copy(points, st.history)
	return points, nil
}
