// Package insight produces canned market commentary for each quoted
// symbol. The text is assembled from template pools driven by recent price
// behavior and a seeded random source; it is flavor for the demo UI, not
// financial analysis.
package insight

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/commodex/paper-engine/internal/market"
)

// Suggestion values an insight can carry.
const (
	SuggestBuy  = "buy"
	SuggestHold = "hold"
	SuggestSell = "sell"
)

// Insight is one generated commentary entry.
type Insight struct {
	Symbol      string    `json:"symbol"`
	Headline    string    `json:"headline"`
	Narrative   string    `json:"narrative"`
	Suggestion  string    `json:"suggestion"`
	Confidence  int       `json:"confidence"` // 55..95
	GeneratedAt time.Time `json:"generatedAt"`
}

// QuoteSource is the slice of the simulator the generator needs.
type QuoteSource interface {
	Quotes() []market.Quote
	HistoryOf(symbol string) ([]market.PricePoint, error)
}

// Generator keeps the latest insight per symbol and rebuilds the whole set
// on demand, typically from a cron schedule.
type Generator struct {
	mu      sync.RWMutex
	source  QuoteSource
	rng     *rand.Rand
	current map[string]Insight
	now     func() time.Time
}

// NewGenerator builds a generator. A zero seed derives one from the clock.
func NewGenerator(source QuoteSource, seed uint64) *Generator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Generator{
		source:  source,
		rng:     rand.New(rand.NewPCG(seed, seed>>1)),
		current: make(map[string]Insight),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RefreshAll regenerates insights for every quoted symbol. The whole
// rebuild runs under the write lock; the rng is not safe for concurrent
// use.
func (g *Generator) RefreshAll() {
	g.mu.Lock()
	defer g.mu.Unlock()

	quotes := g.source.Quotes()
	next := make(map[string]Insight, len(quotes))
	for _, q := range quotes {
		next[q.Symbol] = g.build(q)
	}
	g.current = next
	slog.Info("insights refreshed", "symbols", len(next))
}

func (g *Generator) build(q market.Quote) Insight {
	tr := trendOf(q)

	meanPrice := q.Price.InexactFloat64()
	if points, err := g.source.HistoryOf(q.Symbol); err == nil && len(points) > 0 {
		prices := make([]float64, len(points))
		for i, p := range points {
			prices[i] = p.Price.InexactFloat64()
		}
		meanPrice = stat.Mean(prices, nil)
	}

	// Down-trend templates phrase the move as a decline, so they take the
	// magnitude rather than the signed value.
	change := q.ChangePct.InexactFloat64()
	if tr == trendDown {
		change = q.ChangePct.Abs().InexactFloat64()
	}

	return Insight{
		Symbol:      q.Symbol,
		Headline:    fmt.Sprintf(pick(g.rng, headlines[tr]), q.Name),
		Narrative:   fmt.Sprintf(pick(g.rng, narratives[tr]), q.Name, change, meanPrice),
		Suggestion:  pick(g.rng, suggestions[tr]),
		Confidence:  55 + g.rng.IntN(41),
		GeneratedAt: g.now(),
	}
}

// All returns the current insights sorted by symbol.
func (g *Generator) All() []Insight {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Insight, 0, len(g.current))
	for _, ins := range g.current {
		out = append(out, ins)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// For returns the current insight for one symbol, if any.
func (g *Generator) For(symbol string) (Insight, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ins, ok := g.current[strings.ToUpper(strings.TrimSpace(symbol))]
	return ins, ok
}

// --- Template pools ---

type trend int

const (
	trendDown trend = iota
	trendFlat
	trendUp
)

// trendOf buckets a quote by its move over the retained window. Moves
// inside ±0.1% count as flat.
func trendOf(q market.Quote) trend {
	flatBand := decimal.NewFromFloat(0.1)
	switch {
	case q.ChangePct.GreaterThan(flatBand):
		return trendUp
	case q.ChangePct.LessThan(flatBand.Neg()):
		return trendDown
	default:
		return trendFlat
	}
}

func pick(rng *rand.Rand, pool []string) string {
	return pool[rng.IntN(len(pool))]
}

// Narrative templates take (name, window move %, window average price).
var (
	headlines = map[trend][]string{
		trendUp: {
			"%s extends its climb",
			"%s pushes higher on steady demand",
			"Buyers stay in control of %s",
		},
		trendFlat: {
			"%s drifts sideways",
			"%s holds its range",
			"Quiet session for %s",
		},
		trendDown: {
			"%s slips as sellers press",
			"%s under pressure",
			"Soft patch continues for %s",
		},
	}

	narratives = map[trend][]string{
		trendUp: {
			"%[1]s is up %[2].2f%% over the recent window, trading above its average of %[3].2f. Momentum favors the upside while the level holds.",
			"With a %[2].2f%% gain on the window, %[1]s is outpacing its recent average of %[3].2f. Pullbacks have been shallow so far.",
		},
		trendFlat: {
			"%[1]s has moved %[2].2f%% over the recent window, hugging its average near %[3].2f. No clear direction until the range breaks.",
			"%[1]s is tracking at %[2].2f%% against a window average of %[3].2f. Positioning looks balanced for now.",
		},
		trendDown: {
			"%[1]s is down %[2].2f%% over the recent window, below its average of %[3].2f. The tape stays heavy until supply clears.",
			"A %[2].2f%% decline puts %[1]s under its window average of %[3].2f. Watch for stabilization before stepping in.",
		},
	}

	suggestions = map[trend][]string{
		trendUp:   {SuggestBuy, SuggestBuy, SuggestHold},
		trendFlat: {SuggestHold, SuggestHold, SuggestBuy},
		trendDown: {SuggestSell, SuggestHold, SuggestSell},
	}
)
