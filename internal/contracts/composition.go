package contracts

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// WeightTolerance is the accepted deviation of a snapshot's total weight from 1.0.
const WeightTolerance = 1e-4

// AssetPosition is one held asset inside a composition.
// EntryPrice/EntryDate are fixed at first inclusion and never change while the
// position is held continuously.
type AssetPosition struct {
	Ticker     string          `json:"ticker"`
	Weight     float64         `json:"weight"`
	Price      decimal.Decimal `json:"price"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	EntryDate  time.Time       `json:"entry_date"`
}

// CompositionSnapshot is the set of held tickers with weights/prices as of one
// specific date. Snapshots embedded in history points are immutable; only the
// live composition is ever replaced (never mutated in place).
type CompositionSnapshot struct {
	Date      time.Time                `json:"date"`
	Positions map[string]AssetPosition `json:"positions"`
}

// NewCompositionSnapshot creates an empty snapshot for a date.
func NewCompositionSnapshot(date time.Time) CompositionSnapshot {
	return CompositionSnapshot{
		Date:      date,
		Positions: make(map[string]AssetPosition),
	}
}

// IsEmpty reports whether the snapshot holds no positions.
func (s CompositionSnapshot) IsEmpty() bool {
	return len(s.Positions) == 0
}

// TotalWeight returns the sum of all position weights.
func (s CompositionSnapshot) TotalWeight() float64 {
	total := 0.0
	for _, pos := range s.Positions {
		total += pos.Weight
	}
	return total
}

// IsNormalized checks the sum(weight) ≈ 1.0 invariant for non-empty snapshots.
func (s CompositionSnapshot) IsNormalized() bool {
	if s.IsEmpty() {
		return true
	}
	return math.Abs(s.TotalWeight()-1.0) <= WeightTolerance
}

// Tickers returns the held tickers in no particular order.
func (s CompositionSnapshot) Tickers() []string {
	tickers := make([]string, 0, len(s.Positions))
	for ticker := range s.Positions {
		tickers = append(tickers, ticker)
	}
	return tickers
}

// DailyIndexPoint is one computed index level for one trading day.
// Invariant: Points(t) = Points(t-1) * (1 + DailyChange(t)/100), with
// Points(creation date) = 100. The creation-date point carries an empty
// snapshot; composition bookkeeping begins with the first computed point.
type DailyIndexPoint struct {
	Date        time.Time                  `json:"date"`
	Points      float64                    `json:"points"`
	DailyChange float64                    `json:"daily_change"` // percent
	Snapshot    CompositionSnapshot        `json:"composition_snapshot"`
	Dividends   map[string]decimal.Decimal `json:"dividends_by_ticker"`
}

// BaseIndexPoints is the level assigned on an index's creation date.
const BaseIndexPoints = 100.0
