package calculation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantbr/indice/internal/contracts"
	"github.com/quantbr/indice/pkg/logger"
)

// Calculator computes one DailyIndexPoint from the previous point, today's
// composition snapshot and today's cash dividends.
//
// Weights are carried from the previous day's realized snapshot, not today's
// target weights: the return must reflect what was actually held overnight,
// or a rebalancing effect would be smuggled into a day no rebalance happened.
// The single exception is a fresh entry, which has no previous realized
// weight to carry.
type Calculator struct {
	logger *logger.Logger
}

// New creates a daily return calculator.
func New(log *logger.Logger) *Calculator {
	return &Calculator{logger: log}
}

// ComputeDailyPoint runs the total-return accounting for one index day.
// Dividends are added back to the day's price, so cash paid out is treated
// as value retained instead of a loss.
func (c *Calculator) ComputeDailyPoint(
	previous *contracts.DailyIndexPoint,
	todaySnapshot contracts.CompositionSnapshot,
	todayDividends map[string]decimal.Decimal,
) contracts.DailyIndexPoint {
	var totalContribution float64

	for ticker, pos := range todaySnapshot.Positions {
		dividend := decimal.Zero
		if d, ok := todayDividends[ticker]; ok {
			dividend = d
		}
		adjPrice := pos.Price.Add(dividend)

		assetReturn, usedWeight, ok := c.assetReturn(previous, todaySnapshot.Date, ticker, pos, adjPrice)
		if !ok {
			continue
		}

		totalContribution += usedWeight * assetReturn
	}

	dailyChange := 100 * totalContribution

	previousPoints := contracts.BaseIndexPoints
	if previous != nil {
		previousPoints = previous.Points
	}

	point := contracts.DailyIndexPoint{
		Date:        todaySnapshot.Date,
		Points:      previousPoints * (1 + dailyChange/100),
		DailyChange: dailyChange,
		Snapshot:    todaySnapshot,
		Dividends:   todayDividends,
	}

	c.logger.WithFields(map[string]interface{}{
		"date":         point.Date.Format("2006-01-02"),
		"points":       point.Points,
		"daily_change": point.DailyChange,
		"positions":    len(todaySnapshot.Positions),
	}).Debug("Daily point computed")

	return point
}

// assetReturn resolves one ticker's return and the weight it contributes at.
// The third result is false when the ticker contributes nothing today.
func (c *Calculator) assetReturn(
	previous *contracts.DailyIndexPoint,
	date time.Time,
	ticker string,
	pos contracts.AssetPosition,
	adjPrice decimal.Decimal,
) (float64, float64, bool) {
	// Carry case: the ticker was held yesterday with a realized weight.
	if previous != nil && !previous.Snapshot.IsEmpty() {
		if prev, ok := previous.Snapshot.Positions[ticker]; ok {
			if prev.Price.IsZero() {
				return 0, 0, false
			}
			return adjPrice.Div(prev.Price).InexactFloat64() - 1, prev.Weight, true
		}
	}

	// Entry case: absent from the previous snapshot, or the previous
	// snapshot itself is empty (the very first calculated day).
	daysSinceEntry := int(date.Sub(pos.EntryDate).Hours() / 24)
	if daysSinceEntry <= 1 {
		if pos.EntryPrice.IsZero() {
			return 0, 0, false
		}
		return adjPrice.Div(pos.EntryPrice).InexactFloat64() - 1, pos.Weight, true
	}

	// Re-entry after a gap: no retroactive return is invented; the ticker
	// contributes zero today and resumes carry tomorrow.
	return 0, 0, false
}
