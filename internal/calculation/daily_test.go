package calculation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/quantbr/indice/internal/contracts"
	"github.com/quantbr/indice/pkg/logger"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func snapshotFrom(date time.Time, positions ...contracts.AssetPosition) contracts.CompositionSnapshot {
	s := contracts.NewCompositionSnapshot(date)
	for _, pos := range positions {
		s.Positions[pos.Ticker] = pos
	}
	return s
}

func position(ticker string, weight float64, price, entryPrice string, entryDate time.Time) contracts.AssetPosition {
	return contracts.AssetPosition{
		Ticker:     ticker,
		Weight:     weight,
		Price:      decimal.RequireFromString(price),
		EntryPrice: decimal.RequireFromString(entryPrice),
		EntryDate:  entryDate,
	}
}

// First computed day of a real 10-stock equal-weight index: every position is
// a fresh entry, BBAS3 pays a cash dividend the same day.
func TestComputeDailyPoint_FirstDayWithDividend(t *testing.T) {
	calc := New(logger.NewNop())

	entry := day(2025, time.July, 7)
	today := day(2025, time.July, 8)

	snapshot := snapshotFrom(today,
		position("BAZA3", 0.10, "74.98", "74.51", entry),
		position("BBAS3", 0.10, "22.56", "22.26", entry),
		position("BLAU3", 0.10, "13.03", "13.13", entry),
		position("BNBR3", 0.10, "107.50", "106.00", entry),
		position("EMAE4", 0.10, "36.82", "37.09", entry),
		position("EUCA4", 0.10, "17.08", "17.39", entry),
		position("PETR3", 0.10, "33.77", "33.59", entry),
		position("RECV3", 0.10, "10.65", "10.50", entry),
		position("VTRU3", 0.10, "14.30", "13.77", entry),
		position("SAPR11", 0.10, "38.53", "36.50", entry),
	)
	dividends := map[string]decimal.Decimal{
		"BBAS3": decimal.RequireFromString("0.071927"),
	}

	creation := contracts.DailyIndexPoint{
		Date:     entry,
		Points:   contracts.BaseIndexPoints,
		Snapshot: contracts.NewCompositionSnapshot(entry),
	}

	point := calc.ComputeDailyPoint(&creation, snapshot, dividends)

	assert.InDelta(t, 1.1820, point.DailyChange, 1e-3)
	assert.InDelta(t, 101.1820, point.Points, 1e-3)
	assert.Equal(t, today, point.Date)
	assert.Len(t, point.Snapshot.Positions, 10)
}

// Without the dividend added back, the same day computes a lower change. The
// difference must be exactly the dividend's weighted contribution.
func TestComputeDailyPoint_DividendAddsBack(t *testing.T) {
	calc := New(logger.NewNop())

	entry := day(2025, time.July, 7)
	today := day(2025, time.July, 8)

	snapshot := snapshotFrom(today,
		position("BBAS3", 1.0, "22.56", "22.26", entry),
	)

	withDividend := calc.ComputeDailyPoint(nil, snapshot, map[string]decimal.Decimal{
		"BBAS3": decimal.RequireFromString("0.071927"),
	})
	withoutDividend := calc.ComputeDailyPoint(nil, snapshot, nil)

	// 0.071927 / 22.26 of extra return, in percent.
	assert.InDelta(t, 100*0.071927/22.26, withDividend.DailyChange-withoutDividend.DailyChange, 1e-6)
	assert.Greater(t, withDividend.Points, withoutDividend.Points)
}

func TestComputeDailyPoint_CarriesPreviousWeights(t *testing.T) {
	calc := New(logger.NewNop())

	entry := day(2025, time.March, 3)
	yesterday := day(2025, time.March, 10)
	today := day(2025, time.March, 11)

	previous := contracts.DailyIndexPoint{
		Date:   yesterday,
		Points: 105.0,
		Snapshot: snapshotFrom(yesterday,
			position("PETR3", 0.60, "30.00", "28.00", entry),
			position("VALE3", 0.40, "60.00", "61.00", entry),
		),
	}

	// Today's snapshot carries different target weights; they must be
	// ignored in favor of yesterday's realized weights.
	snapshot := snapshotFrom(today,
		position("PETR3", 0.50, "33.00", "28.00", entry),
		position("VALE3", 0.50, "57.00", "61.00", entry),
	)

	point := calc.ComputeDailyPoint(&previous, snapshot, nil)

	// PETR3: +10% at weight 0.60, VALE3: -5% at weight 0.40.
	wantChange := 100 * (0.60*0.10 + 0.40*-0.05)
	assert.InDelta(t, wantChange, point.DailyChange, 1e-9)
	assert.InDelta(t, 105.0*(1+wantChange/100), point.Points, 1e-9)
}

func TestComputeDailyPoint_FreshEntryUsesEntryPrice(t *testing.T) {
	calc := New(logger.NewNop())

	yesterday := day(2025, time.March, 10)
	today := day(2025, time.March, 11)

	previous := contracts.DailyIndexPoint{
		Date:   yesterday,
		Points: 110.0,
		Snapshot: snapshotFrom(yesterday,
			position("PETR3", 1.0, "30.00", "28.00", day(2025, time.March, 3)),
		),
	}

	// WEGE3 entered yesterday at 40.00 and closes today at 42.00.
	snapshot := snapshotFrom(today,
		position("PETR3", 0.50, "30.00", "28.00", day(2025, time.March, 3)),
		position("WEGE3", 0.50, "42.00", "40.00", yesterday),
	)

	point := calc.ComputeDailyPoint(&previous, snapshot, nil)

	// PETR3 carries at its previous weight 1.0 with zero return; WEGE3
	// contributes +5% at today's weight 0.50.
	wantChange := 100 * (1.0*0.0 + 0.50*0.05)
	assert.InDelta(t, wantChange, point.DailyChange, 1e-9)
}

// A ticker re-entering after a gap longer than one day must not invent a
// retroactive return; it contributes zero today.
func TestComputeDailyPoint_ReEntryAfterGapContributesZero(t *testing.T) {
	calc := New(logger.NewNop())

	yesterday := day(2025, time.March, 10)
	today := day(2025, time.March, 11)

	previous := contracts.DailyIndexPoint{
		Date:   yesterday,
		Points: 100.0,
		Snapshot: snapshotFrom(yesterday,
			position("PETR3", 1.0, "30.00", "28.00", day(2025, time.March, 3)),
		),
	}

	// ITUB4's entry data is stale: it left the index a week ago.
	snapshot := snapshotFrom(today,
		position("PETR3", 0.50, "33.00", "28.00", day(2025, time.March, 3)),
		position("ITUB4", 0.50, "25.00", "24.00", day(2025, time.March, 3)),
	)

	point := calc.ComputeDailyPoint(&previous, snapshot, nil)

	// Only PETR3's +10% at carried weight 1.0 counts.
	assert.InDelta(t, 10.0, point.DailyChange, 1e-9)
}

func TestComputeDailyPoint_NoPreviousStartsAtBase(t *testing.T) {
	calc := New(logger.NewNop())

	today := day(2025, time.March, 11)
	snapshot := snapshotFrom(today,
		position("PETR3", 1.0, "30.80", "28.00", day(2025, time.March, 10)),
	)

	point := calc.ComputeDailyPoint(nil, snapshot, nil)

	assert.InDelta(t, 10.0, point.DailyChange, 1e-9)
	assert.InDelta(t, 110.0, point.Points, 1e-9)
}

func TestComputeDailyPoint_EmptySnapshotHoldsLevel(t *testing.T) {
	calc := New(logger.NewNop())

	previous := contracts.DailyIndexPoint{
		Date:     day(2025, time.March, 10),
		Points:   123.45,
		Snapshot: contracts.NewCompositionSnapshot(day(2025, time.March, 10)),
	}

	point := calc.ComputeDailyPoint(&previous, contracts.NewCompositionSnapshot(day(2025, time.March, 11)), nil)

	assert.Zero(t, point.DailyChange)
	assert.InDelta(t, 123.45, point.Points, 1e-9)
}

func TestComputeDailyPoint_ZeroPreviousPriceSkipped(t *testing.T) {
	calc := New(logger.NewNop())

	yesterday := day(2025, time.March, 10)
	today := day(2025, time.March, 11)

	previous := contracts.DailyIndexPoint{
		Date:   yesterday,
		Points: 100.0,
		Snapshot: snapshotFrom(yesterday,
			position("XXXX3", 1.0, "0", "0", day(2025, time.March, 3)),
		),
	}

	snapshot := snapshotFrom(today,
		position("XXXX3", 1.0, "10.00", "0", day(2025, time.March, 3)),
	)

	point := calc.ComputeDailyPoint(&previous, snapshot, nil)

	assert.Zero(t, point.DailyChange)
	assert.InDelta(t, 100.0, point.Points, 1e-9)
}

// Points(t) = Points(t-1) * (1 + change/100) must hold across a chained
// sequence of days.
func TestComputeDailyPoint_LevelRecurrence(t *testing.T) {
	calc := New(logger.NewNop())

	entry := day(2025, time.June, 2)
	prices := []string{"10.00", "10.50", "10.29", "11.00"}

	var previous *contracts.DailyIndexPoint
	level := contracts.BaseIndexPoints

	for i, price := range prices {
		date := entry.AddDate(0, 0, i+1)
		snapshot := snapshotFrom(date, position("PRIO3", 1.0, price, "10.00", entry))

		point := calc.ComputeDailyPoint(previous, snapshot, nil)
		assert.InDelta(t, level*(1+point.DailyChange/100), point.Points, 1e-9)

		level = point.Points
		previous = &point
	}
}
