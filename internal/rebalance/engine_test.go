package rebalance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbr/indice/internal/contracts"
	"github.com/quantbr/indice/internal/methodology"
	"github.com/quantbr/indice/pkg/logger"
)

func testConfig(topN int, threshold float64, checkQuality bool) methodology.Config {
	return methodology.Config{
		Selection: methodology.SelectionRule{
			OrderBy:        methodology.OrderByOverallScore,
			OrderDirection: methodology.OrderDesc,
			TopN:           topN,
		},
		Rebalance: methodology.RebalanceRule{
			Threshold:    threshold,
			CheckQuality: checkQuality,
		},
	}
}

func held(tickers ...string) contracts.CompositionSnapshot {
	s := contracts.NewCompositionSnapshot(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC))
	for _, ticker := range tickers {
		s.Positions[ticker] = contracts.AssetPosition{Ticker: ticker, Weight: 1.0 / float64(len(tickers))}
	}
	return s
}

func idealMember(ticker string, score float64) contracts.Candidate {
	return contracts.Candidate{Ticker: ticker, OverallScore: &score}
}

func TestDecide_NoChangesWhenIdealMatchesCurrent(t *testing.T) {
	engine := New(testConfig(2, 5.0, true), logger.NewNop())

	decisions := engine.Decide(held("PETR3", "VALE3"), []contracts.Candidate{
		idealMember("PETR3", 90),
		idealMember("VALE3", 85),
	})

	assert.Empty(t, decisions)
}

// A challenger whose advantage over the weakest incumbent does not exceed the
// threshold must not trigger a swap.
func TestDecide_HysteresisBlocksMarginalSwap(t *testing.T) {
	engine := New(testConfig(2, 5.0, false), logger.NewNop())

	decisions := engine.Decide(held("PETR3", "VALE3"), []contracts.Candidate{
		idealMember("WEGE3", 88), // only 3 above VALE3's 85
		idealMember("PETR3", 90),
		idealMember("VALE3", 85),
	})

	assert.Empty(t, decisions)
}

func TestDecide_SwapAboveThreshold(t *testing.T) {
	engine := New(testConfig(2, 5.0, false), logger.NewNop())

	decisions := engine.Decide(held("PETR3", "VALE3"), []contracts.Candidate{
		idealMember("WEGE3", 95), // 10 above VALE3's 85
		idealMember("PETR3", 90),
		idealMember("VALE3", 85),
	})

	require.Len(t, decisions, 2)
	assert.Equal(t, contracts.ActionExit, decisions[0].Action)
	assert.Equal(t, "VALE3", decisions[0].Ticker)
	assert.Equal(t, contracts.ActionEntry, decisions[1].Action)
	assert.Equal(t, "WEGE3", decisions[1].Ticker)
}

func ascUpsideConfig(topN int, threshold float64) methodology.Config {
	cfg := testConfig(topN, threshold, false)
	cfg.Selection.OrderBy = methodology.OrderByUpside
	cfg.Selection.OrderDirection = methodology.OrderAsc
	return cfg
}

func upsideMember(ticker string, upside float64) contracts.Candidate {
	return contracts.Candidate{Ticker: ticker, Upside: upside}
}

// Under ascending order a lower rank value is stronger: a challenger with a
// much larger value must never displace an incumbent that ranks ahead of it.
func TestDecide_AscendingOrderKeepsStrongerIncumbent(t *testing.T) {
	engine := New(ascUpsideConfig(1, 5.0), logger.NewNop())

	decisions := engine.Decide(held("PETR3"), []contracts.Candidate{
		upsideMember("PETR3", 1.0),
		upsideMember("WEGE3", 50.0),
	})

	assert.Empty(t, decisions)
}

func TestDecide_AscendingOrderSwapsInLowerValue(t *testing.T) {
	engine := New(ascUpsideConfig(1, 5.0), logger.NewNop())

	decisions := engine.Decide(held("PETR3"), []contracts.Candidate{
		upsideMember("PETR3", 50.0),
		upsideMember("WEGE3", 1.0),
	})

	require.Len(t, decisions, 2)
	assert.Equal(t, contracts.ActionExit, decisions[0].Action)
	assert.Equal(t, "PETR3", decisions[0].Ticker)
	assert.Equal(t, contracts.ActionEntry, decisions[1].Action)
	assert.Equal(t, "WEGE3", decisions[1].Ticker)
}

// The weakest incumbent under ascending order is the one with the highest
// raw value, not the lowest.
func TestDecide_AscendingOrderDisplacesHighestValueIncumbent(t *testing.T) {
	engine := New(ascUpsideConfig(2, 5.0), logger.NewNop())

	decisions := engine.Decide(held("AAAA3", "BBBB3"), []contracts.Candidate{
		upsideMember("AAAA3", 10.0),
		upsideMember("BBBB3", 40.0),
		upsideMember("CCCC3", 2.0),
	})

	require.Len(t, decisions, 2)
	assert.Equal(t, contracts.ActionExit, decisions[0].Action)
	assert.Equal(t, "BBBB3", decisions[0].Ticker)
	assert.Equal(t, contracts.ActionEntry, decisions[1].Action)
	assert.Equal(t, "CCCC3", decisions[1].Ticker)
}

func TestDecide_QualityExitEvenWithoutChallenger(t *testing.T) {
	engine := New(testConfig(2, 5.0, true), logger.NewNop())

	// ITUB4 no longer passes the screen and has no replacement.
	decisions := engine.Decide(held("PETR3", "ITUB4"), []contracts.Candidate{
		idealMember("PETR3", 90),
	})

	require.Len(t, decisions, 1)
	assert.Equal(t, contracts.ActionExit, decisions[0].Action)
	assert.Equal(t, "ITUB4", decisions[0].Ticker)
}

func TestDecide_VacantSlotAdmitsWithoutThreshold(t *testing.T) {
	engine := New(testConfig(3, 50.0, false), logger.NewNop())

	// Only two of three slots are filled: the challenger enters even with a
	// huge threshold configured.
	decisions := engine.Decide(held("PETR3", "VALE3"), []contracts.Candidate{
		idealMember("PETR3", 90),
		idealMember("VALE3", 85),
		idealMember("WEGE3", 60),
	})

	require.Len(t, decisions, 1)
	assert.Equal(t, contracts.ActionEntry, decisions[0].Action)
	assert.Equal(t, "WEGE3", decisions[0].Ticker)
	assert.Equal(t, "vacant composition slot", decisions[0].Reason)
}

func TestDecide_QualityExitFreesSlotForChallenger(t *testing.T) {
	engine := New(testConfig(2, 5.0, true), logger.NewNop())

	decisions := engine.Decide(held("PETR3", "ITUB4"), []contracts.Candidate{
		idealMember("PETR3", 90),
		idealMember("WEGE3", 70),
	})

	require.Len(t, decisions, 2)
	// Exits always precede entries.
	assert.Equal(t, contracts.ActionExit, decisions[0].Action)
	assert.Equal(t, "ITUB4", decisions[0].Ticker)
	assert.Equal(t, contracts.ActionEntry, decisions[1].Action)
	assert.Equal(t, "WEGE3", decisions[1].Ticker)
}

// With quality checks off, an incumbent the screen no longer ranks cannot be
// displaced by a blind comparison.
func TestDecide_UnrankedIncumbentKeptWhenQualityOff(t *testing.T) {
	engine := New(testConfig(2, 5.0, false), logger.NewNop())

	decisions := engine.Decide(held("PETR3", "ITUB4"), []contracts.Candidate{
		idealMember("WEGE3", 99),
		idealMember("PETR3", 90),
	})

	// ITUB4 is unranked and safe; PETR3 at 90 is the only displaceable
	// incumbent, and WEGE3's advantage of 9 exceeds the threshold.
	require.Len(t, decisions, 2)
	assert.Equal(t, contracts.ActionExit, decisions[0].Action)
	assert.Equal(t, "PETR3", decisions[0].Ticker)
	assert.Equal(t, contracts.ActionEntry, decisions[1].Action)
	assert.Equal(t, "WEGE3", decisions[1].Ticker)
}

func TestDecide_MultipleSwapsConsumeWeakestFirst(t *testing.T) {
	engine := New(testConfig(3, 2.0, false), logger.NewNop())

	decisions := engine.Decide(held("AAAA3", "BBBB3", "CCCC3"), []contracts.Candidate{
		idealMember("XXXX3", 95),
		idealMember("YYYY3", 80),
		idealMember("AAAA3", 75),
		idealMember("BBBB3", 60),
		idealMember("CCCC3", 50),
	})

	// XXXX3 (95) displaces CCCC3 (50); YYYY3 (80) displaces BBBB3 (60).
	require.Len(t, decisions, 4)
	assert.Equal(t, "CCCC3", decisions[0].Ticker)
	assert.Equal(t, "BBBB3", decisions[1].Ticker)
	assert.Equal(t, "XXXX3", decisions[2].Ticker)
	assert.Equal(t, "YYYY3", decisions[3].Ticker)
}

func TestDecide_EmptyCurrentFillsAllSlots(t *testing.T) {
	engine := New(testConfig(2, 5.0, true), logger.NewNop())

	decisions := engine.Decide(held(), []contracts.Candidate{
		idealMember("PETR3", 90),
		idealMember("VALE3", 85),
		idealMember("WEGE3", 80),
	})

	require.Len(t, decisions, 2)
	assert.Equal(t, "PETR3", decisions[0].Ticker)
	assert.Equal(t, "VALE3", decisions[1].Ticker)
	for _, d := range decisions {
		assert.Equal(t, contracts.ActionEntry, d.Action)
	}
}
