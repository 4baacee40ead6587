package fundamentus

import (
	"context"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/quantbr/indice/internal/contracts"
)

var _ contracts.FundamentalsProvider = (*Client)(nil)

// Universe builds the scored candidate universe from the screening table.
// The overall score is the 0-100 cross-sectional percentile composite of
// ROE, ROIC, earnings yield and dividend yield; the upside is a Graham-style
// fair value against the current price.
func (c *Client) Universe(ctx context.Context) ([]contracts.Candidate, error) {
	rows, err := c.fetchResultTable(ctx)
	if err != nil {
		return nil, err
	}

	scores := compositeScores(rows)

	candidates := make([]contracts.Candidate, 0, len(rows))
	for _, r := range rows {
		fundamentals := map[string]float64{
			contracts.MetricROE:               r.ROE,
			contracts.MetricNetMargin:         r.NetMargin,
			contracts.MetricROIC:              r.ROIC,
			contracts.MetricDividendYield:     r.DividendYield,
			contracts.MetricCurrentRatio:      r.CurrentRatio,
			contracts.MetricGrossDebtToEquity: r.GrossDebtPL,
			contracts.MetricRevenueGrowth5Y:   r.RevenueGrowth,
			contracts.MetricPriceToBook:       r.PVP,
		}
		if ey, ok := earningsYield(r); ok {
			fundamentals[contracts.MetricEarningsYield] = ey
		}

		candidate := contracts.Candidate{
			Ticker:         r.Ticker,
			Sector:         c.Sector(ctx, r.Ticker),
			AssetType:      assetType(r.Ticker),
			Upside:         grahamUpside(r),
			CurrentPrice:   decimal.NewFromFloat(r.Price),
			AvgDailyVolume: r.AvgDailyVolume,
			Fundamentals:   fundamentals,
		}

		if score, ok := scores[r.Ticker]; ok {
			candidate.OverallScore = &score
		}

		candidates = append(candidates, candidate)
	}

	// Deterministic universe order regardless of site ordering.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Ticker < candidates[j].Ticker
	})

	return candidates, nil
}

// earningsYield is 1/(P/L) when the multiple is meaningful.
func earningsYield(r row) (float64, bool) {
	if r.PL <= 0 {
		return 0, false
	}
	return 1 / r.PL, true
}

// grahamUpside compares a Graham fair value (sqrt of 22.5 * EPS * BVPS)
// against the current price. With P/L and P/VP both positive it reduces to
// sqrt(22.5 / (PL*PVP)) - 1, price-independent.
func grahamUpside(r row) float64 {
	if r.PL <= 0 || r.PVP <= 0 {
		return 0
	}
	ratio := 22.5 / (r.PL * r.PVP)
	if ratio <= 0 {
		return 0
	}
	return math.Sqrt(ratio) - 1
}

// compositeScores assigns each ticker the average percentile (0-100) of its
// ROE, ROIC, earnings yield and dividend yield across the universe.
func compositeScores(rows []row) map[string]float64 {
	metrics := []func(row) (float64, bool){
		func(r row) (float64, bool) { return r.ROE, true },
		func(r row) (float64, bool) { return r.ROIC, true },
		earningsYield,
		func(r row) (float64, bool) { return r.DividendYield, true },
	}

	totals := make(map[string]float64, len(rows))
	counts := make(map[string]int, len(rows))

	for _, metric := range metrics {
		type entry struct {
			ticker string
			value  float64
		}

		entries := make([]entry, 0, len(rows))
		for _, r := range rows {
			if v, ok := metric(r); ok {
				entries = append(entries, entry{r.Ticker, v})
			}
		}
		if len(entries) < 2 {
			continue
		}

		sort.Slice(entries, func(i, j int) bool {
			if entries[i].value != entries[j].value {
				return entries[i].value < entries[j].value
			}
			return entries[i].ticker < entries[j].ticker
		})

		for i, e := range entries {
			percentile := 100 * float64(i) / float64(len(entries)-1)
			totals[e.ticker] += percentile
			counts[e.ticker]++
		}
	}

	scores := make(map[string]float64, len(totals))
	for ticker, total := range totals {
		scores[ticker] = total / float64(counts[ticker])
	}
	return scores
}

// assetType classifies by the B3 ticker numeric suffix.
func assetType(ticker string) string {
	if ticker == "" {
		return ""
	}
	switch ticker[len(ticker)-1] {
	case '3':
		return "stock" // ordinary shares
	case '4', '5', '6':
		return "preferred"
	case '1':
		if len(ticker) >= 2 && ticker[len(ticker)-2] == '1' {
			return "unit" // 11 suffix
		}
		return "stock"
	default:
		return "stock"
	}
}
