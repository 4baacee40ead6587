package contracts

import "github.com/shopspring/decimal"

// Fundamental metric keys used by methodology quality gates and strategy
// filters. Providers populate Candidate.Fundamentals with these keys; a key
// that is absent means the metric is unknown for that ticker.
const (
	MetricROE               = "roe"
	MetricNetMargin         = "margemLiquida"
	MetricNetDebtEBITDA     = "dividaLiquidaEbitda"
	MetricROIC              = "roic"
	MetricEarningsYield     = "earningsYield"
	MetricPriceToBook       = "pvp"
	MetricDividendYield     = "dividendYield"
	MetricRevenueGrowth5Y   = "crescimentoReceita5a"
	MetricGrossDebtToEquity = "dividaBrutaPatrimonio"
	MetricCurrentRatio      = "liquidezCorrente"
)

// Candidate is one screening candidate. It is ephemeral: produced fresh on
// every screening run, never persisted as a composition.
type Candidate struct {
	Ticker          string          `json:"ticker"`
	Name            string          `json:"name,omitempty"`
	Sector          string          `json:"sector"`
	Segment         string          `json:"segment,omitempty"`
	AssetType       string          `json:"asset_type,omitempty"`
	OverallScore    *float64        `json:"overall_score,omitempty"`
	Upside          float64         `json:"upside"`
	TechnicalMargin float64         `json:"technical_margin"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	AvgDailyVolume  float64         `json:"avg_daily_volume"`

	// Fundamentals holds metric values keyed by the Metric* constants.
	Fundamentals map[string]float64 `json:"fundamentals,omitempty"`
}

// Metric returns a fundamental metric and whether it is known.
func (c Candidate) Metric(key string) (float64, bool) {
	v, ok := c.Fundamentals[key]
	return v, ok
}

// Score returns the overall score, or 0 and false when the candidate has none.
func (c Candidate) Score() (float64, bool) {
	if c.OverallScore == nil {
		return 0, false
	}
	return *c.OverallScore, true
}
