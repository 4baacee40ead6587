package methodology

// Config is the full declarative methodology of one index: which assets are
// eligible, how survivors are ranked and selected, how weights are assigned
// and when membership is allowed to change. Created once at index setup and
// versioned by hash; never hot-patched at daily-run time.
type Config struct {
	Meta            Meta                `yaml:"meta" json:"meta"`
	Universe        UniverseRule        `yaml:"universe" json:"universe"`
	Liquidity       LiquidityRule       `yaml:"liquidity" json:"liquidity"`
	Upside          UpsideRule          `yaml:"upside" json:"upside"`
	Quality         map[string]Bound    `yaml:"quality" json:"quality"`
	Strategy        *StrategyRule       `yaml:"strategy,omitempty" json:"strategy,omitempty"`
	Selection       SelectionRule       `yaml:"selection" json:"selection"`
	Weighting       WeightingRule       `yaml:"weighting" json:"weighting"`
	Rebalance       RebalanceRule       `yaml:"rebalance" json:"rebalance"`
	Diversification DiversificationRule `yaml:"diversification" json:"diversification"`
}

// Meta identifies a methodology document.
type Meta struct {
	MethodologyID string `yaml:"methodology_id" json:"methodology_id"`
	Version       string `yaml:"version" json:"version"`
	Timezone      string `yaml:"timezone" json:"timezone"`
}

// UniverseRule restricts the raw candidate universe before any scoring.
type UniverseRule struct {
	Segments []string `yaml:"segments" json:"segments"`
	// AssetTypes limits eligible instrument kinds (e.g. "stock", "unit").
	AssetTypes []string `yaml:"asset_types" json:"asset_types"`
	// ExcludedTickerPatterns are glob-style prefix/suffix exclusions,
	// e.g. "*5" and "*6" drop class-B preferred tickers.
	ExcludedTickerPatterns []string `yaml:"excluded_ticker_patterns" json:"excluded_ticker_patterns"`
}

// LiquidityRule is the hard liquidity floor.
type LiquidityRule struct {
	MinAverageDailyVolume float64 `yaml:"min_average_daily_volume" json:"min_average_daily_volume"`
}

// UpsideRule optionally requires a positive fair-value upside.
type UpsideRule struct {
	RequirePositiveUpside bool `yaml:"require_positive_upside" json:"require_positive_upside"`
}

// Bound is a one-sided or two-sided gate on a fundamental metric. A candidate
// whose metric is missing fails the gate: unknown is rejected, never assumed
// passing.
type Bound struct {
	GTE *float64 `yaml:"gte,omitempty" json:"gte,omitempty"`
	LTE *float64 `yaml:"lte,omitempty" json:"lte,omitempty"`
}

// Strategy filter modes.
const (
	StrategyMagicFormula = "magic_formula"
)

// StrategyRule is an optional pluggable strategy filter that tightens the
// gates and replaces the default rank key.
type StrategyRule struct {
	Mode             string  `yaml:"mode" json:"mode"`
	MinROIC          float64 `yaml:"min_roic" json:"min_roic"`
	MinEarningsYield float64 `yaml:"min_earnings_yield" json:"min_earnings_yield"`
}

// Rank keys accepted by SelectionRule.OrderBy.
const (
	OrderByOverallScore    = "overallScore"
	OrderByUpside          = "upside"
	OrderByTechnicalMargin = "technicalMargin"
)

// Sort directions.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// SelectionRule controls ranking and truncation of screened candidates.
type SelectionRule struct {
	OrderBy        string      `yaml:"order_by" json:"order_by"`
	OrderDirection string      `yaml:"order_direction" json:"order_direction"`
	TopN           int         `yaml:"top_n" json:"top_n"`
	ScoreBands     []ScoreBand `yaml:"score_bands,omitempty" json:"score_bands,omitempty"`
}

// ScoreBand caps how many candidates a score range may contribute, so that
// "merely adequate" assets cannot crowd out strong ones.
type ScoreBand struct {
	MinScore float64 `yaml:"min_score" json:"min_score"`
	MaxScore float64 `yaml:"max_score" json:"max_score"`
	MaxCount int     `yaml:"max_count" json:"max_count"`
}

// Contains reports whether the score falls inside [MinScore, MaxScore).
func (b ScoreBand) Contains(score float64) bool {
	return score >= b.MinScore && score < b.MaxScore
}

// Weighting modes.
const (
	WeightingEqual             = "equal"
	WeightingScoreProportional = "score_proportional"
)

// WeightingRule selects the weighting mode. Min/MaxWeight only apply to the
// score-proportional mode.
type WeightingRule struct {
	Mode      string  `yaml:"mode" json:"mode"`
	MinWeight float64 `yaml:"min_weight,omitempty" json:"min_weight,omitempty"`
	MaxWeight float64 `yaml:"max_weight,omitempty" json:"max_weight,omitempty"`
}

// RebalanceRule controls membership churn. Threshold is the minimum rank-key
// advantage a challenger must show over an incumbent before a swap is allowed.
type RebalanceRule struct {
	Threshold    float64 `yaml:"threshold" json:"threshold"`
	CheckQuality bool    `yaml:"check_quality" json:"check_quality"`
}

// Diversification modes.
const (
	DiversificationSectorCap = "sector_cap"
	DiversificationNone      = "none"
)

// DiversificationRule caps sector concentration in produced compositions.
type DiversificationRule struct {
	Mode         string `yaml:"mode" json:"mode"`
	MaxPerSector int    `yaml:"max_per_sector,omitempty" json:"max_per_sector,omitempty"`
}
