package screening

import (
	"context"
	"strings"

	"github.com/quantbr/indice/internal/contracts"
	"github.com/quantbr/indice/internal/methodology"
	"github.com/quantbr/indice/pkg/logger"
)

// Engine turns a scored candidate universe into an ideal composition: the
// membership the methodology would select today, independent of what is held.
type Engine struct {
	cfg    methodology.Config
	logger *logger.Logger
}

// New creates a screening engine for one index's methodology.
func New(cfg methodology.Config, log *logger.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: log,
	}
}

// Run applies the screening pipeline in its fixed order: universe filter,
// liquidity gate, upside filter, quality gates, strategy filter, then ranked
// selection with score bands and the sector diversification cap. The result
// is ranked and truncated to the methodology's target size.
//
// Given identical inputs the output is byte-identical: every sort breaks rank
// ties by ticker ascending.
func (e *Engine) Run(ctx context.Context, universe []contracts.Candidate) ([]contracts.Candidate, error) {
	passed := make([]contracts.Candidate, 0, len(universe))
	filtered := make(map[string]int)

	// Phase 1: absolute filters, first failing gate wins.
	for _, c := range universe {
		reason := e.checkConditions(c)
		if reason == "" {
			passed = append(passed, c)
		} else {
			filtered[reason]++
		}
	}

	// Phase 2: ranking and capped selection.
	ranked := e.rank(passed)
	selected := e.selectRanked(ranked)

	e.logger.WithFields(map[string]interface{}{
		"total_input":  len(universe),
		"passed":       len(passed),
		"selected":     len(selected),
		"filtered_out": len(universe) - len(passed),
		"filters":      filtered,
	}).Info("Screening completed")

	return selected, nil
}

// checkConditions runs every absolute filter against one candidate.
// Returns empty string if passed, otherwise the name of the failing filter.
func (e *Engine) checkConditions(c contracts.Candidate) string {
	// Universe filter: segment / asset type / ticker pattern exclusions.
	if len(e.cfg.Universe.Segments) > 0 && !containsFold(e.cfg.Universe.Segments, c.Segment) {
		return "segment"
	}
	if len(e.cfg.Universe.AssetTypes) > 0 && !containsFold(e.cfg.Universe.AssetTypes, c.AssetType) {
		return "asset_type"
	}
	for _, pattern := range e.cfg.Universe.ExcludedTickerPatterns {
		if matchesPattern(c.Ticker, pattern) {
			return "ticker_pattern"
		}
	}

	// Liquidity gate.
	if c.AvgDailyVolume < e.cfg.Liquidity.MinAverageDailyVolume {
		return "liquidity"
	}

	// Upside filter (optional).
	if e.cfg.Upside.RequirePositiveUpside && c.Upside <= 0 {
		return "upside"
	}

	// Quality gates: every configured bound must hold, and a missing metric
	// fails the gate. Unknown is rejected, not assumed passing.
	for metric, bound := range e.cfg.Quality {
		value, ok := c.Metric(metric)
		if !ok {
			return "missing_" + metric
		}
		if bound.GTE != nil && value < *bound.GTE {
			return metric
		}
		if bound.LTE != nil && value > *bound.LTE {
			return metric
		}
	}

	// Strategy filter (optional, pluggable).
	if e.cfg.Strategy != nil {
		if reason := e.checkStrategy(c); reason != "" {
			return reason
		}
	}

	return ""
}

// matchesPattern implements the glob-style prefix/suffix exclusions used by
// methodologies, e.g. "*5" drops tickers ending in 5.
func matchesPattern(ticker, pattern string) bool {
	switch {
	case pattern == "":
		return false
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(ticker, pattern[1:])
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(ticker, pattern[:len(pattern)-1])
	default:
		return ticker == pattern
	}
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}
