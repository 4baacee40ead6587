package methodology

import "fmt"

// ValidationError is a fatal configuration error. Malformed methodologies are
// rejected at index-setup time, never discovered at daily-run time.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks every structural constraint of a methodology.
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.MethodologyID == "" {
		return ValidationError{"meta.methodology_id", "required"}
	}

	// === Liquidity ===
	if cfg.Liquidity.MinAverageDailyVolume < 0 {
		return ValidationError{"liquidity.min_average_daily_volume", "must be >= 0"}
	}

	// === Quality gates ===
	for metric, bound := range cfg.Quality {
		if bound.GTE == nil && bound.LTE == nil {
			return ValidationError{"quality." + metric, "needs gte and/or lte"}
		}
		if bound.GTE != nil && bound.LTE != nil && *bound.GTE > *bound.LTE {
			return ValidationError{"quality." + metric, "gte must be <= lte"}
		}
	}

	// === Strategy ===
	if cfg.Strategy != nil {
		if cfg.Strategy.Mode != StrategyMagicFormula {
			return ValidationError{"strategy.mode", fmt.Sprintf("unknown mode %q", cfg.Strategy.Mode)}
		}
	}

	// === Selection ===
	switch cfg.Selection.OrderBy {
	case OrderByOverallScore, OrderByUpside, OrderByTechnicalMargin:
	default:
		return ValidationError{"selection.order_by", fmt.Sprintf("unknown rank key %q", cfg.Selection.OrderBy)}
	}
	switch cfg.Selection.OrderDirection {
	case OrderAsc, OrderDesc:
	default:
		return ValidationError{"selection.order_direction", "must be asc or desc"}
	}
	if cfg.Selection.TopN <= 0 {
		return ValidationError{"selection.top_n", "must be > 0"}
	}
	for i, band := range cfg.Selection.ScoreBands {
		field := fmt.Sprintf("selection.score_bands[%d]", i)
		if band.MinScore >= band.MaxScore {
			return ValidationError{field, "min_score must be < max_score"}
		}
		if band.MaxCount <= 0 {
			return ValidationError{field, "max_count must be > 0"}
		}
	}

	// === Weighting ===
	switch cfg.Weighting.Mode {
	case WeightingEqual:
	case WeightingScoreProportional:
		if cfg.Weighting.MinWeight < 0 || cfg.Weighting.MaxWeight > 1 {
			return ValidationError{"weighting", "weight bounds must be within [0, 1]"}
		}
		if cfg.Weighting.MinWeight > cfg.Weighting.MaxWeight {
			return ValidationError{"weighting", "min_weight must be <= max_weight"}
		}
		if cfg.Weighting.MaxWeight == 0 {
			return ValidationError{"weighting.max_weight", "must be > 0"}
		}
	default:
		return ValidationError{"weighting.mode", fmt.Sprintf("unknown mode %q", cfg.Weighting.Mode)}
	}

	// === Rebalance ===
	if cfg.Rebalance.Threshold < 0 {
		return ValidationError{"rebalance.threshold", "must be >= 0"}
	}

	// === Diversification ===
	switch cfg.Diversification.Mode {
	case DiversificationNone, "":
	case DiversificationSectorCap:
		if cfg.Diversification.MaxPerSector <= 0 {
			return ValidationError{"diversification.max_per_sector", "must be > 0"}
		}
	default:
		return ValidationError{"diversification.mode", fmt.Sprintf("unknown mode %q", cfg.Diversification.Mode)}
	}

	return nil
}
