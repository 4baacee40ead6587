package screening

import (
	"github.com/quantbr/indice/internal/contracts"
	"github.com/quantbr/indice/internal/methodology"
)

// checkStrategy applies the optional strategy filter's extra gates. The
// strategy also replaces the default rank key (see rankMagicFormula).
func (e *Engine) checkStrategy(c contracts.Candidate) string {
	switch e.cfg.Strategy.Mode {
	case methodology.StrategyMagicFormula:
		roic, ok := c.Metric(contracts.MetricROIC)
		if !ok || roic < e.cfg.Strategy.MinROIC {
			return "roic"
		}
		ey, ok := c.Metric(contracts.MetricEarningsYield)
		if !ok || ey < e.cfg.Strategy.MinEarningsYield {
			return "earnings_yield"
		}
	}
	return ""
}
