package allocation

import (
	"fmt"
	"math"

	"github.com/quantbr/indice/internal/contracts"
	"github.com/quantbr/indice/internal/methodology"
	"github.com/quantbr/indice/pkg/logger"
)

// Allocator converts a ranked candidate list into normalized target weights.
// Whatever the mode, |Σweight − 1.0| ≤ contracts.WeightTolerance for any
// non-empty input.
type Allocator struct {
	logger *logger.Logger
}

// New creates a weight allocator.
func New(log *logger.Logger) *Allocator {
	return &Allocator{logger: log}
}

// Allocate assigns a weight per ticker according to the weighting rule.
func (a *Allocator) Allocate(candidates []contracts.Candidate, rule methodology.WeightingRule) (map[string]float64, error) {
	if len(candidates) == 0 {
		return map[string]float64{}, nil
	}

	var weights map[string]float64
	switch rule.Mode {
	case methodology.WeightingScoreProportional:
		weights = a.scoreProportional(candidates, rule)
	case methodology.WeightingEqual, "":
		weights = a.equal(candidates)
	default:
		return nil, fmt.Errorf("unknown weighting mode %q", rule.Mode)
	}

	// Final corrective pass: a single uniform rescale if the total still
	// drifted beyond tolerance.
	total := sum(weights)
	if total > 0 && math.Abs(total-1.0) > contracts.WeightTolerance {
		for ticker := range weights {
			weights[ticker] /= total
		}
	}

	a.logger.WithFields(map[string]interface{}{
		"mode":         rule.Mode,
		"positions":    len(weights),
		"total_weight": sum(weights),
	}).Debug("Weights allocated")

	return weights, nil
}

// equal assigns 1/n to every candidate.
func (a *Allocator) equal(candidates []contracts.Candidate) map[string]float64 {
	weight := 1.0 / float64(len(candidates))
	weights := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		weights[c.Ticker] = weight
	}
	return weights
}

// scoreProportional implements the clamp-then-redistribute scheme. Clamping
// first keeps a single high-score asset from dominating the basket;
// redistributing the leftover only afterward avoids double-counting weight
// that was already capped away.
func (a *Allocator) scoreProportional(candidates []contracts.Candidate, rule methodology.WeightingRule) map[string]float64 {
	scored := make([]contracts.Candidate, 0, len(candidates))
	scoreless := make([]contracts.Candidate, 0)
	var totalScore float64

	for _, c := range candidates {
		if score, ok := c.Score(); ok && score > 0 {
			scored = append(scored, c)
			totalScore += score
		} else {
			scoreless = append(scoreless, c)
		}
	}

	if len(scored) == 0 || totalScore == 0 {
		return a.equal(candidates)
	}

	// Pass 1: raw proportional weight, clamped to [min, max].
	weights := make(map[string]float64, len(candidates))
	for _, c := range scored {
		score, _ := c.Score()
		raw := score / totalScore
		weights[c.Ticker] = clamp(raw, rule.MinWeight, rule.MaxWeight)
	}

	assigned := sum(weights)

	switch {
	case assigned > 1.0:
		// Pass 2: clamped weights overflow, scale everything down.
		for ticker := range weights {
			weights[ticker] /= assigned
		}
		// Score-less candidates get nothing when the scored set already
		// fills the basket.

	case len(scoreless) > 0:
		// Pass 3a: split the unassigned remainder equally among the
		// candidates that carry no score.
		share := (1.0 - assigned) / float64(len(scoreless))
		for _, c := range scoreless {
			weights[c.Ticker] = share
		}

	case assigned < 1.0 && assigned > 0:
		// Pass 3b: nobody to give the remainder to, renormalize the scored
		// set up to 1.0 proportionally.
		for ticker := range weights {
			weights[ticker] /= assigned
		}
	}

	return weights
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func sum(weights map[string]float64) float64 {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	return total
}
