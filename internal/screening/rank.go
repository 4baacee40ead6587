package screening

import (
	"math"
	"sort"

	"github.com/quantbr/indice/internal/contracts"
	"github.com/quantbr/indice/internal/methodology"
)

// rank orders survivors by the methodology's rank key. Candidates without a
// score sort after scored ones regardless of direction; rank ties break by
// ticker ascending so selection is deterministic.
func (e *Engine) rank(candidates []contracts.Candidate) []contracts.Candidate {
	ranked := make([]contracts.Candidate, len(candidates))
	copy(ranked, candidates)

	if e.cfg.Strategy != nil && e.cfg.Strategy.Mode == methodology.StrategyMagicFormula {
		e.rankMagicFormula(ranked)
		return ranked
	}

	desc := e.cfg.Selection.OrderDirection != methodology.OrderAsc

	sort.SliceStable(ranked, func(i, j int) bool {
		vi, oki := e.rankValue(ranked[i])
		vj, okj := e.rankValue(ranked[j])

		if oki != okj {
			return oki // scored candidates first
		}
		if vi != vj {
			if desc {
				return vi > vj
			}
			return vi < vj
		}
		return ranked[i].Ticker < ranked[j].Ticker
	})

	return ranked
}

// rankValue extracts the rank key, reporting whether the key is known.
func (e *Engine) rankValue(c contracts.Candidate) (float64, bool) {
	switch e.cfg.Selection.OrderBy {
	case methodology.OrderByUpside:
		return c.Upside, true
	case methodology.OrderByTechnicalMargin:
		return c.TechnicalMargin, true
	default:
		return c.Score()
	}
}

// selectRanked builds the final membership from the ranked list, honoring
// score bands and the per-sector diversification cap. A candidate whose
// sector is full is skipped and lower-ranked candidates backfill the slot.
func (e *Engine) selectRanked(ranked []contracts.Candidate) []contracts.Candidate {
	topN := e.cfg.Selection.TopN
	if topN > len(ranked) {
		topN = len(ranked)
	}

	chosen := make(map[string]bool, topN)
	sectorCount := make(map[string]int)

	pick := func(c contracts.Candidate) bool {
		if chosen[c.Ticker] {
			return false
		}
		if !e.sectorHasRoom(sectorCount, c.Sector) {
			return false
		}
		chosen[c.Ticker] = true
		sectorCount[c.Sector]++
		return true
	}

	count := 0

	// Band pass: lowest score band upward, each capped at max_count.
	if bands := e.sortedBands(); len(bands) > 0 {
		for _, band := range bands {
			taken := 0
			for _, c := range ranked {
				if count >= topN || taken >= band.MaxCount {
					break
				}
				score, ok := c.Score()
				if !ok || !band.Contains(score) {
					continue
				}
				if pick(c) {
					taken++
					count++
				}
			}
		}
	}

	// Fill pass: remaining slots go to the best-ranked leftovers, uncapped
	// by bands (the sector cap still applies).
	for _, c := range ranked {
		if count >= topN {
			break
		}
		if pick(c) {
			count++
		}
	}

	// Emit in rank order so the output is the ideal composition, ranked.
	selected := make([]contracts.Candidate, 0, count)
	for _, c := range ranked {
		if chosen[c.Ticker] {
			selected = append(selected, c)
		}
	}

	return selected
}

func (e *Engine) sectorHasRoom(sectorCount map[string]int, sector string) bool {
	if e.cfg.Diversification.Mode != methodology.DiversificationSectorCap {
		return true
	}
	return sectorCount[sector] < e.cfg.Diversification.MaxPerSector
}

// sortedBands returns the configured score bands ordered from the lowest
// score range upward.
func (e *Engine) sortedBands() []methodology.ScoreBand {
	if len(e.cfg.Selection.ScoreBands) == 0 {
		return nil
	}
	bands := make([]methodology.ScoreBand, len(e.cfg.Selection.ScoreBands))
	copy(bands, e.cfg.Selection.ScoreBands)
	sort.Slice(bands, func(i, j int) bool {
		return bands[i].MinScore < bands[j].MinScore
	})
	return bands
}

// rankMagicFormula orders candidates by the combined ROIC/earnings-yield
// rank: each candidate gets its position in the ROIC ordering plus its
// position in the earnings-yield ordering, and the lowest sum wins.
func (e *Engine) rankMagicFormula(ranked []contracts.Candidate) {
	roicRank := ordinalRank(ranked, contracts.MetricROIC)
	eyRank := ordinalRank(ranked, contracts.MetricEarningsYield)

	combined := make(map[string]int, len(ranked))
	for _, c := range ranked {
		combined[c.Ticker] = roicRank[c.Ticker] + eyRank[c.Ticker]
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		ci, cj := combined[ranked[i].Ticker], combined[ranked[j].Ticker]
		if ci != cj {
			return ci < cj
		}
		return ranked[i].Ticker < ranked[j].Ticker
	})
}

// ordinalRank assigns 1-based positions by the metric, descending; a missing
// metric ranks last. Ties break by ticker ascending.
func ordinalRank(candidates []contracts.Candidate, metric string) map[string]int {
	ordered := make([]contracts.Candidate, len(candidates))
	copy(ordered, candidates)

	sort.SliceStable(ordered, func(i, j int) bool {
		vi, oki := ordered[i].Metric(metric)
		vj, okj := ordered[j].Metric(metric)
		if !oki {
			vi = math.Inf(-1)
		}
		if !okj {
			vj = math.Inf(-1)
		}
		if vi != vj {
			return vi > vj
		}
		return ordered[i].Ticker < ordered[j].Ticker
	})

	ranks := make(map[string]int, len(ordered))
	for i, c := range ordered {
		ranks[c.Ticker] = i + 1
	}
	return ranks
}
