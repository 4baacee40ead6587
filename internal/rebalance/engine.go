package rebalance

import (
	"fmt"
	"sort"

	"github.com/quantbr/indice/internal/contracts"
	"github.com/quantbr/indice/internal/methodology"
	"github.com/quantbr/indice/pkg/logger"
)

// Engine diffs the current composition against the ideal composition and
// decides which assets enter and exit. The hysteresis threshold keeps small,
// statistically-insignificant re-rankings from churning the index daily.
type Engine struct {
	cfg    methodology.Config
	logger *logger.Logger
}

// New creates a rebalance decision engine for one index's methodology.
func New(cfg methodology.Config, log *logger.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: log,
	}
}

// Decide produces the ordered ENTRY/EXIT list. Exits come first so freed
// slots are visible to entries. Weight reallocation over the resulting
// membership is the allocator's job, not this engine's.
func (e *Engine) Decide(current contracts.CompositionSnapshot, ideal []contracts.Candidate) []contracts.RebalanceDecision {
	rule := e.cfg.Rebalance

	idealByTicker := make(map[string]contracts.Candidate, len(ideal))
	for _, c := range ideal {
		idealByTicker[c.Ticker] = c
	}

	exits := make([]contracts.RebalanceDecision, 0)
	exited := make(map[string]bool)

	// Quality exits: incumbents that the screen no longer selects.
	if rule.CheckQuality {
		for _, ticker := range sortedTickers(current) {
			if _, ok := idealByTicker[ticker]; !ok {
				exits = append(exits, contracts.RebalanceDecision{
					Action: contracts.ActionExit,
					Ticker: ticker,
					Reason: "removed from ideal composition by quality screen",
				})
				exited[ticker] = true
			}
		}
	}

	// Challengers: ideal members not currently held, in rank order.
	challengers := make([]contracts.Candidate, 0)
	for _, c := range ideal {
		if _, held := current.Positions[c.Ticker]; !held {
			challengers = append(challengers, c)
		}
	}

	entries := make([]contracts.RebalanceDecision, 0)
	heldCount := len(current.Positions) - len(exits)

	// Incumbents still standing, weakest first by the methodology's rank
	// key. Only incumbents the screen still ranks can be displaced; an
	// incumbent with no known rank value is kept when quality checks are
	// off rather than evicted on a blind comparison.
	incumbents := e.rankedIncumbents(current, idealByTicker, exited)

	for _, challenger := range challengers {
		// Vacant slots admit challengers without displacing anyone.
		if heldCount < e.cfg.Selection.TopN {
			entries = append(entries, contracts.RebalanceDecision{
				Action: contracts.ActionEntry,
				Ticker: challenger.Ticker,
				Reason: "vacant composition slot",
			})
			heldCount++
			continue
		}

		if len(incumbents) == 0 {
			break
		}

		weakest := incumbents[0]
		advantage := e.rankValue(challenger) - weakest.value
		if advantage <= rule.Threshold {
			// Hysteresis: a marginal advantage never triggers a swap.
			break
		}

		exits = append(exits, contracts.RebalanceDecision{
			Action: contracts.ActionExit,
			Ticker: weakest.ticker,
			Reason: fmt.Sprintf("displaced by %s (advantage %.2f above threshold %.2f)", challenger.Ticker, advantage, rule.Threshold),
		})
		entries = append(entries, contracts.RebalanceDecision{
			Action: contracts.ActionEntry,
			Ticker: challenger.Ticker,
			Reason: fmt.Sprintf("outranks %s by %.2f", weakest.ticker, advantage),
		})
		incumbents = incumbents[1:]
	}

	decisions := append(exits, entries...)

	if len(decisions) > 0 {
		e.logger.WithFields(map[string]interface{}{
			"exits":   len(exits),
			"entries": len(entries),
		}).Info("Rebalance decided")
	}

	return decisions
}

type rankedIncumbent struct {
	ticker string
	value  float64
}

// rankedIncumbents returns the displaceable incumbents ordered weakest first.
func (e *Engine) rankedIncumbents(current contracts.CompositionSnapshot, idealByTicker map[string]contracts.Candidate, exited map[string]bool) []rankedIncumbent {
	incumbents := make([]rankedIncumbent, 0, len(current.Positions))
	for ticker := range current.Positions {
		if exited[ticker] {
			continue
		}
		candidate, ok := idealByTicker[ticker]
		if !ok {
			continue
		}
		incumbents = append(incumbents, rankedIncumbent{
			ticker: ticker,
			value:  e.rankValue(candidate),
		})
	}

	sort.Slice(incumbents, func(i, j int) bool {
		if incumbents[i].value != incumbents[j].value {
			return incumbents[i].value < incumbents[j].value
		}
		return incumbents[i].ticker < incumbents[j].ticker
	})

	return incumbents
}

// rankValue extracts the comparison key used for the hysteresis rule,
// normalized so a larger value always means a stronger candidate. Under
// ascending order the raw key is negated, mirroring how the screening
// ranker honors OrderDirection.
func (e *Engine) rankValue(c contracts.Candidate) float64 {
	var v float64
	switch e.cfg.Selection.OrderBy {
	case methodology.OrderByUpside:
		v = c.Upside
	case methodology.OrderByTechnicalMargin:
		v = c.TechnicalMargin
	default:
		v, _ = c.Score()
	}
	if e.cfg.Selection.OrderDirection == methodology.OrderAsc {
		return -v
	}
	return v
}

func sortedTickers(snapshot contracts.CompositionSnapshot) []string {
	tickers := snapshot.Tickers()
	sort.Strings(tickers)
	return tickers
}
