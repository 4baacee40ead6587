package index

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/quantbr/indice/internal/allocation"
	"github.com/quantbr/indice/internal/calculation"
	"github.com/quantbr/indice/internal/contracts"
	"github.com/quantbr/indice/internal/methodology"
	"github.com/quantbr/indice/internal/rebalance"
	"github.com/quantbr/indice/internal/screening"
	"github.com/quantbr/indice/pkg/logger"
)

// Service orchestrates the index lifecycle: setup, daily mark-to-market and
// periodic screening/rebalance. Batch runs are partial-failure-tolerant: one
// index's error is logged with its ticker and date context and never aborts
// the rest of the run.
type Service struct {
	definitions  *DefinitionRepository
	compositions contracts.CompositionStore
	points       contracts.IndexPointStore
	auditLog     contracts.RebalanceLogStore
	checkpoints  contracts.CheckpointStore

	quotes       contracts.QuoteProvider
	fundamentals contracts.FundamentalsProvider
	calendar     contracts.CalendarProvider

	calculator *calculation.Calculator
	allocator  *allocation.Allocator
	logger     *logger.Logger
}

// NewService wires the engine components together.
func NewService(
	definitions *DefinitionRepository,
	compositions contracts.CompositionStore,
	points contracts.IndexPointStore,
	auditLog contracts.RebalanceLogStore,
	checkpoints contracts.CheckpointStore,
	quotes contracts.QuoteProvider,
	fundamentals contracts.FundamentalsProvider,
	calendar contracts.CalendarProvider,
	log *logger.Logger,
) *Service {
	return &Service{
		definitions:  definitions,
		compositions: compositions,
		points:       points,
		auditLog:     auditLog,
		checkpoints:  checkpoints,
		quotes:       quotes,
		fundamentals: fundamentals,
		calendar:     calendar,
		calculator:   calculation.New(log),
		allocator:    allocation.New(log),
		logger:       log,
	}
}

// Setup creates an index and populates its first composition from an initial
// screening run. Creation is optimistic: a lost create race reconciles to the
// existing row. Multiple indices must be set up serially by the caller.
func (s *Service) Setup(ctx context.Context, ticker, name string, cfg methodology.Config) (*Definition, error) {
	if err := methodology.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid methodology for %s: %w", ticker, err)
	}

	def, created, err := s.definitions.CreateOrGet(ctx, ticker, name, cfg)
	if err != nil {
		return nil, err
	}

	if !created {
		s.logger.WithField("ticker", ticker).Info("Index already exists, reusing definition")
	}

	current, err := s.compositions.GetComposition(ctx, def.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load composition for %s: %w", ticker, err)
	}
	if !current.IsEmpty() {
		return def, nil
	}

	today := s.calendar.TodayInBrazil()

	universe, err := s.fundamentals.Universe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate universe: %w", err)
	}

	ideal, err := screening.New(def.Methodology, s.logger).Run(ctx, universe)
	if err != nil {
		return nil, fmt.Errorf("initial screening failed for %s: %w", ticker, err)
	}
	if len(ideal) == 0 {
		return nil, fmt.Errorf("initial screening for %s selected no candidates", ticker)
	}

	weights, err := s.allocator.Allocate(ideal, def.Methodology.Weighting)
	if err != nil {
		return nil, fmt.Errorf("weight allocation failed for %s: %w", ticker, err)
	}

	snapshot := contracts.NewCompositionSnapshot(today)
	for _, c := range ideal {
		weight, ok := weights[c.Ticker]
		if !ok {
			continue
		}
		snapshot.Positions[c.Ticker] = contracts.AssetPosition{
			Ticker:     c.Ticker,
			Weight:     weight,
			Price:      c.CurrentPrice,
			EntryPrice: c.CurrentPrice,
			EntryDate:  today,
		}
	}

	if err := s.compositions.ReplaceComposition(ctx, def.ID, snapshot); err != nil {
		return nil, fmt.Errorf("failed to save initial composition for %s: %w", ticker, err)
	}

	// The creation-date point carries no snapshot; composition bookkeeping
	// begins with the first computed point.
	creationPoint := contracts.DailyIndexPoint{
		Date:      today,
		Points:    contracts.BaseIndexPoints,
		Snapshot:  contracts.NewCompositionSnapshot(today),
		Dividends: nil,
	}
	if err := s.points.SavePoint(ctx, def.ID, creationPoint); err != nil {
		return nil, fmt.Errorf("failed to save creation point for %s: %w", ticker, err)
	}

	s.logger.WithFields(map[string]interface{}{
		"ticker":    ticker,
		"positions": len(snapshot.Positions),
		"date":      today.Format("2006-01-02"),
	}).Info("Index created")

	return def, nil
}

// MarkToMarketAll computes today's point for every index. Indices are
// processed sequentially; each index's point depends only on its own prior
// point, and a failed index is skipped with a warning.
func (s *Service) MarkToMarketAll(ctx context.Context) error {
	today := s.calendar.TodayInBrazil()
	if !s.calendar.IsTradingDay(today) {
		s.logger.WithField("date", today.Format("2006-01-02")).Info("Not a trading day, skipping mark-to-market")
		return nil
	}

	defs, err := s.definitions.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list indices: %w", err)
	}

	for _, def := range defs {
		if err := s.markToMarket(ctx, def, today); err != nil {
			s.logger.WithFields(map[string]interface{}{
				"ticker": def.Ticker,
				"date":   today.Format("2006-01-02"),
				"error":  err.Error(),
			}).Warn("Mark-to-market failed for index, continuing")
		}
	}

	return nil
}

// markToMarket computes and persists one index's daily point.
func (s *Service) markToMarket(ctx context.Context, def Definition, today time.Time) error {
	lastRun, err := s.checkpoints.GetLastRun(ctx, JobMarkToMarket, def.ID)
	if err != nil {
		return err
	}
	if lastRun != nil && sameDay(*lastRun, today) {
		s.logger.WithField("ticker", def.Ticker).Debug("Mark-to-market already ran today")
		return nil
	}

	composition, err := s.compositions.GetComposition(ctx, def.ID)
	if err != nil {
		return err
	}
	if composition.IsEmpty() {
		s.logger.WithField("ticker", def.Ticker).Warn("Index has no composition, no point computed")
		return nil
	}

	tickers := sortedStrings(composition.Tickers())

	prices, err := s.quotes.GetLatestPrices(ctx, tickers)
	if err != nil {
		return fmt.Errorf("failed to fetch prices: %w", err)
	}

	dividends, err := s.quotes.GetCashDividends(ctx, tickers, today)
	if err != nil {
		// Dividends default to zero; a provider hiccup must not block the
		// day's level.
		s.logger.WithError(err).WithField("ticker", def.Ticker).Warn("Failed to fetch dividends, assuming none")
		dividends = nil
	}

	snapshot := contracts.NewCompositionSnapshot(today)
	for ticker, pos := range composition.Positions {
		quote, ok := prices[ticker]
		if !ok || !quote.Price.IsPositive() {
			// Data-quality failure upstream: exclude the ticker from the
			// snapshot write, log and continue.
			s.logger.WithFields(map[string]interface{}{
				"index":  def.Ticker,
				"ticker": ticker,
			}).Warn("Missing or invalid price, excluding from today's snapshot")
			continue
		}
		pos.Price = quote.Price
		snapshot.Positions[ticker] = pos
	}

	if snapshot.IsEmpty() {
		s.logger.WithField("ticker", def.Ticker).Warn("No valid prices for index, no point computed")
		return nil
	}

	previous, err := s.points.GetLatestPoint(ctx, def.ID)
	if err != nil {
		return err
	}

	point := s.calculator.ComputeDailyPoint(previous, snapshot, dividends)

	if err := s.points.SavePoint(ctx, def.ID, point); err != nil {
		return err
	}

	if err := s.checkpoints.SetLastRun(ctx, JobMarkToMarket, def.ID, today); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"ticker":       def.Ticker,
		"date":         today.Format("2006-01-02"),
		"points":       point.Points,
		"daily_change": point.DailyChange,
	}).Info("Index marked to market")

	return nil
}

// RebalanceAll re-screens every index and applies membership changes where
// divergence exceeds the methodology's threshold. It runs after
// mark-to-market so today's point always used yesterday's membership.
func (s *Service) RebalanceAll(ctx context.Context) error {
	today := s.calendar.TodayInBrazil()
	if !s.calendar.IsTradingDay(today) {
		s.logger.WithField("date", today.Format("2006-01-02")).Info("Not a trading day, skipping rebalance")
		return nil
	}

	defs, err := s.definitions.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list indices: %w", err)
	}

	// One universe fetch serves every index's screening run.
	universe, err := s.fundamentals.Universe(ctx)
	if err != nil {
		return fmt.Errorf("failed to load candidate universe: %w", err)
	}

	for _, def := range defs {
		if err := s.rebalanceIndex(ctx, def, universe, today); err != nil {
			s.logger.WithFields(map[string]interface{}{
				"ticker": def.Ticker,
				"date":   today.Format("2006-01-02"),
				"error":  err.Error(),
			}).Warn("Rebalance failed for index, continuing")
		}
	}

	return nil
}

// rebalanceIndex screens, decides and applies membership changes for one
// index.
func (s *Service) rebalanceIndex(ctx context.Context, def Definition, universe []contracts.Candidate, today time.Time) error {
	lastRun, err := s.checkpoints.GetLastRun(ctx, JobRebalance, def.ID)
	if err != nil {
		return err
	}
	if lastRun != nil && sameDay(*lastRun, today) {
		s.logger.WithField("ticker", def.Ticker).Debug("Rebalance already ran today")
		return nil
	}

	ideal, err := screening.New(def.Methodology, s.logger).Run(ctx, universe)
	if err != nil {
		return fmt.Errorf("screening failed: %w", err)
	}
	if len(ideal) == 0 {
		// Empty-result error: keep the last composition unchanged until
		// data recovers.
		s.logger.WithField("ticker", def.Ticker).Warn("Screening selected no candidates, keeping current composition")
		return nil
	}

	current, err := s.compositions.GetComposition(ctx, def.ID)
	if err != nil {
		return err
	}
	current.Date = today

	decisions := rebalance.New(def.Methodology, s.logger).Decide(current, ideal)
	if len(decisions) == 0 {
		return s.checkpoints.SetLastRun(ctx, JobRebalance, def.ID, today)
	}

	next, err := s.applyDecisions(current, ideal, decisions, def.Methodology, today)
	if err != nil {
		return err
	}

	if err := s.compositions.ReplaceComposition(ctx, def.ID, next); err != nil {
		return fmt.Errorf("failed to save rebalanced composition: %w", err)
	}

	entries := make([]contracts.RebalanceLogEntry, len(decisions))
	for i, d := range decisions {
		entries[i] = contracts.RebalanceLogEntry{
			IndexID: def.ID,
			Date:    today,
			Action:  d.Action,
			Ticker:  d.Ticker,
			Reason:  d.Reason,
		}
	}
	if err := s.auditLog.AppendEntries(ctx, entries); err != nil {
		return fmt.Errorf("failed to append rebalance log: %w", err)
	}

	if err := s.checkpoints.SetLastRun(ctx, JobRebalance, def.ID, today); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"ticker":  def.Ticker,
		"date":    today.Format("2006-01-02"),
		"changes": len(decisions),
	}).Info("Index rebalanced")

	return nil
}

// applyDecisions builds the next composition: exits removed, entries added
// at today's price, and weights reallocated over the whole new membership.
// Surviving incumbents keep their original entry price and date.
func (s *Service) applyDecisions(
	current contracts.CompositionSnapshot,
	ideal []contracts.Candidate,
	decisions []contracts.RebalanceDecision,
	cfg methodology.Config,
	today time.Time,
) (contracts.CompositionSnapshot, error) {
	idealByTicker := make(map[string]contracts.Candidate, len(ideal))
	for _, c := range ideal {
		idealByTicker[c.Ticker] = c
	}

	exiting := make(map[string]bool)
	entering := make(map[string]bool)
	for _, d := range decisions {
		switch d.Action {
		case contracts.ActionExit:
			exiting[d.Ticker] = true
		case contracts.ActionEntry:
			entering[d.Ticker] = true
		}
	}

	// The allocator works on candidates; a kept incumbent the screen did
	// not rank participates score-less and receives remainder weight.
	members := make([]contracts.Candidate, 0, len(current.Positions))
	for ticker, pos := range current.Positions {
		if exiting[ticker] {
			continue
		}
		if c, ok := idealByTicker[ticker]; ok {
			members = append(members, c)
		} else {
			members = append(members, contracts.Candidate{
				Ticker:       ticker,
				Sector:       "",
				CurrentPrice: pos.Price,
			})
		}
	}
	for _, c := range ideal {
		if entering[c.Ticker] {
			members = append(members, c)
		}
	}

	sort.Slice(members, func(i, j int) bool { return members[i].Ticker < members[j].Ticker })

	weights, err := s.allocator.Allocate(members, cfg.Weighting)
	if err != nil {
		return contracts.CompositionSnapshot{}, fmt.Errorf("weight reallocation failed: %w", err)
	}

	next := contracts.NewCompositionSnapshot(today)
	for _, m := range members {
		weight, ok := weights[m.Ticker]
		if !ok {
			continue
		}

		if pos, held := current.Positions[m.Ticker]; held {
			pos.Weight = weight
			next.Positions[m.Ticker] = pos
			continue
		}

		next.Positions[m.Ticker] = contracts.AssetPosition{
			Ticker:     m.Ticker,
			Weight:     weight,
			Price:      m.CurrentPrice,
			EntryPrice: m.CurrentPrice,
			EntryDate:  today,
		}
	}

	return next, nil
}

// sameDay compares calendar days in UTC. Timestamps scanned back from the
// database may carry a session timezone; comparing them raw against a
// UTC-midnight date can shift the day near midnight.
func sameDay(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func sortedStrings(values []string) []string {
	sorted := make([]string, len(values))
	copy(sorted, values)
	sort.Strings(sorted)
	return sorted
}

// Definitions exposes the definition repository for read-only surfaces.
func (s *Service) Definitions() *DefinitionRepository {
	return s.definitions
}
