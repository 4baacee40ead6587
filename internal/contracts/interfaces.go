package contracts

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a latest-known price for a ticker.
type Quote struct {
	Ticker string          `json:"ticker"`
	Price  decimal.Decimal `json:"price"`
	Date   time.Time       `json:"date"`
}

// QuoteProvider supplies latest prices and cash dividends. Raw market-data
// ingestion lives behind this interface; the engine never fetches directly.
type QuoteProvider interface {
	// GetLatestPrices returns the last-known quote per ticker. Tickers with
	// no available quote are simply absent from the result.
	GetLatestPrices(ctx context.Context, tickers []string) (map[string]Quote, error)

	// GetCashDividends returns dividends going ex on the given date, per
	// ticker. Tickers without a dividend are absent.
	GetCashDividends(ctx context.Context, tickers []string, date time.Time) (map[string]decimal.Decimal, error)
}

// CalendarProvider is the trading-day/timezone authority. Holiday and weekend
// logic is a separate concern and stays behind this interface.
type CalendarProvider interface {
	TodayInBrazil() time.Time
	IsTradingDay(date time.Time) bool
	PreviousTradingDay(date time.Time) time.Time
}

// FundamentalsProvider supplies the scored candidate universe for screening.
type FundamentalsProvider interface {
	// Universe returns every candidate the provider knows about, with
	// fundamentals and scores populated. Screening narrows it down.
	Universe(ctx context.Context) ([]Candidate, error)
}

// CompositionStore is the durable state of current index memberships.
// Membership changes replace the whole composition in one transaction.
type CompositionStore interface {
	GetComposition(ctx context.Context, indexID int64) (CompositionSnapshot, error)
	ReplaceComposition(ctx context.Context, indexID int64, snapshot CompositionSnapshot) error
}

// IndexPointStore appends one DailyIndexPoint per trading day per index.
// Upserts are keyed by (indexID, date).
type IndexPointStore interface {
	SavePoint(ctx context.Context, indexID int64, point DailyIndexPoint) error
	GetLatestPoint(ctx context.Context, indexID int64) (*DailyIndexPoint, error)
	GetPoint(ctx context.Context, indexID int64, date time.Time) (*DailyIndexPoint, error)
	ListPoints(ctx context.Context, indexID int64, from, to time.Time) ([]DailyIndexPoint, error)
}

// RebalanceLogStore is the append-only rebalance audit trail.
type RebalanceLogStore interface {
	AppendEntries(ctx context.Context, entries []RebalanceLogEntry) error
	ListEntries(ctx context.Context, indexID int64, from, to time.Time) ([]RebalanceLogEntry, error)
}

// CheckpointStore marks batch-job progress so re-runs are cheap no-ops.
type CheckpointStore interface {
	GetLastRun(ctx context.Context, jobType string, indexID int64) (*time.Time, error)
	SetLastRun(ctx context.Context, jobType string, indexID int64, date time.Time) error
}
