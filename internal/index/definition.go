package index

import (
	"time"

	"github.com/quantbr/indice/internal/methodology"
)

// Definition is one theoretical index: identity plus its immutable
// methodology. Methodology changes are versioned through the config hash,
// never hot-patched.
type Definition struct {
	ID              int64              `json:"id"`
	Ticker          string             `json:"ticker"`
	Name            string             `json:"name"`
	Methodology     methodology.Config `json:"methodology"`
	MethodologyHash string             `json:"methodology_hash"`
	CreatedAt       time.Time          `json:"created_at"`
}

// Batch job types recorded in cron checkpoints.
const (
	JobMarkToMarket = "mark_to_market"
	JobRebalance    = "screening_rebalance"
)
