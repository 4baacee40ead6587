package contracts

import "time"

// RebalanceAction is the membership change decided for one ticker.
type RebalanceAction string

const (
	ActionEntry RebalanceAction = "ENTRY"
	ActionExit  RebalanceAction = "EXIT"
)

// RebalanceDecision is one ENTRY/EXIT decision with a human-readable reason.
// Decisions are ordered: exits first so freed slots are visible to entries.
type RebalanceDecision struct {
	Action RebalanceAction `json:"action"`
	Ticker string          `json:"ticker"`
	Reason string          `json:"reason"`
}

// RebalanceLogEntry is the persisted, append-only audit record of a decision.
type RebalanceLogEntry struct {
	IndexID int64           `json:"index_id"`
	Date    time.Time       `json:"date"`
	Action  RebalanceAction `json:"action"`
	Ticker  string          `json:"ticker"`
	Reason  string          `json:"reason"`
}
