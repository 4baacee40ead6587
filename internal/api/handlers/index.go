package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/quantbr/indice/internal/contracts"
	"github.com/quantbr/indice/internal/index"
	"github.com/quantbr/indice/pkg/logger"
)

const defaultPointsWindow = 90 * 24 * time.Hour

// IndexHandler serves read-only views over index definitions, history
// points, compositions and rebalance logs.
type IndexHandler struct {
	definitions  *index.DefinitionRepository
	compositions contracts.CompositionStore
	points       contracts.IndexPointStore
	auditLog     contracts.RebalanceLogStore
	logger       *logger.Logger
}

// NewIndexHandler creates a new index handler.
func NewIndexHandler(
	definitions *index.DefinitionRepository,
	compositions contracts.CompositionStore,
	points contracts.IndexPointStore,
	auditLog contracts.RebalanceLogStore,
	log *logger.Logger,
) *IndexHandler {
	return &IndexHandler{
		definitions:  definitions,
		compositions: compositions,
		points:       points,
		auditLog:     auditLog,
		logger:       log,
	}
}

// List returns all index definitions.
// GET /api/indices
func (h *IndexHandler) List(w http.ResponseWriter, r *http.Request) {
	defs, err := h.definitions.List(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list index definitions")
		respondError(w, http.StatusInternalServerError, "Failed to list indices")
		return
	}

	respondJSON(w, http.StatusOK, defs)
}

// Get returns a single index definition.
// GET /api/indices/{ticker}
func (h *IndexHandler) Get(w http.ResponseWriter, r *http.Request) {
	def, ok := h.lookup(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, def)
}

// GetPoints returns the daily history points for an index. Optional
// from/to query parameters (YYYY-MM-DD) bound the range; the default
// window is the last 90 days.
// GET /api/indices/{ticker}/points
func (h *IndexHandler) GetPoints(w http.ResponseWriter, r *http.Request) {
	def, ok := h.lookup(w, r)
	if !ok {
		return
	}

	from, to, err := parseDateRange(r, defaultPointsWindow)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	points, err := h.points.ListPoints(r.Context(), def.ID, from, to)
	if err != nil {
		h.logger.WithError(err).WithField("ticker", def.Ticker).Error("Failed to list index points")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve index points")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ticker": def.Ticker,
		"from":   from.Format("2006-01-02"),
		"to":     to.Format("2006-01-02"),
		"points": points,
	})
}

// GetComposition returns the current target composition of an index.
// GET /api/indices/{ticker}/composition
func (h *IndexHandler) GetComposition(w http.ResponseWriter, r *http.Request) {
	def, ok := h.lookup(w, r)
	if !ok {
		return
	}

	snapshot, err := h.compositions.GetComposition(r.Context(), def.ID)
	if err != nil {
		h.logger.WithError(err).WithField("ticker", def.Ticker).Error("Failed to get composition")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve composition")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ticker":       def.Ticker,
		"as_of":        snapshot.Date.Format("2006-01-02"),
		"positions":    snapshot.Positions,
		"total_weight": snapshot.TotalWeight(),
	})
}

// GetRebalances returns the rebalance audit log for an index.
// GET /api/indices/{ticker}/rebalances
func (h *IndexHandler) GetRebalances(w http.ResponseWriter, r *http.Request) {
	def, ok := h.lookup(w, r)
	if !ok {
		return
	}

	from, to, err := parseDateRange(r, 365*24*time.Hour)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.auditLog.ListEntries(r.Context(), def.ID, from, to)
	if err != nil {
		h.logger.WithError(err).WithField("ticker", def.Ticker).Error("Failed to list rebalance log")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve rebalance log")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ticker":  def.Ticker,
		"entries": entries,
	})
}

func (h *IndexHandler) lookup(w http.ResponseWriter, r *http.Request) (*index.Definition, bool) {
	ticker := mux.Vars(r)["ticker"]

	def, err := h.definitions.GetByTicker(r.Context(), ticker)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Index not found")
			return nil, false
		}
		h.logger.WithError(err).WithField("ticker", ticker).Error("Failed to look up index")
		respondError(w, http.StatusInternalServerError, "Failed to look up index")
		return nil, false
	}

	return def, true
}

func parseDateRange(r *http.Request, defaultWindow time.Duration) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	to := now
	from := now.Add(-defaultWindow)

	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, time.Time{}, &dateError{param: "from"}
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, time.Time{}, &dateError{param: "to"}
		}
		to = parsed
	}

	return from, to, nil
}

type dateError struct {
	param string
}

func (e *dateError) Error() string {
	return "invalid " + e.param + " date, expected YYYY-MM-DD"
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
