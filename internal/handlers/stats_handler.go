package handlers

import (
	"net/http"

	"starpath/internal/repository"
	"starpath/internal/service"
)

// StatsHandler handles stats, ledger and reconciliation HTTP requests
type StatsHandler struct {
	stats     *service.StatsService
	ledger    *repository.LedgerRepository
	reconcile *service.ReconcileService
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(stats *service.StatsService, ledger *repository.LedgerRepository, reconcile *service.ReconcileService) *StatsHandler {
	return &StatsHandler{stats: stats, ledger: ledger, reconcile: reconcile}
}

// GetChildStats retrieves a child's aggregate stats and badges
func (h *StatsHandler) GetChildStats(w http.ResponseWriter, r *http.Request) {
	childID, err := pathID(r, "childID")
	if err != nil {
		writeError(w, err)
		return
	}

	stats, badges, err := h.stats.GetChildStats(childID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":  stats,
		"badges": badges,
	})
}

// GetLedger retrieves a child's star ledger, newest first
func (h *StatsHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	childID, err := pathID(r, "childID")
	if err != nil {
		writeError(w, err)
		return
	}

	entries, err := h.ledger.ListForChild(childID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// CheckDrift reports children whose cached star totals disagree with the
// ledger.
func (h *StatsHandler) CheckDrift(w http.ResponseWriter, r *http.Request) {
	drifts, err := h.reconcile.Check()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"drift_count": len(drifts),
		"drifts":      drifts,
	})
}

// RepairDrift resets drifted star caches from the ledger
func (h *StatsHandler) RepairDrift(w http.ResponseWriter, r *http.Request) {
	drifts, err := h.reconcile.Repair()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"repaired_count": len(drifts),
		"repaired":       drifts,
	})
}
