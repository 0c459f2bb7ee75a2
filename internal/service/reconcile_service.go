package service

import (
	"starpath/internal/logging"
	"starpath/internal/repository"
)

// Drift is one child whose cached star total disagrees with the ledger
type Drift struct {
	ChildID     int64
	LedgerTotal int
	StatsTotal  int
}

// ReconcileService verifies the child_stats star cache against the ledger.
// The ledger is the source of truth; any mismatch is a bug signal, and
// repair always moves the cache toward the ledger.
type ReconcileService struct {
	ledger *repository.LedgerRepository
	stats  *repository.StatsRepository
}

// NewReconcileService creates a new reconcile service
func NewReconcileService(ledger *repository.LedgerRepository, stats *repository.StatsRepository) *ReconcileService {
	return &ReconcileService{ledger: ledger, stats: stats}
}

// Check reports every child whose cached total diverges from the ledger sum
func (s *ReconcileService) Check() ([]Drift, error) {
	childIDs, err := s.ledger.ListChildIDs()
	if err != nil {
		return nil, err
	}

	var drifts []Drift
	for _, childID := range childIDs {
		ledgerTotal, err := s.ledger.SumForChild(childID)
		if err != nil {
			return nil, err
		}

		stats, err := s.stats.GetOrCreate(childID)
		if err != nil {
			return nil, err
		}

		if stats.TotalStars != ledgerTotal {
			drifts = append(drifts, Drift{
				ChildID:     childID,
				LedgerTotal: ledgerTotal,
				StatsTotal:  stats.TotalStars,
			})
		}
	}

	return drifts, nil
}

// Repair overwrites drifted caches with the ledger sums and returns what
// was fixed
func (s *ReconcileService) Repair() ([]Drift, error) {
	drifts, err := s.Check()
	if err != nil {
		return nil, err
	}

	for _, drift := range drifts {
		if err := s.stats.SetTotalStars(drift.ChildID, drift.LedgerTotal); err != nil {
			return drifts, err
		}
		logging.Sugar.Infow("stats cache repaired",
			"child", drift.ChildID, "was", drift.StatsTotal, "now", drift.LedgerTotal)
	}

	return drifts, nil
}
