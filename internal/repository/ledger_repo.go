package repository

import (
	"database/sql"
	"fmt"

	"starpath/internal/database"
	"starpath/internal/models"
)

// ErrDuplicateEntry signals that an entry with the same idempotency key
// already exists. Callers treat this as "already awarded", not a failure.
var ErrDuplicateEntry = fmt.Errorf("ledger entry already exists")

// LedgerRepository handles the append-only star ledger. Entries are only
// ever inserted; the unique idempotency key is the concurrency boundary
// that makes duplicate completion requests lose cleanly.
type LedgerRepository struct {
	db database.DBTX
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db database.DBTX) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Insert appends an entry. Returns ErrDuplicateEntry when the idempotency
// key is already present.
func (r *LedgerRepository) Insert(entry *models.StarEntry) (*models.StarEntry, error) {
	query := `
		INSERT INTO star_entries
			(entry_id, child_id, kind, stars, source_type, content_id,
			 description, idempotency_key, reversal_of)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	id, err := r.db.ExecReturningID(query,
		entry.EntryID,
		entry.ChildID,
		string(entry.Kind),
		entry.Stars,
		string(entry.SourceType),
		entry.ContentID,
		entry.Description,
		entry.IdempotencyKey,
		entry.ReversalOf,
	)
	if err != nil {
		if r.db.GetDialect().IsUniqueViolation(err) {
			return nil, ErrDuplicateEntry
		}
		return nil, fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	entry.ID = id
	return entry, nil
}

// FindByIdempotencyKey retrieves an entry by its idempotency key; returns
// nil when absent.
func (r *LedgerRepository) FindByIdempotencyKey(key string) (*models.StarEntry, error) {
	query := `
		SELECT id, entry_id, child_id, kind, stars, source_type, content_id,
		       description, idempotency_key, reversal_of, created_at
		FROM star_entries
		WHERE idempotency_key = ?
	`

	entry, err := scanEntry(r.db.QueryRow(query, key).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListForChild retrieves a child's entries, oldest first
func (r *LedgerRepository) ListForChild(childID int64) ([]models.StarEntry, error) {
	query := `
		SELECT id, entry_id, child_id, kind, stars, source_type, content_id,
		       description, idempotency_key, reversal_of, created_at
		FROM star_entries
		WHERE child_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.Query(query, childID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.StarEntry
	for rows.Next() {
		entry, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}

	return entries, rows.Err()
}

// SumEarnedForCycle totals the earn entries recorded for one reward cycle
// of a (child, content) pair: the completion earning plus any per-reading
// earnings keyed under the same cycle.
func (r *LedgerRepository) SumEarnedForCycle(childID int64, kind models.ContentKind, contentID int64, cycle int) (int, error) {
	key := models.EarnKey(childID, kind, contentID, cycle)
	query := `
		SELECT COALESCE(SUM(stars), 0)
		FROM star_entries
		WHERE kind = ? AND (idempotency_key = ? OR idempotency_key LIKE ?)
	`

	var sum int
	err := r.db.QueryRow(query, string(models.EntryEarn), key, key+":reading:%").Scan(&sum)
	return sum, err
}

// SumForChild computes the child's star balance from the ledger
func (r *LedgerRepository) SumForChild(childID int64) (int, error) {
	query := "SELECT COALESCE(SUM(stars), 0) FROM star_entries WHERE child_id = ?"

	var sum int
	err := r.db.QueryRow(query, childID).Scan(&sum)
	return sum, err
}

// ListChildIDs returns the distinct children present in the ledger
func (r *LedgerRepository) ListChildIDs() ([]int64, error) {
	rows, err := r.db.Query("SELECT DISTINCT child_id FROM star_entries ORDER BY child_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func scanEntry(scan func(dest ...interface{}) error) (*models.StarEntry, error) {
	entry := &models.StarEntry{}
	var kind, sourceType string

	err := scan(
		&entry.ID,
		&entry.EntryID,
		&entry.ChildID,
		&kind,
		&entry.Stars,
		&sourceType,
		&entry.ContentID,
		&entry.Description,
		&entry.IdempotencyKey,
		&entry.ReversalOf,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.Kind = models.EntryKind(kind)
	entry.SourceType = models.ContentKind(sourceType)
	return entry, nil
}
