package models

import (
	"fmt"
	"time"
)

// EntryKind distinguishes earnings from compensating reversals
type EntryKind string

const (
	EntryEarn     EntryKind = "earn"
	EntryReversal EntryKind = "reversal"
)

// StarEntry is one row of the append-only star ledger, the system of record
// for reward totals. Entries are immutable once written; corrections are
// expressed as reversal entries, never as updates or deletes.
type StarEntry struct {
	ID      int64
	EntryID string // uuid, stable external reference
	ChildID int64

	Kind EntryKind

	// Stars is positive for earnings, negative for reversals
	Stars int

	SourceType  ContentKind
	ContentID   int64
	Description string

	// IdempotencyKey enforces at-most-one earning per
	// (child, source type, content, reward cycle) at the storage layer.
	IdempotencyKey string

	// ReversalOf references the EntryID of the earning being compensated
	ReversalOf string

	CreatedAt time.Time
}

// EarnKey builds the idempotency key for a single-completion earning
func EarnKey(childID int64, kind ContentKind, contentID int64, cycle int) string {
	return fmt.Sprintf("child:%d:%s:%d:cycle:%d", childID, kind, contentID, cycle)
}

// ReversalKey builds the idempotency key for the reversal of an earning
func ReversalKey(childID int64, kind ContentKind, contentID int64, cycle int) string {
	return fmt.Sprintf("child:%d:%s:%d:cycle:%d:reversal", childID, kind, contentID, cycle)
}

// ReadingKey builds the idempotency key for a per-reading book earning;
// reading is the 1-based index of the completed reading session.
func ReadingKey(childID int64, contentID int64, cycle, reading int) string {
	return fmt.Sprintf("child:%d:%s:%d:cycle:%d:reading:%d", childID, KindBook, contentID, cycle, reading)
}
