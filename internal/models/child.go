package models

import "time"

// ChildProfile represents a learner, owned by exactly one parent account.
// Profiles are soft-deleted (IsActive=false) and never removed while
// progress data exists for them.
type ChildProfile struct {
	ID          int64
	ParentEmail string
	Name        string
	Age         int
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
