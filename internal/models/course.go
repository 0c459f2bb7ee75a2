package models

import "time"

// Course is an ordered group of content units, organised into steps. A
// course may declare a prerequisite course that must be completed before
// this one unlocks.
type Course struct {
	ID             int64
	Name           string
	PrerequisiteID *int64
	CreatedAt      time.Time
}

// CourseItem ties a content unit into a course at a given step. Optional
// items don't gate completion or step advancement.
type CourseItem struct {
	CourseID  int64
	ContentID int64
	Step      int
	Required  bool
}

// CourseProgress is the per (child, course) unlock state, derived from the
// child's progress records for the course's items.
type CourseProgress struct {
	ChildID  int64
	CourseID int64

	Status             ProgressStatus
	ProgressPercentage int

	// CurrentStep advances only when every required item tagged with the
	// step is completed; steps are never skipped.
	CurrentStep int

	StartedAt   *time.Time
	CompletedAt *time.Time
	UpdatedAt   time.Time
}
