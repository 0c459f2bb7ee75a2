package service

import (
	"time"

	"starpath/internal/logging"
	"starpath/internal/models"
	"starpath/internal/repository"
)

// UnlockService computes locked/in_progress/completed state for courses
// from the child's progress records. Course state is always derived; the
// stored course_progress row is just the latest computation.
type UnlockService struct {
	courses  *repository.CourseRepository
	progress *repository.ProgressRepository

	// maxInProgress caps simultaneously unlocked courses on auto-assignment
	maxInProgress int

	now func() time.Time
}

// NewUnlockService creates a new unlock service
func NewUnlockService(courses *repository.CourseRepository, progress *repository.ProgressRepository, maxInProgress int) *UnlockService {
	if maxInProgress <= 0 {
		maxInProgress = 1
	}
	return &UnlockService{
		courses:       courses,
		progress:      progress,
		maxInProgress: maxInProgress,
		now:           time.Now,
	}
}

// ComputeStatus recomputes and persists the unlock state of one course for
// one child.
func (s *UnlockService) ComputeStatus(childID, courseID int64) (*models.CourseProgress, error) {
	course, err := s.courses.GetByID(courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, NewNotFoundError("course", courseID)
	}

	items, err := s.courses.GetItems(courseID)
	if err != nil {
		return nil, err
	}

	records, err := s.progress.ListByChild(childID)
	if err != nil {
		return nil, err
	}

	totalRequired := 0
	completedRequired := 0
	anyProgress := false
	for _, item := range items {
		rec, ok := records[item.ContentID]
		if ok && (rec.Status == models.StatusInProgress || rec.Status == models.StatusCompleted) {
			anyProgress = true
		}
		if !item.Required {
			continue
		}
		totalRequired++
		if ok && rec.Status == models.StatusCompleted {
			completedRequired++
		}
	}

	status := models.StatusNotStarted
	switch {
	case totalRequired > 0 && completedRequired == totalRequired:
		status = models.StatusCompleted
	case anyProgress:
		status = models.StatusInProgress
	}

	// A prerequisite that isn't completed locks the course, unless the
	// course itself is already done
	if status != models.StatusCompleted && course.PrerequisiteID != nil {
		prereqDone, err := s.prerequisiteCompleted(childID, *course.PrerequisiteID)
		if err != nil {
			return nil, err
		}
		if !prereqDone {
			status = models.StatusLocked
		}
	}

	cp := &models.CourseProgress{
		ChildID:            childID,
		CourseID:           courseID,
		Status:             status,
		ProgressPercentage: models.Percent(completedRequired, totalRequired),
		CurrentStep:        currentStep(items, records),
	}

	existing, err := s.courses.GetProgress(childID, courseID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		cp.StartedAt = existing.StartedAt
		cp.CompletedAt = existing.CompletedAt
	}

	now := s.now()
	if cp.StartedAt == nil && anyProgress {
		cp.StartedAt = &now
	}
	// CompletedAt is set exactly once, even when recomputed repeatedly
	if cp.CompletedAt == nil && status == models.StatusCompleted {
		cp.CompletedAt = &now
	}

	if err := s.courses.SaveProgress(cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// currentStep walks the steps in order and stops at the first with an
// incomplete required item. Later-step completions never let a child skip
// ahead.
func currentStep(items []models.CourseItem, records map[int64]models.ProgressRecord) int {
	if len(items) == 0 {
		return 1
	}

	stepDone := make(map[int]bool)
	maxStep := 1
	for _, item := range items {
		if item.Step > maxStep {
			maxStep = item.Step
		}
		if !item.Required {
			continue
		}
		done, seen := stepDone[item.Step]
		if !seen {
			done = true
		}
		rec, ok := records[item.ContentID]
		if !ok || rec.Status != models.StatusCompleted {
			done = false
		}
		stepDone[item.Step] = done
	}

	for step := 1; step <= maxStep; step++ {
		if done, seen := stepDone[step]; seen && !done {
			return step
		}
	}
	return maxStep
}

func (s *UnlockService) prerequisiteCompleted(childID, prereqID int64) (bool, error) {
	cp, err := s.courses.GetProgress(childID, prereqID)
	if err != nil {
		return false, err
	}
	return cp != nil && cp.Status == models.StatusCompleted, nil
}

// RecomputeForContent refreshes every course that contains the given
// content unit. Failures here never fail the completion that triggered
// them; they are logged and the next interaction recomputes again.
func (s *UnlockService) RecomputeForContent(childID, contentID int64) {
	courseIDs, err := s.courses.CoursesContaining(contentID)
	if err != nil {
		logging.Sugar.Warnw("course lookup failed", "content", contentID, "error", err)
		return
	}

	for _, courseID := range courseIDs {
		if _, err := s.ComputeStatus(childID, courseID); err != nil {
			logging.Sugar.Warnw("course recompute failed",
				"child", childID, "course", courseID, "error", err)
		}
	}
}

// AssignCourses creates progress rows for every course the child doesn't
// have yet. Only the first eligible courses (prerequisite satisfied) start
// unlocked, up to the in-progress cap; the rest start locked.
func (s *UnlockService) AssignCourses(childID int64) ([]models.CourseProgress, error) {
	courses, err := s.courses.List()
	if err != nil {
		return nil, err
	}

	existing, err := s.courses.ListProgressForChild(childID)
	if err != nil {
		return nil, err
	}

	have := make(map[int64]bool, len(existing))
	unlocked := 0
	for _, cp := range existing {
		have[cp.CourseID] = true
		if cp.Status == models.StatusInProgress || cp.Status == models.StatusNotStarted {
			unlocked++
		}
	}

	var assigned []models.CourseProgress
	for _, course := range courses {
		if have[course.ID] {
			continue
		}

		eligible := true
		if course.PrerequisiteID != nil {
			eligible, err = s.prerequisiteCompleted(childID, *course.PrerequisiteID)
			if err != nil {
				return nil, err
			}
		}

		status := models.StatusLocked
		if eligible && unlocked < s.maxInProgress {
			status = models.StatusNotStarted
			unlocked++
		}

		cp := &models.CourseProgress{
			ChildID:     childID,
			CourseID:    course.ID,
			Status:      status,
			CurrentStep: 1,
		}
		if err := s.courses.SaveProgress(cp); err != nil {
			return nil, err
		}
		assigned = append(assigned, *cp)
	}

	return assigned, nil
}
