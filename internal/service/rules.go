package service

import (
	"starpath/internal/models"
)

// videoCompletionThreshold is the watched percentage at which a video
// counts as fully viewed.
const videoCompletionThreshold = 90

// Signal is the content-type-specific payload of one interaction. Only the
// fields relevant to the content kind are consulted.
type Signal struct {
	// RequestID is an optional client-supplied idempotency token; a repeat
	// of the last seen token is acknowledged without mutating anything.
	RequestID string

	// Completed is the explicit completion flag for lessons
	Completed bool

	// CompletionPercentage is the watched share for videos, 0-100
	CompletionPercentage *int

	// Score/MaxScore apply to activities and quizzes
	Score    *int
	MaxScore *int

	// RecordedAudioRef marks a chant or audio assignment as submitted
	RecordedAudioRef string

	// ReadingSessionComplete records one finished book reading session
	ReadingSessionComplete bool

	// ReadingDelta is an admin correction to the reading count; it may be
	// negative but can never take the count below zero.
	ReadingDelta int

	TimeSpentSeconds int
}

// Rule applies a signal to a progress record for one content kind and
// reports whether the kind's completion condition is now satisfied. Rules
// mutate counters on the record; transitions and rewards stay with the
// dispatcher.
type Rule func(rec *models.ProgressRecord, unit *models.ContentUnit, sig Signal) (bool, error)

var completionRules = map[models.ContentKind]Rule{
	models.KindLesson:   lessonRule,
	models.KindActivity: activityRule,
	models.KindChant:    recordingRule,
	models.KindAudio:    recordingRule,
	models.KindBook:     bookRule,
	models.KindVideo:    videoRule,
	models.KindExplore:  exploreRule,
}

// ruleFor resolves the completion rule for a content kind
func ruleFor(kind models.ContentKind) (Rule, error) {
	rule, ok := completionRules[kind]
	if !ok {
		return nil, NewValidationError("unknown content kind: %s", kind)
	}
	return rule, nil
}

// lessonRule completes on an explicit completion signal
func lessonRule(rec *models.ProgressRecord, unit *models.ContentUnit, sig Signal) (bool, error) {
	if sig.CompletionPercentage != nil {
		pct := *sig.CompletionPercentage
		if pct < 0 || pct > 100 {
			return false, NewValidationError("completion percentage out of range: %d", pct)
		}
		if pct > rec.ProgressPercentage {
			rec.ProgressPercentage = pct
		}
	}
	return sig.Completed, nil
}

// activityRule completes when the score meets the passing threshold. A
// threshold of zero means any submission completes the activity.
func activityRule(rec *models.ProgressRecord, unit *models.ContentUnit, sig Signal) (bool, error) {
	if sig.Score == nil || sig.MaxScore == nil {
		return false, NewValidationError("activity interaction requires score and maxScore")
	}
	if *sig.MaxScore <= 0 {
		return false, NewValidationError("maxScore must be positive, got %d", *sig.MaxScore)
	}
	if *sig.Score < 0 || *sig.Score > *sig.MaxScore {
		return false, NewValidationError("score %d out of range [0,%d]", *sig.Score, *sig.MaxScore)
	}

	score := *sig.Score
	maxScore := *sig.MaxScore
	rec.Score = &score
	rec.MaxScore = &maxScore

	pct := models.Percent(score, maxScore)
	if pct > rec.ProgressPercentage {
		rec.ProgressPercentage = pct
	}

	return pct >= unit.PassingScorePercent, nil
}

// recordingRule completes chants and audio assignments when a recorded
// audio reference is attached
func recordingRule(rec *models.ProgressRecord, unit *models.ContentUnit, sig Signal) (bool, error) {
	if sig.RecordedAudioRef == "" {
		return false, nil
	}
	rec.RecordedAudioRef = sig.RecordedAudioRef
	return true, nil
}

// videoRule tracks the furthest watched percentage; a full view bumps the
// watch count and completes the video
func videoRule(rec *models.ProgressRecord, unit *models.ContentUnit, sig Signal) (bool, error) {
	if sig.CompletionPercentage == nil {
		return false, NewValidationError("video interaction requires completionPercentage")
	}
	pct := *sig.CompletionPercentage
	if pct < 0 || pct > 100 {
		return false, NewValidationError("completion percentage out of range: %d", pct)
	}

	if pct > rec.ProgressPercentage {
		rec.ProgressPercentage = pct
	}

	if pct >= videoCompletionThreshold {
		rec.WatchCount++
		return true, nil
	}
	return false, nil
}

// exploreRule counts watches toward the unit's required watch count
func exploreRule(rec *models.ProgressRecord, unit *models.ContentUnit, sig Signal) (bool, error) {
	required := unit.RequiredWatchCount
	if required <= 0 {
		required = 1
	}

	rec.WatchCount++
	if pct := models.Percent(rec.WatchCount, required); pct > rec.ProgressPercentage {
		rec.ProgressPercentage = pct
	}

	return rec.WatchCount >= required, nil
}

// requiredReadings is the effective reading requirement for a book
func requiredReadings(unit *models.ContentUnit) int {
	if unit.RequiredReadingCount > 0 {
		return unit.RequiredReadingCount
	}
	return 1
}

// bookRule counts completed reading sessions toward the required count.
// Decrements below zero are rejected before anything is applied.
func bookRule(rec *models.ProgressRecord, unit *models.ContentUnit, sig Signal) (bool, error) {
	required := requiredReadings(unit)

	delta := sig.ReadingDelta
	if sig.ReadingSessionComplete {
		delta++
	}
	if rec.ReadingCount+delta < 0 {
		return false, NewValidationError("reading count cannot go below zero")
	}
	rec.ReadingCount += delta

	pct := models.Percent(rec.ReadingCount, required)
	if pct > rec.ProgressPercentage || delta < 0 {
		rec.ProgressPercentage = pct
	}

	return rec.ReadingCount >= required, nil
}
