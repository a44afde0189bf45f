package model

import (
	"time"
)

// Violation categories, the closed set produced by the external detector.
const (
	ViolationFaceNotVisible    = "face_not_visible"
	ViolationMultipleFaces     = "multiple_faces"
	ViolationLookingAway       = "looking_away"
	ViolationHeadTurned        = "head_turned"
	ViolationAudioDetected     = "audio_detected"
	ViolationTabSwitch         = "tab_switch"
	ViolationVisibilityChange  = "visibility_change"
	ViolationCopyPaste         = "copy_paste"
	ViolationScreenshotAttempt = "screenshot_attempt"
)

const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// KnownViolationCategory reports whether the detector sent a category the
// engine recognizes. Unknown categories are still counted, as "other".
func KnownViolationCategory(category string) bool {
	switch category {
	case ViolationFaceNotVisible, ViolationMultipleFaces, ViolationLookingAway,
		ViolationHeadTurned, ViolationAudioDetected, ViolationTabSwitch,
		ViolationVisibilityChange, ViolationCopyPaste, ViolationScreenshotAttempt:
		return true
	}
	return false
}

// ViolationLog is append-only: rows are created by the aggregator and never
// updated, which is why there is no UpdatedAt or soft delete here.
type ViolationLog struct {
	ID          uint   `gorm:"primarykey" json:"id"`
	AttemptID   uint   `json:"attempt_id" gorm:"not null;index:idx_violation_attempt_time"`
	ExamID      uint   `json:"exam_id" gorm:"not null;index"`
	CandidateID uint   `json:"candidate_id" gorm:"not null;index"`
	Category    string `json:"category" gorm:"not null;index"`
	Message     string `json:"message" gorm:"type:text"`
	Severity    string `json:"severity" gorm:"default:'medium'"`

	OccurredAt time.Time `json:"occurred_at" gorm:"not null;index:idx_violation_attempt_time"`
	CreatedAt  time.Time `json:"created_at"`
}
