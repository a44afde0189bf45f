package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	ExamStatusDraft     = "draft"
	ExamStatusPending   = "pending"
	ExamStatusPublished = "published"
	ExamStatusArchived  = "archived"
)

// Exam is the read-only policy holder the session engine consumes. Authoring
// lives elsewhere; the engine only ever reads these rows.
type Exam struct {
	ID          uint   `gorm:"primarykey" json:"id"`
	Title       string `json:"title" gorm:"not null"`
	Description string `json:"description,omitempty"`
	CreatedBy   uint   `json:"created_by" gorm:"index"`
	Status      string `json:"status" gorm:"default:'draft';index"`

	StartWindow *time.Time `json:"start_window,omitempty"`
	EndWindow   *time.Time `json:"end_window,omitempty"`

	TotalDurationMinutes int `json:"total_duration_minutes" gorm:"not null"`
	MaxAttempts          int `json:"max_attempts" gorm:"default:3"`
	PassingScore         int `json:"passing_score" gorm:"default:50"` // percent

	// Violation escalation policy. WarnEvery and ViolationLimit are data, not
	// constants, so an exam can tighten or loosen enforcement.
	ViolationLimit int `json:"violation_limit" gorm:"default:10"`
	WarnEvery      int `json:"warn_every" gorm:"default:3"`

	// Rolling attempt window: when enabled, only attempts submitted within the
	// last WindowHours count toward MaxAttempts.
	RollingWindowEnabled bool `json:"rolling_window_enabled" gorm:"default:false"`
	RollingWindowHours   int  `json:"rolling_window_hours" gorm:"default:24"`

	// Auto-reset: terminal attempts older than ResetAfterHours are hard-deleted
	// by the reclamation scheduler.
	AutoResetEnabled bool `json:"auto_reset_enabled" gorm:"default:false;index"`
	ResetAfterHours  int  `json:"reset_after_hours" gorm:"default:24"`

	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:ExamID"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TotalDuration is the countdown length for one attempt of this exam.
func (e *Exam) TotalDuration() time.Duration {
	return time.Duration(e.TotalDurationMinutes) * time.Minute
}

// AvailableAt reports whether the exam can be started at the given instant.
func (e *Exam) AvailableAt(now time.Time) bool {
	if e.Status != ExamStatusPublished {
		return false
	}
	if e.StartWindow != nil && now.Before(*e.StartWindow) {
		return false
	}
	if e.EndWindow != nil && now.After(*e.EndWindow) {
		return false
	}
	return true
}
