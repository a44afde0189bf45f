package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	AttemptStatusInProgress     = "in_progress"
	AttemptStatusSubmitted      = "submitted"
	AttemptStatusForceSubmitted = "force_submitted"
	AttemptStatusGraded         = "graded"
	AttemptStatusAbandoned      = "abandoned"
)

// ForcedReason values recorded when the system, not the candidate, ends an attempt.
const (
	ForcedReasonTimeout    = "timeout"
	ForcedReasonViolations = "violations_exceeded"
)

// TerminalStatuses are the submitted states the reclamation scheduler is
// allowed to delete. Abandoned attempts are a separate concern and stay.
var TerminalStatuses = []string{AttemptStatusSubmitted, AttemptStatusForceSubmitted, AttemptStatusGraded}

// ViolationCounters live on the attempt row and are incremented atomically per
// category. Addition is commutative, so interleaving across categories never
// changes the escalation decision.
type ViolationCounters struct {
	TabSwitches       int `json:"tab_switches" gorm:"default:0"`
	VisibilityChanges int `json:"visibility_changes" gorm:"default:0"`
	FaceEvents        int `json:"face_events" gorm:"default:0"`
	AudioEvents       int `json:"audio_events" gorm:"default:0"`
	OtherEvents       int `json:"other_events" gorm:"default:0"`
	TotalViolations   int `json:"total_violations" gorm:"default:0"`
}

// ScreenshotRef stores capture metadata only. Raw media never reaches this row.
type ScreenshotRef struct {
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int       `json:"size_bytes"`
}

// Attempt is one candidate's instance of one exam. Lifecycle fields belong to
// the session coordinator, the answers rows to the autosave pipeline, and the
// violation counters to the aggregator; each owner mutates only its own fields.
type Attempt struct {
	ID            uint `gorm:"primarykey" json:"id"`
	ExamID        uint `json:"exam_id" gorm:"not null;uniqueIndex:idx_exam_candidate_number;index:idx_exam_status"`
	Exam          Exam `json:"exam,omitempty" gorm:"foreignKey:ExamID"`
	CandidateID   uint `json:"candidate_id" gorm:"not null;uniqueIndex:idx_exam_candidate_number"`
	AttemptNumber int  `json:"attempt_number" gorm:"not null;uniqueIndex:idx_exam_candidate_number"`

	Status string `json:"status" gorm:"default:'in_progress';index:idx_exam_status"`

	StartedAt        time.Time  `json:"started_at" gorm:"not null"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
	TimeSpentSeconds int        `json:"time_spent_seconds" gorm:"default:0"`

	Answers []Answer `json:"answers,omitempty" gorm:"foreignKey:AttemptID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`

	Score        float64 `json:"score" gorm:"default:0"`
	MaxScore     float64 `json:"max_score" gorm:"default:0"`
	Percentage   int     `json:"percentage" gorm:"default:0"`
	ForcedReason string  `json:"forced_reason,omitempty"`

	Violations  ViolationCounters `json:"violations" gorm:"embedded;embeddedPrefix:violation_"`
	Screenshots []ScreenshotRef   `json:"screenshots,omitempty" gorm:"serializer:json"`

	IPAddress         string `json:"ip_address,omitempty"`
	UserAgent         string `json:"user_agent,omitempty"`
	DeviceFingerprint string `json:"device_fingerprint,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Active reports whether candidate-driven mutation is still allowed.
func (a *Attempt) Active() bool {
	return a.Status == AttemptStatusInProgress
}

// Answer holds the candidate's latest payload for one question. The unique
// index makes the autosave upsert last-write-wins per question.
type Answer struct {
	ID         uint     `gorm:"primarykey" json:"id"`
	AttemptID  uint     `json:"attempt_id" gorm:"not null;uniqueIndex:idx_attempt_question"`
	QuestionID uint     `json:"question_id" gorm:"not null;uniqueIndex:idx_attempt_question"`
	Question   Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`

	// AnswerData is the raw payload: plain text for single-choice and text
	// types, a JSON array of selected options for multiple-choice.
	AnswerData string `json:"answer_data" gorm:"type:text"`

	IsCorrect     *bool      `json:"is_correct,omitempty"`
	PointsAwarded float64    `json:"points_awarded" gorm:"default:0"`
	Feedback      string     `json:"feedback,omitempty" gorm:"type:text"`
	GradedBy      *uint      `json:"graded_by,omitempty"`
	GradedAt      *time.Time `json:"graded_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
