package dto

import (
	"time"

	"github.com/lshigami/Margays/internal/model"
)

type ErrorResponse struct {
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
	Details []string `json:"details,omitempty"`
}

// QuestionResponse deliberately omits correct answers: it is the candidate's
// view of a question while an attempt is running.
type QuestionResponse struct {
	ID              uint     `json:"id"`
	ExamID          uint     `json:"exam_id"`
	OrderInExam     int      `json:"order_in_exam"`
	Type            string   `json:"type"`
	Prompt          string   `json:"prompt"`
	Points          float64  `json:"points"`
	NegativeMarking float64  `json:"negative_marking"`
	Options         []string `json:"options,omitempty"`
}

type ExamSnapshotResponse struct {
	ID                   uint               `json:"id"`
	Title                string             `json:"title"`
	Description          string             `json:"description,omitempty"`
	TotalDurationMinutes int                `json:"total_duration_minutes"`
	PassingScore         int                `json:"passing_score"`
	MaxAttempts          int                `json:"max_attempts"`
	Questions            []QuestionResponse `json:"questions,omitempty"`
}

// AttemptStartResponse is returned by a successful start. SocketRoom is the
// channel the client joins for timer sync and enforcement notices.
type AttemptStartResponse struct {
	AttemptID     uint                 `json:"attempt_id"`
	ExamID        uint                 `json:"exam_id"`
	AttemptNumber int                  `json:"attempt_number"`
	Status        string               `json:"status"`
	StartedAt     time.Time            `json:"started_at"`
	SocketRoom    string               `json:"socket_room"`
	Exam          ExamSnapshotResponse `json:"exam"`
}

type SaveAnswerResponse struct {
	AttemptID  uint      `json:"attempt_id"`
	QuestionID uint      `json:"question_id"`
	SavedAt    time.Time `json:"saved_at"`
}

type SubmitResultResponse struct {
	AttemptID    uint      `json:"attempt_id"`
	Status       string    `json:"status"`
	SubmittedAt  time.Time `json:"submitted_at"`
	Score        float64   `json:"score"`
	MaxScore     float64   `json:"max_score"`
	Percentage   int       `json:"percentage"`
	Passed       bool      `json:"passed"`
	ForcedReason string    `json:"forced_reason,omitempty"`
}

type AnswerResponse struct {
	QuestionID    uint       `json:"question_id"`
	AnswerData    string     `json:"answer_data"`
	IsCorrect     *bool      `json:"is_correct,omitempty"`
	PointsAwarded float64    `json:"points_awarded"`
	Feedback      string     `json:"feedback,omitempty"`
	GradedAt      *time.Time `json:"graded_at,omitempty"`
}

type AttemptDetailResponse struct {
	ID               uint                    `json:"id"`
	ExamID           uint                    `json:"exam_id"`
	ExamTitle        string                  `json:"exam_title,omitempty"`
	CandidateID      uint                    `json:"candidate_id"`
	AttemptNumber    int                     `json:"attempt_number"`
	Status           string                  `json:"status"`
	StartedAt        time.Time               `json:"started_at"`
	SubmittedAt      *time.Time              `json:"submitted_at,omitempty"`
	TimeSpentSeconds int                     `json:"time_spent_seconds"`
	Score            float64                 `json:"score"`
	MaxScore         float64                 `json:"max_score"`
	Percentage       int                     `json:"percentage"`
	Passed           bool                    `json:"passed"`
	ForcedReason     string                  `json:"forced_reason,omitempty"`
	Answers          []AnswerResponse        `json:"answers,omitempty"`
	Violations       model.ViolationCounters `json:"violations"`
	Screenshots      []model.ScreenshotRef   `json:"screenshots,omitempty"`
}

type AttemptSummaryResponse struct {
	ID            uint       `json:"id"`
	ExamID        uint       `json:"exam_id"`
	ExamTitle     string     `json:"exam_title,omitempty"`
	CandidateID   uint       `json:"candidate_id"`
	AttemptNumber int        `json:"attempt_number"`
	Status        string     `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
	Score         float64    `json:"score"`
	MaxScore      float64    `json:"max_score"`
	Percentage    int        `json:"percentage"`
}

type ReclaimResultResponse struct {
	ExamsChecked    int   `json:"exams_checked"`
	AttemptsDeleted int64 `json:"attempts_deleted"`
}
