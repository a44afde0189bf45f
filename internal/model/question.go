package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	QuestionTypeMCQSingle   = "mcq_single"
	QuestionTypeMCQMultiple = "mcq_multiple"
	QuestionTypeShortText   = "short_text"
	QuestionTypeLongText    = "long_text"
	QuestionTypeFileUpload  = "file_upload"
)

type Question struct {
	ID          uint    `gorm:"primarykey" json:"id"`
	ExamID      uint    `json:"exam_id" gorm:"not null;index"`
	OrderInExam int     `json:"order_in_exam" gorm:"not null"`
	Type        string  `json:"type" gorm:"not null"`
	Prompt      string  `json:"prompt" gorm:"type:text;not null"`
	Points      float64 `json:"points" gorm:"not null;default:1"`
	// NegativeMarking is a magnitude; it is subtracted from the score when a
	// choice answer is wrong.
	NegativeMarking float64 `json:"negative_marking" gorm:"default:0"`

	Options        []string `json:"options,omitempty" gorm:"serializer:json"`
	CorrectAnswers []string `json:"-" gorm:"serializer:json"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// AutoScorable reports whether the grading engine scores this type itself.
// Long text and file uploads wait for a manual grading pass.
func (q *Question) AutoScorable() bool {
	return q.Type == QuestionTypeMCQSingle || q.Type == QuestionTypeMCQMultiple || q.Type == QuestionTypeShortText
}
