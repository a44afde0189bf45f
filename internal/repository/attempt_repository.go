package repository

import (
	"time"

	"github.com/lshigami/Margays/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptRepository interface {
	Create(attempt *model.Attempt) error
	Update(attempt *model.Attempt) error
	FindByID(id uint) (*model.Attempt, error)
	FindByIDWithDetails(id uint) (*model.Attempt, error)

	CountByExamAndCandidate(examID, candidateID uint) (int64, error)
	CountInWindow(examID, candidateID uint, since time.Time) (int64, error)

	UpsertAnswer(attemptID, questionID uint, answerData string) error
	FindAnswers(attemptID uint) ([]model.Answer, error)
	UpdateAnswer(answer *model.Answer) error

	TransitionStatus(attemptID uint, from, to string) (bool, error)
	FinalizeGraded(attemptID uint, toStatus string, grade func(attempt *model.Attempt, answers []model.Answer) error) (bool, error)

	IncrementViolation(attemptID uint, category string) (int, error)
	AppendScreenshot(attemptID uint, ref model.ScreenshotRef) error

	ListByCandidate(candidateID uint) ([]model.Attempt, error)
	ListAll(examID *uint) ([]model.Attempt, error)

	DeleteTerminalBefore(examID uint, cutoff time.Time) (int64, error)
}

type attemptRepository struct {
	db *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

func (r *attemptRepository) Create(attempt *model.Attempt) error {
	return r.db.Create(attempt).Error
}

func (r *attemptRepository) Update(attempt *model.Attempt) error {
	return r.db.Save(attempt).Error
}

func (r *attemptRepository) FindByID(id uint) (*model.Attempt, error) {
	var attempt model.Attempt
	if err := r.db.First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *attemptRepository) FindByIDWithDetails(id uint) (*model.Attempt, error) {
	var attempt model.Attempt
	err := r.db.
		Preload("Exam").
		Preload("Answers.Question").
		First(&attempt, id).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *attemptRepository) CountByExamAndCandidate(examID, candidateID uint) (int64, error) {
	var count int64
	err := r.db.Model(&model.Attempt{}).
		Where("exam_id = ? AND candidate_id = ?", examID, candidateID).
		Count(&count).Error
	return count, err
}

// CountInWindow counts attempts that still weigh against the max-attempts
// limit under a rolling window: everything in progress, plus anything
// submitted at or after the cutoff. Older terminal attempts exist in storage
// but no longer count.
func (r *attemptRepository) CountInWindow(examID, candidateID uint, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&model.Attempt{}).
		Where("exam_id = ? AND candidate_id = ?", examID, candidateID).
		Where("status = ? OR submitted_at >= ?", model.AttemptStatusInProgress, since).
		Count(&count).Error
	return count, err
}

// UpsertAnswer is the idempotent last-write-wins write of the autosave
// pipeline. Only the targeted question's row is touched, so concurrent edits
// to different questions cannot lose each other.
func (r *attemptRepository) UpsertAnswer(attemptID, questionID uint, answerData string) error {
	answer := model.Answer{
		AttemptID:  attemptID,
		QuestionID: questionID,
		AnswerData: answerData,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"answer_data": answerData,
			"updated_at":  time.Now(),
		}),
	}).Create(&answer).Error
}

func (r *attemptRepository) FindAnswers(attemptID uint) ([]model.Answer, error) {
	var answers []model.Answer
	err := r.db.Where("attempt_id = ?", attemptID).Find(&answers).Error
	return answers, err
}

func (r *attemptRepository) UpdateAnswer(answer *model.Answer) error {
	return r.db.Save(answer).Error
}

// TransitionStatus is the compare-and-set gate for the lifecycle state
// machine. It reports whether this caller won the transition; a false return
// with no error means someone else already moved the attempt out of `from`.
func (r *attemptRepository) TransitionStatus(attemptID uint, from, to string) (bool, error) {
	res := r.db.Model(&model.Attempt{}).
		Where("id = ? AND status = ?", attemptID, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FinalizeGraded is the submit transition: the compare-and-set out of
// in_progress and the grading persist commit together, so a storage failure
// rolls the whole transition back and the attempt stays in_progress and
// retryable instead of stuck half-submitted. The grade callback sees the row
// and its answers as of the transition and mutates them in place. The boolean
// reports whether this caller won the transition.
func (r *attemptRepository) FinalizeGraded(attemptID uint, toStatus string, grade func(attempt *model.Attempt, answers []model.Answer) error) (bool, error) {
	won := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Attempt{}).
			Where("id = ? AND status = ?", attemptID, model.AttemptStatusInProgress).
			Update("status", toStatus)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		won = true

		var attempt model.Attempt
		if err := tx.First(&attempt, attemptID).Error; err != nil {
			return err
		}
		var answers []model.Answer
		if err := tx.Where("attempt_id = ?", attemptID).Find(&answers).Error; err != nil {
			return err
		}
		if err := grade(&attempt, answers); err != nil {
			return err
		}

		if err := tx.Model(&model.Attempt{}).Where("id = ?", attemptID).
			Updates(map[string]interface{}{
				"status":             attempt.Status,
				"submitted_at":       attempt.SubmittedAt,
				"time_spent_seconds": attempt.TimeSpentSeconds,
				"score":              attempt.Score,
				"max_score":          attempt.MaxScore,
				"percentage":         attempt.Percentage,
				"forced_reason":      attempt.ForcedReason,
			}).Error; err != nil {
			return err
		}
		for i := range answers {
			if err := tx.Model(&model.Answer{}).Where("id = ?", answers[i].ID).
				Updates(map[string]interface{}{
					"is_correct":     answers[i].IsCorrect,
					"points_awarded": answers[i].PointsAwarded,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return won, nil
}

// violationCounterColumn maps an event category onto its counter column.
// Unknown categories fall into the catch-all bucket but still count toward
// the running total.
func violationCounterColumn(category string) string {
	switch category {
	case model.ViolationTabSwitch:
		return "violation_tab_switches"
	case model.ViolationVisibilityChange:
		return "violation_visibility_changes"
	case model.ViolationFaceNotVisible, model.ViolationMultipleFaces,
		model.ViolationLookingAway, model.ViolationHeadTurned:
		return "violation_face_events"
	case model.ViolationAudioDetected:
		return "violation_audio_events"
	default:
		return "violation_other_events"
	}
}

// IncrementViolation bumps the matching per-category counter and the running
// total in one statement, then reads the new total back. The increment itself
// is atomic; the escalation decision tolerates a concurrent read because the
// force-submit it may trigger is idempotent.
func (r *attemptRepository) IncrementViolation(attemptID uint, category string) (int, error) {
	column := violationCounterColumn(category)
	err := r.db.Model(&model.Attempt{}).
		Where("id = ?", attemptID).
		Updates(map[string]interface{}{
			column:                       gorm.Expr(column + " + 1"),
			"violation_total_violations": gorm.Expr("violation_total_violations + 1"),
		}).Error
	if err != nil {
		return 0, err
	}

	var total int
	err = r.db.Model(&model.Attempt{}).
		Where("id = ?", attemptID).
		Pluck("violation_total_violations", &total).Error
	return total, err
}

// AppendScreenshot reads and rewrites the serialized ref list in one
// transaction. Captures arrive well apart, so the read-modify-write window is
// not worth a row lock.
func (r *attemptRepository) AppendScreenshot(attemptID uint, ref model.ScreenshotRef) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var attempt model.Attempt
		if err := tx.First(&attempt, attemptID).Error; err != nil {
			return err
		}
		attempt.Screenshots = append(attempt.Screenshots, ref)
		return tx.Model(&model.Attempt{}).Where("id = ?", attemptID).
			Update("screenshots", attempt.Screenshots).Error
	})
}

func (r *attemptRepository) ListByCandidate(candidateID uint) ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := r.db.Preload("Exam").
		Where("candidate_id = ?", candidateID).
		Order("created_at DESC").
		Find(&attempts).Error
	return attempts, err
}

func (r *attemptRepository) ListAll(examID *uint) ([]model.Attempt, error) {
	var attempts []model.Attempt
	query := r.db.Preload("Exam")
	if examID != nil {
		query = query.Where("exam_id = ?", *examID)
	}
	err := query.Order("created_at DESC").Find(&attempts).Error
	return attempts, err
}

// DeleteTerminalBefore hard-deletes terminal attempts submitted before the
// cutoff, answers first so the sweep also works on databases without cascade
// enforcement. In-progress and abandoned attempts are never touched.
func (r *attemptRepository) DeleteTerminalBefore(examID uint, cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Model(&model.Attempt{}).
			Where("exam_id = ? AND status IN ? AND submitted_at < ?", examID, model.TerminalStatuses, cutoff).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Unscoped().Where("attempt_id IN ?", ids).Delete(&model.Answer{}).Error; err != nil {
			return err
		}
		res := tx.Unscoped().Where("id IN ?", ids).Delete(&model.Attempt{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, err
}
