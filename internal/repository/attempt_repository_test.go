package repository

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lshigami/Margays/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: glogger.Default.LogMode(glogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.Exam{},
		&model.Question{},
		&model.Attempt{},
		&model.Answer{},
		&model.ViolationLog{},
	))
	return db
}

func seedAttempt(t *testing.T, db *gorm.DB, status string) *model.Attempt {
	t.Helper()
	attempt := &model.Attempt{
		ExamID:        1,
		CandidateID:   1,
		AttemptNumber: 1,
		Status:        status,
		StartedAt:     time.Now(),
	}
	require.NoError(t, db.Create(attempt).Error)
	return attempt
}

func TestTransitionStatusCompareAndSet(t *testing.T) {
	db := newTestDB(t)
	repo := NewAttemptRepository(db)
	attempt := seedAttempt(t, db, model.AttemptStatusInProgress)

	won, err := repo.TransitionStatus(attempt.ID, model.AttemptStatusInProgress, model.AttemptStatusSubmitted)
	require.NoError(t, err)
	assert.True(t, won)

	// The second caller finds the row already moved.
	won, err = repo.TransitionStatus(attempt.ID, model.AttemptStatusInProgress, model.AttemptStatusForceSubmitted)
	require.NoError(t, err)
	assert.False(t, won)

	stored, err := repo.FindByID(attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptStatusSubmitted, stored.Status)
}

func TestFinalizeGraded(t *testing.T) {
	db := newTestDB(t)
	repo := NewAttemptRepository(db)
	attempt := seedAttempt(t, db, model.AttemptStatusInProgress)
	require.NoError(t, repo.UpsertAnswer(attempt.ID, 5, "b"))

	t.Run("callback failure rolls the transition back", func(t *testing.T) {
		won, err := repo.FinalizeGraded(attempt.ID, model.AttemptStatusSubmitted, func(a *model.Attempt, answers []model.Answer) error {
			return errors.New("grading persist failed")
		})
		require.Error(t, err)
		assert.False(t, won)

		stored, err := repo.FindByID(attempt.ID)
		require.NoError(t, err)
		assert.Equal(t, model.AttemptStatusInProgress, stored.Status)
	})

	t.Run("winner persists attempt and answers together", func(t *testing.T) {
		now := time.Now()
		won, err := repo.FinalizeGraded(attempt.ID, model.AttemptStatusSubmitted, func(a *model.Attempt, answers []model.Answer) error {
			require.Len(t, answers, 1)
			correct := true
			answers[0].IsCorrect = &correct
			answers[0].PointsAwarded = 10
			a.Status = model.AttemptStatusGraded
			a.SubmittedAt = &now
			a.Score = 10
			a.MaxScore = 10
			a.Percentage = 100
			return nil
		})
		require.NoError(t, err)
		assert.True(t, won)

		stored, err := repo.FindByID(attempt.ID)
		require.NoError(t, err)
		assert.Equal(t, model.AttemptStatusGraded, stored.Status)
		assert.Equal(t, 10.0, stored.Score)

		answers, err := repo.FindAnswers(attempt.ID)
		require.NoError(t, err)
		require.Len(t, answers, 1)
		assert.Equal(t, 10.0, answers[0].PointsAwarded)
	})

	t.Run("loser is a no-op and never grades", func(t *testing.T) {
		won, err := repo.FinalizeGraded(attempt.ID, model.AttemptStatusForceSubmitted, func(a *model.Attempt, answers []model.Answer) error {
			t.Fatal("grade callback must not run for a lost transition")
			return nil
		})
		require.NoError(t, err)
		assert.False(t, won)
	})
}

func TestUpsertAnswerLastWriteWins(t *testing.T) {
	db := newTestDB(t)
	repo := NewAttemptRepository(db)
	attempt := seedAttempt(t, db, model.AttemptStatusInProgress)

	require.NoError(t, repo.UpsertAnswer(attempt.ID, 5, "draft one"))
	require.NoError(t, repo.UpsertAnswer(attempt.ID, 5, "draft two"))
	require.NoError(t, repo.UpsertAnswer(attempt.ID, 6, "other question"))

	answers, err := repo.FindAnswers(attempt.ID)
	require.NoError(t, err)
	require.Len(t, answers, 2)

	byQuestion := map[uint]string{}
	for _, a := range answers {
		byQuestion[a.QuestionID] = a.AnswerData
	}
	assert.Equal(t, "draft two", byQuestion[5])
	assert.Equal(t, "other question", byQuestion[6])
}

func TestIncrementViolationCounterRouting(t *testing.T) {
	db := newTestDB(t)
	repo := NewAttemptRepository(db)
	attempt := seedAttempt(t, db, model.AttemptStatusInProgress)

	events := []string{
		model.ViolationTabSwitch,
		model.ViolationVisibilityChange,
		model.ViolationFaceNotVisible,
		model.ViolationMultipleFaces,
		model.ViolationLookingAway,
		model.ViolationAudioDetected,
		model.ViolationCopyPaste,
		"something_new",
	}
	var total int
	var err error
	for _, category := range events {
		total, err = repo.IncrementViolation(attempt.ID, category)
		require.NoError(t, err)
	}
	assert.Equal(t, len(events), total)

	stored, err := repo.FindByID(attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Violations.TabSwitches)
	assert.Equal(t, 1, stored.Violations.VisibilityChanges)
	assert.Equal(t, 3, stored.Violations.FaceEvents, "face categories share one bucket")
	assert.Equal(t, 1, stored.Violations.AudioEvents)
	assert.Equal(t, 2, stored.Violations.OtherEvents, "copy_paste and unknown categories land in the catch-all")
	assert.Equal(t, len(events), stored.Violations.TotalViolations)
}

func TestCountInWindow(t *testing.T) {
	db := newTestDB(t)
	repo := NewAttemptRepository(db)

	now := time.Now()
	recent := now.Add(-2 * time.Hour)
	stale := now.Add(-30 * time.Hour)
	rows := []model.Attempt{
		{ExamID: 1, CandidateID: 1, AttemptNumber: 1, Status: model.AttemptStatusGraded, StartedAt: stale, SubmittedAt: &stale},
		{ExamID: 1, CandidateID: 1, AttemptNumber: 2, Status: model.AttemptStatusGraded, StartedAt: recent, SubmittedAt: &recent},
		{ExamID: 1, CandidateID: 1, AttemptNumber: 3, Status: model.AttemptStatusInProgress, StartedAt: now},
		{ExamID: 1, CandidateID: 2, AttemptNumber: 1, Status: model.AttemptStatusGraded, StartedAt: recent, SubmittedAt: &recent},
	}
	require.NoError(t, db.Create(&rows).Error)

	count, err := repo.CountInWindow(1, 1, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "in_progress plus the recent submission; the stale one aged out")

	raw, err := repo.CountByExamAndCandidate(1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), raw)
}

func TestDeleteTerminalBefore(t *testing.T) {
	db := newTestDB(t)
	repo := NewAttemptRepository(db)

	now := time.Now()
	old := now.Add(-40 * time.Hour)
	fresh := now.Add(-2 * time.Hour)
	rows := []model.Attempt{
		{ExamID: 1, CandidateID: 1, AttemptNumber: 1, Status: model.AttemptStatusGraded, StartedAt: old, SubmittedAt: &old},
		{ExamID: 1, CandidateID: 1, AttemptNumber: 2, Status: model.AttemptStatusForceSubmitted, StartedAt: old, SubmittedAt: &old},
		{ExamID: 1, CandidateID: 1, AttemptNumber: 3, Status: model.AttemptStatusGraded, StartedAt: fresh, SubmittedAt: &fresh},
		{ExamID: 1, CandidateID: 1, AttemptNumber: 4, Status: model.AttemptStatusAbandoned, StartedAt: old},
		{ExamID: 2, CandidateID: 1, AttemptNumber: 1, Status: model.AttemptStatusGraded, StartedAt: old, SubmittedAt: &old},
	}
	require.NoError(t, db.Create(&rows).Error)
	require.NoError(t, db.Create(&model.Answer{AttemptID: rows[0].ID, QuestionID: 1, AnswerData: "x"}).Error)

	deleted, err := repo.DeleteTerminalBefore(1, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	var remaining int64
	require.NoError(t, db.Model(&model.Attempt{}).Where("exam_id = ?", 1).Count(&remaining).Error)
	assert.Equal(t, int64(2), remaining, "fresh and abandoned attempts survive")

	var answers int64
	require.NoError(t, db.Model(&model.Answer{}).Where("attempt_id = ?", rows[0].ID).Count(&answers).Error)
	assert.Zero(t, answers)

	// Another exam's rows are out of scope for this sweep.
	var otherExam int64
	require.NoError(t, db.Model(&model.Attempt{}).Where("exam_id = ?", 2).Count(&otherExam).Error)
	assert.Equal(t, int64(1), otherExam)
}

func TestAppendScreenshot(t *testing.T) {
	db := newTestDB(t)
	repo := NewAttemptRepository(db)
	attempt := seedAttempt(t, db, model.AttemptStatusInProgress)

	first := time.Now().Add(-time.Minute)
	second := time.Now()
	require.NoError(t, repo.AppendScreenshot(attempt.ID, model.ScreenshotRef{Timestamp: first, SizeBytes: 100}))
	require.NoError(t, repo.AppendScreenshot(attempt.ID, model.ScreenshotRef{Timestamp: second, SizeBytes: 200}))

	stored, err := repo.FindByID(attempt.ID)
	require.NoError(t, err)
	require.Len(t, stored.Screenshots, 2)
	assert.Equal(t, 100, stored.Screenshots[0].SizeBytes)
	assert.Equal(t, 200, stored.Screenshots[1].SizeBytes)
}
