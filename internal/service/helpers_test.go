package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lshigami/Margays/internal/model"
	"github.com/lshigami/Margays/internal/repository"
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

	// One connection keeps in-memory sqlite from throwing lock errors when
	// tests exercise concurrent submissions.
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

type enforcementNotice struct {
	attemptID uint
	action    string
	message   string
	counters  model.ViolationCounters
}

type forcedNotice struct {
	attemptID uint
	reason    string
}

type timerNotice struct {
	attemptID uint
	remaining int
}

// recordingNotifier captures everything a real hub would push, so tests can
// assert on delivery order and content.
type recordingNotifier struct {
	mu           sync.Mutex
	timerSyncs   []timerNotice
	forced       []forcedNotice
	enforcements []enforcementNotice
}

func (n *recordingNotifier) TimerSync(attemptID uint, remainingSeconds int, _ time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.timerSyncs = append(n.timerSyncs, timerNotice{attemptID: attemptID, remaining: remainingSeconds})
}

func (n *recordingNotifier) ForcedSubmission(attemptID uint, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.forced = append(n.forced, forcedNotice{attemptID: attemptID, reason: reason})
}

func (n *recordingNotifier) Enforcement(attemptID uint, action, message string, counters model.ViolationCounters) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enforcements = append(n.enforcements, enforcementNotice{attemptID: attemptID, action: action, message: message, counters: counters})
}

func (n *recordingNotifier) TimerSyncCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.timerSyncs)
}

func (n *recordingNotifier) Forced() []forcedNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]forcedNotice(nil), n.forced...)
}

func (n *recordingNotifier) Enforcements() []enforcementNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]enforcementNotice(nil), n.enforcements...)
}

type fixture struct {
	db         *gorm.DB
	exams      repository.ExamRepository
	questions  repository.QuestionRepository
	attempts   repository.AttemptRepository
	violations repository.ViolationRepository
	notifier   *recordingNotifier
	timers     TimerSyncService
	attemptSvc AttemptService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	notifier := &recordingNotifier{}
	f := &fixture{
		db:         db,
		exams:      repository.NewExamRepository(db),
		questions:  repository.NewQuestionRepository(db),
		attempts:   repository.NewAttemptRepository(db),
		violations: repository.NewViolationRepository(db),
		notifier:   notifier,
	}
	f.timers = NewTimerSyncService(time.Hour, NopNotifier{})
	f.attemptSvc = NewAttemptService(f.exams, f.questions, f.attempts, NewGradingService(), f.timers, notifier)
	return f
}

// seedExam creates a published, currently-available exam with a fixed
// four-question paper worth 35 points.
func (f *fixture) seedExam(t *testing.T, mutate func(*model.Exam)) *model.Exam {
	t.Helper()
	exam := &model.Exam{
		Title:                "Networking Basics",
		Status:               model.ExamStatusPublished,
		TotalDurationMinutes: 60,
		MaxAttempts:          3,
		PassingScore:         50,
		ViolationLimit:       10,
		WarnEvery:            3,
	}
	if mutate != nil {
		mutate(exam)
	}
	require.NoError(t, f.db.Create(exam).Error)

	questions := []model.Question{
		{ExamID: exam.ID, OrderInExam: 1, Type: model.QuestionTypeMCQSingle, Prompt: "Default HTTP port?", Points: 10, NegativeMarking: 2, Options: []string{"a", "b", "c"}, CorrectAnswers: []string{"b"}},
		{ExamID: exam.ID, OrderInExam: 2, Type: model.QuestionTypeMCQMultiple, Prompt: "Pick the transport protocols", Points: 10, NegativeMarking: 2, Options: []string{"a", "b", "c"}, CorrectAnswers: []string{"a", "c"}},
		{ExamID: exam.ID, OrderInExam: 3, Type: model.QuestionTypeShortText, Prompt: "Capital of France?", Points: 5, CorrectAnswers: []string{"paris"}},
		{ExamID: exam.ID, OrderInExam: 4, Type: model.QuestionTypeLongText, Prompt: "Explain TCP slow start", Points: 10},
	}
	require.NoError(t, f.db.Create(&questions).Error)
	exam.Questions = questions
	return exam
}

func (f *fixture) questionID(t *testing.T, exam *model.Exam, order int) uint {
	t.Helper()
	for _, q := range exam.Questions {
		if q.OrderInExam == order {
			return q.ID
		}
	}
	t.Fatalf("no question with order %d", order)
	return 0
}
