package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/jinzhu/copier"
	"github.com/lshigami/Margays/internal/apperror"
	"github.com/lshigami/Margays/internal/dto"
	"github.com/lshigami/Margays/internal/model"
	"github.com/lshigami/Margays/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

// ElevatedRole reports whether the role may read and grade attempts it does
// not own.
func ElevatedRole(role string) bool {
	return role == RoleInstructor || role == RoleAdmin
}

// StartMeta is the network/device context captured when a session starts.
type StartMeta struct {
	IPAddress         string
	UserAgent         string
	DeviceFingerprint string
}

// AttemptService is the session coordinator: it owns the attempt lifecycle
// state machine and is the only component allowed to move an attempt out of
// in_progress.
type AttemptService interface {
	StartAttempt(examID, candidateID uint, meta StartMeta) (*dto.AttemptStartResponse, error)
	SaveAnswer(attemptID, candidateID, questionID uint, answerData string) (*dto.SaveAnswerResponse, error)
	SubmitAttempt(attemptID, candidateID uint) (*dto.SubmitResultResponse, error)

	// ForceSubmit ends an attempt on behalf of the system (countdown expiry or
	// violation lock). Idempotent: if the attempt already left in_progress the
	// call is a no-op returning (nil, nil), never an error.
	ForceSubmit(attemptID uint, reason string) (*dto.SubmitResultResponse, error)

	GetAttempt(attemptID, actorID uint, actorRole string) (*dto.AttemptDetailResponse, error)
	ListMyAttempts(candidateID uint) ([]dto.AttemptSummaryResponse, error)
	ListAttempts(examID *uint) ([]dto.AttemptSummaryResponse, error)

	GradeAnswer(attemptID, questionID uint, pointsAwarded float64, feedback string, graderID uint) (*dto.AttemptDetailResponse, error)
	MarkAbandoned(attemptID uint) error

	// VerifyOwnership loads the attempt and checks it belongs to the
	// candidate; the websocket handler gates joins with it.
	VerifyOwnership(attemptID, candidateID uint) (*model.Attempt, error)
}

type attemptService struct {
	examRepo     repository.ExamRepository
	questionRepo repository.QuestionRepository
	attemptRepo  repository.AttemptRepository
	grading      GradingService
	timers       TimerSyncService
	notifier     Notifier
}

func NewAttemptService(
	examRepo repository.ExamRepository,
	questionRepo repository.QuestionRepository,
	attemptRepo repository.AttemptRepository,
	grading GradingService,
	timers TimerSyncService,
	notifier Notifier,
) AttemptService {
	return &attemptService{
		examRepo:     examRepo,
		questionRepo: questionRepo,
		attemptRepo:  attemptRepo,
		grading:      grading,
		timers:       timers,
		notifier:     notifier,
	}
}

func (s *attemptService) StartAttempt(examID, candidateID uint, meta StartMeta) (*dto.AttemptStartResponse, error) {
	exam, err := s.examRepo.FindByIDWithQuestions(examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound("Exam")
		}
		return nil, apperror.ErrTransientStorage(err)
	}

	now := time.Now()
	if !exam.AvailableAt(now) {
		log.Warn().Uint("examID", examID).Uint("candidateID", candidateID).Str("status", exam.Status).Msg("StartAttempt: exam not available")
		return nil, apperror.ErrNotEligible("Exam is not active")
	}

	// Under a rolling window only recent attempts weigh against the limit;
	// otherwise every stored attempt counts.
	var counted int64
	if exam.RollingWindowEnabled {
		since := now.Add(-time.Duration(exam.RollingWindowHours) * time.Hour)
		counted, err = s.attemptRepo.CountInWindow(examID, candidateID, since)
	} else {
		counted, err = s.attemptRepo.CountByExamAndCandidate(examID, candidateID)
	}
	if err != nil {
		return nil, apperror.ErrTransientStorage(err)
	}
	if counted >= int64(exam.MaxAttempts) {
		return nil, apperror.ErrNotEligible("Max attempts reached")
	}

	// The attempt number is the 1-based count of prior attempts for this
	// exam+candidate pair, independent of the rolling window.
	prior, err := s.attemptRepo.CountByExamAndCandidate(examID, candidateID)
	if err != nil {
		return nil, apperror.ErrTransientStorage(err)
	}

	attempt := model.Attempt{
		ExamID:            examID,
		CandidateID:       candidateID,
		AttemptNumber:     int(prior) + 1,
		Status:            model.AttemptStatusInProgress,
		StartedAt:         now,
		IPAddress:         meta.IPAddress,
		UserAgent:         meta.UserAgent,
		DeviceFingerprint: meta.DeviceFingerprint,
	}
	if err := s.attemptRepo.Create(&attempt); err != nil {
		return nil, apperror.ErrTransientStorage(err)
	}

	log.Info().Uint("attemptID", attempt.ID).Uint("examID", examID).Uint("candidateID", candidateID).
		Int("attemptNumber", attempt.AttemptNumber).Msg("Attempt started")

	var snapshot dto.ExamSnapshotResponse
	if err := copier.Copy(&snapshot, exam); err != nil {
		log.Error().Err(err).Msg("StartAttempt: failed to copy exam snapshot")
		return nil, apperror.ErrInternal(err)
	}

	return &dto.AttemptStartResponse{
		AttemptID:     attempt.ID,
		ExamID:        examID,
		AttemptNumber: attempt.AttemptNumber,
		Status:        attempt.Status,
		StartedAt:     attempt.StartedAt,
		SocketRoom:    AttemptRoom(attempt.ID),
		Exam:          snapshot,
	}, nil
}

// AttemptRoom names the channel clients join for an attempt's realtime events.
func AttemptRoom(attemptID uint) string {
	return fmt.Sprintf("attempt_%d", attemptID)
}

func (s *attemptService) SaveAnswer(attemptID, candidateID, questionID uint, answerData string) (*dto.SaveAnswerResponse, error) {
	attempt, err := s.VerifyOwnership(attemptID, candidateID)
	if err != nil {
		return nil, err
	}
	if !attempt.Active() {
		return nil, apperror.ErrAttemptNotActive()
	}

	question, err := s.questionRepo.FindByID(questionID)
	if err != nil || question.ExamID != attempt.ExamID {
		return nil, apperror.ErrNotFound("Question")
	}

	if err := s.attemptRepo.UpsertAnswer(attemptID, questionID, answerData); err != nil {
		log.Error().Err(err).Uint("attemptID", attemptID).Uint("questionID", questionID).Msg("SaveAnswer: upsert failed")
		return nil, apperror.ErrTransientStorage(err)
	}

	return &dto.SaveAnswerResponse{
		AttemptID:  attemptID,
		QuestionID: questionID,
		SavedAt:    time.Now(),
	}, nil
}

func (s *attemptService) SubmitAttempt(attemptID, candidateID uint) (*dto.SubmitResultResponse, error) {
	if _, err := s.VerifyOwnership(attemptID, candidateID); err != nil {
		return nil, err
	}

	result, err := s.finalize(attemptID, model.AttemptStatusSubmitted, "")
	if err != nil {
		return nil, err
	}
	if result == nil {
		// Lost the race against a forced submission or a duplicate click.
		return nil, apperror.ErrAlreadySubmitted()
	}
	return result, nil
}

func (s *attemptService) ForceSubmit(attemptID uint, reason string) (*dto.SubmitResultResponse, error) {
	return s.finalize(attemptID, model.AttemptStatusForceSubmitted, reason)
}

// finalize is the single exit from in_progress. The compare-and-set out of
// in_progress and the grading persist commit in one transaction: either the
// attempt lands fully graded or it stays in_progress and the submit can be
// retried. The CAS still guarantees exactly one grading pass when a countdown
// expiry races a candidate click; the loser observes (nil, nil).
func (s *attemptService) finalize(attemptID uint, toStatus, forcedReason string) (*dto.SubmitResultResponse, error) {
	attempt, err := s.attemptRepo.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound("Attempt")
		}
		return nil, apperror.ErrTransientStorage(err)
	}
	exam, err := s.examRepo.FindByIDWithQuestions(attempt.ExamID)
	if err != nil {
		return nil, apperror.ErrTransientStorage(err)
	}

	var outcome GradeOutcome
	var submittedAt time.Time
	won, err := s.attemptRepo.FinalizeGraded(attemptID, toStatus, func(current *model.Attempt, answers []model.Answer) error {
		outcome = s.grading.GradeAttempt(exam.Questions, answers)
		copy(answers, outcome.Answers)

		submittedAt = time.Now()
		current.Status = model.AttemptStatusGraded
		current.SubmittedAt = &submittedAt
		current.TimeSpentSeconds = int(submittedAt.Sub(current.StartedAt).Seconds())
		current.Score = outcome.Score
		current.MaxScore = outcome.MaxScore
		current.Percentage = outcome.Percentage
		current.ForcedReason = forcedReason
		return nil
	})
	if err != nil {
		log.Error().Err(err).Uint("attemptID", attemptID).Msg("finalize: grading transition rolled back")
		return nil, apperror.ErrTransientStorage(err)
	}
	if !won {
		log.Info().Uint("attemptID", attemptID).Str("to", toStatus).Msg("Submission transition lost the race, no-op")
		return nil, nil
	}

	if forcedReason != "" {
		s.notifier.ForcedSubmission(attemptID, forcedReason)
	}
	s.timers.Cancel(attemptID)

	log.Info().Uint("attemptID", attemptID).Float64("score", outcome.Score).Float64("maxScore", outcome.MaxScore).
		Int("percentage", outcome.Percentage).Str("forcedReason", forcedReason).Msg("Attempt graded")

	return &dto.SubmitResultResponse{
		AttemptID:    attemptID,
		Status:       model.AttemptStatusGraded,
		SubmittedAt:  submittedAt,
		Score:        outcome.Score,
		MaxScore:     outcome.MaxScore,
		Percentage:   outcome.Percentage,
		Passed:       s.grading.Passed(outcome.Percentage, exam.PassingScore),
		ForcedReason: forcedReason,
	}, nil
}

func (s *attemptService) GetAttempt(attemptID, actorID uint, actorRole string) (*dto.AttemptDetailResponse, error) {
	attempt, err := s.attemptRepo.FindByIDWithDetails(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound("Attempt")
		}
		return nil, apperror.ErrTransientStorage(err)
	}
	if attempt.CandidateID != actorID && !ElevatedRole(actorRole) {
		return nil, apperror.ErrForbidden()
	}
	return s.toDetail(attempt), nil
}

func (s *attemptService) toDetail(attempt *model.Attempt) *dto.AttemptDetailResponse {
	detail := &dto.AttemptDetailResponse{
		ID:               attempt.ID,
		ExamID:           attempt.ExamID,
		ExamTitle:        attempt.Exam.Title,
		CandidateID:      attempt.CandidateID,
		AttemptNumber:    attempt.AttemptNumber,
		Status:           attempt.Status,
		StartedAt:        attempt.StartedAt,
		SubmittedAt:      attempt.SubmittedAt,
		TimeSpentSeconds: attempt.TimeSpentSeconds,
		Score:            attempt.Score,
		MaxScore:         attempt.MaxScore,
		Percentage:       attempt.Percentage,
		Passed:           s.grading.Passed(attempt.Percentage, attempt.Exam.PassingScore),
		ForcedReason:     attempt.ForcedReason,
		Violations:       attempt.Violations,
		Screenshots:      attempt.Screenshots,
	}
	for _, answer := range attempt.Answers {
		detail.Answers = append(detail.Answers, dto.AnswerResponse{
			QuestionID:    answer.QuestionID,
			AnswerData:    answer.AnswerData,
			IsCorrect:     answer.IsCorrect,
			PointsAwarded: answer.PointsAwarded,
			Feedback:      answer.Feedback,
			GradedAt:      answer.GradedAt,
		})
	}
	return detail
}

func (s *attemptService) ListMyAttempts(candidateID uint) ([]dto.AttemptSummaryResponse, error) {
	attempts, err := s.attemptRepo.ListByCandidate(candidateID)
	if err != nil {
		return nil, apperror.ErrTransientStorage(err)
	}
	return s.toSummaries(attempts), nil
}

func (s *attemptService) ListAttempts(examID *uint) ([]dto.AttemptSummaryResponse, error) {
	attempts, err := s.attemptRepo.ListAll(examID)
	if err != nil {
		return nil, apperror.ErrTransientStorage(err)
	}
	return s.toSummaries(attempts), nil
}

func (s *attemptService) toSummaries(attempts []model.Attempt) []dto.AttemptSummaryResponse {
	summaries := make([]dto.AttemptSummaryResponse, 0, len(attempts))
	for _, attempt := range attempts {
		var summary dto.AttemptSummaryResponse
		if err := copier.Copy(&summary, &attempt); err != nil {
			log.Error().Err(err).Uint("attemptID", attempt.ID).Msg("Failed to copy attempt summary")
			continue
		}
		summary.ExamTitle = attempt.Exam.Title
		summaries = append(summaries, summary)
	}
	return summaries
}

// GradeAnswer is the manual grading pass for long-text and file-upload
// answers. It adjusts one answer and recomputes the aggregate; the max score
// fixed at submission stays as it is.
func (s *attemptService) GradeAnswer(attemptID, questionID uint, pointsAwarded float64, feedback string, graderID uint) (*dto.AttemptDetailResponse, error) {
	attempt, err := s.attemptRepo.FindByIDWithDetails(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound("Attempt")
		}
		return nil, apperror.ErrTransientStorage(err)
	}

	var target *model.Answer
	for i := range attempt.Answers {
		if attempt.Answers[i].QuestionID == questionID {
			target = &attempt.Answers[i]
			break
		}
	}
	if target == nil {
		return nil, apperror.ErrNotFound("Answer")
	}

	now := time.Now()
	isCorrect := pointsAwarded > 0
	target.PointsAwarded = pointsAwarded
	target.Feedback = feedback
	target.GradedBy = &graderID
	target.GradedAt = &now
	target.IsCorrect = &isCorrect
	if err := s.attemptRepo.UpdateAnswer(target); err != nil {
		return nil, apperror.ErrTransientStorage(err)
	}

	attempt.Score, attempt.Percentage = s.grading.Aggregate(attempt.Answers, attempt.MaxScore)
	if err := s.attemptRepo.Update(attempt); err != nil {
		return nil, apperror.ErrTransientStorage(err)
	}

	log.Info().Uint("attemptID", attemptID).Uint("questionID", questionID).Uint("graderID", graderID).
		Float64("points", pointsAwarded).Msg("Answer graded manually")

	return s.toDetail(attempt), nil
}

// MarkAbandoned is the administrative cleanup for attempts whose candidate
// never submitted. It is a lifecycle transition, not a delete.
func (s *attemptService) MarkAbandoned(attemptID uint) error {
	won, err := s.attemptRepo.TransitionStatus(attemptID, model.AttemptStatusInProgress, model.AttemptStatusAbandoned)
	if err != nil {
		return apperror.ErrTransientStorage(err)
	}
	if !won {
		return apperror.ErrAttemptNotActive()
	}
	s.timers.Cancel(attemptID)
	log.Info().Uint("attemptID", attemptID).Msg("Attempt marked abandoned")
	return nil
}

func (s *attemptService) VerifyOwnership(attemptID, candidateID uint) (*model.Attempt, error) {
	attempt, err := s.attemptRepo.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound("Attempt")
		}
		return nil, apperror.ErrTransientStorage(err)
	}
	if attempt.CandidateID != candidateID {
		return nil, apperror.ErrForbidden()
	}
	return attempt, nil
}
