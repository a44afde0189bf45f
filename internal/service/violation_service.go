package service

import (
	"fmt"
	"time"

	"github.com/lshigami/Margays/internal/model"
	"github.com/lshigami/Margays/internal/repository"
	"github.com/rs/zerolog/log"
)

// DefaultSeverityByCategory is the reference classification. It is policy
// data, not a hard rule: callers may hand NewViolationService their own map.
var DefaultSeverityByCategory = map[string]string{
	model.ViolationFaceNotVisible:    model.SeverityCritical,
	model.ViolationMultipleFaces:     model.SeverityHigh,
	model.ViolationAudioDetected:     model.SeverityHigh,
	model.ViolationHeadTurned:        model.SeverityMedium,
	model.ViolationLookingAway:       model.SeverityMedium,
	model.ViolationTabSwitch:         model.SeverityMedium,
	model.ViolationVisibilityChange:  model.SeverityMedium,
	model.ViolationCopyPaste:         model.SeverityMedium,
	model.ViolationScreenshotAttempt: model.SeverityMedium,
}

// ViolationService aggregates proctoring events per attempt and drives the
// warn -> lock -> forced-submission escalation. Ingestion never fails the
// caller: a missed warning beats blocking the candidate's client.
type ViolationService interface {
	Ingest(attemptID, candidateID uint, category, message string, occurredAt time.Time)
	RecordScreenshot(attemptID, candidateID uint, sizeBytes int, capturedAt time.Time)
	Summary(attemptID uint) ([]model.ViolationLog, error)
}

type violationService struct {
	attemptRepo   repository.AttemptRepository
	examRepo      repository.ExamRepository
	violationRepo repository.ViolationRepository
	attempts      AttemptService
	notifier      Notifier
	severities    map[string]string
}

// NewViolationService builds the aggregator with the given severity policy;
// nil means DefaultSeverityByCategory.
func NewViolationService(
	attemptRepo repository.AttemptRepository,
	examRepo repository.ExamRepository,
	violationRepo repository.ViolationRepository,
	attempts AttemptService,
	notifier Notifier,
	severities map[string]string,
) ViolationService {
	if severities == nil {
		severities = DefaultSeverityByCategory
	}
	return &violationService{
		attemptRepo:   attemptRepo,
		examRepo:      examRepo,
		violationRepo: violationRepo,
		attempts:      attempts,
		notifier:      notifier,
		severities:    severities,
	}
}

func (s *violationService) classify(category string) string {
	if severity, ok := s.severities[category]; ok {
		return severity
	}
	return model.SeverityMedium
}

func (s *violationService) Ingest(attemptID, candidateID uint, category, message string, occurredAt time.Time) {
	attempt, err := s.attemptRepo.FindByID(attemptID)
	if err != nil {
		log.Warn().Err(err).Uint("attemptID", attemptID).Msg("Violation ingest: attempt not found")
		return
	}
	if attempt.CandidateID != candidateID {
		log.Warn().Uint("attemptID", attemptID).Uint("candidateID", candidateID).Msg("Violation ingest: ownership mismatch")
		return
	}
	if !attempt.Active() {
		log.Info().Uint("attemptID", attemptID).Str("status", attempt.Status).Msg("Violation ingest: attempt no longer active, dropped")
		return
	}

	exam, err := s.examRepo.FindByID(attempt.ExamID)
	if err != nil {
		log.Error().Err(err).Uint("examID", attempt.ExamID).Msg("Violation ingest: exam load failed")
		return
	}

	if !model.KnownViolationCategory(category) {
		log.Warn().Str("category", category).Uint("attemptID", attemptID).Msg("Violation ingest: unknown category, counted as other")
	}
	if message == "" {
		message = category
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	entry := model.ViolationLog{
		AttemptID:   attemptID,
		ExamID:      attempt.ExamID,
		CandidateID: candidateID,
		Category:    category,
		Message:     message,
		Severity:    s.classify(category),
		OccurredAt:  occurredAt,
	}
	if err := s.violationRepo.Create(&entry); err != nil {
		log.Error().Err(err).Uint("attemptID", attemptID).Msg("Violation ingest: log append failed")
		// Keep going: the counter increment is what escalation depends on.
	}

	total, err := s.attemptRepo.IncrementViolation(attemptID, category)
	if err != nil {
		log.Error().Err(err).Uint("attemptID", attemptID).Msg("Violation ingest: counter increment failed")
		return
	}

	log.Info().Uint("attemptID", attemptID).Str("category", category).Str("severity", entry.Severity).
		Int("total", total).Msg("Violation recorded")

	s.escalate(attempt, exam, total)
}

// escalate evaluates the policy after every increment: lock at the limit,
// warn on every warn-cadence multiple below it.
func (s *violationService) escalate(attempt *model.Attempt, exam *model.Exam, total int) {
	counters, err := s.attemptRepo.FindByID(attempt.ID)
	if err != nil {
		counters = attempt
	}

	limit := exam.ViolationLimit
	if limit <= 0 {
		limit = 10
	}
	warnEvery := exam.WarnEvery
	if warnEvery <= 0 {
		warnEvery = 3
	}

	if total >= limit {
		s.notifier.Enforcement(attempt.ID, "locked",
			fmt.Sprintf("Exam locked due to %d violations.", total), counters.Violations)
		if _, err := s.attempts.ForceSubmit(attempt.ID, model.ForcedReasonViolations); err != nil {
			log.Error().Err(err).Uint("attemptID", attempt.ID).Msg("Violation escalation: force submit failed")
		}
		return
	}

	if total%warnEvery == 0 {
		s.notifier.Enforcement(attempt.ID, "warning",
			fmt.Sprintf("Warning: %d violations detected.", total), counters.Violations)
	}
}

// RecordScreenshot stores capture metadata only; raw media stays with the
// external proctoring storage.
func (s *violationService) RecordScreenshot(attemptID, candidateID uint, sizeBytes int, capturedAt time.Time) {
	attempt, err := s.attemptRepo.FindByID(attemptID)
	if err != nil || attempt.CandidateID != candidateID {
		log.Warn().Uint("attemptID", attemptID).Msg("Screenshot record: attempt not found or not owned")
		return
	}
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}
	ref := model.ScreenshotRef{Timestamp: capturedAt, SizeBytes: sizeBytes}
	if err := s.attemptRepo.AppendScreenshot(attemptID, ref); err != nil {
		log.Error().Err(err).Uint("attemptID", attemptID).Msg("Screenshot record: append failed")
	}
}

func (s *violationService) Summary(attemptID uint) ([]model.ViolationLog, error) {
	return s.violationRepo.FindByAttemptID(attemptID)
}
