package service

import (
	"time"

	"github.com/lshigami/Margays/internal/dto"
	"github.com/lshigami/Margays/internal/repository"
	"github.com/rs/zerolog/log"
)

// ReclaimService is the reclamation scheduler: for every exam with auto-reset
// enabled it hard-deletes terminal attempts older than the exam's retention,
// so the attempt-count checks see a smaller history and candidates can retake.
// It runs independently of any attempt's lifecycle and never touches
// in_progress rows.
type ReclaimService interface {
	RunOnce() (dto.ReclaimResultResponse, error)

	// Start launches the periodic sweep (one run immediately, then every
	// interval). Stop the loop by closing the returned channel's owner side
	// via Stop.
	Start()
	Stop()
}

type reclaimService struct {
	examRepo    repository.ExamRepository
	attemptRepo repository.AttemptRepository
	interval    time.Duration
	stop        chan struct{}
	done        chan struct{}
}

func NewReclaimService(examRepo repository.ExamRepository, attemptRepo repository.AttemptRepository, interval time.Duration) ReclaimService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &reclaimService{
		examRepo:    examRepo,
		attemptRepo: attemptRepo,
		interval:    interval,
	}
}

func (s *reclaimService) RunOnce() (dto.ReclaimResultResponse, error) {
	var result dto.ReclaimResultResponse

	exams, err := s.examRepo.FindAutoResetEnabled()
	if err != nil {
		log.Error().Err(err).Msg("Reclaim: failed to load auto-reset exams")
		return result, err
	}
	result.ExamsChecked = len(exams)
	if len(exams) == 0 {
		return result, nil
	}

	now := time.Now()
	for _, exam := range exams {
		cutoff := now.Add(-time.Duration(exam.ResetAfterHours) * time.Hour)
		deleted, err := s.attemptRepo.DeleteTerminalBefore(exam.ID, cutoff)
		if err != nil {
			log.Error().Err(err).Uint("examID", exam.ID).Msg("Reclaim: delete failed")
			continue
		}
		if deleted > 0 {
			log.Info().Uint("examID", exam.ID).Int64("deleted", deleted).Time("cutoff", cutoff).Msg("Reclaim: attempts reset")
		}
		result.AttemptsDeleted += deleted
	}

	return result, nil
}

func (s *reclaimService) Start() {
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		// Match the original scheduler: one sweep right away, then the ticker.
		if _, err := s.RunOnce(); err != nil {
			log.Error().Err(err).Msg("Reclaim: initial sweep failed")
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				if _, err := s.RunOnce(); err != nil {
					log.Error().Err(err).Msg("Reclaim: sweep failed")
				}
			}
		}
	}()

	log.Info().Dur("interval", s.interval).Msg("Reclamation scheduler started")
}

func (s *reclaimService) Stop() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
	s.stop = nil
	log.Info().Msg("Reclamation scheduler stopped")
}
