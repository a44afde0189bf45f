package service

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// TimerSyncService owns one countdown task per actively-watched attempt. The
// table is keyed by attempt id, never by connection: a reconnect reuses the
// running task instead of starting a duplicate broadcast loop.
type TimerSyncService interface {
	// Watch starts the countdown task for an attempt. Idempotent: a second
	// call while the task is running is a no-op.
	Watch(attemptID uint, startedAt time.Time, duration time.Duration)

	// Cancel stops and removes the attempt's task. A cancelled task never
	// emits a stale expiry.
	Cancel(attemptID uint)

	// Watching reports whether a countdown task is currently running.
	Watching(attemptID uint) bool

	// SetExpiryHandler registers the force-submit trigger. Called once at
	// wiring time, before any Watch.
	SetExpiryHandler(fn func(attemptID uint))
}

type countdownTask struct {
	stop    chan struct{}
	expired bool
}

type timerSyncService struct {
	mu       sync.Mutex
	tasks    map[uint]*countdownTask
	interval time.Duration
	notifier Notifier
	onExpire func(attemptID uint)
}

func NewTimerSyncService(interval time.Duration, notifier Notifier) TimerSyncService {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &timerSyncService{
		tasks:    make(map[uint]*countdownTask),
		interval: interval,
		notifier: notifier,
	}
}

func (s *timerSyncService) SetExpiryHandler(fn func(attemptID uint)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpire = fn
}

func (s *timerSyncService) Watch(attemptID uint, startedAt time.Time, duration time.Duration) {
	s.mu.Lock()
	if _, running := s.tasks[attemptID]; running {
		s.mu.Unlock()
		return
	}
	task := &countdownTask{stop: make(chan struct{})}
	s.tasks[attemptID] = task
	s.mu.Unlock()

	log.Info().Uint("attemptID", attemptID).Msg("Countdown task started")
	go s.run(attemptID, startedAt, duration, task)
}

func (s *timerSyncService) Cancel(attemptID uint) {
	s.mu.Lock()
	task, ok := s.tasks[attemptID]
	if ok {
		delete(s.tasks, attemptID)
		close(task.stop)
	}
	s.mu.Unlock()
	if ok {
		log.Info().Uint("attemptID", attemptID).Msg("Countdown task cancelled")
	}
}

func (s *timerSyncService) Watching(attemptID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[attemptID]
	return ok
}

func (s *timerSyncService) run(attemptID uint, startedAt time.Time, duration time.Duration, task *countdownTask) {
	// One immediate sync on subscribe, then the fixed broadcast interval.
	if s.tick(attemptID, startedAt, duration, task) {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-task.stop:
			return
		case <-ticker.C:
			if s.tick(attemptID, startedAt, duration, task) {
				return
			}
		}
	}
}

// tick broadcasts the remaining time and reports whether the task finished.
func (s *timerSyncService) tick(attemptID uint, startedAt time.Time, duration time.Duration, task *countdownTask) bool {
	now := time.Now()
	remaining := int(duration.Seconds()) - int(now.Sub(startedAt).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	s.notifier.TimerSync(attemptID, remaining, now)

	if remaining > 0 {
		return false
	}
	s.expire(attemptID, task)
	return true
}

// expire fires the force-submit trigger exactly once. The table check under
// the lock guards against a race with Cancel: a task cancelled because the
// candidate already submitted must not emit a stale expiry.
func (s *timerSyncService) expire(attemptID uint, task *countdownTask) {
	s.mu.Lock()
	current, ok := s.tasks[attemptID]
	if !ok || current != task || task.expired {
		s.mu.Unlock()
		return
	}
	task.expired = true
	delete(s.tasks, attemptID)
	fn := s.onExpire
	s.mu.Unlock()

	log.Info().Uint("attemptID", attemptID).Msg("Countdown reached zero")
	if fn != nil {
		fn(attemptID)
	}
}
