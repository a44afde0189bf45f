package service

import (
	"time"

	"github.com/lshigami/Margays/internal/model"
)

// Notifier is the push side of the per-attempt channel. The websocket hub
// implements it; services never import the transport.
type Notifier interface {
	// TimerSync broadcasts the authoritative remaining time to every
	// connection subscribed to the attempt.
	TimerSync(attemptID uint, remainingSeconds int, serverTime time.Time)

	// ForcedSubmission tells the attempt's connections that the system, not
	// the candidate, is ending the attempt.
	ForcedSubmission(attemptID uint, reason string)

	// Enforcement delivers a proctoring notice: action is "warning" or "locked".
	Enforcement(attemptID uint, action, message string, counters model.ViolationCounters)
}

// NopNotifier is used in tests and whenever no realtime channel is wired.
type NopNotifier struct{}

func (NopNotifier) TimerSync(uint, int, time.Time)                            {}
func (NopNotifier) ForcedSubmission(uint, string)                             {}
func (NopNotifier) Enforcement(uint, string, string, model.ViolationCounters) {}
