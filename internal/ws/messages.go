package ws

import (
	"encoding/json"
	"time"

	"github.com/lshigami/Margays/internal/model"
)

// Inbound message types (client -> server).
const (
	MsgJoinAttempt       = "join_attempt"
	MsgLeaveAttempt      = "leave_attempt"
	MsgAutosaveRequest   = "autosave_request"
	MsgProctorAlert      = "proctor_alert"
	MsgProctorScreenshot = "proctor_screenshot"
)

// Outbound message types (server -> client).
const (
	MsgTimerSync   = "exam_timer_sync"
	MsgForceSubmit = "force_submit"
	MsgEnforcement = "proctor_enforcement"
	MsgAutosaveAck = "autosave_ack"
	MsgError       = "error"
)

// Envelope is the wire frame: a type tag plus a type-specific payload.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func NewEnvelope(msgType string, data interface{}) Envelope {
	raw, err := json.Marshal(data)
	if err != nil {
		raw = []byte("{}")
	}
	return Envelope{Type: msgType, Data: raw}
}

type JoinAttemptData struct {
	AttemptID uint `json:"attempt_id"`
}

type AutosaveRequestData struct {
	AttemptID  uint   `json:"attempt_id"`
	QuestionID uint   `json:"question_id"`
	AnswerData string `json:"answer_data"`
	Timestamp  string `json:"timestamp"`
}

type ProctorAlertData struct {
	AttemptID uint   `json:"attempt_id"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type ProctorScreenshotData struct {
	AttemptID uint   `json:"attempt_id"`
	SizeBytes int    `json:"size_bytes"`
	Timestamp string `json:"timestamp"`
}

type TimerSyncData struct {
	AttemptID            uint      `json:"attempt_id"`
	TimeRemainingSeconds int       `json:"time_remaining_seconds"`
	ServerTime           time.Time `json:"server_time"`
}

type ForceSubmitData struct {
	AttemptID uint      `json:"attempt_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

type EnforcementData struct {
	AttemptID  uint                    `json:"attempt_id"`
	Action     string                  `json:"action"` // "warning" or "locked"
	Message    string                  `json:"message"`
	Violations model.ViolationCounters `json:"violations"`
}

type AutosaveAckData struct {
	AttemptID  uint      `json:"attempt_id"`
	QuestionID uint      `json:"question_id"`
	SavedAt    time.Time `json:"saved_at,omitempty"`
	Success    bool      `json:"success"`
}

type ErrorData struct {
	Message string `json:"message"`
}
