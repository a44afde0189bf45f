package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lshigami/Margays/internal/middleware"
	"github.com/lshigami/Margays/internal/repository"
	"github.com/lshigami/Margays/internal/service"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Cross-origin access mirrors the permissive HTTP CORS setup.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	writeWait      = 10 * time.Second
	sendQueueDepth = 32
)

// SessionHandler owns the websocket read side of an attempt session: it
// upgrades the connection, dispatches inbound messages to the services, and
// leaves all pushing to the hub.
type SessionHandler struct {
	hub        *Hub
	attempts   service.AttemptService
	violations service.ViolationService
	timers     service.TimerSyncService
	examRepo   repository.ExamRepository
}

func NewSessionHandler(
	hub *Hub,
	attempts service.AttemptService,
	violations service.ViolationService,
	timers service.TimerSyncService,
	examRepo repository.ExamRepository,
) *SessionHandler {
	return &SessionHandler{
		hub:        hub,
		attempts:   attempts,
		violations: violations,
		timers:     timers,
		examRepo:   examRepo,
	}
}

// Handle upgrades an authenticated request to a websocket session.
func (h *SessionHandler) Handle(ctx *gin.Context) {
	userID := middleware.CurrentUserID(ctx)

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	client := &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		conn:   conn,
		send:   make(chan Envelope, sendQueueDepth),
	}
	log.Info().Str("clientID", client.ID).Uint("userID", userID).Msg("Websocket connected")

	go h.writePump(client)
	h.readLoop(client)
}

func (h *SessionHandler) writePump(client *Client) {
	for env := range client.send {
		client.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.conn.WriteJSON(env); err != nil {
			log.Warn().Err(err).Str("clientID", client.ID).Msg("Websocket write failed")
			return
		}
	}
}

func (h *SessionHandler) readLoop(client *Client) {
	defer func() {
		// Dropping the subscription must not cancel the attempt's countdown:
		// the task is keyed by attempt, not connection, and a reconnect or a
		// second tab may still depend on it.
		h.hub.Leave(client)
		client.Close()
		client.conn.Close()
		log.Info().Str("clientID", client.ID).Msg("Websocket disconnected")
	}()

	for {
		var env Envelope
		if err := client.conn.ReadJSON(&env); err != nil {
			return
		}
		h.dispatch(client, env)
	}
}

func (h *SessionHandler) dispatch(client *Client, env Envelope) {
	switch env.Type {
	case MsgJoinAttempt:
		var data JoinAttemptData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			client.Enqueue(NewEnvelope(MsgError, ErrorData{Message: "Malformed join_attempt"}))
			return
		}
		h.handleJoin(client, data.AttemptID)

	case MsgLeaveAttempt:
		h.hub.Leave(client)

	case MsgAutosaveRequest:
		var data AutosaveRequestData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			client.Enqueue(NewEnvelope(MsgError, ErrorData{Message: "Malformed autosave_request"}))
			return
		}
		h.handleAutosave(client, data)

	case MsgProctorAlert:
		var data ProctorAlertData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return
		}
		h.violations.Ingest(data.AttemptID, client.UserID, data.Category, data.Message, parseTimestamp(data.Timestamp))

	case MsgProctorScreenshot:
		var data ProctorScreenshotData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return
		}
		h.violations.RecordScreenshot(data.AttemptID, client.UserID, data.SizeBytes, parseTimestamp(data.Timestamp))

	default:
		client.Enqueue(NewEnvelope(MsgError, ErrorData{Message: "Unknown message type: " + env.Type}))
	}
}

// handleJoin subscribes the connection to the attempt room and ensures the
// countdown task is running. Watch is idempotent, so a reconnect never spawns
// a second broadcast loop for the same attempt.
func (h *SessionHandler) handleJoin(client *Client, attemptID uint) {
	attempt, err := h.attempts.VerifyOwnership(attemptID, client.UserID)
	if err != nil {
		client.Enqueue(NewEnvelope(MsgError, ErrorData{Message: "Forbidden"}))
		return
	}

	h.hub.Join(attemptID, client)

	if !attempt.Active() {
		return
	}
	exam, err := h.examRepo.FindByID(attempt.ExamID)
	if err != nil {
		log.Error().Err(err).Uint("examID", attempt.ExamID).Msg("Join: exam load failed")
		return
	}
	h.timers.Watch(attemptID, attempt.StartedAt, exam.TotalDuration())
}

func (h *SessionHandler) handleAutosave(client *Client, data AutosaveRequestData) {
	resp, err := h.attempts.SaveAnswer(data.AttemptID, client.UserID, data.QuestionID, data.AnswerData)
	ack := AutosaveAckData{
		AttemptID:  data.AttemptID,
		QuestionID: data.QuestionID,
		Success:    err == nil,
	}
	if err == nil {
		ack.SavedAt = resp.SavedAt
	}
	client.Enqueue(NewEnvelope(MsgAutosaveAck, ack))
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Now()
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Now()
	}
	return t
}
