package user

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/Margays/internal/controller"
	"github.com/lshigami/Margays/internal/dto"
	"github.com/lshigami/Margays/internal/middleware"
	"github.com/lshigami/Margays/internal/service"
	"github.com/rs/zerolog/log"
)

type AttemptController struct {
	attemptService   service.AttemptService
	violationService service.ViolationService
}

func NewAttemptController(attemptService service.AttemptService, violationService service.ViolationService) *AttemptController {
	return &AttemptController{
		attemptService:   attemptService,
		violationService: violationService,
	}
}

// StartAttempt godoc
// @Summary Start a new exam attempt
// @Description Creates an in_progress attempt if the exam is published, inside its availability window, and the candidate is under the attempt limit.
// @Tags Attempts
// @Produce json
// @Param exam_id path int true "Exam ID"
// @Success 201 {object} dto.AttemptStartResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid Exam ID format"
// @Failure 403 {object} dto.ErrorResponse "Not eligible to start"
// @Failure 404 {object} dto.ErrorResponse "Exam not found"
// @Router /exams/{exam_id}/attempts [post]
func (c *AttemptController) StartAttempt(ctx *gin.Context) {
	examID, err := parseID(ctx, "exam_id")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid Exam ID format"})
		return
	}
	candidateID := middleware.CurrentUserID(ctx)

	meta := service.StartMeta{
		IPAddress:         ctx.ClientIP(),
		UserAgent:         ctx.Request.UserAgent(),
		DeviceFingerprint: ctx.GetHeader("X-Device-Fingerprint"),
	}

	resp, err := c.attemptService.StartAttempt(examID, candidateID, meta)
	if err != nil {
		log.Warn().Err(err).Uint("examID", examID).Uint("candidateID", candidateID).Msg("StartAttempt rejected")
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// SaveAnswer godoc
// @Summary Save one answer (autosave fallback path)
// @Description Idempotent last-write-wins upsert for a single question. The websocket autosave_request converges on the same write.
// @Tags Attempts
// @Accept json
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Param answer body dto.SaveAnswerRequest true "Answer payload"
// @Success 200 {object} dto.SaveAnswerResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid input"
// @Failure 403 {object} dto.ErrorResponse "Attempt not active or not owned"
// @Failure 404 {object} dto.ErrorResponse "Attempt or question not found"
// @Router /attempts/{attempt_id}/answers [post]
func (c *AttemptController) SaveAnswer(ctx *gin.Context) {
	attemptID, err := parseID(ctx, "attempt_id")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid Attempt ID format"})
		return
	}

	var req dto.SaveAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	resp, err := c.attemptService.SaveAnswer(attemptID, middleware.CurrentUserID(ctx), req.QuestionID, req.AnswerData)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// SubmitAttempt godoc
// @Summary Submit an attempt for grading
// @Description Explicit candidate submission. Grades synchronously and returns the scored result. A concurrent forced submission wins the race at most once.
// @Tags Attempts
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {object} dto.SubmitResultResponse
// @Failure 403 {object} dto.ErrorResponse "Already submitted or not owned"
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Router /attempts/{attempt_id}/submit [post]
func (c *AttemptController) SubmitAttempt(ctx *gin.Context) {
	attemptID, err := parseID(ctx, "attempt_id")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid Attempt ID format"})
		return
	}

	result, err := c.attemptService.SubmitAttempt(attemptID, middleware.CurrentUserID(ctx))
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// GetAttempt godoc
// @Summary Get attempt details
// @Description Full attempt view: answers, score, violation summary. Owner only, unless the caller holds an elevated role.
// @Tags Attempts
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {object} dto.AttemptDetailResponse
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Router /attempts/{attempt_id} [get]
func (c *AttemptController) GetAttempt(ctx *gin.Context) {
	attemptID, err := parseID(ctx, "attempt_id")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid Attempt ID format"})
		return
	}

	detail, err := c.attemptService.GetAttempt(attemptID, middleware.CurrentUserID(ctx), middleware.CurrentRole(ctx))
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, detail)
}

// GetMyAttempts godoc
// @Summary List the caller's attempts
// @Tags Attempts
// @Produce json
// @Success 200 {array} dto.AttemptSummaryResponse
// @Router /my-attempts [get]
func (c *AttemptController) GetMyAttempts(ctx *gin.Context) {
	summaries, err := c.attemptService.ListMyAttempts(middleware.CurrentUserID(ctx))
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, summaries)
}

// ReportViolation godoc
// @Summary Report a proctoring violation (HTTP path)
// @Description Ingests one violation event from a detector that cannot hold a websocket. Always accepted; escalation runs server-side.
// @Tags Attempts
// @Accept json
// @Param attempt_id path int true "Attempt ID"
// @Param violation body dto.ViolationReportRequest true "Violation event"
// @Success 202 "Accepted"
// @Failure 400 {object} dto.ErrorResponse "Invalid input"
// @Router /attempts/{attempt_id}/violations [post]
func (c *AttemptController) ReportViolation(ctx *gin.Context) {
	attemptID, err := parseID(ctx, "attempt_id")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid Attempt ID format"})
		return
	}

	var req dto.ViolationReportRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	occurredAt := time.Now()
	if req.Timestamp != "" {
		if parsed, perr := time.Parse(time.RFC3339, req.Timestamp); perr == nil {
			occurredAt = parsed
		}
	}

	// Ingestion never fails the candidate's client.
	c.violationService.Ingest(attemptID, middleware.CurrentUserID(ctx), req.Category, req.Message, occurredAt)
	ctx.Status(http.StatusAccepted)
}

func parseID(ctx *gin.Context, param string) (uint, error) {
	val, err := strconv.ParseUint(ctx.Param(param), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(val), nil
}
