package admin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/Margays/internal/controller"
	"github.com/lshigami/Margays/internal/dto"
	"github.com/lshigami/Margays/internal/middleware"
	"github.com/lshigami/Margays/internal/service"
	"github.com/rs/zerolog/log"
)

// ReviewController is the elevated-role surface: reviewing attempts, manual
// grading, abandonment cleanup, and the reclamation trigger.
type ReviewController struct {
	attemptService   service.AttemptService
	violationService service.ViolationService
	reclaimService   service.ReclaimService
}

func NewReviewController(
	attemptService service.AttemptService,
	violationService service.ViolationService,
	reclaimService service.ReclaimService,
) *ReviewController {
	return &ReviewController{
		attemptService:   attemptService,
		violationService: violationService,
		reclaimService:   reclaimService,
	}
}

// GetAllAttempts godoc
// @Summary (Review) List attempts, optionally by exam
// @Tags Review
// @Produce json
// @Param exam_id query int false "Filter by Exam ID"
// @Success 200 {array} dto.AttemptSummaryResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid Exam ID format"
// @Router /admin/attempts [get]
func (c *ReviewController) GetAllAttempts(ctx *gin.Context) {
	var examID *uint
	if raw := ctx.Query("exam_id"); raw != "" {
		val, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid Exam ID format"})
			return
		}
		id := uint(val)
		examID = &id
	}

	summaries, err := c.attemptService.ListAttempts(examID)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, summaries)
}

// GetAttemptViolations godoc
// @Summary (Review) Full violation log for an attempt
// @Tags Review
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {array} model.ViolationLog
// @Failure 400 {object} dto.ErrorResponse "Invalid Attempt ID format"
// @Router /admin/attempts/{attempt_id}/violations [get]
func (c *ReviewController) GetAttemptViolations(ctx *gin.Context) {
	attemptID, err := parseID(ctx, "attempt_id")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid Attempt ID format"})
		return
	}

	logs, err := c.violationService.Summary(attemptID)
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, logs)
}

// GradeAnswer godoc
// @Summary (Review) Manually grade one answer
// @Description Adjusts score, feedback and correctness for a single answer (long text / file upload) and recomputes the attempt aggregate.
// @Tags Review
// @Accept json
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Param grading body dto.GradeAnswerRequest true "Points and feedback"
// @Success 200 {object} dto.AttemptDetailResponse
// @Failure 404 {object} dto.ErrorResponse "Attempt or answer not found"
// @Router /admin/attempts/{attempt_id}/grade [post]
func (c *ReviewController) GradeAnswer(ctx *gin.Context) {
	attemptID, err := parseID(ctx, "attempt_id")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid Attempt ID format"})
		return
	}

	var req dto.GradeAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	detail, err := c.attemptService.GradeAnswer(attemptID, req.QuestionID, req.PointsAwarded, req.Feedback, middleware.CurrentUserID(ctx))
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, detail)
}

// MarkAbandoned godoc
// @Summary (Review) Mark a stale in_progress attempt abandoned
// @Tags Review
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Success 204 "Abandoned"
// @Failure 403 {object} dto.ErrorResponse "Attempt is not in progress"
// @Router /admin/attempts/{attempt_id}/abandon [post]
func (c *ReviewController) MarkAbandoned(ctx *gin.Context) {
	attemptID, err := parseID(ctx, "attempt_id")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid Attempt ID format"})
		return
	}

	if err := c.attemptService.MarkAbandoned(attemptID); err != nil {
		controller.RespondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// RunReclamation godoc
// @Summary (Review) Run the auto-reset sweep now
// @Description Deletes terminal attempts older than each auto-reset exam's retention, without waiting for the scheduler tick.
// @Tags Review
// @Produce json
// @Success 200 {object} dto.ReclaimResultResponse
// @Router /admin/reclamation/run [post]
func (c *ReviewController) RunReclamation(ctx *gin.Context) {
	result, err := c.reclaimService.RunOnce()
	if err != nil {
		controller.RespondError(ctx, err)
		return
	}
	log.Info().Int("examsChecked", result.ExamsChecked).Int64("deleted", result.AttemptsDeleted).Msg("Manual reclamation run")
	ctx.JSON(http.StatusOK, result)
}

func parseID(ctx *gin.Context, param string) (uint, error) {
	val, err := strconv.ParseUint(ctx.Param(param), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(val), nil
}
