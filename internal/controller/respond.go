package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/Margays/internal/apperror"
	"github.com/lshigami/Margays/internal/dto"
	"github.com/rs/zerolog/log"
)

// RespondError maps a service failure onto the HTTP response. Typed errors
// carry their own status and code; anything else is an internal error whose
// details stay in the log.
func RespondError(ctx *gin.Context, err error) {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		ctx.JSON(appErr.HTTPStatus(), dto.ErrorResponse{
			Message: appErr.Error(),
			Code:    appErr.Code(),
		})
		return
	}
	log.Error().Err(err).Str("path", ctx.FullPath()).Msg("Unhandled service error")
	ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Internal server error"})
}
