package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"salonbook/internal/booking"
	"salonbook/internal/model"
)

func success(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func failWithDetails(c *gin.Context, status int, code, message string, details any) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// writeError maps service errors onto the envelope. Storage errors never
// leak their text to clients.
func writeError(c *gin.Context, err error) {
	var rejected *booking.RejectedError
	switch {
	case errors.As(err, &rejected):
		failWithDetails(c, http.StatusConflict, "BOOKING_REJECTED", rejected.Decision.Message, gin.H{
			"reason":   rejected.Decision.Reason,
			"conflict": rejected.Decision.Conflict,
		})
	case errors.Is(err, model.ErrInvalidRequest):
		fail(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, model.ErrNotFound):
		fail(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, model.ErrInvalidTransition):
		fail(c, http.StatusConflict, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, booking.ErrPersistence):
		fail(c, http.StatusServiceUnavailable, "TEMPORARILY_UNAVAILABLE", "Service is temporarily unavailable, please try again")
	default:
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("unhandled request error")
		fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
