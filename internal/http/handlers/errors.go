package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"busticket/internal/domain"
	"busticket/internal/http/middleware"
	"busticket/internal/utils"
)

// ErrorResponse standardizes error payloads.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string, details any) {
	if code == "" {
		code = http.StatusText(status)
	}
	c.JSON(status, ErrorResponse{
		Success:   false,
		Error:     message,
		Code:      code,
		Details:   details,
		RequestID: middleware.GetRequestID(c),
	})
}

// RespondDomainError maps domain errors to HTTP responses.
func RespondDomainError(c *gin.Context, err error) {
	switch {
	case domain.IsValidation(err):
		respondError(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case domain.IsConflict(err):
		var details any
		if seats := domain.ConflictSeats(err); len(seats) > 0 {
			details = gin.H{"seats": seats}
		}
		respondError(c, http.StatusConflict, "conflict", err.Error(), details)
	case domain.IsPaymentGateway(err):
		utils.Log().Warn("payment provider error", zap.String("request_id", middleware.GetRequestID(c)), zap.Error(err))
		respondError(c, http.StatusBadGateway, "payment_provider_error", "payment provider unavailable, please retry", nil)
	case domain.IsUnauthorized(err):
		respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
	default:
		utils.Log().Error("unexpected error", zap.String("request_id", middleware.GetRequestID(c)), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "internal_error", "unexpected error", nil)
	}
}
