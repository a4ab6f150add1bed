package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rawblock/sanctions-screener/pkg/models"
)

// Response envelope shared by every endpoint:
//
//	{ "success": true,  "data": {...},  "timestamp": ..., "correlationId": ... }
//	{ "success": false, "error": {"code", "message", "details"?}, ... }

const correlationKey = "correlationId"

// CorrelationMiddleware assigns each request a correlation id, honoring
// a caller-supplied X-Correlation-ID header, and echoes it back.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Correlation-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(correlationKey, id)
		c.Header("X-Correlation-ID", id)
		c.Next()
	}
}

func correlationID(c *gin.Context) string {
	return c.GetString(correlationKey)
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"data":          data,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
		"correlationId": correlationID(c),
	})
}

func respondError(c *gin.Context, status int, code, message string, details any) {
	errBody := gin.H{"code": code, "message": message}
	if details != nil {
		errBody["details"] = details
	}
	c.JSON(status, gin.H{
		"success":       false,
		"error":         errBody,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
		"correlationId": correlationID(c),
	})
}

// respondScreenError maps a screening error onto the HTTP surface
func respondScreenError(c *gin.Context, err error) {
	var se *models.ScreenError
	if !errors.As(err, &se) {
		respondError(c, http.StatusInternalServerError, string(models.ErrInternal), err.Error(), nil)
		return
	}

	var details any
	if len(se.Details) > 0 {
		details = se.Details
	}
	respondError(c, statusForKind(se), string(se.Kind), se.Message, details)
}

// statusForKind picks the HTTP status for a typed screening error.
// External rate-cap exhaustion (an EXTERNAL_API error carrying a
// "limit" detail) surfaces as 429 rather than a gateway error.
func statusForKind(se *models.ScreenError) int {
	switch se.Kind {
	case models.ErrValidation:
		return http.StatusBadRequest
	case models.ErrDataNotFound:
		return http.StatusNotFound
	case models.ErrDataLoad:
		return http.StatusServiceUnavailable
	case models.ErrExternalAPI:
		if _, ok := se.Details["limit"]; ok {
			return http.StatusTooManyRequests
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
