package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rentalops/backend/internal/infrastructure/logger"
	"github.com/rentalops/backend/internal/interfaces/http/dto"
)

// Project scope keys. Every billing lookup is confined to the project named by the header.
const (
	ProjectIDHeader      = "X-Project-ID"
	ProjectIDKey         = "project_id"
	IdempotencyKeyHeader = "Idempotency-Key"
)

// ProjectScope requires a valid X-Project-ID header and exposes it to handlers, logs and traces
func ProjectScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseProject(c.GetHeader(ProjectIDHeader))
		if !ok {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeMissingProject,
				"X-Project-ID header must carry a project UUID",
				c.GetString(RequestIDKey),
			))
			return
		}
		setProject(c, id)
		c.Next()
	}
}

// OptionalProjectScope records the project when the header is present and valid, and never rejects
func OptionalProjectScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, ok := parseProject(c.GetHeader(ProjectIDHeader)); ok {
			setProject(c, id)
		}
		c.Next()
	}
}

func setProject(c *gin.Context, id string) {
	c.Set(ProjectIDKey, id)
	c.Request = c.Request.WithContext(logger.WithProjectID(c.Request.Context(), id))
}

// parseProject validates a raw header value, returning its canonical form
func parseProject(raw string) (string, bool) {
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return "", false
	}
	return id.String(), true
}

// GetProjectID returns the project set by ProjectScope or OptionalProjectScope
func GetProjectID(c *gin.Context) (uuid.UUID, bool) {
	raw := c.GetString(ProjectIDKey)
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
