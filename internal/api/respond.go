package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/tradielink/internal/apperr"
	"github.com/lalith-99/tradielink/internal/messaging"
	"github.com/lalith-99/tradielink/internal/middleware"
	"github.com/lalith-99/tradielink/internal/models"
	"go.uber.org/zap"
)

// Every response is an envelope: {"ok": true, ...fields} on success and
// {"ok": false, "error": "..."} with a non-2xx status on failure.

func respond(c *gin.Context, status int, fields gin.H) {
	body := gin.H{"ok": true}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(status, body)
}

// fail writes the error envelope. Classified errors keep their message;
// anything else is logged and answered with fallback.
func fail(c *gin.Context, logger *zap.Logger, err error, fallback string) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		logger.Error(fallback,
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err),
		)
	}
	c.JSON(status, gin.H{
		"ok":    false,
		"error": apperr.Message(err, fallback),
	})
}

// requireRole writes a 403 and returns false when the caller has another role.
func requireRole(c *gin.Context, logger *zap.Logger, role models.Role) bool {
	if middleware.GetRole(c) != role {
		fail(c, logger, apperr.Forbidden("Only %ss can do this.", role), "")
		return false
	}
	return true
}

func callerFrom(c *gin.Context) messaging.Caller {
	return messaging.Caller{
		UserID: middleware.GetUserID(c),
		Role:   middleware.GetRole(c),
	}
}

// parseID reads a positive integer id. Anything else is invalid input.
func parseID(raw, name string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.InvalidInput("A valid %s is required.", name)
	}
	return id, nil
}

// bindJSON decodes the body into dst. A missing body is left as the zero
// value so field validation can report what is absent.
func bindJSON(c *gin.Context, dst any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		return apperr.InvalidInput("Malformed JSON body.")
	}
	return nil
}
