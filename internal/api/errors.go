package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bomstudio/internal/logging"
	"bomstudio/internal/services"
)

// StatusForKind maps a services error kind to an HTTP status.
func StatusForKind(kind string) int {
	switch kind {
	case services.KindValidation, services.KindInvalidTransition:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) fail(c *gin.Context, err error) {
	details := services.Details(err)
	kind := details.Kind
	if kind == "" {
		kind = services.Kind(err)
	}
	status := StatusForKind(kind)
	message := strings.TrimSpace(details.Message)
	if message == "" || status >= http.StatusInternalServerError {
		message = err.Error()
	}
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(c.Request.Context(), h.logger), "request failed", "http_request_failed",
			logging.String("path", c.FullPath()),
			logging.String(logging.FieldErrorKind, kind),
			logging.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message, "kind": kind})
}

func (h *handlers) badRequest(c *gin.Context, err error) {
	h.fail(c, services.Wrap(services.ErrValidation, "api", "decode request", err.Error(), nil))
}
