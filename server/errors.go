package server

import (
	"errors"
	"net/http"

	"github.com/cyp0633/libagenda/agenda"
	"github.com/cyp0633/libagenda/lifecycle"
	"github.com/cyp0633/libagenda/recurrence"
	"github.com/cyp0633/libagenda/storage"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	var refused *lifecycle.RefusedEditError
	var malformed *recurrence.MalformedRuleError

	switch {
	case errors.As(err, &refused):
		return http.StatusUnprocessableEntity
	case errors.Is(err, agenda.ErrInvalidInput), errors.As(err, &malformed):
		return http.StatusBadRequest
	case errors.Is(err, agenda.ErrPermissionDenied):
		return http.StatusForbidden
	case storage.IsNotFound(err):
		return http.StatusNotFound
	case storage.IsConflict(err), storage.IsType(err, storage.ErrAlreadyExists):
		return http.StatusConflict
	case storage.IsType(err, storage.ErrInvalidInput):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	var refused *lifecycle.RefusedEditError
	if errors.As(err, &refused) {
		resp.Reason = refused.Reason
	}

	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		resp.Error = "internal error"
	}
	c.AbortWithStatusJSON(status, resp)
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}
