package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	enginedomain "github.com/smallbiznis/incomeengine/internal/engine/domain"
	withdrawaldomain "github.com/smallbiznis/incomeengine/internal/withdrawal/domain"
	"github.com/smallbiznis/incomeengine/pkg/errutil"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
	// Available is set when a withdrawal exceeds the balance.
	Available string `json:"available,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound       = errutil.NotFound("not_found")
	ErrInvalidRequest = errutil.Validation("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    vErr.Errors[0].Code,
			Message: vErr.Errors[0].Message,
			Errors:  vErr.Errors,
		}
	}

	var insufficient *withdrawaldomain.InsufficientFundsError
	if errors.As(err, &insufficient) {
		return http.StatusBadRequest, errorPayload{
			Type:      "validation_error",
			Code:      errutil.CodeOf(err),
			Message:   insufficient.Error(),
			Available: insufficient.Available.StringFixed(2),
		}
	}

	// A failed engine run is reported as such whatever its cause.
	var runErr *enginedomain.EngineRunError
	if errors.As(err, &runErr) {
		return http.StatusInternalServerError, errorPayload{
			Type:    "engine_run_failed",
			Message: runErr.Error(),
		}
	}

	switch errutil.Kind(err) {
	case errutil.ErrValidation:
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    errutil.CodeOf(err),
			Message: err.Error(),
		}
	case errutil.ErrNotFound:
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Code:    errutil.CodeOf(err),
			Message: err.Error(),
		}
	case errutil.ErrConflict:
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    errutil.CodeOf(err),
			Message: err.Error(),
		}
	case errutil.ErrUnavailable:
		return http.StatusBadGateway, errorPayload{
			Type:    "upstream_unavailable",
			Code:    errutil.CodeOf(err),
			Message: err.Error(),
		}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}

// classifyErrorForLog feeds error_type and error_code on request logs.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if payload.Code != "" {
		return payload.Type, payload.Code
	}
	return payload.Type, http.StatusText(status)
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil && len(vErr.Errors) > 0 {
		return vErr
	}
	return nil
}
