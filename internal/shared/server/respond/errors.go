package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"invoice-console/internal/shared/telemetry"
)

// Error codes shared by every console route.
const (
	CodeValidation = "validation_error"
	CodeNotFound   = "not_found"
	CodeUpstream   = "backend_error"
	CodeInternal   = "internal_error"
)

// ErrorBody is the error object every failed request carries.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error aborts the request with the error envelope and logs it against the request id.
func Error(c *gin.Context, status int, code, message string, details any) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"route":      c.FullPath(),
		"request_id": c.GetString("requestId"),
	}
	if status >= http.StatusInternalServerError {
		telemetry.Error("request.failed", fields)
	} else {
		telemetry.Warn("request.rejected", fields)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorBody{Code: code, Message: message, Details: details}})
}

// Validation rejects input the console can check locally.
func Validation(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, CodeValidation, message, nil)
}

// NotFound reports a missing view entry such as an unknown checkpoint.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, CodeNotFound, message, nil)
}

// Upstream reports a failed workflow backend call. message is already user-facing.
func Upstream(c *gin.Context, message string) {
	Error(c, http.StatusBadGateway, CodeUpstream, message, nil)
}
