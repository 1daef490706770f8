// Package common holds the shared types of the HTTP layer.
//
// It lives in its own package to avoid import cycles between handlers,
// middleware and the main http package.
package common

import (
	"errors"
	"net/http"
	"time"

	domainerrors "github.com/Haleralex/walletledger/internal/domain/errors"
	"github.com/gin-gonic/gin"
)

// ============================================
// Standard API Response Format
// ============================================

// APIResponse is the envelope used for errors and administrative endpoints.
// The core transfer and query endpoints return flat bodies; everything that
// goes wrong is wrapped in this shape.
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	RequestID string      `json:"request_id"`
	Timestamp time.Time   `json:"timestamp"`
}

// APIError carries the machine-readable error code plus a human message.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Fields  []FieldError           `json:"fields,omitempty"`
}

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ============================================
// HTTP-level Error Codes
// ============================================

// Codes emitted by the HTTP layer itself (binding, routing, panics).
// Domain outcomes carry their own codes from internal/domain/errors.
const (
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

// ============================================
// Request ID
// ============================================

const (
	// RequestIDHeader is the wire header carrying the request id.
	RequestIDHeader = "X-Request-ID"
	// RequestIDContextKey is the gin context key the middleware stores it under.
	RequestIDContextKey = "request_id"
)

// GetRequestID returns the request id placed in the context by the middleware.
func GetRequestID(c *gin.Context) string {
	if id, exists := c.Get(RequestIDContextKey); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

// SetRequestID stores the request id in the context and echoes it as a header.
func SetRequestID(c *gin.Context, id string) {
	c.Set(RequestIDContextKey, id)
	c.Header(RequestIDHeader, id)
}

// ============================================
// Response Helpers
// ============================================

// Success sends an enveloped success response.
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, APIResponse{
		Success:   true,
		Data:      data,
		RequestID: GetRequestID(c),
		Timestamp: time.Now().UTC(),
	})
}

// Error sends an enveloped error response.
func Error(c *gin.Context, statusCode int, apiError *APIError) {
	c.JSON(statusCode, APIResponse{
		Success:   false,
		Error:     apiError,
		RequestID: GetRequestID(c),
		Timestamp: time.Now().UTC(),
	})
}

// ============================================
// Error Response Helpers
// ============================================

// ValidationErrorResponse reports rejected request fields.
func ValidationErrorResponse(c *gin.Context, fields []FieldError) {
	Error(c, http.StatusBadRequest, &APIError{
		Code:    ErrCodeValidation,
		Message: "Request validation failed",
		Fields:  fields,
	})
}

// BadRequestResponse reports a malformed request.
func BadRequestResponse(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, &APIError{
		Code:    ErrCodeInvalidRequest,
		Message: message,
	})
}

// NotFoundResponse reports a missing resource.
func NotFoundResponse(c *gin.Context, resource string) {
	Error(c, http.StatusNotFound, &APIError{
		Code:    ErrCodeNotFound,
		Message: resource + " not found",
	})
}

// InternalErrorResponse reports an unexpected failure.
func InternalErrorResponse(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, &APIError{
		Code:    ErrCodeInternal,
		Message: message,
	})
}

// ============================================
// Domain Error to HTTP Status Mapping
// ============================================

// StatusForCode maps a domain error code to its HTTP status. Everything not
// listed is a client error.
func StatusForCode(code string) int {
	switch code {
	case domainerrors.CodeWalletNotFound:
		return http.StatusNotFound
	case domainerrors.CodeDuplicateRequest,
		domainerrors.CodeConcurrentProcessing,
		domainerrors.CodeOwnerAlreadyExists:
		return http.StatusConflict
	case domainerrors.CodeTransferFailed,
		domainerrors.CodeInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// HandleDomainError converts an application-layer error into the enveloped
// HTTP response. This is the single outcome-to-status mapping point; handlers
// never pick status codes themselves.
func HandleDomainError(c *gin.Context, err error) {
	// 1. Field-level validation failures.
	var valErr domainerrors.ValidationError
	if errors.As(err, &valErr) {
		ValidationErrorResponse(c, []FieldError{
			{Field: valErr.Field, Message: valErr.Message, Code: "invalid"},
		})
		return
	}
	var valErrs domainerrors.ValidationErrors
	if errors.As(err, &valErrs) {
		fields := make([]FieldError, 0, len(valErrs))
		for _, ve := range valErrs {
			fields = append(fields, FieldError{Field: ve.Field, Message: ve.Message, Code: "invalid"})
		}
		ValidationErrorResponse(c, fields)
		return
	}

	// 2. Optimistic-lock conflicts. Row locks make these unreachable on the
	// transfer path, but the repository can still surface them elsewhere.
	var concErr *domainerrors.ConcurrencyError
	if errors.As(err, &concErr) {
		Error(c, http.StatusConflict, &APIError{
			Code:    domainerrors.CodeConcurrentProcessing,
			Message: "Resource was modified by another request, please retry",
			Details: map[string]interface{}{
				"retryable": true,
			},
		})
		return
	}

	// 3. Categorized domain outcomes.
	var domainErr *domainerrors.DomainError
	if errors.As(err, &domainErr) {
		Error(c, StatusForCode(domainErr.Code), &APIError{
			Code:    domainErr.Code,
			Message: domainErr.Message,
		})
		return
	}

	// 4. Bare not-found sentinels that escaped without a code.
	if domainerrors.IsNotFound(err) {
		NotFoundResponse(c, "Resource")
		return
	}

	// 5. Everything else is an internal error; the cause stays in the logs.
	InternalErrorResponse(c, "An unexpected error occurred")
}
