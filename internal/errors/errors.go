package errors

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mantonx/medialibrary/internal/logger"
)

// AppError represents a structured error with HTTP context
type AppError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Cause      error                  `json:"-"`
	HTTPStatus int                    `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// ToGinResponse sends the error as a standardized JSON response
func (e *AppError) ToGinResponse(c *gin.Context) {
	statusCode := e.HTTPStatus
	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}

	response := gin.H{
		"error": e.Message,
		"code":  e.Code,
	}

	if len(e.Context) > 0 {
		response["details"] = e.Context
	}

	if statusCode >= http.StatusInternalServerError {
		logger.Error("HTTP error response",
			"status", statusCode,
			"code", e.Code,
			"message", e.Message,
			"cause", e.Cause,
			"path", c.Request.URL.Path,
			"method", c.Request.Method)
	} else {
		logger.Debug("HTTP error response",
			"status", statusCode,
			"code", e.Code,
			"message", e.Message,
			"path", c.Request.URL.Path)
	}

	c.AbortWithStatusJSON(statusCode, response)
}

// Common error constructors
func NewValidationError(message string, field string) *AppError {
	ctx := map[string]interface{}{}
	if field != "" {
		ctx["field"] = field
	}
	return &AppError{
		Code:       "VALIDATION_ERROR",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Context:    ctx,
	}
}

func NewNotFoundError(resource string, id string) *AppError {
	return &AppError{
		Code:       "NOT_FOUND",
		Message:    resource + " not found",
		HTTPStatus: http.StatusNotFound,
		Context:    map[string]interface{}{"resource": resource, "id": id},
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:       "UNAUTHORIZED",
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:       "FORBIDDEN",
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Code:       "CONFLICT",
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

func NewRateLimitedError(message string) *AppError {
	return &AppError{
		Code:       "RATE_LIMITED",
		Message:    message,
		HTTPStatus: http.StatusTooManyRequests,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewDatabaseError(operation string, cause error) *AppError {
	return &AppError{
		Code:       "DATABASE_ERROR",
		Message:    "Database operation failed",
		HTTPStatus: http.StatusInternalServerError,
		Context:    map[string]interface{}{"operation": operation},
		Cause:      cause,
	}
}

// HTTP helpers to eliminate duplicate error handling

// HandleValidationError sends a validation error response
func HandleValidationError(c *gin.Context, message string, field string) {
	NewValidationError(message, field).ToGinResponse(c)
}

// HandleNotFound sends a not found error response
func HandleNotFound(c *gin.Context, resource string, id string) {
	NewNotFoundError(resource, id).ToGinResponse(c)
}

// HandleInternalError sends an internal server error response
func HandleInternalError(c *gin.Context, message string, err error) {
	NewInternalError(message, err).ToGinResponse(c)
}

// HandleDatabaseError sends a database error response
func HandleDatabaseError(c *gin.Context, operation string, err error) {
	NewDatabaseError(operation, err).ToGinResponse(c)
}

// HandleError sends err as-is when it is an AppError and as an internal error otherwise
func HandleError(c *gin.Context, err error) {
	if appErr, ok := As(err); ok {
		appErr.ToGinResponse(c)
		return
	}
	HandleInternalError(c, "Internal server error", err)
}

// ParseID reads a positive numeric path parameter
func ParseID(c *gin.Context, paramName string) (uint, bool) {
	raw := c.Param(paramName)
	if raw == "" {
		HandleValidationError(c, "Missing "+paramName, paramName)
		return 0, false
	}

	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		HandleValidationError(c, "Invalid "+paramName+" format", paramName)
		return 0, false
	}

	return uint(id), true
}
