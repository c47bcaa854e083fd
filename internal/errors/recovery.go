package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id back to the client
const RequestIDHeader = "X-Request-ID"

// As unwraps err to an *AppError
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// WithContext adds a detail entry to the error response
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// RequestIDMiddleware tags every request with an id, reusing a client supplied one
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// RecoveryMiddleware turns panics into a structured 500 response
func RecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		var err error
		if e, ok := recovered.(error); ok {
			err = e
		} else {
			err = fmt.Errorf("%v", recovered)
		}

		appErr := &AppError{
			Code:       "PANIC",
			Message:    "Panic recovered",
			HTTPStatus: 500,
			Cause:      err,
		}
		if requestID, ok := c.Get("request_id"); ok {
			appErr.WithContext("request_id", requestID)
		}
		appErr.ToGinResponse(c)
	})
}
