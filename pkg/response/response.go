package response

import (
	"errors"
	"net/http"
	"time"

	"github.com/nithin1018/Village-Banking-App/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDKey is the gin context key holding the per-request correlation id.
const RequestIDKey = "request_id"

// SuccessResponse is the standard success envelope.
type SuccessResponse struct {
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id"`
	Timestamp string      `json:"timestamp"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// OK sends a 200 response with data.
func OK(c *gin.Context, data interface{}) {
	success(c, http.StatusOK, data)
}

// Created sends a 201 response with data.
func Created(c *gin.Context, data interface{}) {
	success(c, http.StatusCreated, data)
}

// Accepted sends a 202 response, used when work continues out of band.
func Accepted(c *gin.Context, data interface{}) {
	success(c, http.StatusAccepted, data)
}

// Error maps err onto the error envelope. *apperror.AppError anywhere in the
// chain decides the status and code; anything else is a 500.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		failure(c, appErr.HTTPStatus, appErr.Code, appErr.Message)
		return
	}
	failure(c, http.StatusInternalServerError, "SYS_000", "Internal server error")
}

func success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, SuccessResponse{
		Data:      data,
		RequestID: requestID(c),
		Timestamp: now(),
	})
}

func failure(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{
		ErrorCode: code,
		Message:   message,
		RequestID: requestID(c),
		Timestamp: now(),
	})
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func requestID(c *gin.Context) string {
	if s := c.GetString(RequestIDKey); s != "" {
		return s
	}
	return uuid.NewString()
}
