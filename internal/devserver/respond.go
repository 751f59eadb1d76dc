package devserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes mirrored from the production API's error payloads.
const (
	errCodeUnauthorized  = "UNAUTHORIZED"
	errCodeInvalidInput  = "INVALID_INPUT"
	errCodeNotFound      = "NOT_FOUND"
	errCodeConflict      = "CONFLICT"
	errCodeInternalError = "INTERNAL_ERROR"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, errorResponse{Code: code, Message: message})
}

func badRequest(c *gin.Context, message string) {
	if message == "" {
		message = "Invalid request body"
	}
	respondError(c, http.StatusBadRequest, errCodeInvalidInput, message)
}

func unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "Authentication required"
	}
	respondError(c, http.StatusUnauthorized, errCodeUnauthorized, message)
}

func notFound(c *gin.Context, message string) {
	if message == "" {
		message = "Resource not found"
	}
	respondError(c, http.StatusNotFound, errCodeNotFound, message)
}

func conflict(c *gin.Context, message string) {
	respondError(c, http.StatusConflict, errCodeConflict, message)
}

func internalError(c *gin.Context, message string) {
	if message == "" {
		message = "Internal server error"
	}
	respondError(c, http.StatusInternalServerError, errCodeInternalError, message)
}
