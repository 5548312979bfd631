// Package ginutil holds the small helpers the gin handlers share:
// canned error responses, rate-limit gating and flow-error mapping.
package ginutil

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soilmonitoring/phoenix-iam/oauth"
)

// Rate-limit bucket names.
const (
	RLLogin = "login"
)

// RateLimiter is satisfied by both the redis and in-memory limiters.
type RateLimiter interface {
	AllowNamed(ctx context.Context, bucket, key string) (bool, error)
}

// AllowNamed gates a request on the caller's IP. Limiter failures fail
// open: losing redis must not lock every user out.
func AllowNamed(c *gin.Context, rl RateLimiter, bucket string) bool {
	if rl == nil {
		return true
	}
	ok, err := rl.AllowNamed(c.Request.Context(), bucket, c.ClientIP())
	if err != nil {
		return true
	}
	return ok
}

func BadRequest(c *gin.Context, code, description string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": code, "error_description": description})
}

func Unauthorized(c *gin.Context, code, description string) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": code, "error_description": description})
}

func NotFound(c *gin.Context, description string) {
	c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "error_description": description})
}

func Conflict(c *gin.Context, description string) {
	c.JSON(http.StatusConflict, gin.H{"error": "conflict", "error_description": description})
}

func TooMany(c *gin.Context) {
	c.JSON(http.StatusTooManyRequests, gin.H{"error": "too_many_requests"})
}

func ServerError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
}

// RespondFlowError maps a flow failure to its HTTP shape. Internal
// causes never reach the body.
func RespondFlowError(c *gin.Context, err error) {
	var fe *oauth.FlowError
	if !errors.As(err, &fe) {
		ServerError(c)
		return
	}
	if fe.Kind == oauth.KindServerError {
		ServerError(c)
		return
	}
	c.JSON(fe.Kind.HTTPStatus(), gin.H{
		"error":             fe.Kind.OAuthCode(),
		"error_description": fe.Description,
	})
}
