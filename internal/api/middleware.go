package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"language-toolkit/internal/errs"
	"language-toolkit/internal/logger"
)

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		if status >= http.StatusInternalServerError {
			logger.Error("%s %s -> %d (%v)", c.Request.Method, c.Request.URL.Path, status, time.Since(start))
			return
		}
		logger.Debug("%s %s -> %d (%v)", c.Request.Method, c.Request.URL.Path, status, time.Since(start))
	}
}

// bearerAuth rejects requests without the configured token. An empty
// token disables the check.
func bearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{
				Error: errorDetail{Kind: "unauthorized", Message: "missing or invalid bearer token"},
			})
			return
		}
		c.Next()
	}
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindNotReady, errs.KindTaskActive:
		return http.StatusConflict
	case errs.KindIndexOutOfRange, errs.KindInvalidParams:
		return http.StatusBadRequest
	case errs.KindUnknownLanguage:
		return http.StatusUnprocessableEntity
	case errs.KindProviderUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	c.AbortWithStatusJSON(statusFor(kind), errorBody{Error: errorDetail{Kind: string(kind), Message: err.Error()}})
}
