package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	userIDHeader   = "X-User-ID"
	userNameHeader = "X-User-Name"
	userIDKey      = "userID"
)

// requireUser takes the caller's identity from the X-User-ID header.
// Authentication happens in front of this service.
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(userIDHeader))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":  "missing " + userIDHeader + " header",
				"reason": "unidentified",
			})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func userIDFromContext(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func userNameFromContext(c *gin.Context) string {
	if name := strings.TrimSpace(c.GetHeader(userNameHeader)); name != "" {
		return name
	}
	return userIDFromContext(c)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Error("HTTP request failed")
			return
		}
		entry.Debug("HTTP request")
	}
}
