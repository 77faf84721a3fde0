package server

import (
	"errors"
	"net/http"

	"coino/service"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// statusFor maps engine errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, service.ErrNotRoomCreator):
		return http.StatusForbidden
	case errors.Is(err, service.ErrRoundNotFound),
		errors.Is(err, service.ErrRoomNotFound),
		errors.Is(err, service.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrRoundNotActive),
		errors.Is(err, service.ErrStaleRound),
		errors.Is(err, service.ErrDuplicateBet):
		return http.StatusConflict
	case errors.Is(err, service.ErrTransientStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{
		"error":  err.Error(),
		"reason": service.RejectionReason(err),
	}

	if status == http.StatusInternalServerError {
		log.WithFields(log.Fields{
			"path":  c.FullPath(),
			"error": err,
		}).Error("Unhandled error in HTTP handler")
		body["error"] = "internal error"
	}

	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":  err.Error(),
		"reason": "validation",
	})
}
