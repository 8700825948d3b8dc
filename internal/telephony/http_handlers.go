package telephony

import (
	"net/http"

	"dialer-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// StatusObserver receives out-of-band status updates from provider webhooks.
// The status monitor implements this; webhook delivery supplements polling,
// it does not replace it.
type StatusObserver interface {
	ObserveStatus(callID string, status Status)
}

// StatusWebhookHandler converts the provider status callback to internal
// types and hands it to the observer. No business logic here.
//
// NOTE: This endpoint should be protected by provider signature validation in
// production.
type StatusWebhookHandler struct {
	Observer StatusObserver
}

func (h StatusWebhookHandler) HandleStatusCallback(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Observer == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "status observer not configured"})
		return
	}

	form, err := ParseStatusCallback(c.Request)
	if err != nil {
		log.Warn("status webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	if form.CallSid == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "CallSid required"})
		return
	}

	h.Observer.ObserveStatus(form.CallSid, form.Status())
	c.Status(http.StatusNoContent)
}
