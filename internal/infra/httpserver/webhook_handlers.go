// internal/infra/httpserver/webhook_handlers.go
package httpserver

import (
	"net/http"

	"shift_reminder_bot/internal/infra/metrics"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// emptyTwiML tells the gateway we have nothing more to say; acknowledgments
// are sent out-of-band by the router.
const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// inboundForm is the gateway's inbound-message webhook payload, reduced to
// the fields this core consumes. Missing From or Body is a validation error,
// not undefined behavior further down.
type inboundForm struct {
	MessageSid string `form:"MessageSid"`
	From       string `form:"From" binding:"required"`
	To         string `form:"To"`
	Body       string `form:"Body" binding:"required"`
}

// statusForm is the delivery-status callback payload.
type statusForm struct {
	MessageSid    string `form:"MessageSid" binding:"required"`
	MessageStatus string `form:"MessageStatus"`
	ErrorCode     string `form:"ErrorCode"`
}

type webhookHandler struct {
	router inboundProcessor
	logger *logrus.Entry
}

func newWebhookHandler(router inboundProcessor, logger *logrus.Entry) *webhookHandler {
	return &webhookHandler{router: router, logger: logger}
}

// Inbound handles one reply: one HTTP call maps to exactly one
// classify-resolve-transition-persist sequence.
func (h *webhookHandler) Inbound(c *gin.Context) {
	var form inboundForm
	if err := c.ShouldBind(&form); err != nil {
		h.logger.Warnf("Rejected malformed inbound webhook: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "From and Body are required"})
		return
	}

	result, err := h.router.ProcessIncomingMessage(c.Request.Context(), form.From, form.Body)
	if err != nil {
		h.logger.Errorf("Inbound message processing failed (sid %s): %v", form.MessageSid, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "message processing failed"})
		return
	}
	h.logger.Infof("Inbound sid=%s action=%s applied=%t", form.MessageSid, result.Action, result.Applied)

	c.Data(http.StatusOK, "text/xml", []byte(emptyTwiML))
}

// Status records delivery-status callbacks. Best-effort by design: whatever
// the payload, the gateway gets a success response so it stops retrying.
func (h *webhookHandler) Status(c *gin.Context) {
	var form statusForm
	if err := c.ShouldBind(&form); err != nil {
		h.logger.Warnf("Malformed status callback ignored: %v", err)
		c.Status(http.StatusNoContent)
		return
	}

	status := form.MessageStatus
	if status == "" {
		status = "unknown"
	}
	metrics.DeliveryStatusCallbacks.WithLabelValues(status).Inc()
	if form.ErrorCode != "" {
		h.logger.Warnf("Delivery status for %s: %s (error code %s)", form.MessageSid, status, form.ErrorCode)
	} else {
		h.logger.Debugf("Delivery status for %s: %s", form.MessageSid, status)
	}

	c.Status(http.StatusNoContent)
}
