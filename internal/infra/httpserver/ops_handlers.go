// internal/infra/httpserver/ops_handlers.go
package httpserver

import (
	"errors"
	"net/http"

	"shift_reminder_bot/internal/app"
	idb "shift_reminder_bot/internal/infra/database"
	"shift_reminder_bot/internal/infra/scheduler"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type testReminderRequest struct {
	JobID       int64 `json:"job_id" binding:"required"`
	AssociateID int64 `json:"associate_id" binding:"required"`
}

type opsHandler struct {
	sched     reminderRunner
	reminders testSender
	logger    *logrus.Entry
}

func newOpsHandler(sched reminderRunner, reminders testSender, logger *logrus.Entry) *opsHandler {
	return &opsHandler{sched: sched, reminders: reminders, logger: logger}
}

// Run triggers one synchronous reminder cycle.
func (h *opsHandler) Run(c *gin.Context) {
	result, err := h.sched.RunNow(c.Request.Context())
	if err != nil {
		if errors.Is(err, scheduler.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.logger.Errorf("Manual reminder run failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Stats returns the scheduler's observability snapshot.
func (h *opsHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.sched.Stats())
}

// Test sends a manual test reminder for one job/associate pair.
func (h *opsHandler) Test(c *gin.Context) {
	var req testReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id and associate_id are required"})
		return
	}

	err := h.reminders.SendTestReminder(c.Request.Context(), req.JobID, req.AssociateID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "sent"})
	case errors.Is(err, idb.ErrPlacementNotFound),
		errors.Is(err, idb.ErrAssociateNotFound),
		errors.Is(err, idb.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, app.ErrAllRemindersSent), errors.Is(err, app.ErrAssociateOptedOut):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Errorf("Test reminder failed for job %d, associate %d: %v", req.JobID, req.AssociateID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
