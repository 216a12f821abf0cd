// internal/infra/httpserver/server.go
package httpserver

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"shift_reminder_bot/internal/app"
	"shift_reminder_bot/internal/domain/assignment"
	"shift_reminder_bot/internal/infra/scheduler"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// inboundProcessor is the slice of the message router the webhook needs.
type inboundProcessor interface {
	ProcessIncomingMessage(ctx context.Context, phoneNumber, rawText string) (*app.InboundResult, error)
}

// reminderRunner is the slice of the scheduler the ops endpoints need.
type reminderRunner interface {
	RunNow(ctx context.Context) (*assignment.RunResult, error)
	Stats() scheduler.RunStats
	IsActive() bool
}

// testSender is the slice of the dispatcher the ops endpoints need.
type testSender interface {
	SendTestReminder(ctx context.Context, jobID, associateID int64) error
}

// Server wires the inbound webhook, delivery-status callback, operator
// endpoints and metrics onto one gin engine.
type Server struct {
	engine  *gin.Engine
	httpSrv *http.Server
	logger  *logrus.Entry
}

func New(router inboundProcessor, sched reminderRunner, reminders testSender, db *sql.DB, environment string, logger *logrus.Entry) *Server {
	if strings.ToLower(environment) == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{engine: engine, logger: logger}

	wh := newWebhookHandler(router, logger)
	engine.POST("/webhooks/sms", wh.Inbound)
	engine.POST("/webhooks/sms/status", wh.Status)

	ops := newOpsHandler(sched, reminders, logger)
	engine.POST("/internal/reminders/run", ops.Run)
	engine.GET("/internal/reminders/stats", ops.Stats)
	engine.POST("/internal/reminders/test", ops.Test)

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return s
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Infof("HTTP server listening on %s.", addr)
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Engine exposes the underlying gin engine for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
