// internal/infra/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RemindersSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shift_reminders_sent_total",
		Help: "Reminders successfully delivered, by reminder class.",
	}, []string{"class"})

	RemindersFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shift_reminders_failed_total",
		Help: "Reminder deliveries that failed, by reminder class.",
	}, []string{"class"})

	RemindersSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shift_reminders_skipped_total",
		Help: "Due reminders skipped because the associate opted out.",
	})

	InboundMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shift_inbound_messages_total",
		Help: "Inbound SMS replies processed, by resolved action.",
	}, []string{"action"})

	SchedulerRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shift_scheduler_runs_total",
		Help: "Completed reminder cycles, by outcome.",
	}, []string{"outcome"})

	SchedulerTicksSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shift_scheduler_ticks_skipped_total",
		Help: "Timer ticks skipped because a cycle was still running.",
	})

	DeliveryStatusCallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shift_delivery_status_callbacks_total",
		Help: "Gateway delivery-status callbacks received, by reported status.",
	}, []string{"status"})
)
