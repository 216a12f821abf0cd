package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shift_reminder_bot/internal/app"
	"shift_reminder_bot/internal/infra/config"
	idb "shift_reminder_bot/internal/infra/database"
	"shift_reminder_bot/internal/infra/httpserver"
	"shift_reminder_bot/internal/infra/logger"
	"shift_reminder_bot/internal/infra/scheduler"
	"shift_reminder_bot/internal/infra/sms"
)

func main() {
	fmt.Println("Shift Reminder Bot starting...")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load application configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg)
	mainLog := logger.WithComponent("main")
	mainLog.Infof("Configuration loaded. LogLevel: %s, Environment: %s, Timezone: %s", cfg.LogLevel, cfg.Environment, cfg.Timezone)

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		mainLog.Fatalf("FATAL: Could not load timezone %q: %v", cfg.Timezone, err)
	}

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		mainLog.Fatalf("FATAL: Could not connect to database: %v", err)
	}
	defer db.Close()
	mainLog.Info("Database connection established successfully.")

	// Initialize Repositories
	placementRepo := idb.NewPostgresAssignmentRepository(db)
	associateRepo := idb.NewPostgresAssociateRepository(db)
	jobRepo := idb.NewPostgresJobRepository(db)
	mainLog.Info("Repositories initialized.")

	// Initialize SMS Gateway
	gateway := sms.NewTwilioGateway(
		cfg.TwilioAccountSID,
		cfg.TwilioAuthToken,
		cfg.TwilioFromNumber,
		cfg.SMSSendRatePerSecond,
		logger.WithComponent("sms"),
	)
	mainLog.Info("SMS gateway initialized.")

	// Initialize ReminderService (Dispatcher)
	reminderService := app.NewReminderServiceImpl(
		placementRepo,
		associateRepo,
		jobRepo,
		gateway,
		logger.WithComponent("dispatcher"),
		app.ReminderDefaults{
			NightBeforeTime: cfg.NightBeforeTime,
			DayOfTime:       cfg.DayOfTime,
			Location:        location,
		},
	)
	mainLog.Info("Reminder service initialized.")

	// Initialize ReminderScheduler
	reminderScheduler := scheduler.NewReminderScheduler(
		reminderService,
		scheduler.Config{
			Interval:   time.Duration(cfg.ReminderIntervalMinutes) * time.Minute,
			MaxRetries: cfg.ReminderMaxRetries,
			RetryDelay: time.Duration(cfg.ReminderRetryDelayMinutes) * time.Minute,
		},
		logger.WithComponent("scheduler"),
	)
	if cfg.RemindersEnabled {
		if err := reminderScheduler.Start(); err != nil {
			mainLog.Fatalf("FATAL: Could not start reminder scheduler: %v", err)
		}
	} else {
		mainLog.Warn("Reminder scheduling disabled by configuration; manual runs only.")
	}

	// Initialize IncomingMessageRouter and HTTP server
	messageRouter := app.NewIncomingMessageRouterImpl(
		associateRepo,
		placementRepo,
		gateway,
		logger.WithComponent("router"),
		location,
	)
	server := httpserver.New(messageRouter, reminderScheduler, reminderService, db, cfg.Environment, logger.WithComponent("http"))

	go func() {
		if err := server.Start(cfg.HTTPListenAddr); err != nil {
			mainLog.Fatalf("FATAL: HTTP server failed: %v", err)
		}
	}()

	mainLog.Info("Application setup complete. Scheduler and webhook server are running.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until a signal is received

	mainLog.Info("Shutting down application...")
	reminderScheduler.Stop() // in-flight cycle finishes first

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		mainLog.Errorf("HTTP server shutdown error: %v", err)
	}
	mainLog.Info("Application shut down gracefully.")
}
