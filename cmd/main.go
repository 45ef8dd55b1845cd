package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/assetdesk/internal/api"
	"github.com/assetdesk/internal/auth"
	"github.com/assetdesk/internal/config"
	"github.com/assetdesk/internal/database"
	"github.com/assetdesk/internal/logger"
	"github.com/assetdesk/internal/notify"
	"github.com/assetdesk/internal/report"
	"github.com/assetdesk/internal/scheduler"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ./config.yaml)")
	flag.Parse()

	// Initialize configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLog, err := logger.New(cfg.Log.Development)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLog.Sync()

	loc, err := cfg.Location()
	if err != nil {
		appLog.Fatal("Invalid timezone", zap.Error(err))
	}

	// Initialize database
	if err := database.Initialize(cfg.Database.Path); err != nil {
		appLog.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer database.Close()

	db := database.GetDB()

	authenticator, err := auth.NewAuthenticator(db, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		appLog.Fatal("Failed to create authenticator", zap.Error(err))
	}

	// Create the default admin if no users exist
	created, err := authenticator.EnsureAdmin(cfg.Auth.AdminUsername, cfg.Auth.AdminPassword)
	if err != nil {
		appLog.Warn("Failed to create default admin", zap.Error(err))
	} else if created {
		appLog.Info("Created default admin user", zap.String("username", cfg.Auth.AdminUsername))
	}

	generator, err := report.NewReportGenerator(db)
	if err != nil {
		appLog.Fatal("Failed to create report generator", zap.Error(err))
	}

	mailer := notify.NewMailer(notify.EmailConfig{
		SMTPHost: cfg.Email.SMTPHost,
		SMTPPort: cfg.Email.SMTPPort,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
	})

	runnerOpts := []scheduler.RunnerOption{scheduler.WithRunTimeout(cfg.Scheduler.RunTimeout)}
	if cfg.Slack.Token != "" {
		runnerOpts = append(runnerOpts, scheduler.WithFailureNotifier(notify.NewSlackNotifier(cfg.Slack.Token, cfg.Slack.Channel)))
	} else {
		appLog.Info("Slack token not configured, failure notifications disabled")
	}

	store := scheduler.NewGormStore(db)
	runner := scheduler.NewRunner(store, generator, mailer, appLog.With(zap.String("component", "runner")), runnerOpts...)

	dispatcher := scheduler.NewDispatcher(store, runner, scheduler.DispatcherConfig{
		PollInterval:      cfg.Scheduler.PollInterval,
		MaxConcurrentRuns: int64(cfg.Scheduler.MaxConcurrentRuns),
		Location:          loc,
	}, appLog.With(zap.String("component", "dispatcher")))

	manager := scheduler.NewScheduleManager(store, runner, loc, time.Now, appLog.With(zap.String("component", "schedules")))

	server := api.NewServer(manager, authenticator, api.Options{
		Port:        cfg.Server.Port,
		RunNowRate:  cfg.API.RunNowRate,
		RunNowBurst: cfg.API.RunNowBurst,
	}, appLog.With(zap.String("component", "api")))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start dispatcher
	dispatcher.Start(ctx)

	serverErr := make(chan error, 1)
	go func() {
		appLog.Info("Starting API server", zap.Int("port", cfg.Server.Port))
		serverErr <- server.Start()
	}()

	select {
	case <-ctx.Done():
		appLog.Info("Shutting down")
	case err := <-serverErr:
		if err != nil {
			appLog.Error("API server failed", zap.Error(err))
		}
	}

	// Stop polling and let in-flight runs record their outcome before the API goes away
	dispatcher.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.Warn("API server shutdown", zap.Error(err))
	}
}
