package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"carealert/internal/alerts"
	"carealert/internal/config"
	"carealert/internal/contact"
	"carealert/internal/crisis"
	"carealert/internal/db"
	"carealert/internal/email"
	"carealert/internal/jobs"
	"carealert/internal/logging"
	"carealert/internal/metrics"
	"carealert/internal/notify"
	"carealert/internal/realtime"
	"carealert/internal/server"
	"carealert/internal/sms"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Invalid configuration: %v", err)
	}
	logging.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logging.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		logging.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("migrations completed")

	if cfg.IsDev() {
		if err := database.SeedDevUsers(ctx); err != nil {
			slog.Warn("failed to seed dev users", "error", err)
		}
	}

	classifier, err := newClassifier(cfg)
	if err != nil {
		logging.Fatalf("Failed to load lexicon: %v", err)
	}

	srv := server.New(cfg)

	var publisher *realtime.Publisher
	var pub notify.Publisher
	if rdb := srv.Redis(); rdb != nil {
		publisher = realtime.NewPublisher(rdb)
		pub = publisher
		slog.Info("realtime publishing enabled")
	}

	aggregator := alerts.NewAggregator(database, cfg.MetricsCacheTTL)
	metrics.Init(aggregator, database)

	resolver := contact.NewResolver(database, database, cfg.ContactLookupTimeout)
	messages := notify.NewMessages(cfg.SiteTitle, cfg.BaseURL)
	enqueuer := notify.NewEnqueuer(database, resolver, messages, pub)
	dispatcher := notify.NewDispatcher(database, resolver, emailSender(cfg), smsSender(cfg), cfg.DispatchSendTimeout)

	err = srv.RegisterRoutes(ctx, server.Services{
		DB:         database,
		Classifier: classifier,
		Alerts:     alerts.NewService(database),
		Aggregator: aggregator,
		Enqueuer:   enqueuer,
		Dispatcher: dispatcher,
	})
	if err != nil {
		logging.Fatalf("Failed to register routes: %v", err)
	}

	runnerDone := make(chan struct{})
	if cfg.DispatchInterval > 0 {
		runner := jobs.NewDispatchRunner(dispatcher, cfg.DispatchInterval, cfg.DispatchBatchSize)
		go func() {
			defer close(runnerDone)
			runner.Start(ctx)
		}()
	} else {
		close(runnerDone)
		slog.Info("background dispatch disabled (DISPATCH_INTERVAL=0)")
	}

	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("server error", "error", err)
			stop()
		}
	}()
	slog.Info("server started", "addr", cfg.ServerAddr, "env", cfg.Env)

	<-ctx.Done()

	slog.Info("shutting down server")
	if err := srv.Shutdown(); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	<-runnerDone
	if publisher != nil {
		publisher.Close()
	}
	slog.Info("server exited")
}

func newClassifier(cfg *config.Config) (*crisis.Classifier, error) {
	lexicon := crisis.DefaultLexicon()

	override, err := config.LoadLexiconFile(cfg.LexiconFile)
	if err != nil {
		return nil, err
	}
	if !override.IsEmpty() {
		lexicon = crisis.Lexicon{High: override.High, Medium: override.Medium, Low: override.Low}
		slog.Info("loaded lexicon override", "path", cfg.LexiconFile,
			"high", len(override.High), "medium", len(override.Medium), "low", len(override.Low))
	}

	return crisis.NewClassifier(lexicon, cfg.ClassifyMaxText), nil
}

// emailSender returns the configured email provider, or nil when email
// delivery is disabled or misconfigured.
func emailSender(cfg *config.Config) notify.Sender {
	if err := cfg.EmailConfigError(); err != nil {
		logConfigError(err)
		return nil
	}

	switch cfg.EmailProvider {
	case config.ProviderSMTP:
		return email.NewService(cfg)
	case config.ProviderSendGrid:
		return email.NewSendGridService(cfg)
	default:
		slog.Info("email delivery disabled")
		return nil
	}
}

// smsSender returns the SMS gateway, or nil when SMS delivery is disabled or
// misconfigured.
func smsSender(cfg *config.Config) notify.Sender {
	if err := cfg.SMSConfigError(); err != nil {
		logConfigError(err)
		return nil
	}
	if cfg.SMSProvider != config.ProviderHTTP {
		slog.Info("sms delivery disabled")
		return nil
	}
	return sms.NewGateway(cfg)
}

func logConfigError(err error) {
	var ce *config.ConfigurationError
	if errors.As(err, &ce) {
		slog.Error("provider disabled", "component", ce.Component, "missing", ce.Missing)
		return
	}
	slog.Error("provider disabled", "error", err)
}
