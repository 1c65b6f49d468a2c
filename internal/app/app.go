// Package app wires the pieces every entry point shares: settings, logger,
// database, wake-up notifier, queue and scheduler.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joshu-sajeev/coursenotify/internal/config"
	"github.com/joshu-sajeev/coursenotify/internal/logging"
	"github.com/joshu-sajeev/coursenotify/internal/notify"
	"github.com/joshu-sajeev/coursenotify/internal/queue"
	"github.com/joshu-sajeev/coursenotify/internal/storage/postgres"
	"github.com/joshu-sajeev/coursenotify/internal/wakeup"
	"gorm.io/gorm"
)

type App struct {
	Settings  *config.Settings
	DBConfig  *postgres.Config
	Logger    *slog.Logger
	DB        *gorm.DB
	Notifier  wakeup.Notifier
	Queue     *queue.Queue
	Scheduler *notify.Scheduler
}

// New loads the configuration from the environment and connects to the
// database and, when NATS_URL is set, to NATS. Without NATS, wake-ups stay
// inside the process and other processes rely on polling.
func New(ctx context.Context, component string) (*App, error) {
	settings, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}

	logger := logging.New(logging.Options{
		Level:        settings.LogLevel,
		Env:          settings.Env,
		RollbarToken: settings.RollbarToken,
		CodeVersion:  settings.CodeVersion,
	}).With("component", component)
	slog.SetDefault(logger)

	dbCfg, err := postgres.LoadConfigFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	db, err := postgres.ConnectDB(ctx, dbCfg, logger)
	if err != nil {
		return nil, err
	}

	var notifier wakeup.Notifier = wakeup.NewLocal()
	if settings.NatsURL != "" {
		nn, err := wakeup.NewNATS(settings.NatsURL, logger)
		if err != nil {
			closeDB(db)
			return nil, fmt.Errorf("wake-up notifier: %w", err)
		}
		notifier = nn
		logger.Info("connected to NATS", "url", settings.NatsURL)
	}

	w := settings.Worker
	q := queue.New(postgres.NewJobRepository(db),
		queue.WithLogger(logger),
		queue.WithNotifier(notifier),
		queue.WithLeaseTTL(w.LeaseTTL),
		queue.WithPollInterval(w.PollMinInterval, w.PollMaxInterval),
	)

	return &App{
		Settings:  settings,
		DBConfig:  dbCfg,
		Logger:    logger,
		DB:        db,
		Notifier:  notifier,
		Queue:     q,
		Scheduler: notify.NewScheduler(q, settings.Policy, logger),
	}, nil
}

// Close releases the notifier and the database and flushes pending error
// reports.
func (a *App) Close() {
	if err := a.Notifier.Close(); err != nil {
		a.Logger.Warn("closing wake-up notifier", "error", err)
	}
	closeDB(a.DB)
	logging.Flush()
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
