package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joshu-sajeev/coursenotify/internal/app"
	"github.com/joshu-sajeev/coursenotify/internal/dedup"
	"github.com/joshu-sajeev/coursenotify/internal/delivery"
	"github.com/joshu-sajeev/coursenotify/internal/notify"
	"github.com/joshu-sajeev/coursenotify/internal/pool"
	"github.com/joshu-sajeev/coursenotify/internal/storage/postgres"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, "worker")
	if err != nil {
		log.Fatal("Failed to start worker: ", err)
	}

	if err := run(ctx, a); err != nil {
		a.Logger.Error("worker failed", "error", err)
		a.Close()
		os.Exit(1)
	}
	a.Close()
}

func run(ctx context.Context, a *app.App) error {
	logger := a.Logger
	s := a.Settings

	deliverer, err := delivery.FromSettings(s.Delivery, logger)
	if err != nil {
		return err
	}

	entities := postgres.NewEntityRepository(a.DB)
	guard := dedup.New(postgres.NewDedupRepository(a.DB), s.Policy.ReminderCoolDown)
	records := postgres.NewNotificationRepository(a.DB)

	processors := []notify.Processor{
		notify.NewReminderProcessor(entities, guard, deliverer, records, logger, nil),
		notify.NewAlertProcessor(entities, deliverer, records, logger, nil),
		notify.NewSweepProcessor(entities, guard, a.Scheduler, s.Policy, logger, nil),
	}

	id, err := a.Scheduler.EnsureDeadlineSweep(ctx)
	if err != nil {
		return err
	}
	logger.Info("deadline sweep scheduled", "job_id", id, "schedule", s.Policy.SweepSchedule)

	metricsSrv := serveMetrics(s.MetricsAddr, a)

	workerPool := pool.NewWorkerPool(a.Queue, processors,
		s.Worker.PerType, s.Worker.ProcessTimeout, s.Worker.JanitorInterval, logger,
		pool.WithNotificationRetention(records, s.Policy.NotificationRetention))
	workerPool.Start()
	logger.Info("worker pool active", "workers_per_type", s.Worker.PerType, "delivery", s.Delivery.Provider)

	<-ctx.Done()
	logger.Info("shutting down worker pool", "timeout", s.Worker.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.Worker.ShutdownTimeout)
	defer cancel()

	if err := workerPool.Stop(shutdownCtx); err != nil {
		logger.Warn("in-flight jobs abandoned, their leases will expire", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown", "error", err)
	}
	logger.Info("shutdown complete")
	return nil
}

func serveMetrics(addr string, a *app.App) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		sqlDB, err := a.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(r.Context())
		}
		if err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("metrics server stopped", "error", err)
		}
	}()
	return srv
}
