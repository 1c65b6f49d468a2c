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

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/coursenotify/internal/app"
	"github.com/joshu-sajeev/coursenotify/internal/job"
	"github.com/joshu-sajeev/coursenotify/internal/storage/postgres"
	"github.com/joshu-sajeev/coursenotify/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const requestTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, "api")
	if err != nil {
		log.Fatal("Failed to start api: ", err)
	}
	defer a.Close()
	logger := a.Logger

	if a.Settings.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.TimeoutMiddleware(requestTimeout), middleware.ErrorHandler())

	r.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := a.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	notifications := postgres.NewNotificationRepository(a.DB)
	handler := job.NewJobHandler(job.NewJobService(a.Queue, a.Scheduler, notifications))
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              a.Settings.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("admin api listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down admin api")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Settings.Worker.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
}
