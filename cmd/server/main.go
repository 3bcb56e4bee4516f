package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nekogravitycat/reservation-backend/internal/app"
	"github.com/nekogravitycat/reservation-backend/internal/config"
	"github.com/nekogravitycat/reservation-backend/internal/db"
	"github.com/nekogravitycat/reservation-backend/internal/event"
	"github.com/nekogravitycat/reservation-backend/internal/pkg/logger"
)

func main() {
	// For receiving Ctrl+C / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "reservation-backend",
	})
	slog.SetDefault(logr)

	if err := run(ctx, cfg, logr); err != nil {
		logr.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *slog.Logger) error {
	deps := app.Deps{Logger: logr}

	// Connect DB
	if cfg.StorageDriver == config.DriverPostgres {
		pool, err := db.NewPool(ctx, cfg.DBDSN)
		if err != nil {
			return err
		}
		defer pool.Close()

		if cfg.DBAutoMigrate {
			if err := db.Migrate(ctx, pool); err != nil {
				return err
			}
			logr.Info("database schema applied")
		}
		deps.DBPool = pool
	} else {
		logr.Warn("using in-memory storage; data is lost on restart")
	}

	// Sessions
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return err
		}
		deps.Redis = client
	}

	// Booking events
	if cfg.AMQPURL != "" {
		pub, err := event.NewAMQPPublisher(cfg.AMQPURL)
		if err != nil {
			return err
		}
		defer pub.Close()
		deps.Events = pub
	}

	container, err := app.NewContainer(cfg, deps)
	if err != nil {
		return err
	}

	// Use http.Server for graceful shutdown
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           container.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logr.Info("server running", "addr", cfg.HTTPAddr, "storage", cfg.StorageDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for Ctrl+C or a listener failure
	select {
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	case err := <-serveErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Warn("server forced to shutdown", "error", err)
	}

	logr.Info("server exited gracefully")
	return nil
}
