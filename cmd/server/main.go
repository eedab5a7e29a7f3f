package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/meridian-research/audience/internal/api"
	"github.com/meridian-research/audience/internal/auth"
	"github.com/meridian-research/audience/internal/config"
	"github.com/meridian-research/audience/internal/importer"
	"github.com/meridian-research/audience/internal/mailer"
	"github.com/meridian-research/audience/internal/pkg/logger"
	"github.com/meridian-research/audience/internal/progress"
	"github.com/meridian-research/audience/internal/segments"
	"github.com/meridian-research/audience/internal/store"
)

// checkPortAvailable verifies that the target port is not already in use, so
// a stale process shows up as a clear startup error instead of silent
// traffic loss behind a load balancer.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %w", port, addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if os.Getenv("DATABASE_URL") != "" {
		logger.Info("DATABASE_URL env override active")
	}

	host := cfg.Server.GetHost()
	port := cfg.Server.Port
	if err := checkPortAvailable(host, port); err != nil {
		logger.Error("pre-flight check failed", "err", err)
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.Error("failed to open database", "err", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.Lifetime())

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancelPing()
		logger.Error("database unreachable", "err", err)
		os.Exit(1)
	}
	cancelPing()
	logger.Info("database connected")

	recordStore := store.New(db)

	norm, err := segments.FromConfig(cfg.Segments.Aliases)
	if err != nil {
		logger.Error("invalid segment alias table", "err", err)
		os.Exit(1)
	}
	pipeline := importer.New(recordStore, norm)

	var tracker *progress.Tracker
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis unreachable, import job history disabled", "err", err)
		} else {
			tracker = progress.NewTracker(rdb)
			logger.Info("redis connected", "addr", cfg.Redis.Addr)
		}
	}

	mail, err := mailer.New(context.Background(), cfg.Mailer)
	if err != nil {
		logger.Error("failed to initialize mailer", "err", err)
		os.Exit(1)
	}
	if mail == nil {
		logger.Info("welcome mailer disabled")
	}

	if cfg.Auth.AdminToken == "" {
		logger.Warn("ADMIN_TOKEN not set, all admin endpoints will reject requests")
	}
	authManager := auth.NewManager(cfg.Auth.AdminToken)

	handlers := api.NewHandlers(cfg, recordStore, pipeline, norm, tracker, mail)
	server := api.NewServer(cfg.Server, handlers, authManager)

	addr := fmt.Sprintf("%s:%d", host, port)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		errCh <- server.ListenAndServe(addr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("server exited", "err", err)
		os.Exit(1)
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
	if err := db.Close(); err != nil {
		logger.Error("closing database", "err", err)
	}
}
