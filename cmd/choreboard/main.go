package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/calebmorris/choreboard/internal/config"
	"github.com/calebmorris/choreboard/internal/database"
	"github.com/calebmorris/choreboard/internal/logging"
	"github.com/calebmorris/choreboard/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	srv := server.New(db, logger)

	// Periodic recurrence tick: spawn due instances, flip overdue ones,
	// and push a snapshot when something actually changed.
	tick := cron.New()
	if _, err := tick.AddFunc(cfg.TickSchedule, func() {
		changed, err := srv.Engine().Run()
		if err != nil {
			logger.Error("recurrence tick failed", "error", err)
			return
		}
		if changed == 0 {
			return
		}
		snap, err := srv.Dispatcher().Snapshot()
		if err != nil {
			logger.Error("snapshot after tick failed", "error", err)
			return
		}
		srv.Hub().BroadcastSnapshot(snap)
	}); err != nil {
		logger.Error("invalid tick schedule", "schedule", cfg.TickSchedule, "error", err)
		os.Exit(1)
	}
	tick.Start()
	defer tick.Stop()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("choreboard running", "addr", "http://localhost:"+cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
