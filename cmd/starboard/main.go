package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/starboard/internal/chore"
	"github.com/dukerupert/starboard/internal/clock"
	"github.com/dukerupert/starboard/internal/config"
	"github.com/dukerupert/starboard/internal/database"
	"github.com/dukerupert/starboard/internal/events"
	"github.com/dukerupert/starboard/internal/ledger"
	"github.com/dukerupert/starboard/internal/logging"
	"github.com/dukerupert/starboard/internal/metrics"
	"github.com/dukerupert/starboard/internal/recurrence"
	"github.com/dukerupert/starboard/internal/reward"
	"github.com/dukerupert/starboard/internal/server"
	"github.com/dukerupert/starboard/internal/store"
	"github.com/dukerupert/starboard/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("failed to resolve timezone: %v", err)
	}
	clk := clock.NewSystem(loc)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	bus := events.NewBus(logger.With("component", "events"))
	stores := store.New(db, bus)

	engine := chore.NewEngine(stores, clk, logger, chore.Options{Atomic: cfg.AtomicWrites, Metrics: m})
	processor := reward.NewProcessor(stores, clk, logger, reward.Options{Atomic: cfg.AtomicWrites, Metrics: m})
	scheduler := recurrence.NewScheduler(stores, bus, clk, logger, recurrence.Options{
		Mode:     recurrence.Mode(cfg.SweepMode),
		Interval: cfg.SweepInterval,
		Metrics:  m,
	})
	hub := websocket.NewHub(logger, m)

	srv := server.New(server.Deps{
		Stores:    stores,
		Engine:    engine,
		Sweeper:   scheduler,
		Ledger:    ledger.New(stores, clk, cfg.MissedLimit),
		Processor: processor,
		Hub:       hub,
		Clock:     clk,
		Metrics:   m,
	}, server.Options{
		RedeemRate:     cfg.RedeemRate,
		RedeemWindow:   cfg.RedeemWindow,
		OriginPatterns: cfg.WSOrigins,
	}, logger)

	go hub.Forward(ctx, bus)
	go srv.RateLimiter().RunCleanup(ctx, 5*time.Minute)
	scheduler.Start(ctx)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starboard listening", "addr", httpServer.Addr, "timezone", loc.String(), "atomic_writes", cfg.AtomicWrites)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	fmt.Println("\nShutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	scheduler.Stop()
}
