// Package server wires the HTTP handlers, the change feed and the
// operational endpoints into one router.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/starboard/internal/chore"
	"github.com/dukerupert/starboard/internal/clock"
	"github.com/dukerupert/starboard/internal/handler"
	"github.com/dukerupert/starboard/internal/ledger"
	"github.com/dukerupert/starboard/internal/metrics"
	"github.com/dukerupert/starboard/internal/middleware"
	"github.com/dukerupert/starboard/internal/reward"
	"github.com/dukerupert/starboard/internal/store"
	ws "github.com/dukerupert/starboard/internal/websocket"
)

type Options struct {
	RedeemRate     int
	RedeemWindow   time.Duration
	OriginPatterns []string
}

// Deps are the long-lived services the server routes to.
type Deps struct {
	Stores    *store.Stores
	Engine    *chore.Engine
	Sweeper   handler.Sweeper
	Ledger    *ledger.Ledger
	Processor *reward.Processor
	Hub       *ws.Hub
	Clock     clock.Clock
	Metrics   *metrics.Metrics
}

type Server struct {
	hub         *ws.Hub
	metrics     *metrics.Metrics
	taskH       *handler.TaskHandler
	userH       *handler.UserHandler
	rewardH     *handler.RewardHandler
	messageH    *handler.MessageHandler
	rateLimiter *middleware.RateLimiter
	opts        Options
	logger      *slog.Logger
}

func New(d Deps, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RedeemRate <= 0 {
		opts.RedeemRate = 10
	}
	if opts.RedeemWindow <= 0 {
		opts.RedeemWindow = time.Minute
	}
	return &Server{
		hub:         d.Hub,
		metrics:     d.Metrics,
		taskH:       handler.NewTaskHandler(d.Engine, d.Sweeper, logger.With("component", "task")),
		userH:       handler.NewUserHandler(d.Stores.Users, d.Engine, d.Ledger, d.Clock, logger.With("component", "user")),
		rewardH:     handler.NewRewardHandler(d.Processor, logger.With("component", "reward")),
		messageH:    handler.NewMessageHandler(d.Stores.Messages, d.Clock, logger.With("component", "message")),
		rateLimiter: middleware.NewRateLimiter(),
		opts:        opts,
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.opts.OriginPatterns))

	// Task API routes
	mux.HandleFunc("POST /api/tasks", s.taskH.Create)
	mux.HandleFunc("GET /api/tasks", s.taskH.List)
	mux.HandleFunc("GET /api/tasks/{id}", s.taskH.Get)
	mux.HandleFunc("PUT /api/tasks/{id}", s.taskH.Update)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.taskH.Delete)
	mux.HandleFunc("POST /api/tasks/{id}/complete", s.taskH.Complete)
	mux.HandleFunc("POST /api/tasks/{id}/verify", s.taskH.Verify)
	mux.HandleFunc("POST /api/tasks/{id}/reject", s.taskH.Reject)
	mux.HandleFunc("POST /api/tasks/{id}/fail", s.taskH.Fail)
	mux.HandleFunc("POST /api/tasks/{id}/assign", s.taskH.Assign)
	mux.HandleFunc("POST /api/sweep", s.taskH.Sweep)

	// User and ledger API routes
	mux.HandleFunc("POST /api/users", s.userH.Create)
	mux.HandleFunc("GET /api/users", s.userH.List)
	mux.HandleFunc("GET /api/users/{id}", s.userH.Get)
	mux.HandleFunc("PUT /api/users/{id}", s.userH.Update)
	mux.HandleFunc("DELETE /api/users/{id}", s.userH.Delete)
	mux.HandleFunc("GET /api/users/{id}/today", s.userH.Today)
	mux.HandleFunc("GET /api/users/{id}/balance", s.userH.Balance)
	mux.HandleFunc("GET /api/users/{id}/history", s.userH.History)
	mux.HandleFunc("GET /api/users/{id}/stats", s.userH.Stats)
	mux.HandleFunc("GET /api/leaderboard", s.userH.Leaderboard)

	// Rewards API routes
	mux.HandleFunc("POST /api/rewards", s.rewardH.Create)
	mux.HandleFunc("GET /api/rewards", s.rewardH.List)
	mux.HandleFunc("PUT /api/rewards/{id}", s.rewardH.Update)
	mux.HandleFunc("DELETE /api/rewards/{id}", s.rewardH.Delete)
	mux.HandleFunc("POST /api/redemptions", s.rateLimitedHandler(s.rewardH.Redeem))
	mux.HandleFunc("GET /api/redemptions", s.rewardH.ListRedemptions)
	mux.HandleFunc("POST /api/redemptions/{id}/approve", s.rewardH.Approve)
	mux.HandleFunc("POST /api/redemptions/{id}/reject", s.rewardH.RejectRedemption)

	// Message board API routes
	mux.HandleFunc("POST /api/messages", s.messageH.Create)
	mux.HandleFunc("GET /api/messages", s.messageH.List)
	mux.HandleFunc("PUT /api/messages/{id}", s.messageH.Update)
	mux.HandleFunc("DELETE /api/messages/{id}", s.messageH.Delete)

	return middleware.RequestLogger(s.logger.With("component", "http"), s.metrics)(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"status": "ok", "clients": s.hub.ClientCount()})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, s.opts.RedeemRate, s.opts.RedeemWindow)
	return rl(h).ServeHTTP
}
