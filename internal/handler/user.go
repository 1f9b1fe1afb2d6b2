package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/starboard/internal/apperr"
	"github.com/dukerupert/starboard/internal/chore"
	"github.com/dukerupert/starboard/internal/clock"
	"github.com/dukerupert/starboard/internal/events"
	"github.com/dukerupert/starboard/internal/ledger"
	"github.com/dukerupert/starboard/internal/model"
	"github.com/dukerupert/starboard/internal/store"
	"github.com/dukerupert/starboard/internal/validate"
)

type UserHandler struct {
	users    *store.UserStore
	engine   *chore.Engine
	ledger   *ledger.Ledger
	clock    clock.Clock
	validate *validate.Validator
	logger   *slog.Logger
}

func NewUserHandler(users *store.UserStore, engine *chore.Engine, l *ledger.Ledger, clk clock.Clock, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:    users,
		engine:   engine,
		ledger:   l,
		clock:    clk,
		validate: validate.New(),
		logger:   logger,
	}
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in model.UserInput
	if err := decodeJSON(r, &in); err != nil {
		writeBadJSON(w)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		writeError(w, h.logger, "invalid user", err)
		return
	}

	u, err := h.users.Create(r.Context(), in, h.clock.Now())
	if err != nil {
		writeError(w, h.logger, "failed to create user", err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// List returns all users, or one role with ?role=guardian|dependent.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		users []model.User
		err   error
	)
	if role := r.URL.Query().Get("role"); role != "" {
		users, err = h.users.ListByRole(r.Context(), model.Role(role))
	} else {
		users, err = h.users.List(r.Context())
	}
	if err != nil {
		writeError(w, h.logger, "failed to list users", err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.user(r)
	if err != nil {
		writeError(w, h.logger, "failed to get user", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, err := h.user(r)
	if err != nil {
		writeError(w, h.logger, "failed to get user", err)
		return
	}

	var in model.UserInput
	if err := decodeJSON(r, &in); err != nil {
		writeBadJSON(w)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		writeError(w, h.logger, "invalid user", err)
		return
	}

	u, err := h.users.Update(r.Context(), existing.ID, in, h.clock.Now())
	if err != nil {
		writeError(w, h.logger, "failed to update user", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing, err := h.user(r)
	if err != nil {
		writeError(w, h.logger, "failed to get user", err)
		return
	}
	if err := h.users.Delete(r.Context(), existing.ID); err != nil {
		writeError(w, h.logger, "failed to delete user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Today returns the user's tasks that are visible today.
func (h *UserHandler) Today(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.engine.TodayFor(r.Context(), pathID(r))
	if err != nil {
		writeError(w, h.logger, "failed to list today's tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *UserHandler) Balance(w http.ResponseWriter, r *http.Request) {
	b, err := h.ledger.Balance(r.Context(), pathID(r))
	if err != nil {
		writeError(w, h.logger, "failed to compute balance", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// History lists the user's ledger entries, optionally bounded by ?from= and
// ?to= dates.
func (h *UserHandler) History(w http.ResponseWriter, r *http.Request) {
	u, err := h.user(r)
	if err != nil {
		writeError(w, h.logger, "failed to get user", err)
		return
	}

	q := r.URL.Query()
	f := store.HistoryFilter{UserID: u.ID, From: q.Get("from"), To: q.Get("to")}
	for field, v := range map[string]string{"from": f.From, "to": f.To} {
		if v == "" {
			continue
		}
		if _, err := time.Parse(clock.DateLayout, v); err != nil {
			writeError(w, h.logger, "invalid date", apperr.Invalid(field, "must be a YYYY-MM-DD date"))
			return
		}
	}

	entries, err := h.ledger.History(r.Context(), f)
	if err != nil {
		writeError(w, h.logger, "failed to list history", err)
		return
	}
	if entries == nil {
		entries = []model.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// Stats returns weekly statistics for the week containing ?week=, or the
// current week.
func (h *UserHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var day time.Time
	if v := r.URL.Query().Get("week"); v != "" {
		parsed, err := time.ParseInLocation(clock.DateLayout, v, h.clock.Now().Location())
		if err != nil {
			writeError(w, h.logger, "invalid week", apperr.Invalid("week", "must be a YYYY-MM-DD date"))
			return
		}
		day = parsed
	}

	stats, err := h.ledger.Stats(r.Context(), pathID(r), day)
	if err != nil {
		writeError(w, h.logger, "failed to compute stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Leaderboard returns every dependent's balance, highest first.
func (h *UserHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	balances, err := h.ledger.Balances(r.Context())
	if err != nil {
		writeError(w, h.logger, "failed to compute leaderboard", err)
		return
	}
	if balances == nil {
		balances = []model.PointBalance{}
	}
	writeJSON(w, http.StatusOK, balances)
}

func (h *UserHandler) user(r *http.Request) (*model.User, error) {
	id := pathID(r)
	u, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound(events.CollectionUsers, id)
	}
	return u, nil
}
