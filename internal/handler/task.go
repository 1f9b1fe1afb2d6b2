package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dukerupert/starboard/internal/chore"
	"github.com/dukerupert/starboard/internal/model"
	"github.com/dukerupert/starboard/internal/recurrence"
)

// Sweeper runs one recurrence pass on demand.
type Sweeper interface {
	Sweep(ctx context.Context) (recurrence.SweepResult, error)
}

type TaskHandler struct {
	engine  *chore.Engine
	sweeper Sweeper
	logger  *slog.Logger
}

func NewTaskHandler(engine *chore.Engine, sweeper Sweeper, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{engine: engine, sweeper: sweeper, logger: logger}
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in model.TaskInput
	if err := decodeJSON(r, &in); err != nil {
		writeBadJSON(w)
		return
	}

	task, err := h.engine.AddTask(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, "failed to create task", err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// List returns every task, or only the pool templates with ?pool=true.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.engine.ListTasks(r.Context())
	if err != nil {
		writeError(w, h.logger, "failed to list tasks", err)
		return
	}

	pool := r.URL.Query().Get("pool") == "true"
	assignee := r.URL.Query().Get("assigned_to")
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if pool && !t.IsPool() {
			continue
		}
		if assignee != "" && t.AssignedTo != assignee {
			continue
		}
		out = append(out, t)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, err := h.engine.GetTask(r.Context(), pathID(r))
	if err != nil {
		writeError(w, h.logger, "failed to get task", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in model.TaskInput
	if err := decodeJSON(r, &in); err != nil {
		writeBadJSON(w)
		return
	}

	task, err := h.engine.UpdateTask(r.Context(), pathID(r), in)
	if err != nil {
		writeError(w, h.logger, "failed to update task", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteTask(r.Context(), pathID(r)); err != nil {
		writeError(w, h.logger, "failed to delete task", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type completeRequest struct {
	EvidenceRef *string `json:"evidence_ref"`
}

func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	task, err := h.engine.Complete(r.Context(), pathID(r), req.EvidenceRef)
	if err != nil {
		writeError(w, h.logger, "failed to complete task", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Verify(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "verify", h.engine.Verify)
}

func (h *TaskHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "reject", h.engine.Reject)
}

func (h *TaskHandler) Fail(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "fail", h.engine.Fail)
}

func (h *TaskHandler) transition(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, string) (*model.Task, error)) {
	task, err := fn(r.Context(), pathID(r))
	if err != nil {
		writeError(w, h.logger, "failed to "+op+" task", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type assignRequest struct {
	UserIDs []string `json:"user_ids"`
}

// Assign clones a pool template to the given users, or to every dependent
// when user_ids is empty.
func (h *TaskHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	res, err := h.engine.AssignFromPool(r.Context(), pathID(r), req.UserIDs)
	if err != nil {
		writeError(w, h.logger, "failed to assign task", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *TaskHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	res, err := h.sweeper.Sweep(r.Context())
	if err != nil {
		writeError(w, h.logger, "failed to sweep tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
