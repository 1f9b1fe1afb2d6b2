package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/starboard/internal/model"
	"github.com/dukerupert/starboard/internal/reward"
	"github.com/dukerupert/starboard/internal/store"
)

type RewardHandler struct {
	processor *reward.Processor
	logger    *slog.Logger
}

func NewRewardHandler(p *reward.Processor, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{processor: p, logger: logger}
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in model.RewardInput
	if err := decodeJSON(r, &in); err != nil {
		writeBadJSON(w)
		return
	}

	rw, err := h.processor.CreateReward(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, "failed to create reward", err)
		return
	}
	writeJSON(w, http.StatusCreated, rw)
}

func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.processor.ListRewards(r.Context())
	if err != nil {
		writeError(w, h.logger, "failed to list rewards", err)
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in model.RewardInput
	if err := decodeJSON(r, &in); err != nil {
		writeBadJSON(w)
		return
	}

	rw, err := h.processor.UpdateReward(r.Context(), pathID(r), in)
	if err != nil {
		writeError(w, h.logger, "failed to update reward", err)
		return
	}
	writeJSON(w, http.StatusOK, rw)
}

func (h *RewardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.processor.DeleteReward(r.Context(), pathID(r)); err != nil {
		writeError(w, h.logger, "failed to delete reward", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type redeemRequest struct {
	RewardID string `json:"reward_id"`
	UserID   string `json:"user_id"`
}

// Redeem files a pending redemption after the advisory balance check.
func (h *RewardHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	red, err := h.processor.Request(r.Context(), req.RewardID, req.UserID)
	if err != nil {
		writeError(w, h.logger, "failed to request redemption", err)
		return
	}
	writeJSON(w, http.StatusCreated, red)
}

// ListRedemptions filters on ?user_id= and ?status=.
func (h *RewardHandler) ListRedemptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	reds, err := h.processor.ListRedemptions(r.Context(), store.RedemptionFilter{
		UserID: q.Get("user_id"),
		Status: model.RedemptionStatus(q.Get("status")),
	})
	if err != nil {
		writeError(w, h.logger, "failed to list redemptions", err)
		return
	}
	if reds == nil {
		reds = []model.Redemption{}
	}
	writeJSON(w, http.StatusOK, reds)
}

func (h *RewardHandler) Approve(w http.ResponseWriter, r *http.Request) {
	red, err := h.processor.Approve(r.Context(), pathID(r))
	if err != nil {
		writeError(w, h.logger, "failed to approve redemption", err)
		return
	}
	writeJSON(w, http.StatusOK, red)
}

func (h *RewardHandler) RejectRedemption(w http.ResponseWriter, r *http.Request) {
	red, err := h.processor.Reject(r.Context(), pathID(r))
	if err != nil {
		writeError(w, h.logger, "failed to reject redemption", err)
		return
	}
	writeJSON(w, http.StatusOK, red)
}
