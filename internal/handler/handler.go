// Package handler exposes the task, ledger and redemption engines over a
// JSON HTTP API. Writes are announced by the store's change notifications,
// so handlers never broadcast themselves.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/starboard/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// decodeOptionalJSON accepts an empty body and leaves v untouched.
func decodeOptionalJSON(r *http.Request, v any) error {
	if err := decodeJSON(r, v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func pathID(r *http.Request) string {
	return strings.TrimSpace(r.PathValue("id"))
}

type errorBody struct {
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	Field   string `json:"field,omitempty"`
	Start   string `json:"start,omitempty"`
	End     string `json:"end,omitempty"`
	DueDate string `json:"due_date,omitempty"`
	Balance *int   `json:"balance,omitempty"`
	Cost    *int   `json:"cost,omitempty"`
}

func statusFor(kind string) int {
	switch kind {
	case "validation":
		return http.StatusBadRequest
	case "time_window", "due_date_expired":
		return http.StatusUnprocessableEntity
	case "not_found":
		return http.StatusNotFound
	case "invalid_transition", "insufficient_balance":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps an engine error to a status code and a body carrying the
// error kind and its details. Internal errors are logged and not echoed.
func writeError(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	kind := apperr.Kind(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		logger.Error(msg, "error", err)
		writeJSON(w, status, errorBody{Error: msg, Kind: kind})
		return
	}

	body := errorBody{Error: err.Error(), Kind: kind}
	var (
		ve  *apperr.ValidationError
		twe *apperr.TimeWindowError
		dde *apperr.DueDateError
		ibe *apperr.InsufficientBalanceError
	)
	switch {
	case errors.As(err, &ve):
		body.Field = ve.Field
	case errors.As(err, &twe):
		body.Start, body.End = twe.Start, twe.End
	case errors.As(err, &dde):
		body.DueDate = dde.DueDate
	case errors.As(err, &ibe):
		body.Balance, body.Cost = &ibe.Balance, &ibe.Cost
	}
	writeJSON(w, status, body)
}

func writeBadJSON(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON", Kind: "validation"})
}
