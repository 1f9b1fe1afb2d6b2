// Package apperr defines the error kinds returned by the task, ledger and
// redemption engines. Callers match kinds with errors.Is and extract details
// with errors.As.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrTimeWindow          = errors.New("outside time window")
	ErrDueDateExpired      = errors.New("due date expired")
	ErrNotFound            = errors.New("not found")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// ValidationError reports a missing or malformed field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// TimeWindowError is returned when a task is completed outside its window.
// Start is empty when only a due-time cutoff applies.
type TimeWindowError struct {
	Start string
	End   string
	Now   string
}

func (e *TimeWindowError) Error() string {
	if e.Start == "" {
		return fmt.Sprintf("task can only be completed until %s (now %s)", e.End, e.Now)
	}
	return fmt.Sprintf("task can only be completed between %s and %s (now %s)", e.Start, e.End, e.Now)
}

func (e *TimeWindowError) Is(target error) bool { return target == ErrTimeWindow }

// DueDateError is returned when a one-time task is completed after its due date.
type DueDateError struct {
	DueDate string
	Today   string
}

func (e *DueDateError) Error() string {
	return fmt.Sprintf("task was due on %s (today %s)", e.DueDate, e.Today)
}

func (e *DueDateError) Is(target error) bool { return target == ErrDueDateExpired }

// NotFoundError reports a missing document.
type NotFoundError struct {
	Collection string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Collection, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// TransitionError reports an operation attempted from a state that does not
// permit it.
type TransitionError struct {
	Op   string
	From string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s from status %q", e.Op, e.From)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// InsufficientBalanceError is the advisory redemption check failure.
type InsufficientBalanceError struct {
	Balance int
	Cost    int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient points: balance %d, cost %d", e.Balance, e.Cost)
}

func (e *InsufficientBalanceError) Is(target error) bool { return target == ErrInsufficientBalance }

func NotFound(collection, id string) error {
	return &NotFoundError{Collection: collection, ID: id}
}

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func Transition(op, from string) error {
	return &TransitionError{Op: op, From: from}
}

// Kind names the error kind of err for logs and metrics: "ok" for nil and
// "internal" for anything that is not one of the kinds above.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrTimeWindow):
		return "time_window"
	case errors.Is(err, ErrDueDateExpired):
		return "due_date_expired"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	default:
		return "internal"
	}
}
