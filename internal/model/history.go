package model

import (
	"strings"
	"time"
)

type HistoryStatus string

const (
	HistoryVerified HistoryStatus = "verified"
	HistoryMissed   HistoryStatus = "missed"
)

// RedemptionTaskPrefix prefixes the task id of ledger entries written for an
// approved redemption.
const RedemptionTaskPrefix = "redemption-"

// HistoryEntry is an immutable ledger fact. Balances are derived from these
// rows only.
type HistoryEntry struct {
	ID               string        `json:"id"`
	TaskID           string        `json:"task_id"`
	TaskTitle        string        `json:"task_title"`
	AssignedTo       string        `json:"assigned_to"`
	Points           int           `json:"points"`
	Status           HistoryStatus `json:"status"`
	IsResponsibility bool          `json:"is_responsibility,omitempty"`
	Date             string        `json:"date"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

// IsRedemption reports whether the entry is a reward debit rather than a task outcome.
func (h *HistoryEntry) IsRedemption() bool {
	return strings.HasPrefix(h.TaskID, RedemptionTaskPrefix)
}

type PointBalance struct {
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name"`
	TotalEarned int    `json:"total_earned"`
	TotalSpent  int    `json:"total_spent"`
	Balance     int    `json:"balance"`
}

// WeekStats summarises one dependent's ledger for a Monday-based week.
type WeekStats struct {
	UserID               string `json:"user_id"`
	WeekStart            string `json:"week_start"`
	WeekEnd              string `json:"week_end"`
	Earned               int    `json:"earned"`
	Spent                int    `json:"spent"`
	Verified             int    `json:"verified"`
	Missed               int    `json:"missed"`
	ResponsibilityMissed int    `json:"responsibility_missed"`
	MissedLimit          int    `json:"missed_limit"`
	PunishmentWarning    bool   `json:"punishment_warning"`
}
