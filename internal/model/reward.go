package model

import "time"

type Reward struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Cost        int       `json:"cost"`
	Icon        *string   `json:"icon,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type RewardInput struct {
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description,omitempty"`
	Cost        int     `json:"cost" validate:"min=0"`
	Icon        *string `json:"icon,omitempty"`
	CreatedBy   string  `json:"created_by" validate:"required"`
}

type RedemptionStatus string

const (
	RedemptionPending  RedemptionStatus = "pending"
	RedemptionApproved RedemptionStatus = "approved"
	RedemptionRejected RedemptionStatus = "rejected"
)

// Redemption carries a snapshot of the reward's title and cost taken at
// request time, so later reward edits do not change it.
type Redemption struct {
	ID          string           `json:"id"`
	RewardID    string           `json:"reward_id"`
	RewardTitle string           `json:"reward_title"`
	Cost        int              `json:"cost"`
	RequestedBy string           `json:"requested_by"`
	Status      RedemptionStatus `json:"status"`
	RequestedAt time.Time        `json:"requested_at"`
	DecidedAt   *time.Time       `json:"decided_at,omitempty"`
}
