package model

import "time"

// Message is a note posted on the shared family board.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	AuthorID  *string   `json:"author_id,omitempty"`
	Pinned    bool      `json:"pinned"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
