package model

import "time"

type Role string

const (
	RoleGuardian  Role = "guardian"
	RoleDependent Role = "dependent"
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	Color        string    `json:"color"`
	AvatarEmoji  string    `json:"avatar_emoji"`
	VacationMode bool      `json:"vacation_mode"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type UserInput struct {
	Name         string `json:"name" validate:"required"`
	Role         Role   `json:"role" validate:"required,oneof=guardian dependent"`
	Color        string `json:"color"`
	AvatarEmoji  string `json:"avatar_emoji"`
	VacationMode bool   `json:"vacation_mode"`
}
