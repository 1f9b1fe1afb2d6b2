package model

import "time"

// PoolAssignee marks a task as a template that is cloned into real tasks and
// never enters the lifecycle itself.
const PoolAssignee = "pool"

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusVerified  Status = "verified"
	StatusExpired   Status = "expired"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyOneTime Frequency = "one-time"
)

func (f Frequency) Recurring() bool {
	return f == FrequencyDaily || f == FrequencyWeekly
}

// TimeWindow is an inclusive HH:MM range gating completion.
type TimeWindow struct {
	Start string `json:"start" validate:"required,hhmm"`
	End   string `json:"end" validate:"required,hhmm"`
}

type Task struct {
	ID               string      `json:"id"`
	Title            string      `json:"title"`
	Description      string      `json:"description,omitempty"`
	AssignedTo       string      `json:"assigned_to"`
	CreatedBy        string      `json:"created_by,omitempty"`
	Status           Status      `json:"status"`
	Frequency        Frequency   `json:"frequency"`
	Points           *int        `json:"points,omitempty"`
	DueDate          *string     `json:"due_date,omitempty"`
	DueTime          *string     `json:"due_time,omitempty"`
	TimeWindow       *TimeWindow `json:"time_window,omitempty"`
	RecurrenceDays   []int       `json:"recurrence_days,omitempty"`
	IsSchool         bool        `json:"is_school,omitempty"`
	IsResponsibility bool        `json:"is_responsibility,omitempty"`
	CompletedAt      *time.Time  `json:"completed_at,omitempty"`
	VerifiedAt       *time.Time  `json:"verified_at,omitempty"`
	EvidenceRef      *string     `json:"evidence_ref,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// IsPool reports whether the task is an unassigned template.
func (t *Task) IsPool() bool {
	return t.AssignedTo == PoolAssignee
}

// PointValue returns the reward points, treating an absent value as zero.
func (t *Task) PointValue() int {
	if t.Points == nil {
		return 0
	}
	return *t.Points
}

// Schedule returns the frequency variant carrying only the fields that
// variant uses.
func (t *Task) Schedule() Schedule {
	switch t.Frequency {
	case FrequencyDaily:
		return Daily{Days: t.RecurrenceDays}
	case FrequencyWeekly:
		return Weekly{Days: t.RecurrenceDays}
	default:
		var due string
		if t.DueDate != nil {
			due = *t.DueDate
		}
		return OneTime{DueDate: due}
	}
}

// TaskInput holds the fields a calling collaborator may set. Status,
// timestamps and evidence are owned by the engine and are not part of it.
type TaskInput struct {
	Title            string      `json:"title" validate:"required"`
	Description      string      `json:"description,omitempty"`
	AssignedTo       string      `json:"assigned_to" validate:"required"`
	CreatedBy        string      `json:"created_by,omitempty"`
	Frequency        Frequency   `json:"frequency" validate:"required,oneof=daily weekly one-time"`
	Points           *int        `json:"points,omitempty" validate:"omitempty,min=0"`
	DueDate          *string     `json:"due_date,omitempty" validate:"omitempty,ymd"`
	DueTime          *string     `json:"due_time,omitempty" validate:"omitempty,hhmm"`
	TimeWindow       *TimeWindow `json:"time_window,omitempty"`
	RecurrenceDays   []int       `json:"recurrence_days,omitempty" validate:"omitempty,dive,min=0,max=6"`
	IsSchool         bool        `json:"is_school,omitempty"`
	IsResponsibility bool        `json:"is_responsibility,omitempty"`
}

// NewTaskInput builds an input from a schedule variant, so recurrence days
// can only be set on recurring tasks and a due date only on one-time tasks.
func NewTaskInput(title, assignedTo string, s Schedule) TaskInput {
	in := TaskInput{Title: title, AssignedTo: assignedTo}
	s.apply(&in)
	return in
}

// Apply copies the input's fields onto t.
func (in TaskInput) Apply(t *Task) {
	t.Title = in.Title
	t.Description = in.Description
	t.AssignedTo = in.AssignedTo
	t.CreatedBy = in.CreatedBy
	t.Frequency = in.Frequency
	t.Points = in.Points
	t.DueDate = in.DueDate
	t.DueTime = in.DueTime
	t.TimeWindow = in.TimeWindow
	t.RecurrenceDays = in.RecurrenceDays
	t.IsSchool = in.IsSchool
	t.IsResponsibility = in.IsResponsibility
}

// InputOf returns the editable part of t. The schedule fields come from
// t.Schedule, so a stored task yields an input that only carries the fields
// its frequency uses.
func InputOf(t Task) TaskInput {
	in := NewTaskInput(t.Title, t.AssignedTo, t.Schedule())
	in.Description = t.Description
	in.CreatedBy = t.CreatedBy
	in.Points = t.Points
	in.DueTime = t.DueTime
	in.TimeWindow = t.TimeWindow
	in.IsSchool = t.IsSchool
	in.IsResponsibility = t.IsResponsibility
	return in
}
