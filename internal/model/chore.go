package model

import "time"

type Recurrence string

const (
	RecurrenceNone     Recurrence = "none"
	RecurrenceAlwaysOn Recurrence = "always_on"
	RecurrenceDaily    Recurrence = "daily"
	RecurrenceWeekly   Recurrence = "weekly"
	RecurrenceMonthly  Recurrence = "monthly"
)

// Valid reports whether r is a known recurrence pattern.
func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceAlwaysOn, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return true
	}
	return false
}

type ChoreStatus string

const (
	StatusPending          ChoreStatus = "pending"
	StatusClaimed          ChoreStatus = "claimed"
	StatusAwaitingApproval ChoreStatus = "awaiting_approval"
	StatusCompleted        ChoreStatus = "completed"
	StatusRejected         ChoreStatus = "rejected"
	StatusOverdue          ChoreStatus = "overdue"
)

// Terminal reports whether no further transitions are possible.
func (s ChoreStatus) Terminal() bool {
	return s == StatusCompleted
}

// DefaultMaxInstances caps simultaneously outstanding instances of a
// recurring template unless the template says otherwise.
const DefaultMaxInstances = 3

// ChoreTemplate is a reusable chore definition with a generation policy.
// Templates carry no status; only instances move through the lifecycle.
type ChoreTemplate struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Points         int        `json:"points"`
	NegativePoints int        `json:"negative_points"`
	Recurrence     Recurrence `json:"recurrence"`
	MaxInstances   int        `json:"max_instances"`
	AssignedTo     *string    `json:"assigned_to"`
	DueTime        *string    `json:"due_time"` // "HH:MM", local time
	Icon           string     `json:"icon"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ChoreInstance is one concrete, claimable occurrence of a chore.
// TemplateID is nil for one-off chores. Content fields are copied from the
// template at spawn time and never rewritten afterwards.
type ChoreInstance struct {
	ID             string      `json:"id"`
	TemplateID     *string     `json:"template_id"`
	Name           string      `json:"name"`
	Description    string      `json:"description"`
	Points         int         `json:"points"`
	NegativePoints int         `json:"negative_points"`
	AssignedTo     *string     `json:"assigned_to"`
	Status         ChoreStatus `json:"status"`
	ClaimedBy      *string     `json:"claimed_by"`
	ApprovedBy     *string     `json:"approved_by"`
	DueDate        *string     `json:"due_date"` // "YYYY-MM-DD", local time
	DueTime        *string     `json:"due_time"` // "HH:MM", local time
	Icon           string      `json:"icon"`
	OverdueApplied bool        `json:"overdue_applied"`
	CompletedAt    *time.Time  `json:"completed_at"`
	CreatedAt      time.Time   `json:"created_at"`
}
