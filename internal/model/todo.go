package model

import "time"

// TodoItem is a plain list entry with no lifecycle or economy semantics.
type TodoItem struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	AssignedTo  *string    `json:"assigned_to"`
	DueDate     *string    `json:"due_date"`
	Priority    string     `json:"priority"` // low, normal, high
	Category    string     `json:"category"`
	CreatedBy   *string    `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}
