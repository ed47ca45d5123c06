package model

import "time"

type CalendarEvent struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartDate   string    `json:"start_date"`
	EndDate     *string   `json:"end_date"`
	StartTime   *string   `json:"start_time"`
	EndTime     *string   `json:"end_time"`
	AllDay      bool      `json:"all_day"`
	MemberIDs   []string  `json:"member_ids"`
	Color       *string   `json:"color"`
	Recurrence  string    `json:"recurrence"`
	Location    string    `json:"location"`
	CreatedAt   time.Time `json:"created_at"`
}
