package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/calebmorris/choreboard/internal/model"
)

// EventStore is plain passthrough CRUD for calendar events.
type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

const eventCols = `id, title, description, start_date, end_date, start_time, end_time, all_day, member_ids, color, recurrence, location, created_at`

func scanEvent(scanner interface{ Scan(...any) error }) (*model.CalendarEvent, error) {
	var e model.CalendarEvent
	var endDate, startTime, endTime, color sql.NullString
	var memberIDs string

	err := scanner.Scan(&e.ID, &e.Title, &e.Description, &e.StartDate, &endDate, &startTime, &endTime, &e.AllDay, &memberIDs, &color, &e.Recurrence, &e.Location, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if endDate.Valid {
		e.EndDate = &endDate.String
	}
	if startTime.Valid {
		e.StartTime = &startTime.String
	}
	if endTime.Valid {
		e.EndTime = &endTime.String
	}
	if color.Valid {
		e.Color = &color.String
	}
	if err := json.Unmarshal([]byte(memberIDs), &e.MemberIDs); err != nil {
		return nil, fmt.Errorf("decode member_ids: %w", err)
	}
	return &e, nil
}

func (s *EventStore) Create(e model.CalendarEvent) (*model.CalendarEvent, error) {
	if e.ID == "" {
		e.ID = model.NewID()
	}
	if e.Recurrence == "" {
		e.Recurrence = "none"
	}
	if e.MemberIDs == nil {
		e.MemberIDs = []string{}
	}
	memberIDs, err := json.Marshal(e.MemberIDs)
	if err != nil {
		return nil, fmt.Errorf("encode member_ids: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO events (id, title, description, start_date, end_date, start_time, end_time, all_day, member_ids, color, recurrence, location)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Title, e.Description, e.StartDate, nullStr(e.EndDate), nullStr(e.StartTime), nullStr(e.EndTime),
		e.AllDay, string(memberIDs), nullStr(e.Color), e.Recurrence, e.Location,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return s.GetByID(e.ID)
}

func (s *EventStore) GetByID(id string) (*model.CalendarEvent, error) {
	row := s.db.QueryRow(`SELECT `+eventCols+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

func (s *EventStore) List() ([]model.CalendarEvent, error) {
	rows, err := s.db.Query(`SELECT ` + eventCols + ` FROM events ORDER BY start_date ASC, created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.CalendarEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (s *EventStore) Update(e model.CalendarEvent) (*model.CalendarEvent, error) {
	memberIDs, err := json.Marshal(e.MemberIDs)
	if err != nil {
		return nil, fmt.Errorf("encode member_ids: %w", err)
	}
	_, err = s.db.Exec(
		`UPDATE events SET title = ?, description = ?, start_date = ?, end_date = ?, start_time = ?, end_time = ?, all_day = ?, member_ids = ?, color = ?, recurrence = ?, location = ? WHERE id = ?`,
		e.Title, e.Description, e.StartDate, nullStr(e.EndDate), nullStr(e.StartTime), nullStr(e.EndTime),
		e.AllDay, string(memberIDs), nullStr(e.Color), e.Recurrence, e.Location, e.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return s.GetByID(e.ID)
}

func (s *EventStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

func (s *EventStore) DeleteAll() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM events`)
	if err != nil {
		return 0, fmt.Errorf("delete all events: %w", err)
	}
	return res.RowsAffected()
}
