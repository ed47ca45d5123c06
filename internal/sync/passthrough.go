package sync

import (
	"encoding/json"

	"github.com/calebmorris/choreboard/internal/famerr"
	"github.com/calebmorris/choreboard/internal/model"
)

// Passthrough operations: todos, calendar events, settings, and the bulk
// data-management commands. No lifecycle semantics here, just storage.

func (d *Dispatcher) addTodo(raw []byte) (any, bool, error) {
	params := struct {
		Title       string  `json:"title"`
		Description string  `json:"description"`
		AssignedTo  *string `json:"assigned_to"`
		DueDate     *string `json:"due_date"`
		Priority    string  `json:"priority"`
		Category    string  `json:"category"`
		CreatedBy   *string `json:"created_by"`
	}{Priority: "normal", Category: "general"}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false, err
	}
	todo, err := d.todos.Create(model.TodoItem{
		Title:       params.Title,
		Description: params.Description,
		AssignedTo:  params.AssignedTo,
		DueDate:     params.DueDate,
		Priority:    params.Priority,
		Category:    params.Category,
		CreatedBy:   params.CreatedBy,
	})
	if err != nil {
		return nil, false, err
	}
	return todo, true, nil
}

func (d *Dispatcher) updateTodo(raw []byte) (any, bool, error) {
	params := struct {
		TodoID      string  `json:"todo_id"`
		Title       *string `json:"title"`
		Description *string `json:"description"`
		AssignedTo  *string `json:"assigned_to"`
		DueDate     *string `json:"due_date"`
		Priority    *string `json:"priority"`
		Category    *string `json:"category"`
	}{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false, err
	}
	todo, err := d.todos.GetByID(params.TodoID)
	if err != nil {
		return nil, false, err
	}
	if todo == nil {
		return nil, false, famerr.NotFound("todo", params.TodoID)
	}
	if params.Title != nil {
		todo.Title = *params.Title
	}
	if params.Description != nil {
		todo.Description = *params.Description
	}
	if params.AssignedTo != nil {
		todo.AssignedTo = params.AssignedTo
	}
	if params.DueDate != nil {
		todo.DueDate = params.DueDate
	}
	if params.Priority != nil {
		todo.Priority = *params.Priority
	}
	if params.Category != nil {
		todo.Category = *params.Category
	}
	updated, err := d.todos.Update(*todo)
	if err != nil {
		return nil, false, err
	}
	return updated, true, nil
}

func (d *Dispatcher) completeTodo(raw []byte) (any, bool, error) {
	params := struct {
		TodoID string `json:"todo_id"`
	}{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false, err
	}
	todo, err := d.todos.GetByID(params.TodoID)
	if err != nil {
		return nil, false, err
	}
	if todo == nil {
		return nil, false, famerr.NotFound("todo", params.TodoID)
	}
	completed, err := d.todos.Complete(params.TodoID)
	if err != nil {
		return nil, false, err
	}
	return completed, true, nil
}

func (d *Dispatcher) deleteTodo(raw []byte) (any, bool, error) {
	params := struct {
		TodoID string `json:"todo_id"`
	}{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false, err
	}
	if err := d.todos.Delete(params.TodoID); err != nil {
		return nil, false, err
	}
	return map[string]any{"success": true}, true, nil
}

func (d *Dispatcher) addEvent(raw []byte) (any, bool, error) {
	params := struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		StartDate   string   `json:"start_date"`
		EndDate     *string  `json:"end_date"`
		StartTime   *string  `json:"start_time"`
		EndTime     *string  `json:"end_time"`
		AllDay      *bool    `json:"all_day"`
		MemberIDs   []string `json:"member_ids"`
		Color       *string  `json:"color"`
		Recurrence  string   `json:"recurrence"`
		Location    string   `json:"location"`
	}{Recurrence: "none"}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false, err
	}
	allDay := true
	if params.AllDay != nil {
		allDay = *params.AllDay
	}
	event, err := d.events.Create(model.CalendarEvent{
		Title:       params.Title,
		Description: params.Description,
		StartDate:   params.StartDate,
		EndDate:     params.EndDate,
		StartTime:   params.StartTime,
		EndTime:     params.EndTime,
		AllDay:      allDay,
		MemberIDs:   params.MemberIDs,
		Color:       params.Color,
		Recurrence:  params.Recurrence,
		Location:    params.Location,
	})
	if err != nil {
		return nil, false, err
	}
	return event, true, nil
}

func (d *Dispatcher) updateEvent(raw []byte) (any, bool, error) {
	params := struct {
		EventID     string    `json:"event_id"`
		Title       *string   `json:"title"`
		Description *string   `json:"description"`
		StartDate   *string   `json:"start_date"`
		EndDate     *string   `json:"end_date"`
		StartTime   *string   `json:"start_time"`
		EndTime     *string   `json:"end_time"`
		AllDay      *bool     `json:"all_day"`
		MemberIDs   *[]string `json:"member_ids"`
		Color       *string   `json:"color"`
		Recurrence  *string   `json:"recurrence"`
		Location    *string   `json:"location"`
	}{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false, err
	}
	event, err := d.events.GetByID(params.EventID)
	if err != nil {
		return nil, false, err
	}
	if event == nil {
		return nil, false, famerr.NotFound("event", params.EventID)
	}
	if params.Title != nil {
		event.Title = *params.Title
	}
	if params.Description != nil {
		event.Description = *params.Description
	}
	if params.StartDate != nil {
		event.StartDate = *params.StartDate
	}
	if params.EndDate != nil {
		event.EndDate = params.EndDate
	}
	if params.StartTime != nil {
		event.StartTime = params.StartTime
	}
	if params.EndTime != nil {
		event.EndTime = params.EndTime
	}
	if params.AllDay != nil {
		event.AllDay = *params.AllDay
	}
	if params.MemberIDs != nil {
		event.MemberIDs = *params.MemberIDs
	}
	if params.Color != nil {
		event.Color = params.Color
	}
	if params.Recurrence != nil {
		event.Recurrence = *params.Recurrence
	}
	if params.Location != nil {
		event.Location = *params.Location
	}
	updated, err := d.events.Update(*event)
	if err != nil {
		return nil, false, err
	}
	return updated, true, nil
}

func (d *Dispatcher) deleteEvent(raw []byte) (any, bool, error) {
	params := struct {
		EventID string `json:"event_id"`
	}{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false, err
	}
	if err := d.events.Delete(params.EventID); err != nil {
		return nil, false, err
	}
	return map[string]any{"success": true}, true, nil
}

// updateSettings upserts arbitrary key/value pairs. Non-string values are
// stored as their JSON encoding.
func (d *Dispatcher) updateSettings(raw []byte) (any, bool, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false, err
	}
	delete(fields, "id")
	delete(fields, "type")

	for key, value := range fields {
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			s = string(value)
		}
		if err := d.settings.Set(key, s); err != nil {
			return nil, false, err
		}
	}
	return map[string]any{"success": true}, true, nil
}

func (d *Dispatcher) updateFamilyName(raw []byte) (any, bool, error) {
	params := struct {
		FamilyName string `json:"family_name"`
	}{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false, err
	}
	if err := d.settings.Set("family_name", params.FamilyName); err != nil {
		return nil, false, err
	}
	return map[string]any{"success": true}, true, nil
}

// --- Bulk data management ---

func (d *Dispatcher) deleteAllChores(raw []byte) (any, bool, error) {
	params := struct {
		KeepTemplates bool `json:"keep_templates"`
	}{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false, err
	}
	count, err := d.chores.DeleteAllInstances(params.KeepTemplates)
	if err != nil {
		return nil, false, err
	}
	return map[string]any{"success": true, "count": count}, true, nil
}

func (d *Dispatcher) deleteAll(wipe func() (int64, error)) (any, bool, error) {
	count, err := wipe()
	if err != nil {
		return nil, false, err
	}
	return map[string]any{"success": true, "count": count}, true, nil
}

func (d *Dispatcher) clearAllData(raw []byte) (any, bool, error) {
	params := struct {
		KeepMembers bool `json:"keep_members"`
	}{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false, err
	}

	counts := map[string]int64{}
	var err error
	if counts["chores"], err = d.chores.DeleteAllInstances(false); err != nil {
		return nil, false, err
	}
	if counts["reward_claims"], err = d.rewards.DeleteAllClaims(); err != nil {
		return nil, false, err
	}
	if counts["rewards"], err = d.rewards.DeleteAll(); err != nil {
		return nil, false, err
	}
	if counts["todos"], err = d.todos.DeleteAll(); err != nil {
		return nil, false, err
	}
	if counts["events"], err = d.events.DeleteAll(); err != nil {
		return nil, false, err
	}
	if !params.KeepMembers {
		if counts["members"], err = d.members.DeleteAll(); err != nil {
			return nil, false, err
		}
	}
	d.logger.Info("cleared all data", "keep_members", params.KeepMembers)
	return map[string]any{"success": true, "counts": counts}, true, nil
}
