// Package recurrence generates chore instances from templates and sweeps
// past-due instances into overdue. The engine runs on a timer tick and is
// also invoked before snapshot reads, so repeated runs within the same
// period must be no-ops.
package recurrence

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/calebmorris/choreboard/internal/model"
	"github.com/calebmorris/choreboard/internal/store"
)

type Engine struct {
	chores *store.ChoreStore
	logger *slog.Logger
	now    func() time.Time
}

func NewEngine(chores *store.ChoreStore, logger *slog.Logger) *Engine {
	return &Engine{chores: chores, logger: logger, now: time.Now}
}

// SetClock overrides the engine's time source. Tests only.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Run performs one evaluation pass: flip past-due instances to overdue,
// then spawn instances for interval templates whose period has elapsed.
// Idempotent within a period; safe to call as often as you like. Returns
// the number of instances changed or created.
func (e *Engine) Run() (int, error) {
	flipped, err := e.sweepOverdue()
	if err != nil {
		return flipped, err
	}
	spawned, err := e.spawnDue()
	return flipped + spawned, err
}

func (e *Engine) sweepOverdue() (int, error) {
	instances, err := e.chores.ListInstances()
	if err != nil {
		return 0, fmt.Errorf("list instances: %w", err)
	}

	now := e.now()
	changed := 0
	for _, inst := range instances {
		if inst.Status != model.StatusPending && inst.Status != model.StatusClaimed {
			continue
		}
		deadline, ok := deadlineOf(inst)
		if !ok || !now.After(deadline) {
			continue
		}
		flipped, err := e.chores.MarkOverdueAndPenalize(inst.ID)
		if err != nil {
			return changed, fmt.Errorf("mark overdue %s: %w", inst.ID, err)
		}
		if flipped {
			changed++
			e.logger.Info("chore overdue", "chore_id", inst.ID, "name", inst.Name)
		}
	}
	return changed, nil
}

// deadlineOf resolves an instance's deadline in local time. An instance
// with a due date but no due time is due at the end of that day.
func deadlineOf(inst model.ChoreInstance) (time.Time, bool) {
	if inst.DueDate == nil {
		return time.Time{}, false
	}
	day, err := time.ParseInLocation("2006-01-02", *inst.DueDate, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	if inst.DueTime != nil {
		if t, err := time.ParseInLocation("15:04", *inst.DueTime, time.Local); err == nil {
			return day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute), true
		}
	}
	return day.Add(24 * time.Hour), true
}

func (e *Engine) spawnDue() (int, error) {
	templates, err := e.chores.ListTemplates()
	if err != nil {
		return 0, fmt.Errorf("list templates: %w", err)
	}

	now := e.now()
	created := 0
	for _, tmpl := range templates {
		switch tmpl.Recurrence {
		case model.RecurrenceDaily, model.RecurrenceWeekly, model.RecurrenceMonthly:
		default:
			continue
		}

		last, err := e.chores.LatestInstanceCreation(tmpl.ID)
		if err != nil {
			return created, fmt.Errorf("latest instance for %s: %w", tmpl.ID, err)
		}
		if last != nil && !periodElapsed(tmpl.Recurrence, *last, now) {
			continue
		}

		spawned, err := e.SpawnIfBelowCap(tmpl)
		if err != nil {
			return created, err
		}
		if spawned != nil {
			created++
			e.logger.Info("chore spawned", "template_id", tmpl.ID, "chore_id", spawned.ID, "recurrence", tmpl.Recurrence)
		}
	}
	return created, nil
}

// periodElapsed reports whether a new instance is owed given the creation
// time of the most recent one. Daily templates spawn once per calendar
// day; weekly and monthly templates spawn on elapsed duration.
func periodElapsed(rec model.Recurrence, last, now time.Time) bool {
	switch rec {
	case model.RecurrenceDaily:
		ly, lm, ld := last.Local().Date()
		ny, nm, nd := now.Local().Date()
		return ny > ly || (ny == ly && (nm > lm || (nm == lm && nd > ld)))
	case model.RecurrenceWeekly:
		return now.Sub(last) >= 7*24*time.Hour
	case model.RecurrenceMonthly:
		return now.Sub(last) >= 30*24*time.Hour
	}
	return false
}

// SpawnIfBelowCap creates a fresh instance from a template unless the
// template already has max_instances outstanding. Returns nil, nil when
// the cap blocked the spawn.
func (e *Engine) SpawnIfBelowCap(tmpl model.ChoreTemplate) (*model.ChoreInstance, error) {
	active, err := e.chores.CountActiveInstances(tmpl.ID)
	if err != nil {
		return nil, err
	}
	if active >= tmpl.MaxInstances {
		return nil, nil
	}
	return e.Spawn(tmpl)
}

// Spawn creates one pending instance carrying a copy of the template's
// content and a due date derived from the recurrence pattern.
func (e *Engine) Spawn(tmpl model.ChoreTemplate) (*model.ChoreInstance, error) {
	inst := model.ChoreInstance{
		TemplateID:     &tmpl.ID,
		Name:           tmpl.Name,
		Description:    tmpl.Description,
		Points:         tmpl.Points,
		NegativePoints: tmpl.NegativePoints,
		AssignedTo:     tmpl.AssignedTo,
		Status:         model.StatusPending,
		DueDate:        e.dueDateFor(tmpl.Recurrence),
		DueTime:        tmpl.DueTime,
		Icon:           tmpl.Icon,
	}
	created, err := e.chores.CreateInstance(inst)
	if err != nil {
		return nil, fmt.Errorf("spawn instance from %s: %w", tmpl.ID, err)
	}
	return created, nil
}

// dueDateFor derives the new instance's due date from the pattern. Daily
// chores are due the day they appear; weekly and monthly chores get the
// full period. Always-on chores have no deadline.
func (e *Engine) dueDateFor(rec model.Recurrence) *string {
	now := e.now().Local()
	var due time.Time
	switch rec {
	case model.RecurrenceDaily:
		due = now
	case model.RecurrenceWeekly:
		due = now.AddDate(0, 0, 7)
	case model.RecurrenceMonthly:
		due = now.AddDate(0, 0, 30)
	default:
		return nil
	}
	s := due.Format("2006-01-02")
	return &s
}

// RespawnAlwaysOn backfills an always-on template after one of its
// instances leaves the active pool, keeping the chore continuously
// available up to the cap.
func (e *Engine) RespawnAlwaysOn(templateID string) error {
	tmpl, err := e.chores.GetTemplate(templateID)
	if err != nil {
		return err
	}
	if tmpl == nil || tmpl.Recurrence != model.RecurrenceAlwaysOn {
		return nil
	}
	spawned, err := e.SpawnIfBelowCap(*tmpl)
	if err != nil {
		return err
	}
	if spawned != nil {
		e.logger.Info("always-on chore respawned", "template_id", templateID, "chore_id", spawned.ID)
	}
	return nil
}
