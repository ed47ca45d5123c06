package store

import (
	"database/sql"
	"fmt"

	"github.com/calebmorris/choreboard/internal/model"
)

// SnapshotStore assembles the full state pushed to subscribers. All reads
// happen inside one read transaction so a snapshot never observes a
// half-applied mutation.
type SnapshotStore struct {
	db *sql.DB
}

func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

func (s *SnapshotStore) Build() (*model.Snapshot, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	snap := &model.Snapshot{
		Members:      []model.Member{},
		Templates:    []model.ChoreTemplate{},
		Chores:       []model.ChoreInstance{},
		Rewards:      []model.Reward{},
		RewardClaims: []model.RewardClaim{},
		Todos:        []model.TodoItem{},
		Events:       []model.CalendarEvent{},
		Settings:     map[string]string{},
	}

	if err := collect(tx, `SELECT `+memberCols+` FROM members ORDER BY created_at ASC, name ASC`, scanMember, &snap.Members); err != nil {
		return nil, fmt.Errorf("snapshot members: %w", err)
	}
	if err := collect(tx, `SELECT `+templateCols+` FROM chore_templates ORDER BY created_at ASC`, scanTemplate, &snap.Templates); err != nil {
		return nil, fmt.Errorf("snapshot templates: %w", err)
	}
	if err := collect(tx, `SELECT `+instanceCols+` FROM chore_instances ORDER BY created_at ASC`, scanInstance, &snap.Chores); err != nil {
		return nil, fmt.Errorf("snapshot chores: %w", err)
	}
	if err := collect(tx, `SELECT `+rewardCols+` FROM rewards ORDER BY created_at ASC`, scanReward, &snap.Rewards); err != nil {
		return nil, fmt.Errorf("snapshot rewards: %w", err)
	}
	if err := collect(tx, `SELECT `+claimCols+` FROM reward_claims ORDER BY claimed_at DESC`, scanClaim, &snap.RewardClaims); err != nil {
		return nil, fmt.Errorf("snapshot claims: %w", err)
	}
	if err := collect(tx, `SELECT `+todoCols+` FROM todos ORDER BY created_at ASC`, scanTodo, &snap.Todos); err != nil {
		return nil, fmt.Errorf("snapshot todos: %w", err)
	}
	if err := collect(tx, `SELECT `+eventCols+` FROM events ORDER BY start_date ASC`, scanEvent, &snap.Events); err != nil {
		return nil, fmt.Errorf("snapshot events: %w", err)
	}

	rows, err := tx.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("snapshot settings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		snap.Settings[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if name, ok := snap.Settings["family_name"]; ok {
		snap.FamilyName = name
		delete(snap.Settings, "family_name")
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit snapshot tx: %w", err)
	}
	return snap, nil
}

// collect runs a query and appends every scanned row to out.
func collect[T any](tx *sql.Tx, query string, scan func(interface{ Scan(...any) error }) (*T, error), out *[]T) error {
	rows, err := tx.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return err
		}
		*out = append(*out, *v)
	}
	return rows.Err()
}
