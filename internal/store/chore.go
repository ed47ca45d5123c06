package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/calebmorris/choreboard/internal/model"
)

// ChoreStore holds both sides of the chore sum type: templates (generation
// policy, no status) and instances (status-bearing occurrences).
type ChoreStore struct {
	db *sql.DB
}

func NewChoreStore(db *sql.DB) *ChoreStore {
	return &ChoreStore{db: db}
}

// --- Template methods ---

const templateCols = `id, name, description, points, negative_points, recurrence, max_instances, assigned_to, due_time, icon, created_at`

func scanTemplate(scanner interface{ Scan(...any) error }) (*model.ChoreTemplate, error) {
	var t model.ChoreTemplate
	var assignedTo, dueTime sql.NullString

	err := scanner.Scan(
		&t.ID, &t.Name, &t.Description, &t.Points, &t.NegativePoints,
		&t.Recurrence, &t.MaxInstances, &assignedTo, &dueTime, &t.Icon, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if assignedTo.Valid {
		t.AssignedTo = &assignedTo.String
	}
	if dueTime.Valid {
		t.DueTime = &dueTime.String
	}
	return &t, nil
}

func (s *ChoreStore) CreateTemplate(t model.ChoreTemplate) (*model.ChoreTemplate, error) {
	if t.ID == "" {
		t.ID = model.NewID()
	}
	if t.MaxInstances <= 0 {
		t.MaxInstances = model.DefaultMaxInstances
	}
	_, err := s.db.Exec(
		`INSERT INTO chore_templates (id, name, description, points, negative_points, recurrence, max_instances, assigned_to, due_time, icon)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Description, t.Points, t.NegativePoints,
		t.Recurrence, t.MaxInstances, nullStr(t.AssignedTo), nullStr(t.DueTime), t.Icon,
	)
	if err != nil {
		return nil, fmt.Errorf("insert template: %w", err)
	}
	return s.GetTemplate(t.ID)
}

func (s *ChoreStore) GetTemplate(id string) (*model.ChoreTemplate, error) {
	row := s.db.QueryRow(`SELECT `+templateCols+` FROM chore_templates WHERE id = ?`, id)
	t, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (s *ChoreStore) ListTemplates() ([]model.ChoreTemplate, error) {
	rows, err := s.db.Query(`SELECT ` + templateCols + ` FROM chore_templates ORDER BY created_at ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []model.ChoreTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

func (s *ChoreStore) UpdateTemplate(t model.ChoreTemplate) (*model.ChoreTemplate, error) {
	_, err := s.db.Exec(
		`UPDATE chore_templates SET name = ?, description = ?, points = ?, negative_points = ?, recurrence = ?, max_instances = ?, assigned_to = ?, due_time = ?, icon = ? WHERE id = ?`,
		t.Name, t.Description, t.Points, t.NegativePoints, t.Recurrence,
		t.MaxInstances, nullStr(t.AssignedTo), nullStr(t.DueTime), t.Icon, t.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}
	return s.GetTemplate(t.ID)
}

// DeleteTemplate removes a template. Outstanding instances are orphaned
// (template_id set to NULL by the schema), never retroactively altered.
func (s *ChoreStore) DeleteTemplate(id string) error {
	_, err := s.db.Exec(`DELETE FROM chore_templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

// --- Instance methods ---

const instanceCols = `id, template_id, name, description, points, negative_points, assigned_to, status, claimed_by, approved_by, due_date, due_time, icon, overdue_applied, completed_at, created_at`

func scanInstance(scanner interface{ Scan(...any) error }) (*model.ChoreInstance, error) {
	var c model.ChoreInstance
	var templateID, assignedTo, claimedBy, approvedBy, dueDate, dueTime sql.NullString
	var completedAt sql.NullTime

	err := scanner.Scan(
		&c.ID, &templateID, &c.Name, &c.Description, &c.Points, &c.NegativePoints,
		&assignedTo, &c.Status, &claimedBy, &approvedBy, &dueDate, &dueTime,
		&c.Icon, &c.OverdueApplied, &completedAt, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if templateID.Valid {
		c.TemplateID = &templateID.String
	}
	if assignedTo.Valid {
		c.AssignedTo = &assignedTo.String
	}
	if claimedBy.Valid {
		c.ClaimedBy = &claimedBy.String
	}
	if approvedBy.Valid {
		c.ApprovedBy = &approvedBy.String
	}
	if dueDate.Valid {
		c.DueDate = &dueDate.String
	}
	if dueTime.Valid {
		c.DueTime = &dueTime.String
	}
	if completedAt.Valid {
		c.CompletedAt = &completedAt.Time
	}
	return &c, nil
}

func (s *ChoreStore) CreateInstance(c model.ChoreInstance) (*model.ChoreInstance, error) {
	if c.ID == "" {
		c.ID = model.NewID()
	}
	if c.Status == "" {
		c.Status = model.StatusPending
	}
	_, err := s.db.Exec(
		`INSERT INTO chore_instances (id, template_id, name, description, points, negative_points, assigned_to, status, due_date, due_time, icon)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, nullStr(c.TemplateID), c.Name, c.Description, c.Points, c.NegativePoints,
		nullStr(c.AssignedTo), c.Status, nullStr(c.DueDate), nullStr(c.DueTime), c.Icon,
	)
	if err != nil {
		return nil, fmt.Errorf("insert instance: %w", err)
	}
	return s.GetInstance(c.ID)
}

func (s *ChoreStore) GetInstance(id string) (*model.ChoreInstance, error) {
	row := s.db.QueryRow(`SELECT `+instanceCols+` FROM chore_instances WHERE id = ?`, id)
	c, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get instance: %w", err)
	}
	return c, nil
}

func (s *ChoreStore) ListInstances() ([]model.ChoreInstance, error) {
	rows, err := s.db.Query(`SELECT ` + instanceCols + ` FROM chore_instances ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	var instances []model.ChoreInstance
	for rows.Next() {
		c, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		instances = append(instances, *c)
	}
	return instances, rows.Err()
}

// UpdateInstance rewrites the editable content fields. Status and claim
// ownership only move through the lifecycle methods below.
func (s *ChoreStore) UpdateInstance(c model.ChoreInstance) (*model.ChoreInstance, error) {
	_, err := s.db.Exec(
		`UPDATE chore_instances SET name = ?, description = ?, points = ?, negative_points = ?, assigned_to = ?, due_date = ?, due_time = ?, icon = ? WHERE id = ?`,
		c.Name, c.Description, c.Points, c.NegativePoints,
		nullStr(c.AssignedTo), nullStr(c.DueDate), nullStr(c.DueTime), c.Icon, c.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update instance: %w", err)
	}
	return s.GetInstance(c.ID)
}

func (s *ChoreStore) DeleteInstance(id string) error {
	_, err := s.db.Exec(`DELETE FROM chore_instances WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete instance: %w", err)
	}
	return nil
}

// CountActiveInstances counts non-terminal instances of a template:
// everything except completed. This is the number the max_instances cap
// applies to.
func (s *ChoreStore) CountActiveInstances(templateID string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM chore_instances WHERE template_id = ? AND status != ?`,
		templateID, model.StatusCompleted,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active instances: %w", err)
	}
	return n, nil
}

// LatestInstanceCreation returns the created_at of the most recent instance
// spawned from a template, or nil when none exist.
func (s *ChoreStore) LatestInstanceCreation(templateID string) (*time.Time, error) {
	var created time.Time
	err := s.db.QueryRow(
		`SELECT created_at FROM chore_instances WHERE template_id = ?
		 ORDER BY created_at DESC LIMIT 1`,
		templateID,
	).Scan(&created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest instance creation: %w", err)
	}
	return &created, nil
}

// --- Lifecycle compare-and-set methods ---
//
// Each method guards the transition inside the UPDATE itself and reports
// whether it won via RowsAffected, so two concurrent actors can never both
// commit the same transition.

// Claim moves pending/overdue → claimed for memberID. Returns false when the
// instance was already claimed (or left a claimable state) in the meantime.
func (s *ChoreStore) Claim(id, memberID string) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE chore_instances SET status = ?, claimed_by = ?
		 WHERE id = ? AND status IN (?, ?) AND claimed_by IS NULL`,
		model.StatusClaimed, memberID, id, model.StatusPending, model.StatusOverdue,
	)
	if err != nil {
		return false, fmt.Errorf("claim instance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim rows affected: %w", err)
	}
	return n == 1, nil
}

// MarkAwaitingApproval moves claimed → awaiting_approval for the claimant.
func (s *ChoreStore) MarkAwaitingApproval(id, memberID string) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE chore_instances SET status = ?, completed_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ? AND claimed_by = ?`,
		model.StatusAwaitingApproval, id, model.StatusClaimed, memberID,
	)
	if err != nil {
		return false, fmt.Errorf("mark awaiting approval: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// ApproveAndCredit moves awaiting_approval → completed and credits the
// claimant in the same transaction: status flip, balance update, and ledger
// entry commit together or not at all. The status guard makes the credit
// exactly-once even under concurrent approvals.
func (s *ChoreStore) ApproveAndCredit(id, approverID string) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE chore_instances SET status = ?, approved_by = ?
		 WHERE id = ? AND status = ?`,
		model.StatusCompleted, approverID, id, model.StatusAwaitingApproval,
	)
	if err != nil {
		return false, fmt.Errorf("approve instance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	var claimedBy sql.NullString
	var points int
	err = tx.QueryRow(`SELECT claimed_by, points FROM chore_instances WHERE id = ?`, id).
		Scan(&claimedBy, &points)
	if err != nil {
		return false, fmt.Errorf("read approved instance: %w", err)
	}

	if claimedBy.Valid && points != 0 {
		if _, err := tx.Exec(
			`UPDATE members SET points = points + ? WHERE id = ?`,
			points, claimedBy.String,
		); err != nil {
			return false, fmt.Errorf("credit member: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO point_entries (member_id, delta, reason, ref_id) VALUES (?, ?, ?, ?)`,
			claimedBy.String, points, model.ReasonChore, id,
		); err != nil {
			return false, fmt.Errorf("insert ledger entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit approve: %w", err)
	}
	return true, nil
}

// Reject moves awaiting_approval → rejected. No points move.
func (s *ChoreStore) Reject(id, approverID string) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE chore_instances SET status = ?, approved_by = ?
		 WHERE id = ? AND status = ?`,
		model.StatusRejected, approverID, id, model.StatusAwaitingApproval,
	)
	if err != nil {
		return false, fmt.Errorf("reject instance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// Retry moves rejected → claimed for the original claimant, clearing the
// completion timestamp. The point value is untouched.
func (s *ChoreStore) Retry(id, memberID string) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE chore_instances SET status = ?, completed_at = NULL
		 WHERE id = ? AND status = ? AND claimed_by = ?`,
		model.StatusClaimed, id, model.StatusRejected, memberID,
	)
	if err != nil {
		return false, fmt.Errorf("retry instance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// MarkOverdueAndPenalize flips one instance to overdue, releases its
// claimant, and, when the instance carries a penalty that has not been
// applied yet, deducts it from the previous claimant (or the assignee) in
// the same transaction. The deduction is floored at zero and the ledger
// entry records the clamped delta so balance and ledger stay reconcilable.
func (s *ChoreStore) MarkOverdueAndPenalize(id string) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// The penalty target is read before the flip because the flip releases
	// the claimant: an overdue instance must be claimable again, so
	// claimed_by goes back to NULL while the penalty still lands on whoever
	// was holding the chore.
	var claimedBy, assignedTo sql.NullString
	var negative int
	var applied bool
	err = tx.QueryRow(
		`SELECT claimed_by, assigned_to, negative_points, overdue_applied
		 FROM chore_instances WHERE id = ? AND status IN (?, ?)`,
		id, model.StatusPending, model.StatusClaimed,
	).Scan(&claimedBy, &assignedTo, &negative, &applied)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read overdue candidate: %w", err)
	}

	res, err := tx.Exec(
		`UPDATE chore_instances SET status = ?, claimed_by = NULL
		 WHERE id = ? AND status IN (?, ?)`,
		model.StatusOverdue, id, model.StatusPending, model.StatusClaimed,
	)
	if err != nil {
		return false, fmt.Errorf("mark overdue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	target := claimedBy
	if !target.Valid {
		target = assignedTo
	}

	if negative > 0 && !applied && target.Valid {
		var balance int
		err = tx.QueryRow(`SELECT points FROM members WHERE id = ?`, target.String).Scan(&balance)
		if err != nil && err != sql.ErrNoRows {
			return false, fmt.Errorf("read member balance: %w", err)
		}
		if err == nil {
			deduct := negative
			if deduct > balance {
				deduct = balance
			}
			if deduct > 0 {
				if _, err := tx.Exec(
					`UPDATE members SET points = points - ? WHERE id = ?`,
					deduct, target.String,
				); err != nil {
					return false, fmt.Errorf("apply penalty: %w", err)
				}
				if _, err := tx.Exec(
					`INSERT INTO point_entries (member_id, delta, reason, ref_id) VALUES (?, ?, ?, ?)`,
					target.String, -deduct, model.ReasonPenalty, id,
				); err != nil {
					return false, fmt.Errorf("insert penalty entry: %w", err)
				}
			}
			if _, err := tx.Exec(
				`UPDATE chore_instances SET overdue_applied = 1 WHERE id = ?`, id,
			); err != nil {
				return false, fmt.Errorf("latch penalty: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit overdue: %w", err)
	}
	return true, nil
}

// DeleteAllInstances wipes every chore instance. Templates are kept unless
// keepTemplates is false.
func (s *ChoreStore) DeleteAllInstances(keepTemplates bool) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM chore_instances`)
	if err != nil {
		return 0, fmt.Errorf("delete all instances: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if !keepTemplates {
		tmplRes, err := s.db.Exec(`DELETE FROM chore_templates`)
		if err != nil {
			return 0, fmt.Errorf("delete all templates: %w", err)
		}
		tn, err := tmplRes.RowsAffected()
		if err != nil {
			return 0, err
		}
		n += tn
	}
	return n, nil
}

func nullStr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
