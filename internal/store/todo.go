package store

import (
	"database/sql"
	"fmt"

	"github.com/calebmorris/choreboard/internal/model"
)

// TodoStore is plain passthrough CRUD; todos carry no lifecycle semantics.
type TodoStore struct {
	db *sql.DB
}

func NewTodoStore(db *sql.DB) *TodoStore {
	return &TodoStore{db: db}
}

const todoCols = `id, title, description, completed, assigned_to, due_date, priority, category, created_by, created_at, completed_at`

func scanTodo(scanner interface{ Scan(...any) error }) (*model.TodoItem, error) {
	var t model.TodoItem
	var assignedTo, dueDate, createdBy sql.NullString
	var completedAt sql.NullTime

	err := scanner.Scan(&t.ID, &t.Title, &t.Description, &t.Completed, &assignedTo, &dueDate, &t.Priority, &t.Category, &createdBy, &t.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if assignedTo.Valid {
		t.AssignedTo = &assignedTo.String
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.String
	}
	if createdBy.Valid {
		t.CreatedBy = &createdBy.String
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}

func (s *TodoStore) Create(t model.TodoItem) (*model.TodoItem, error) {
	if t.ID == "" {
		t.ID = model.NewID()
	}
	if t.Priority == "" {
		t.Priority = "normal"
	}
	if t.Category == "" {
		t.Category = "general"
	}
	_, err := s.db.Exec(
		`INSERT INTO todos (id, title, description, assigned_to, due_date, priority, category, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, nullStr(t.AssignedTo), nullStr(t.DueDate), t.Priority, t.Category, nullStr(t.CreatedBy),
	)
	if err != nil {
		return nil, fmt.Errorf("insert todo: %w", err)
	}
	return s.GetByID(t.ID)
}

func (s *TodoStore) GetByID(id string) (*model.TodoItem, error) {
	row := s.db.QueryRow(`SELECT `+todoCols+` FROM todos WHERE id = ?`, id)
	t, err := scanTodo(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get todo: %w", err)
	}
	return t, nil
}

func (s *TodoStore) List() ([]model.TodoItem, error) {
	rows, err := s.db.Query(`SELECT ` + todoCols + ` FROM todos ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()

	var todos []model.TodoItem
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		todos = append(todos, *t)
	}
	return todos, rows.Err()
}

func (s *TodoStore) Update(t model.TodoItem) (*model.TodoItem, error) {
	_, err := s.db.Exec(
		`UPDATE todos SET title = ?, description = ?, assigned_to = ?, due_date = ?, priority = ?, category = ? WHERE id = ?`,
		t.Title, t.Description, nullStr(t.AssignedTo), nullStr(t.DueDate), t.Priority, t.Category, t.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update todo: %w", err)
	}
	return s.GetByID(t.ID)
}

func (s *TodoStore) Complete(id string) (*model.TodoItem, error) {
	_, err := s.db.Exec(
		`UPDATE todos SET completed = 1, completed_at = CURRENT_TIMESTAMP WHERE id = ?`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("complete todo: %w", err)
	}
	return s.GetByID(id)
}

func (s *TodoStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM todos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	return nil
}

func (s *TodoStore) DeleteAll() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM todos`)
	if err != nil {
		return 0, fmt.Errorf("delete all todos: %w", err)
	}
	return res.RowsAffected()
}
