package store

import (
	"database/sql"
	"fmt"

	"github.com/calebmorris/choreboard/internal/famerr"
	"github.com/calebmorris/choreboard/internal/model"
)

type MemberStore struct {
	db *sql.DB
}

func NewMemberStore(db *sql.DB) *MemberStore {
	return &MemberStore{db: db}
}

const memberCols = `id, name, role, color, avatar, points, pin IS NOT NULL, created_at`

func scanMember(scanner interface{ Scan(...any) error }) (*model.Member, error) {
	var m model.Member
	err := scanner.Scan(&m.ID, &m.Name, &m.Role, &m.Color, &m.Avatar, &m.Points, &m.HasPIN, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MemberStore) Create(name string, role model.Role, color, avatar string) (*model.Member, error) {
	id := model.NewID()
	_, err := s.db.Exec(
		`INSERT INTO members (id, name, role, color, avatar) VALUES (?, ?, ?, ?, ?)`,
		id, name, role, color, avatar,
	)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}
	return s.GetByID(id)
}

func (s *MemberStore) GetByID(id string) (*model.Member, error) {
	row := s.db.QueryRow(`SELECT `+memberCols+` FROM members WHERE id = ?`, id)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *MemberStore) List() ([]model.Member, error) {
	rows, err := s.db.Query(`SELECT ` + memberCols + ` FROM members ORDER BY created_at ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *MemberStore) Update(id, name string, role model.Role, color, avatar string) (*model.Member, error) {
	_, err := s.db.Exec(
		`UPDATE members SET name = ?, role = ?, color = ?, avatar = ? WHERE id = ?`,
		name, role, color, avatar, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update member: %w", err)
	}
	return s.GetByID(id)
}

func (s *MemberStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM members WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	return nil
}

func (s *MemberStore) DeleteAll() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM members`)
	if err != nil {
		return 0, fmt.Errorf("delete all members: %w", err)
	}
	return res.RowsAffected()
}

// Role returns the member's role, or ("", nil) when the member is unknown.
func (s *MemberStore) Role(id string) (model.Role, error) {
	var role model.Role
	err := s.db.QueryRow(`SELECT role FROM members WHERE id = ?`, id).Scan(&role)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get member role: %w", err)
	}
	return role, nil
}

func (s *MemberStore) SetPIN(id, hashedPIN string) error {
	_, err := s.db.Exec(`UPDATE members SET pin = ? WHERE id = ?`, hashedPIN, id)
	if err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	return nil
}

func (s *MemberStore) ClearPIN(id string) error {
	_, err := s.db.Exec(`UPDATE members SET pin = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("clear pin: %w", err)
	}
	return nil
}

func (s *MemberStore) GetPINHash(id string) (string, error) {
	var pin sql.NullString
	err := s.db.QueryRow(`SELECT pin FROM members WHERE id = ?`, id).Scan(&pin)
	if err == sql.ErrNoRows {
		return "", famerr.NotFound("member", id)
	}
	if err != nil {
		return "", fmt.Errorf("query pin: %w", err)
	}
	if !pin.Valid {
		return "", nil
	}
	return pin.String, nil
}
