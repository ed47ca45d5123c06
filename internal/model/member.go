package model

import "time"

type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleParent || r == RoleChild
}

// Member is a family member. Points is the authoritative balance; every
// change to it is mirrored by a PointEntry so the two stay reconcilable.
type Member struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Color     string    `json:"color"`
	Avatar    string    `json:"avatar"`
	Points    int       `json:"points"`
	HasPIN    bool      `json:"has_pin"`
	CreatedAt time.Time `json:"created_at"`
}
