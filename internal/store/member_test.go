package store

import (
	"testing"

	"github.com/calebmorris/choreboard/internal/model"
)

func TestMemberCRUD(t *testing.T) {
	_, ms, _ := setupTestDB(t)

	member, err := ms.Create("Alice", model.RoleParent, "#FF6B6B", "mdi:face-woman")
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	if member.Points != 0 {
		t.Errorf("points = %d, want 0", member.Points)
	}
	if member.HasPIN {
		t.Error("new member should have no pin")
	}

	updated, err := ms.Update(member.ID, "Alicia", model.RoleParent, "#FF6B6B", "mdi:face-woman")
	if err != nil {
		t.Fatalf("update member: %v", err)
	}
	if updated.Name != "Alicia" {
		t.Errorf("name = %q, want Alicia", updated.Name)
	}

	role, err := ms.Role(member.ID)
	if err != nil {
		t.Fatalf("role: %v", err)
	}
	if role != model.RoleParent {
		t.Errorf("role = %q, want parent", role)
	}

	if err := ms.Delete(member.ID); err != nil {
		t.Fatalf("delete member: %v", err)
	}
	got, err := ms.GetByID(member.ID)
	if err != nil {
		t.Fatalf("get deleted member: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}

	role, err = ms.Role(member.ID)
	if err != nil {
		t.Fatalf("role of deleted member: %v", err)
	}
	if role != "" {
		t.Errorf("role = %q, want empty for unknown member", role)
	}
}

func TestMemberPIN(t *testing.T) {
	_, ms, _ := setupTestDB(t)

	member, err := ms.Create("Kid", model.RoleChild, "#4ECDC4", "mdi:account")
	if err != nil {
		t.Fatalf("create member: %v", err)
	}

	if err := ms.SetPIN(member.ID, "hashed-pin"); err != nil {
		t.Fatalf("set pin: %v", err)
	}
	got, _ := ms.GetByID(member.ID)
	if !got.HasPIN {
		t.Error("has_pin should be true after SetPIN")
	}
	hash, err := ms.GetPINHash(member.ID)
	if err != nil {
		t.Fatalf("get pin hash: %v", err)
	}
	if hash != "hashed-pin" {
		t.Errorf("hash = %q", hash)
	}

	if err := ms.ClearPIN(member.ID); err != nil {
		t.Fatalf("clear pin: %v", err)
	}
	got, _ = ms.GetByID(member.ID)
	if got.HasPIN {
		t.Error("has_pin should be false after ClearPIN")
	}
}
