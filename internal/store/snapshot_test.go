package store

import (
	"testing"

	"github.com/calebmorris/choreboard/internal/database"
	"github.com/calebmorris/choreboard/internal/model"
)

func TestSnapshotBuild(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ms := NewMemberStore(db)
	cs := NewChoreStore(db)
	ss := NewSnapshotStore(db)

	member, err := ms.Create("Alice", model.RoleParent, "#fff", "mdi:account")
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	if _, err := cs.CreateInstance(model.ChoreInstance{Name: "Make bed", Points: 10}); err != nil {
		t.Fatalf("create instance: %v", err)
	}

	snap, err := ss.Build()
	if err != nil {
		t.Fatalf("build snapshot: %v", err)
	}

	if snap.FamilyName != "Our Family" {
		t.Errorf("family_name = %q, want seeded default", snap.FamilyName)
	}
	if _, ok := snap.Settings["family_name"]; ok {
		t.Error("family_name should be lifted out of the settings map")
	}
	if len(snap.Members) != 1 || snap.Members[0].ID != member.ID {
		t.Errorf("members = %+v, want the one created", snap.Members)
	}
	if len(snap.Chores) != 1 {
		t.Errorf("chores = %d, want 1", len(snap.Chores))
	}
	// Empty collections must marshal as [], not null.
	if snap.Rewards == nil || snap.Todos == nil || snap.Events == nil || snap.Templates == nil || snap.RewardClaims == nil {
		t.Error("all snapshot slices must be non-nil")
	}
}
