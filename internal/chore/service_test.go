package chore

import (
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/calebmorris/choreboard/internal/database"
	"github.com/calebmorris/choreboard/internal/famerr"
	"github.com/calebmorris/choreboard/internal/model"
	"github.com/calebmorris/choreboard/internal/recurrence"
	"github.com/calebmorris/choreboard/internal/store"
)

// setupService uses a file-backed database so concurrent access exercises
// real connections instead of sharing one in-memory handle.
func setupService(t *testing.T) (*Service, *store.ChoreStore, *store.MemberStore) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.Default()
	chores := store.NewChoreStore(db)
	members := store.NewMemberStore(db)
	engine := recurrence.NewEngine(chores, logger)
	return NewService(chores, members, engine, logger), chores, members
}

func TestClaimLifecycleHappyPath(t *testing.T) {
	svc, _, members := setupService(t)

	child, _ := members.Create("Alice", model.RoleChild, "#fff", "mdi:account")
	parent, _ := members.Create("Mom", model.RoleParent, "#fff", "mdi:account")

	_, inst, err := svc.Add(model.ChoreTemplate{Name: "Make bed", Points: 10, Recurrence: model.RecurrenceNone}, nil)
	if err != nil {
		t.Fatalf("add chore: %v", err)
	}

	claimed, err := svc.Claim(inst.ID, child.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Status != model.StatusClaimed {
		t.Errorf("status = %q, want claimed", claimed.Status)
	}

	completed, err := svc.Complete(inst.ID, child.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != model.StatusAwaitingApproval {
		t.Errorf("status = %q, want awaiting_approval", completed.Status)
	}
	if completed.CompletedAt == nil {
		t.Error("completed_at should be set")
	}

	approved, err := svc.Approve(inst.ID, parent.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != model.StatusCompleted {
		t.Errorf("status = %q, want completed", approved.Status)
	}

	got, _ := members.GetByID(child.ID)
	if got.Points != 10 {
		t.Errorf("points = %d, want 10", got.Points)
	}
}

func TestConcurrentClaimExactlyOneWinner(t *testing.T) {
	svc, _, members := setupService(t)

	b, _ := members.Create("B", model.RoleChild, "#fff", "mdi:account")
	c, _ := members.Create("C", model.RoleChild, "#fff", "mdi:account")

	_, inst, err := svc.Add(model.ChoreTemplate{Name: "Dishes", Points: 5, Recurrence: model.RecurrenceNone}, nil)
	if err != nil {
		t.Fatalf("add chore: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, memberID := range []string{b.ID, c.ID} {
		wg.Add(1)
		go func(i int, memberID string) {
			defer wg.Done()
			_, results[i] = svc.Claim(inst.ID, memberID)
		}(i, memberID)
	}
	wg.Wait()

	wins, losses := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, famerr.ErrAlreadyClaimed):
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || losses != 1 {
		t.Errorf("wins = %d losses = %d, want exactly one of each", wins, losses)
	}
}

func TestClaimAssignedChoreForbidden(t *testing.T) {
	svc, chores, members := setupService(t)

	owner, _ := members.Create("Owner", model.RoleChild, "#fff", "mdi:account")
	other, _ := members.Create("Other", model.RoleChild, "#fff", "mdi:account")

	inst, _ := chores.CreateInstance(model.ChoreInstance{Name: "Piano", AssignedTo: &owner.ID})

	_, err := svc.Claim(inst.ID, other.ID)
	if !errors.Is(err, famerr.ErrForbidden) {
		t.Fatalf("err = %v, want Forbidden", err)
	}

	if _, err := svc.Claim(inst.ID, owner.ID); err != nil {
		t.Fatalf("assignee claim: %v", err)
	}
}

func TestApproveRequiresParent(t *testing.T) {
	svc, _, members := setupService(t)

	child, _ := members.Create("Kid", model.RoleChild, "#fff", "mdi:account")
	sibling, _ := members.Create("Sib", model.RoleChild, "#fff", "mdi:account")

	_, inst, _ := svc.Add(model.ChoreTemplate{Name: "Laundry", Points: 8, Recurrence: model.RecurrenceNone}, nil)
	svc.Claim(inst.ID, child.ID)
	svc.Complete(inst.ID, child.ID)

	_, err := svc.Approve(inst.ID, sibling.ID)
	if !errors.Is(err, famerr.ErrForbidden) {
		t.Fatalf("err = %v, want Forbidden", err)
	}
	_, err = svc.Approve(inst.ID, "nope")
	if !errors.Is(err, famerr.ErrNotFound) {
		t.Fatalf("err = %v, want NotFound", err)
	}
}

func TestCompleteOnlyByClaimant(t *testing.T) {
	svc, _, members := setupService(t)

	a, _ := members.Create("A", model.RoleChild, "#fff", "mdi:account")
	b, _ := members.Create("B", model.RoleChild, "#fff", "mdi:account")

	_, inst, _ := svc.Add(model.ChoreTemplate{Name: "Sweep", Points: 5, Recurrence: model.RecurrenceNone}, nil)
	svc.Claim(inst.ID, a.ID)

	_, err := svc.Complete(inst.ID, b.ID)
	if !errors.Is(err, famerr.ErrForbidden) {
		t.Fatalf("err = %v, want Forbidden", err)
	}

	// Completing a pending chore directly is an invalid transition.
	_, inst2, _ := svc.Add(model.ChoreTemplate{Name: "Mop", Points: 5, Recurrence: model.RecurrenceNone}, nil)
	_, err = svc.Complete(inst2.ID, a.ID)
	if !errors.Is(err, famerr.ErrInvalidState) {
		t.Fatalf("err = %v, want InvalidState", err)
	}
}

func TestRejectThenRetry(t *testing.T) {
	svc, _, members := setupService(t)

	child, _ := members.Create("Kid", model.RoleChild, "#fff", "mdi:account")
	parent, _ := members.Create("Dad", model.RoleParent, "#fff", "mdi:account")

	_, inst, _ := svc.Add(model.ChoreTemplate{Name: "Weed garden", Points: 12, Recurrence: model.RecurrenceNone}, nil)
	svc.Claim(inst.ID, child.ID)
	svc.Complete(inst.ID, child.ID)

	rejected, err := svc.Reject(inst.ID, parent.ID)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != model.StatusRejected {
		t.Errorf("status = %q, want rejected", rejected.Status)
	}

	// Only the original claimant can retry.
	_, err = svc.Retry(inst.ID, parent.ID)
	if !errors.Is(err, famerr.ErrForbidden) {
		t.Fatalf("err = %v, want Forbidden", err)
	}

	retried, err := svc.Retry(inst.ID, child.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.Status != model.StatusClaimed {
		t.Errorf("status = %q, want claimed", retried.Status)
	}
	if retried.Points != 12 {
		t.Errorf("points = %d, retry must preserve value", retried.Points)
	}
}

func TestAlwaysOnRespawnAfterApproval(t *testing.T) {
	svc, chores, members := setupService(t)

	child, _ := members.Create("Kid", model.RoleChild, "#fff", "mdi:account")
	parent, _ := members.Create("Mom", model.RoleParent, "#fff", "mdi:account")

	tmpl, inst, err := svc.Add(model.ChoreTemplate{
		Name:         "Empty dishwasher",
		Points:       5,
		Recurrence:   model.RecurrenceAlwaysOn,
		MaxInstances: 2,
	}, nil)
	if err != nil {
		t.Fatalf("add chore: %v", err)
	}

	svc.Claim(inst.ID, child.ID)
	svc.Complete(inst.ID, child.ID)
	if _, err := svc.Approve(inst.ID, parent.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// The approved instance is terminal, so a replacement spawns.
	n, err := chores.CountActiveInstances(tmpl.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("active = %d, want 1 replacement after approval", n)
	}
}

func TestReactivateTemplateRespectsCap(t *testing.T) {
	svc, _, members := setupService(t)

	parent, _ := members.Create("Mom", model.RoleParent, "#fff", "mdi:account")

	tmpl, _, err := svc.Add(model.ChoreTemplate{
		Name:         "Water plants",
		Points:       3,
		Recurrence:   model.RecurrenceAlwaysOn,
		MaxInstances: 2,
	}, nil)
	if err != nil {
		t.Fatalf("add chore: %v", err)
	}

	// One instance exists from Add; a second fits under the cap.
	if _, err := svc.ReactivateTemplate(tmpl.ID, parent.ID); err != nil {
		t.Fatalf("reactivate: %v", err)
	}

	_, err = svc.ReactivateTemplate(tmpl.ID, parent.ID)
	if !errors.Is(err, famerr.ErrInvalidState) {
		t.Fatalf("err = %v, want InvalidState at cap", err)
	}
}

func TestOverdueChoreCanBeReclaimedAndFinished(t *testing.T) {
	svc, chores, members := setupService(t)

	child, _ := members.Create("Alice", model.RoleChild, "#fff", "mdi:account")
	parent, _ := members.Create("Mom", model.RoleParent, "#fff", "mdi:account")

	past := "2020-01-01"
	_, inst, err := svc.Add(model.ChoreTemplate{Name: "Trash", Points: 5, Recurrence: model.RecurrenceNone}, &past)
	if err != nil {
		t.Fatalf("add chore: %v", err)
	}
	if _, err := svc.Claim(inst.ID, child.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}

	engine := recurrence.NewEngine(chores, slog.Default())
	if _, err := engine.Run(); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	got, _ := chores.GetInstance(inst.ID)
	if got.Status != model.StatusOverdue {
		t.Fatalf("status = %q, want overdue after sweep", got.Status)
	}

	// The overdue flip released the claimant, so the chore is claimable
	// again and can still run its full lifecycle.
	reclaimed, err := svc.Claim(inst.ID, child.ID)
	if err != nil {
		t.Fatalf("re-claim overdue chore: %v", err)
	}
	if reclaimed.Status != model.StatusClaimed {
		t.Errorf("status = %q, want claimed", reclaimed.Status)
	}

	if _, err := svc.Complete(inst.ID, child.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	approved, err := svc.Approve(inst.ID, parent.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != model.StatusCompleted {
		t.Errorf("status = %q, want completed", approved.Status)
	}

	m, _ := members.GetByID(child.ID)
	if m.Points != 5 {
		t.Errorf("points = %d, want 5", m.Points)
	}
}
