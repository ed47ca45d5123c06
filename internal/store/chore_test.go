package store

import (
	"testing"

	"github.com/calebmorris/choreboard/internal/database"
	"github.com/calebmorris/choreboard/internal/model"
)

func setupTestDB(t *testing.T) (*ChoreStore, *MemberStore, *RewardStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewChoreStore(db), NewMemberStore(db), NewRewardStore(db)
}

func strPtr(s string) *string { return &s }

func TestTemplateCRUD(t *testing.T) {
	cs, _, _ := setupTestDB(t)

	tmpl, err := cs.CreateTemplate(model.ChoreTemplate{
		Name:       "Feed dog",
		Points:     5,
		Recurrence: model.RecurrenceDaily,
	})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	if tmpl.ID == "" {
		t.Fatal("expected generated id")
	}
	if tmpl.MaxInstances != model.DefaultMaxInstances {
		t.Errorf("max_instances = %d, want default %d", tmpl.MaxInstances, model.DefaultMaxInstances)
	}

	tmpl.Points = 10
	updated, err := cs.UpdateTemplate(*tmpl)
	if err != nil {
		t.Fatalf("update template: %v", err)
	}
	if updated.Points != 10 {
		t.Errorf("points = %d, want 10", updated.Points)
	}

	if err := cs.DeleteTemplate(tmpl.ID); err != nil {
		t.Fatalf("delete template: %v", err)
	}
	got, err := cs.GetTemplate(tmpl.ID)
	if err != nil {
		t.Fatalf("get deleted template: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestDeleteTemplateOrphansInstances(t *testing.T) {
	cs, _, _ := setupTestDB(t)

	tmpl, err := cs.CreateTemplate(model.ChoreTemplate{Name: "Dishes", Recurrence: model.RecurrenceAlwaysOn})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	inst, err := cs.CreateInstance(model.ChoreInstance{TemplateID: &tmpl.ID, Name: "Dishes"})
	if err != nil {
		t.Fatalf("create instance: %v", err)
	}

	if err := cs.DeleteTemplate(tmpl.ID); err != nil {
		t.Fatalf("delete template: %v", err)
	}

	got, err := cs.GetInstance(inst.ID)
	if err != nil {
		t.Fatalf("get instance: %v", err)
	}
	if got == nil {
		t.Fatal("instance should survive template deletion")
	}
	if got.TemplateID != nil {
		t.Errorf("template_id = %v, want nil", *got.TemplateID)
	}
}

func TestClaimCompareAndSet(t *testing.T) {
	cs, ms, _ := setupTestDB(t)

	member, err := ms.Create("Alice", model.RoleChild, "#fff", "mdi:account")
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	inst, err := cs.CreateInstance(model.ChoreInstance{Name: "Make bed", Points: 10})
	if err != nil {
		t.Fatalf("create instance: %v", err)
	}

	won, err := cs.Claim(inst.ID, member.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !won {
		t.Fatal("first claim should win")
	}

	won, err = cs.Claim(inst.ID, member.ID)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if won {
		t.Error("second claim should lose the CAS")
	}

	got, _ := cs.GetInstance(inst.ID)
	if got.Status != model.StatusClaimed {
		t.Errorf("status = %q, want claimed", got.Status)
	}
	if got.ClaimedBy == nil || *got.ClaimedBy != member.ID {
		t.Errorf("claimed_by = %v, want %s", got.ClaimedBy, member.ID)
	}
}

func TestApproveAndCreditExactlyOnce(t *testing.T) {
	cs, ms, _ := setupTestDB(t)

	child, _ := ms.Create("Bob", model.RoleChild, "#fff", "mdi:account")
	parent, _ := ms.Create("Mom", model.RoleParent, "#fff", "mdi:account")

	inst, err := cs.CreateInstance(model.ChoreInstance{Name: "Vacuum", Points: 15})
	if err != nil {
		t.Fatalf("create instance: %v", err)
	}
	if _, err := cs.Claim(inst.ID, child.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := cs.MarkAwaitingApproval(inst.ID, child.ID); err != nil {
		t.Fatalf("mark awaiting: %v", err)
	}

	approved, err := cs.ApproveAndCredit(inst.ID, parent.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !approved {
		t.Fatal("approve should win")
	}

	// A second approval must lose the CAS and not credit again.
	approved, err = cs.ApproveAndCredit(inst.ID, parent.ID)
	if err != nil {
		t.Fatalf("re-approve: %v", err)
	}
	if approved {
		t.Error("re-approval should be a no-op")
	}

	got, _ := ms.GetByID(child.ID)
	if got.Points != 15 {
		t.Errorf("points = %d, want 15", got.Points)
	}
}

func TestRetryPreservesValue(t *testing.T) {
	cs, ms, _ := setupTestDB(t)

	child, _ := ms.Create("Cal", model.RoleChild, "#fff", "mdi:account")
	parent, _ := ms.Create("Dad", model.RoleParent, "#fff", "mdi:account")

	inst, _ := cs.CreateInstance(model.ChoreInstance{Name: "Trash", Points: 7})
	cs.Claim(inst.ID, child.ID)
	cs.MarkAwaitingApproval(inst.ID, child.ID)

	rejected, err := cs.Reject(inst.ID, parent.ID)
	if err != nil || !rejected {
		t.Fatalf("reject: won=%v err=%v", rejected, err)
	}

	moved, err := cs.Retry(inst.ID, child.ID)
	if err != nil || !moved {
		t.Fatalf("retry: won=%v err=%v", moved, err)
	}

	got, _ := cs.GetInstance(inst.ID)
	if got.Status != model.StatusClaimed {
		t.Errorf("status = %q, want claimed", got.Status)
	}
	if got.CompletedAt != nil {
		t.Error("completed_at should be cleared on retry")
	}

	cs.MarkAwaitingApproval(inst.ID, child.ID)
	if won, err := cs.ApproveAndCredit(inst.ID, parent.ID); err != nil || !won {
		t.Fatalf("approve after retry: won=%v err=%v", won, err)
	}
	member, _ := ms.GetByID(child.ID)
	if member.Points != 7 {
		t.Errorf("points = %d, want original 7", member.Points)
	}
}

func TestOverduePenaltyClampedAndAppliedOnce(t *testing.T) {
	cs, ms, _ := setupTestDB(t)

	child, _ := ms.Create("Dee", model.RoleChild, "#fff", "mdi:account")

	inst, _ := cs.CreateInstance(model.ChoreInstance{
		Name:           "Homework",
		Points:         10,
		NegativePoints: 5,
		AssignedTo:     &child.ID,
		DueDate:        strPtr("2020-01-01"),
	})

	// Balance 3 < penalty 5: deduction clamps to 3, floor at zero.
	if _, err := cs.db.Exec(`UPDATE members SET points = 3 WHERE id = ?`, child.ID); err != nil {
		t.Fatalf("seed balance: %v", err)
	}
	if _, err := cs.db.Exec(`INSERT INTO point_entries (member_id, delta, reason) VALUES (?, 3, 'adjustment')`, child.ID); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}

	flipped, err := cs.MarkOverdueAndPenalize(inst.ID)
	if err != nil || !flipped {
		t.Fatalf("mark overdue: flipped=%v err=%v", flipped, err)
	}

	member, _ := ms.GetByID(child.ID)
	if member.Points != 0 {
		t.Errorf("points = %d, want 0 (floored)", member.Points)
	}

	got, _ := cs.GetInstance(inst.ID)
	if got.Status != model.StatusOverdue {
		t.Errorf("status = %q, want overdue", got.Status)
	}
	if !got.OverdueApplied {
		t.Error("overdue_applied latch should be set")
	}

	// Second call must lose the status CAS and leave the balance alone.
	flipped, err = cs.MarkOverdueAndPenalize(inst.ID)
	if err != nil {
		t.Fatalf("second mark overdue: %v", err)
	}
	if flipped {
		t.Error("second overdue flip should be a no-op")
	}
	member, _ = ms.GetByID(child.ID)
	if member.Points != 0 {
		t.Errorf("points = %d after re-flip, want 0", member.Points)
	}
}

func TestCountActiveInstances(t *testing.T) {
	cs, _, _ := setupTestDB(t)

	tmpl, _ := cs.CreateTemplate(model.ChoreTemplate{Name: "Sweep", Recurrence: model.RecurrenceDaily})

	for i := 0; i < 2; i++ {
		if _, err := cs.CreateInstance(model.ChoreInstance{TemplateID: &tmpl.ID, Name: "Sweep"}); err != nil {
			t.Fatalf("create instance: %v", err)
		}
	}
	done, _ := cs.CreateInstance(model.ChoreInstance{TemplateID: &tmpl.ID, Name: "Sweep", Status: model.StatusCompleted})
	_ = done

	n, err := cs.CountActiveInstances(tmpl.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("active = %d, want 2 (completed excluded)", n)
	}
}

func TestLatestInstanceCreation(t *testing.T) {
	cs, _, _ := setupTestDB(t)

	tmpl, _ := cs.CreateTemplate(model.ChoreTemplate{Name: "Sweep", Recurrence: model.RecurrenceDaily})

	latest, err := cs.LatestInstanceCreation(tmpl.ID)
	if err != nil {
		t.Fatalf("no instances: %v", err)
	}
	if latest != nil {
		t.Errorf("latest = %v, want nil with no instances", latest)
	}

	if _, err := cs.CreateInstance(model.ChoreInstance{Name: "Sweep", TemplateID: &tmpl.ID}); err != nil {
		t.Fatalf("create instance: %v", err)
	}

	latest, err = cs.LatestInstanceCreation(tmpl.ID)
	if err != nil {
		t.Fatalf("with instance: %v", err)
	}
	if latest == nil || latest.IsZero() {
		t.Errorf("latest = %v, want the instance's creation time", latest)
	}
}

func TestOverdueFlipReleasesClaimant(t *testing.T) {
	cs, ms, _ := setupTestDB(t)

	child, _ := ms.Create("Eve", model.RoleChild, "#fff", "mdi:account")
	inst, _ := cs.CreateInstance(model.ChoreInstance{Name: "Laundry"})
	if ok, err := cs.Claim(inst.ID, child.ID); err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}

	flipped, err := cs.MarkOverdueAndPenalize(inst.ID)
	if err != nil || !flipped {
		t.Fatalf("mark overdue: flipped=%v err=%v", flipped, err)
	}

	got, _ := cs.GetInstance(inst.ID)
	if got.Status != model.StatusOverdue {
		t.Errorf("status = %q, want overdue", got.Status)
	}
	if got.ClaimedBy != nil {
		t.Errorf("claimed_by = %v, want released", got.ClaimedBy)
	}

	// Released means claimable again.
	if ok, err := cs.Claim(inst.ID, child.ID); err != nil || !ok {
		t.Fatalf("re-claim: ok=%v err=%v", ok, err)
	}
}
