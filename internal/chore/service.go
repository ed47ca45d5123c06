// Package chore implements the chore lifecycle: who may move an instance
// between states, and what each transition triggers. Status changes
// themselves are compare-and-set updates in the store; this layer adds the
// role and identity checks and the always-on respawn hook.
package chore

import (
	"fmt"
	"log/slog"

	"github.com/calebmorris/choreboard/internal/famerr"
	"github.com/calebmorris/choreboard/internal/model"
	"github.com/calebmorris/choreboard/internal/recurrence"
	"github.com/calebmorris/choreboard/internal/store"
)

type Service struct {
	chores  *store.ChoreStore
	members *store.MemberStore
	engine  *recurrence.Engine
	logger  *slog.Logger
}

func NewService(chores *store.ChoreStore, members *store.MemberStore, engine *recurrence.Engine, logger *slog.Logger) *Service {
	return &Service{chores: chores, members: members, engine: engine, logger: logger}
}

// Add creates a chore. A recurring definition becomes a template plus its
// first instance; a one-off (recurrence "none") becomes a bare instance
// with the caller's due date and no template behind it.
func (s *Service) Add(tmpl model.ChoreTemplate, dueDate *string) (*model.ChoreTemplate, *model.ChoreInstance, error) {
	if !tmpl.Recurrence.Valid() {
		return nil, nil, fmt.Errorf("recurrence %q: %w", tmpl.Recurrence, famerr.ErrInvalidState)
	}

	if tmpl.Recurrence == model.RecurrenceNone {
		inst, err := s.chores.CreateInstance(model.ChoreInstance{
			Name:           tmpl.Name,
			Description:    tmpl.Description,
			Points:         tmpl.Points,
			NegativePoints: tmpl.NegativePoints,
			AssignedTo:     tmpl.AssignedTo,
			Status:         model.StatusPending,
			DueDate:        dueDate,
			DueTime:        tmpl.DueTime,
			Icon:           tmpl.Icon,
		})
		if err != nil {
			return nil, nil, err
		}
		s.logger.Info("chore added", "chore_id", inst.ID, "name", inst.Name)
		return nil, inst, nil
	}

	created, err := s.chores.CreateTemplate(tmpl)
	if err != nil {
		return nil, nil, err
	}
	inst, err := s.engine.Spawn(*created)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("chore template added", "template_id", created.ID, "name", created.Name, "recurrence", created.Recurrence)
	return created, inst, nil
}

// Claim assigns a pending or overdue chore to a member. A chore assigned
// to a specific member can only be claimed by them. Exactly one of two
// racing claimants wins; the loser gets ErrAlreadyClaimed.
func (s *Service) Claim(choreID, memberID string) (*model.ChoreInstance, error) {
	inst, err := s.chores.GetInstance(choreID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, famerr.NotFound("chore", choreID)
	}
	member, err := s.members.GetByID(memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, famerr.NotFound("member", memberID)
	}
	if inst.AssignedTo != nil && *inst.AssignedTo != memberID {
		return nil, famerr.Forbidden("chore is assigned to another member")
	}
	switch inst.Status {
	case model.StatusPending, model.StatusOverdue:
	case model.StatusClaimed:
		return nil, fmt.Errorf("chore %q: %w", choreID, famerr.ErrAlreadyClaimed)
	default:
		return nil, famerr.InvalidState(string(inst.Status))
	}

	won, err := s.chores.Claim(choreID, memberID)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, fmt.Errorf("chore %q: %w", choreID, famerr.ErrAlreadyClaimed)
	}

	s.logger.Info("chore claimed", "chore_id", choreID, "member_id", memberID)
	return s.chores.GetInstance(choreID)
}

// Complete marks a claimed chore as done by its claimant, moving it to
// awaiting_approval for parent review.
func (s *Service) Complete(choreID, memberID string) (*model.ChoreInstance, error) {
	inst, err := s.chores.GetInstance(choreID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, famerr.NotFound("chore", choreID)
	}
	if inst.Status != model.StatusClaimed {
		return nil, famerr.InvalidState(string(inst.Status))
	}
	if inst.ClaimedBy == nil || *inst.ClaimedBy != memberID {
		return nil, famerr.Forbidden("only the claimant can complete a chore")
	}

	moved, err := s.chores.MarkAwaitingApproval(choreID, memberID)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, famerr.InvalidState(string(inst.Status))
	}

	s.logger.Info("chore completed", "chore_id", choreID, "member_id", memberID)
	return s.chores.GetInstance(choreID)
}

// Approve finishes a chore awaiting review and credits the claimant's
// points, atomically. Parent only. An always-on template gets a fresh
// instance afterwards so the chore stays available.
func (s *Service) Approve(choreID, approverID string) (*model.ChoreInstance, error) {
	if err := s.requireParent(approverID); err != nil {
		return nil, err
	}
	inst, err := s.chores.GetInstance(choreID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, famerr.NotFound("chore", choreID)
	}
	if inst.Status != model.StatusAwaitingApproval {
		return nil, famerr.InvalidState(string(inst.Status))
	}

	approved, err := s.chores.ApproveAndCredit(choreID, approverID)
	if err != nil {
		return nil, err
	}
	if !approved {
		return nil, famerr.InvalidState(string(inst.Status))
	}
	s.logger.Info("chore approved", "chore_id", choreID, "approver_id", approverID, "points", inst.Points)

	if inst.TemplateID != nil {
		if err := s.engine.RespawnAlwaysOn(*inst.TemplateID); err != nil {
			return nil, err
		}
	}
	return s.chores.GetInstance(choreID)
}

// Reject sends a chore awaiting review back as rejected. Parent only. No
// points move; the claimant can retry. Always-on templates respawn here
// too, since the rejected instance may sit idle indefinitely.
func (s *Service) Reject(choreID, approverID string) (*model.ChoreInstance, error) {
	if err := s.requireParent(approverID); err != nil {
		return nil, err
	}
	inst, err := s.chores.GetInstance(choreID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, famerr.NotFound("chore", choreID)
	}
	if inst.Status != model.StatusAwaitingApproval {
		return nil, famerr.InvalidState(string(inst.Status))
	}

	rejected, err := s.chores.Reject(choreID, approverID)
	if err != nil {
		return nil, err
	}
	if !rejected {
		return nil, famerr.InvalidState(string(inst.Status))
	}
	s.logger.Info("chore rejected", "chore_id", choreID, "approver_id", approverID)

	if inst.TemplateID != nil {
		if err := s.engine.RespawnAlwaysOn(*inst.TemplateID); err != nil {
			return nil, err
		}
	}
	return s.chores.GetInstance(choreID)
}

// Retry puts a rejected chore back in the claimant's hands so they can
// redo it and resubmit.
func (s *Service) Retry(choreID, memberID string) (*model.ChoreInstance, error) {
	inst, err := s.chores.GetInstance(choreID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, famerr.NotFound("chore", choreID)
	}
	if inst.Status != model.StatusRejected {
		return nil, famerr.InvalidState(string(inst.Status))
	}
	if inst.ClaimedBy == nil || *inst.ClaimedBy != memberID {
		return nil, famerr.Forbidden("only the original claimant can retry a chore")
	}

	moved, err := s.chores.Retry(choreID, memberID)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, famerr.InvalidState(string(inst.Status))
	}

	s.logger.Info("chore retried", "chore_id", choreID, "member_id", memberID)
	return s.chores.GetInstance(choreID)
}

// ReactivateTemplate spawns a fresh instance from a template on demand.
// Parent only, and the max_instances cap still applies.
func (s *Service) ReactivateTemplate(templateID, requesterID string) (*model.ChoreInstance, error) {
	if err := s.requireParent(requesterID); err != nil {
		return nil, err
	}
	tmpl, err := s.chores.GetTemplate(templateID)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return nil, famerr.NotFound("template", templateID)
	}

	inst, err := s.engine.SpawnIfBelowCap(*tmpl)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, fmt.Errorf("template %q already has %d active instances: %w", templateID, tmpl.MaxInstances, famerr.ErrInvalidState)
	}

	s.logger.Info("template reactivated", "template_id", templateID, "chore_id", inst.ID)
	return inst, nil
}

func (s *Service) requireParent(memberID string) error {
	role, err := s.members.Role(memberID)
	if err != nil {
		return err
	}
	if role == "" {
		return famerr.NotFound("member", memberID)
	}
	if role != model.RoleParent {
		return famerr.Forbidden("parent role required")
	}
	return nil
}
