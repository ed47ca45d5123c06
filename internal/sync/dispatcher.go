package sync

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/calebmorris/choreboard/internal/chore"
	"github.com/calebmorris/choreboard/internal/famerr"
	"github.com/calebmorris/choreboard/internal/model"
	"github.com/calebmorris/choreboard/internal/points"
	"github.com/calebmorris/choreboard/internal/recurrence"
	"github.com/calebmorris/choreboard/internal/store"
)

// Dispatcher routes decoded commands to the services and stores. Every
// handler returns the operation result plus whether it mutated state; the
// client broadcasts a fresh snapshot after each mutation.
type Dispatcher struct {
	members   *store.MemberStore
	chores    *store.ChoreStore
	rewards   *store.RewardStore
	todos     *store.TodoStore
	events    *store.EventStore
	settings  *store.SettingsStore
	snapshots *store.SnapshotStore
	lifecycle *chore.Service
	ledger    *points.Ledger
	engine    *recurrence.Engine
	logger    *slog.Logger
}

type DispatcherDeps struct {
	Members   *store.MemberStore
	Chores    *store.ChoreStore
	Rewards   *store.RewardStore
	Todos     *store.TodoStore
	Events    *store.EventStore
	Settings  *store.SettingsStore
	Snapshots *store.SnapshotStore
	Lifecycle *chore.Service
	Ledger    *points.Ledger
	Engine    *recurrence.Engine
	Logger    *slog.Logger
}

func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	return &Dispatcher{
		members:   deps.Members,
		chores:    deps.Chores,
		rewards:   deps.Rewards,
		todos:     deps.Todos,
		events:    deps.Events,
		settings:  deps.Settings,
		snapshots: deps.Snapshots,
		lifecycle: deps.Lifecycle,
		ledger:    deps.Ledger,
		engine:    deps.Engine,
		logger:    deps.Logger,
	}
}

// Snapshot evaluates recurrence first so clients never see a stale chore
// set, then builds the full state in one read transaction.
func (d *Dispatcher) Snapshot() (*model.Snapshot, error) {
	if _, err := d.engine.Run(); err != nil {
		return nil, err
	}
	return d.snapshots.Build()
}

// Dispatch executes one named operation. The raw request is re-decoded
// into the operation's own parameter struct.
func (d *Dispatcher) Dispatch(msgType string, raw []byte) (result any, mutated bool, err error) {
	switch msgType {
	case "add_member":
		return d.addMember(raw)
	case "update_member":
		return d.updateMember(raw)
	case "remove_member":
		return d.removeMember(raw)
	case "add_points":
		return d.addPoints(raw)
	case "set_member_pin":
		return d.setMemberPIN(raw)
	case "verify_member_pin":
		return d.verifyMemberPIN(raw)

	case "add_chore":
		return d.addChore(raw)
	case "update_chore":
		return d.updateChore(raw)
	case "delete_chore":
		return d.deleteChore(raw)
	case "claim_chore":
		return d.choreTransition(raw, d.lifecycle.Claim)
	case "complete_chore":
		return d.choreTransition(raw, d.lifecycle.Complete)
	case "retry_chore":
		return d.choreTransition(raw, d.lifecycle.Retry)
	case "approve_chore":
		return d.choreApproval(raw, d.lifecycle.Approve)
	case "reject_chore":
		return d.choreApproval(raw, d.lifecycle.Reject)
	case "reactivate_template":
		return d.reactivateTemplate(raw)

	case "add_reward":
		return d.addReward(raw)
	case "update_reward":
		return d.updateReward(raw)
	case "delete_reward":
		return d.deleteReward(raw)
	case "claim_reward":
		return d.claimReward(raw)
	case "fulfill_reward_claim":
		return d.fulfillRewardClaim(raw)
	case "update_reward_claim":
		return d.updateRewardClaim(raw)
	case "delete_reward_claim":
		return d.deleteRewardClaim(raw)

	case "add_todo":
		return d.addTodo(raw)
	case "update_todo":
		return d.updateTodo(raw)
	case "complete_todo":
		return d.completeTodo(raw)
	case "delete_todo":
		return d.deleteTodo(raw)

	case "add_event":
		return d.addEvent(raw)
	case "update_event":
		return d.updateEvent(raw)
	case "delete_event":
		return d.deleteEvent(raw)

	case "update_settings":
		return d.updateSettings(raw)
	case "update_family_name":
		return d.updateFamilyName(raw)

	case "delete_all_chores":
		return d.deleteAllChores(raw)
	case "delete_all_rewards":
		return d.deleteAll(func() (int64, error) { return d.rewards.DeleteAll() })
	case "delete_all_reward_claims":
		return d.deleteAll(func() (int64, error) { return d.rewards.DeleteAllClaims() })
	case "delete_all_todos":
		return d.deleteAll(func() (int64, error) { return d.todos.DeleteAll() })
	case "delete_all_events":
		return d.deleteAll(func() (int64, error) { return d.events.DeleteAll() })
	case "delete_all_members":
		return d.deleteAll(func() (int64, error) { return d.members.DeleteAll() })
	case "clear_all_data":
		return d.clearAllData(raw)

	default:
		return nil, false, fmt.Errorf("unknown command %q: %w", msgType, famerr.ErrNotFound)
	}
}

// --- Members ---

func (d *Dispatcher) addMember(raw []byte) (any, bool, error) {
	params := struct {
		Name   string     `json:"name"`
		Role   model.Role `json:"role"`
		Color  string     `json:"color"`
		Avatar string     `json:"avatar"`
	}{Role: model.RoleChild, Color: "#4ECDC4", Avatar: "mdi:account"}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false, err
	}
	if !params.Role.Valid() {
		return nil, false, fmt.Errorf("role %q: %w", params.Role, famerr.ErrInvalidState)
	}
	member, err := d.members.Create(params.Name, params.Role, params.Color, params.Avatar)
	if err != nil {
		return nil, false, err
	}
	return member, true, nil
}

func (d *Dispatcher) updateMember(raw []byte) (any, bool, error) {
	params := struct {
		MemberID string      `json:"member_id"`
		Name     *string     `json:"name"`
		Role     *model.Role `json:"role"`
		Color    *string     `json:"color"`
		Avatar   *string     `json:"avatar"`
		Points   *int        `json:"points"`
	}{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false, err
	}
	member, err := d.members.GetByID(params.MemberID)
	if err != nil {
		return nil, false, err
	}
	if member == nil {
		return nil, false, famerr.NotFound("member", params.MemberID)
	}
	if params.Name != nil {
		member.Name = *params.Name
	}
	if params.Role != nil {
		member.Role = *params.Role
	}
	if params.Color != nil {
		member.Color = *params.Color
	}
	if params.Avatar != nil {
		member.Avatar = *params.Avatar
	}
	member, err = d.members.Update(member.ID, member.Name, member.Role, member.Color, member.Avatar)
	if err != nil {
		return nil, false, err
	}
	// A direct points set is a manual adjustment and goes through the
	// ledger so balance and entries stay reconciled.
	if params.Points != nil {
		if _, err := d.ledger.SetPoints(member.ID, *params.Points); err != nil {
			return nil, false, err
		}
		member, err = d.members.GetByID(member.ID)
		if err != nil {
			return nil, false, err
		}
	}
	return member, true, nil
}

func (d *Dispatcher) removeMember(raw []byte) (any, bool, error) {
	params := struct {
		MemberID string `json:"member_id"`
	}{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false, err
	}
	if err := d.members.Delete(params.MemberID); err != nil {
		return nil, false, err
	}
	return map[string]any{"success": true}, true, nil
}

func (d *Dispatcher) addPoints(raw []byte) (any, bool, error) {
	params := struct {
		MemberID string `json:"member_id"`
		Points   int    `json:"points"`
	}{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false, err
	}
	balance, err := d.ledger.AddPoints(params.MemberID, params.Points)
	if err != nil {
		return nil, false, err
	}
	return map[string]any{"member_id": params.MemberID, "points": balance}, true, nil
}

func (d *Dispatcher) setMemberPIN(raw []byte) (any, bool, error) {
	params := struct {
		MemberID string `json:"member_id"`
		PIN      string `json:"pin"`
	}{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false, err
	}
	member, err := d.members.GetByID(params.MemberID)
	if err != nil {
		return nil, false, err
	}
	if member == nil {
		return nil, false, famerr.NotFound("member", params.MemberID)
	}
	if params.PIN == "" {
		if err := d.members.ClearPIN(params.MemberID); err != nil {
			return nil, false, err
		}
		return map[string]any{"success": true}, true, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(params.PIN), bcrypt.DefaultCost)
	if err != nil {
		return nil, false, fmt.Errorf("hash pin: %w", err)
	}
	if err := d.members.SetPIN(params.MemberID, string(hash)); err != nil {
		return nil, false, err
	}
	return map[string]any{"success": true}, true, nil
}

func (d *Dispatcher) verifyMemberPIN(raw []byte) (any, bool, error) {
	params := struct {
		MemberID string `json:"member_id"`
		PIN      string `json:"pin"`
	}{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false, err
	}
	hash, err := d.members.GetPINHash(params.MemberID)
	if err != nil {
		return nil, false, err
	}
	valid := hash != "" && bcrypt.CompareHashAndPassword([]byte(hash), []byte(params.PIN)) == nil
	return map[string]any{"valid": valid}, false, nil
}

// --- Chores ---

func (d *Dispatcher) addChore(raw []byte) (any, bool, error) {
	params := struct {
		Name           string           `json:"name"`
		Description    string           `json:"description"`
		Points         *int             `json:"points"`
		NegativePoints int              `json:"negative_points"`
		AssignedTo     *string          `json:"assigned_to"`
		Recurrence     model.Recurrence `json:"recurrence"`
		DueDate        *string          `json:"due_date"`
		DueTime        *string          `json:"due_time"`
		Icon           string           `json:"icon"`
		MaxInstances   int              `json:"max_instances"`
	}{Recurrence: model.RecurrenceNone, Icon: "mdi:broom"}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false, err
	}
	pts := 10
	if params.Points != nil {
		pts = *params.Points
	}
	tmpl := model.ChoreTemplate{
		Name:           params.Name,
		Description:    params.Description,
		Points:         pts,
		NegativePoints: params.NegativePoints,
		Recurrence:     params.Recurrence,
		MaxInstances:   params.MaxInstances,
		AssignedTo:     params.AssignedTo,
		DueTime:        params.DueTime,
		Icon:           params.Icon,
	}
	created, inst, err := d.lifecycle.Add(tmpl, params.DueDate)
	if err != nil {
		return nil, false, err
	}
	if created != nil {
		return created, true, nil
	}
	return inst, true, nil
}

func (d *Dispatcher) updateChore(raw []byte) (any, bool, error) {
	params := struct {
		ChoreID        string  `json:"chore_id"`
		Name           *string `json:"name"`
		Description    *string `json:"description"`
		Points         *int    `json:"points"`
		NegativePoints *int    `json:"negative_points"`
		AssignedTo     *string `json:"assigned_to"`
		DueDate        *string `json:"due_date"`
		DueTime        *string `json:"due_time"`
		Icon           *string `json:"icon"`
		MaxInstances   *int    `json:"max_instances"`
	}{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false, err
	}

	// The id may name either side of the template/instance split.
	inst, err := d.chores.GetInstance(params.ChoreID)
	if err != nil {
		return nil, false, err
	}
	if inst != nil {
		if params.Name != nil {
			inst.Name = *params.Name
		}
		if params.Description != nil {
			inst.Description = *params.Description
		}
		if params.Points != nil {
			inst.Points = *params.Points
		}
		if params.NegativePoints != nil {
			inst.NegativePoints = *params.NegativePoints
		}
		if params.AssignedTo != nil {
			inst.AssignedTo = params.AssignedTo
		}
		if params.DueDate != nil {
			inst.DueDate = params.DueDate
		}
		if params.DueTime != nil {
			inst.DueTime = params.DueTime
		}
		if params.Icon != nil {
			inst.Icon = *params.Icon
		}
		updated, err := d.chores.UpdateInstance(*inst)
		if err != nil {
			return nil, false, err
		}
		return updated, true, nil
	}

	tmpl, err := d.chores.GetTemplate(params.ChoreID)
	if err != nil {
		return nil, false, err
	}
	if tmpl == nil {
		return nil, false, famerr.NotFound("chore", params.ChoreID)
	}
	if params.Name != nil {
		tmpl.Name = *params.Name
	}
	if params.Description != nil {
		tmpl.Description = *params.Description
	}
	if params.Points != nil {
		tmpl.Points = *params.Points
	}
	if params.NegativePoints != nil {
		tmpl.NegativePoints = *params.NegativePoints
	}
	if params.AssignedTo != nil {
		tmpl.AssignedTo = params.AssignedTo
	}
	if params.DueTime != nil {
		tmpl.DueTime = params.DueTime
	}
	if params.Icon != nil {
		tmpl.Icon = *params.Icon
	}
	if params.MaxInstances != nil {
		tmpl.MaxInstances = *params.MaxInstances
	}
	updated, err := d.chores.UpdateTemplate(*tmpl)
	if err != nil {
		return nil, false, err
	}
	return updated, true, nil
}

func (d *Dispatcher) deleteChore(raw []byte) (any, bool, error) {
	params := struct {
		ChoreID string `json:"chore_id"`
	}{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false, err
	}
	inst, err := d.chores.GetInstance(params.ChoreID)
	if err != nil {
		return nil, false, err
	}
	if inst != nil {
		if err := d.chores.DeleteInstance(params.ChoreID); err != nil {
			return nil, false, err
		}
		return map[string]any{"success": true}, true, nil
	}
	tmpl, err := d.chores.GetTemplate(params.ChoreID)
	if err != nil {
		return nil, false, err
	}
	if tmpl == nil {
		return nil, false, famerr.NotFound("chore", params.ChoreID)
	}
	if err := d.chores.DeleteTemplate(params.ChoreID); err != nil {
		return nil, false, err
	}
	return map[string]any{"success": true}, true, nil
}

func (d *Dispatcher) choreTransition(raw []byte, transition func(choreID, memberID string) (*model.ChoreInstance, error)) (any, bool, error) {
	params := struct {
		ChoreID  string `json:"chore_id"`
		MemberID string `json:"member_id"`
	}{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false, err
	}
	inst, err := transition(params.ChoreID, params.MemberID)
	if err != nil {
		return nil, false, err
	}
	return inst, true, nil
}

func (d *Dispatcher) choreApproval(raw []byte, judge func(choreID, approverID string) (*model.ChoreInstance, error)) (any, bool, error) {
	params := struct {
		ChoreID    string `json:"chore_id"`
		ApproverID string `json:"approver_id"`
	}{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false, err
	}
	inst, err := judge(params.ChoreID, params.ApproverID)
	if err != nil {
		return nil, false, err
	}
	return inst, true, nil
}

func (d *Dispatcher) reactivateTemplate(raw []byte) (any, bool, error) {
	params := struct {
		TemplateID string `json:"template_id"`
		ApproverID string `json:"approver_id"`
	}{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false, err
	}
	inst, err := d.lifecycle.ReactivateTemplate(params.TemplateID, params.ApproverID)
	if err != nil {
		return nil, false, err
	}
	return inst, true, nil
}

// --- Rewards ---

func (d *Dispatcher) addReward(raw []byte) (any, bool, error) {
	params := struct {
		Name        string  `json:"name"`
		Description string  `json:"description"`
		PointsCost  *int    `json:"points_cost"`
		Icon        string  `json:"icon"`
		ImageURL    *string `json:"image_url"`
		Quantity    *int    `json:"quantity"`
	}{Icon: "mdi:gift"}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false, err
	}
	cost := 50
	if params.PointsCost != nil {
		cost = *params.PointsCost
	}
	quantity := model.UnlimitedQuantity
	if params.Quantity != nil {
		quantity = *params.Quantity
	}
	reward, err := d.rewards.Create(model.Reward{
		Name:        params.Name,
		Description: params.Description,
		PointsCost:  cost,
		Icon:        params.Icon,
		ImageURL:    params.ImageURL,
		Quantity:    quantity,
	})
	if err != nil {
		return nil, false, err
	}
	return reward, true, nil
}

func (d *Dispatcher) updateReward(raw []byte) (any, bool, error) {
	params := struct {
		RewardID    string  `json:"reward_id"`
		Name        *string `json:"name"`
		Description *string `json:"description"`
		PointsCost  *int    `json:"points_cost"`
		Icon        *string `json:"icon"`
		ImageURL    *string `json:"image_url"`
		Quantity    *int    `json:"quantity"`
	}{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false, err
	}
	reward, err := d.rewards.GetByID(params.RewardID)
	if err != nil {
		return nil, false, err
	}
	if reward == nil {
		return nil, false, famerr.NotFound("reward", params.RewardID)
	}
	if params.Name != nil {
		reward.Name = *params.Name
	}
	if params.Description != nil {
		reward.Description = *params.Description
	}
	if params.PointsCost != nil {
		reward.PointsCost = *params.PointsCost
	}
	if params.Icon != nil {
		reward.Icon = *params.Icon
	}
	if params.ImageURL != nil {
		reward.ImageURL = params.ImageURL
	}
	if params.Quantity != nil {
		reward.Quantity = *params.Quantity
	}
	updated, err := d.rewards.Update(*reward)
	if err != nil {
		return nil, false, err
	}
	return updated, true, nil
}

func (d *Dispatcher) deleteReward(raw []byte) (any, bool, error) {
	params := struct {
		RewardID string `json:"reward_id"`
	}{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false, err
	}
	if err := d.rewards.Delete(params.RewardID); err != nil {
		return nil, false, err
	}
	return map[string]any{"success": true}, true, nil
}

func (d *Dispatcher) claimReward(raw []byte) (any, bool, error) {
	params := struct {
		RewardID string `json:"reward_id"`
		MemberID string `json:"member_id"`
	}{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false, err
	}
	claim, err := d.ledger.ClaimReward(params.RewardID, params.MemberID)
	if err != nil {
		return nil, false, err
	}
	return claim, true, nil
}

func (d *Dispatcher) fulfillRewardClaim(raw []byte) (any, bool, error) {
	params := struct {
		ClaimID     string `json:"claim_id"`
		FulfillerID string `json:"fulfiller_id"`
	}{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false, err
	}
	claim, err := d.ledger.FulfillClaim(params.ClaimID, params.FulfillerID)
	if err != nil {
		return nil, false, err
	}
	return claim, true, nil
}

func (d *Dispatcher) updateRewardClaim(raw []byte) (any, bool, error) {
	params := struct {
		ClaimID string             `json:"claim_id"`
		Status  *model.ClaimStatus `json:"status"`
	}{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false, err
	}
	claim, err := d.rewards.GetClaim(params.ClaimID)
	if err != nil {
		return nil, false, err
	}
	if claim == nil {
		return nil, false, famerr.NotFound("claim", params.ClaimID)
	}
	if params.Status != nil {
		claim.Status = *params.Status
	}
	updated, err := d.rewards.UpdateClaim(*claim)
	if err != nil {
		return nil, false, err
	}
	return updated, true, nil
}

func (d *Dispatcher) deleteRewardClaim(raw []byte) (any, bool, error) {
	params := struct {
		ClaimID string `json:"claim_id"`
	}{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false, err
	}
	if err := d.rewards.DeleteClaim(params.ClaimID); err != nil {
		return nil, false, err
	}
	return map[string]any{"success": true}, true, nil
}
