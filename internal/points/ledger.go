// Package points owns the family economy: member balances, the audit
// ledger behind them, and reward redemption. Every balance change writes a
// ledger entry in the same transaction, so the stored balance and the sum
// of entries never drift apart.
package points

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/calebmorris/choreboard/internal/famerr"
	"github.com/calebmorris/choreboard/internal/model"
	"github.com/calebmorris/choreboard/internal/store"
)

type Ledger struct {
	db      *sql.DB
	rewards *store.RewardStore
	logger  *slog.Logger
}

func NewLedger(db *sql.DB, rewards *store.RewardStore, logger *slog.Logger) *Ledger {
	return &Ledger{db: db, rewards: rewards, logger: logger}
}

// AddPoints applies a manual parent adjustment of delta points and returns
// the new balance. The adjustment is recorded distinguishably for audit.
func (l *Ledger) AddPoints(memberID string, delta int) (int, error) {
	tx, err := l.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var balance int
	err = tx.QueryRow(`SELECT points FROM members WHERE id = ?`, memberID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, famerr.NotFound("member", memberID)
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}

	if delta != 0 {
		if _, err := tx.Exec(`UPDATE members SET points = points + ? WHERE id = ?`, delta, memberID); err != nil {
			return 0, fmt.Errorf("adjust balance: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO point_entries (member_id, delta, reason) VALUES (?, ?, ?)`,
			memberID, delta, model.ReasonAdjustment,
		); err != nil {
			return 0, fmt.Errorf("insert adjustment entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit adjustment: %w", err)
	}
	return balance + delta, nil
}

// SetPoints pins a member's balance to an absolute value, recording the
// difference as a manual adjustment.
func (l *Ledger) SetPoints(memberID string, points int) (int, error) {
	tx, err := l.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var balance int
	err = tx.QueryRow(`SELECT points FROM members WHERE id = ?`, memberID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, famerr.NotFound("member", memberID)
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}

	delta := points - balance
	if delta != 0 {
		if _, err := tx.Exec(`UPDATE members SET points = ? WHERE id = ?`, points, memberID); err != nil {
			return 0, fmt.Errorf("set balance: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO point_entries (member_id, delta, reason) VALUES (?, ?, ?)`,
			memberID, delta, model.ReasonAdjustment,
		); err != nil {
			return 0, fmt.Errorf("insert adjustment entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit adjustment: %w", err)
	}
	return points, nil
}

// Balance returns the member's authoritative stored balance.
func (l *Ledger) Balance(memberID string) (int, error) {
	var balance int
	err := l.db.QueryRow(`SELECT points FROM members WHERE id = ?`, memberID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, famerr.NotFound("member", memberID)
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return balance, nil
}

// Entries returns the member's audit ledger, oldest first.
func (l *Ledger) Entries(memberID string) ([]model.PointEntry, error) {
	rows, err := l.db.Query(
		`SELECT id, member_id, delta, reason, ref_id, created_at FROM point_entries WHERE member_id = ? ORDER BY id ASC`,
		memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []model.PointEntry
	for rows.Next() {
		var e model.PointEntry
		var refID sql.NullString
		if err := rows.Scan(&e.ID, &e.MemberID, &e.Delta, &e.Reason, &refID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if refID.Valid {
			e.RefID = &refID.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Reconcile checks the global invariant: the stored balance must equal the
// sum of ledger deltas. It returns both values for auditing.
func (l *Ledger) Reconcile(memberID string) (balance, ledgerSum int, err error) {
	err = l.db.QueryRow(`SELECT points FROM members WHERE id = ?`, memberID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, 0, famerr.NotFound("member", memberID)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("read balance: %w", err)
	}

	err = l.db.QueryRow(
		`SELECT COALESCE(SUM(delta), 0) FROM point_entries WHERE member_id = ?`, memberID,
	).Scan(&ledgerSum)
	if err != nil {
		return 0, 0, fmt.Errorf("sum ledger: %w", err)
	}
	return balance, ledgerSum, nil
}

// ClaimReward redeems a reward for a member. Balance check, point
// deduction, quantity decrement, claim insert, and ledger entry all commit
// in one transaction; any failing check leaves nothing behind.
func (l *Ledger) ClaimReward(rewardID, memberID string) (*model.RewardClaim, error) {
	tx, err := l.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var cost, quantity int
	var available bool
	err = tx.QueryRow(
		`SELECT points_cost, quantity, available FROM rewards WHERE id = ?`, rewardID,
	).Scan(&cost, &quantity, &available)
	if err == sql.ErrNoRows {
		return nil, famerr.NotFound("reward", rewardID)
	}
	if err != nil {
		return nil, fmt.Errorf("read reward: %w", err)
	}

	var balance int
	err = tx.QueryRow(`SELECT points FROM members WHERE id = ?`, memberID).Scan(&balance)
	if err == sql.ErrNoRows {
		return nil, famerr.NotFound("member", memberID)
	}
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}

	if !available || quantity == 0 {
		return nil, fmt.Errorf("reward %q: %w", rewardID, famerr.ErrOutOfStock)
	}
	if balance < cost {
		return nil, fmt.Errorf("need %d points, have %d: %w", cost, balance, famerr.ErrInsufficientBalance)
	}

	// Guarded decrement: if another claim drained the last unit between our
	// read and this write, zero rows change and the whole claim rolls back.
	if quantity > 0 {
		res, err := tx.Exec(
			`UPDATE rewards SET quantity = quantity - 1, available = quantity > 1 WHERE id = ? AND quantity > 0`,
			rewardID,
		)
		if err != nil {
			return nil, fmt.Errorf("decrement quantity: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return nil, fmt.Errorf("reward %q: %w", rewardID, famerr.ErrOutOfStock)
		}
	}

	if _, err := tx.Exec(`UPDATE members SET points = points - ? WHERE id = ?`, cost, memberID); err != nil {
		return nil, fmt.Errorf("deduct points: %w", err)
	}

	claimID := model.NewID()
	if _, err := tx.Exec(
		`INSERT INTO reward_claims (id, reward_id, member_id, points_spent) VALUES (?, ?, ?, ?)`,
		claimID, rewardID, memberID, cost,
	); err != nil {
		return nil, fmt.Errorf("insert claim: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO point_entries (member_id, delta, reason, ref_id) VALUES (?, ?, ?, ?)`,
		memberID, -cost, model.ReasonReward, claimID,
	); err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	l.logger.Info("reward claimed", "reward_id", rewardID, "member_id", memberID, "points_spent", cost)
	return l.rewards.GetClaim(claimID)
}

// FulfillClaim records real-world delivery of a claimed reward. Parent
// only; the economic effect already happened at claim time, so no balance
// moves here.
func (l *Ledger) FulfillClaim(claimID, fulfillerID string) (*model.RewardClaim, error) {
	var role model.Role
	err := l.db.QueryRow(`SELECT role FROM members WHERE id = ?`, fulfillerID).Scan(&role)
	if err == sql.ErrNoRows {
		return nil, famerr.NotFound("member", fulfillerID)
	}
	if err != nil {
		return nil, fmt.Errorf("read fulfiller: %w", err)
	}
	if role != model.RoleParent {
		return nil, famerr.Forbidden("only parents can fulfill reward claims")
	}

	res, err := l.db.Exec(
		`UPDATE reward_claims SET status = ?, fulfilled_at = CURRENT_TIMESTAMP, fulfilled_by = ?
		 WHERE id = ? AND status = ?`,
		model.ClaimFulfilled, fulfillerID, claimID, model.ClaimPending,
	)
	if err != nil {
		return nil, fmt.Errorf("fulfill claim: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		claim, err := l.rewards.GetClaim(claimID)
		if err != nil {
			return nil, err
		}
		if claim == nil {
			return nil, famerr.NotFound("claim", claimID)
		}
		return nil, famerr.InvalidState(string(claim.Status))
	}

	l.logger.Info("reward claim fulfilled", "claim_id", claimID, "fulfiller_id", fulfillerID)
	return l.rewards.GetClaim(claimID)
}
