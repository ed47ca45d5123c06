package model

import "time"

type EntryReason string

const (
	ReasonChore      EntryReason = "chore"      // credit for an approved chore
	ReasonAdjustment EntryReason = "adjustment" // manual parent adjustment
	ReasonPenalty    EntryReason = "penalty"    // overdue negative points
	ReasonReward     EntryReason = "reward"     // debit for a reward claim
)

// PointEntry is one row of the audit ledger. The sum of a member's deltas
// always equals the member's stored points balance.
type PointEntry struct {
	ID        int64       `json:"id"`
	MemberID  string      `json:"member_id"`
	Delta     int         `json:"delta"`
	Reason    EntryReason `json:"reason"`
	RefID     *string     `json:"ref_id"` // chore instance or reward claim id
	CreatedAt time.Time   `json:"created_at"`
}
