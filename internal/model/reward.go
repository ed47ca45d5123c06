package model

import "time"

// UnlimitedQuantity marks a reward that never runs out.
const UnlimitedQuantity = -1

type Reward struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PointsCost  int       `json:"points_cost"`
	Icon        string    `json:"icon"`
	ImageURL    *string   `json:"image_url"`
	Available   bool      `json:"available"`
	Quantity    int       `json:"quantity"` // -1 = unlimited
	CreatedAt   time.Time `json:"created_at"`
}

type ClaimStatus string

const (
	ClaimPending   ClaimStatus = "pending"
	ClaimFulfilled ClaimStatus = "fulfilled"
)

// RewardClaim records a redemption. PointsSpent is a snapshot of the reward
// cost at claim time; the balance moved then, fulfillment moves nothing.
type RewardClaim struct {
	ID          string      `json:"id"`
	RewardID    string      `json:"reward_id"`
	MemberID    string      `json:"member_id"`
	PointsSpent int         `json:"points_spent"`
	Status      ClaimStatus `json:"status"`
	ClaimedAt   time.Time   `json:"claimed_at"`
	FulfilledAt *time.Time  `json:"fulfilled_at"`
	FulfilledBy *string     `json:"fulfilled_by"`
}
