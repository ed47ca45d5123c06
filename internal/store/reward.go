package store

import (
	"database/sql"
	"fmt"

	"github.com/calebmorris/choreboard/internal/model"
)

// RewardStore covers the reward catalog and claim records. The money-like
// operations (redeem, fulfill) live in the points package because they move
// balances; this store only reads and edits the records themselves.
type RewardStore struct {
	db *sql.DB
}

func NewRewardStore(db *sql.DB) *RewardStore {
	return &RewardStore{db: db}
}

const rewardCols = `id, name, description, points_cost, icon, image_url, available, quantity, created_at`

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	var imageURL sql.NullString

	err := scanner.Scan(&r.ID, &r.Name, &r.Description, &r.PointsCost, &r.Icon, &imageURL, &r.Available, &r.Quantity, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if imageURL.Valid {
		r.ImageURL = &imageURL.String
	}
	return &r, nil
}

func (s *RewardStore) Create(r model.Reward) (*model.Reward, error) {
	if r.ID == "" {
		r.ID = model.NewID()
	}
	available := r.Quantity == model.UnlimitedQuantity || r.Quantity > 0
	_, err := s.db.Exec(
		`INSERT INTO rewards (id, name, description, points_cost, icon, image_url, available, quantity)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Description, r.PointsCost, r.Icon, nullStr(r.ImageURL), available, r.Quantity,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	return s.GetByID(r.ID)
}

func (s *RewardStore) GetByID(id string) (*model.Reward, error) {
	row := s.db.QueryRow(`SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

func (s *RewardStore) List() ([]model.Reward, error) {
	rows, err := s.db.Query(`SELECT ` + rewardCols + ` FROM rewards ORDER BY created_at ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

func (s *RewardStore) Update(r model.Reward) (*model.Reward, error) {
	available := r.Quantity == model.UnlimitedQuantity || r.Quantity > 0
	_, err := s.db.Exec(
		`UPDATE rewards SET name = ?, description = ?, points_cost = ?, icon = ?, image_url = ?, available = ?, quantity = ? WHERE id = ?`,
		r.Name, r.Description, r.PointsCost, r.Icon, nullStr(r.ImageURL), available, r.Quantity, r.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update reward: %w", err)
	}
	return s.GetByID(r.ID)
}

func (s *RewardStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM rewards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reward: %w", err)
	}
	return nil
}

func (s *RewardStore) DeleteAll() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM rewards`)
	if err != nil {
		return 0, fmt.Errorf("delete all rewards: %w", err)
	}
	return res.RowsAffected()
}

// --- Claim records ---

const claimCols = `id, reward_id, member_id, points_spent, status, claimed_at, fulfilled_at, fulfilled_by`

func scanClaim(scanner interface{ Scan(...any) error }) (*model.RewardClaim, error) {
	var c model.RewardClaim
	var fulfilledAt sql.NullTime
	var fulfilledBy sql.NullString

	err := scanner.Scan(&c.ID, &c.RewardID, &c.MemberID, &c.PointsSpent, &c.Status, &c.ClaimedAt, &fulfilledAt, &fulfilledBy)
	if err != nil {
		return nil, err
	}
	if fulfilledAt.Valid {
		c.FulfilledAt = &fulfilledAt.Time
	}
	if fulfilledBy.Valid {
		c.FulfilledBy = &fulfilledBy.String
	}
	return &c, nil
}

func (s *RewardStore) GetClaim(id string) (*model.RewardClaim, error) {
	row := s.db.QueryRow(`SELECT `+claimCols+` FROM reward_claims WHERE id = ?`, id)
	c, err := scanClaim(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get claim: %w", err)
	}
	return c, nil
}

func (s *RewardStore) ListClaims() ([]model.RewardClaim, error) {
	rows, err := s.db.Query(`SELECT ` + claimCols + ` FROM reward_claims ORDER BY claimed_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	var claims []model.RewardClaim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		claims = append(claims, *c)
	}
	return claims, rows.Err()
}

func (s *RewardStore) ListClaimsByMember(memberID string) ([]model.RewardClaim, error) {
	rows, err := s.db.Query(
		`SELECT `+claimCols+` FROM reward_claims WHERE member_id = ? ORDER BY claimed_at DESC`,
		memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("list claims by member: %w", err)
	}
	defer rows.Close()

	var claims []model.RewardClaim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		claims = append(claims, *c)
	}
	return claims, rows.Err()
}

// UpdateClaim rewrites a claim's status directly. Administrative edits
// only; normal fulfillment goes through the points ledger so the role
// check and CAS apply.
func (s *RewardStore) UpdateClaim(c model.RewardClaim) (*model.RewardClaim, error) {
	_, err := s.db.Exec(
		`UPDATE reward_claims SET status = ?, fulfilled_at = ?, fulfilled_by = ? WHERE id = ?`,
		c.Status, nullTime(c.FulfilledAt), nullStr(c.FulfilledBy), c.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update claim: %w", err)
	}
	return s.GetClaim(c.ID)
}

func (s *RewardStore) DeleteClaim(id string) error {
	_, err := s.db.Exec(`DELETE FROM reward_claims WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete claim: %w", err)
	}
	return nil
}

func (s *RewardStore) DeleteAllClaims() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM reward_claims`)
	if err != nil {
		return 0, fmt.Errorf("delete all claims: %w", err)
	}
	return res.RowsAffected()
}
