package model

// Snapshot is the full state pushed to every subscriber after each committed
// mutation, and returned by get_data. It is always built from a single
// consistent read of the store.
type Snapshot struct {
	FamilyName   string            `json:"family_name"`
	Members      []Member          `json:"members"`
	Templates    []ChoreTemplate   `json:"chore_templates"`
	Chores       []ChoreInstance   `json:"chores"`
	Rewards      []Reward          `json:"rewards"`
	RewardClaims []RewardClaim     `json:"reward_claims"`
	Todos        []TodoItem        `json:"todos"`
	Events       []CalendarEvent   `json:"events"`
	Settings     map[string]string `json:"settings"`
}
