package claim

import "context"

// Facade is the narrow contract the scheduler needs from the reward API.
type Facade interface {
	// FetchStatus reports whether the reward can be claimed now. Idempotent.
	FetchStatus(ctx context.Context) (*Status, error)
	// SubmitClaim claims the reward. Not idempotent.
	SubmitClaim(ctx context.Context) (*Result, error)
}

// Status is the eligibility payload returned by GET /rewards/claim
type Status struct {
	CanClaim            bool    `json:"canClaim"`
	TimeRemainingMs     uint64  `json:"timeRemaining"`
	RewardAmount        float64 `json:"rewardAmount"`
	BaseReward          float64 `json:"baseReward"`
	PrestigeBonus       float64 `json:"prestigeBonus"`
	PrestigeLevel       int     `json:"prestigeLevel"`
	TotalRewardsClaimed int     `json:"totalRewardsClaimed"`
	LoginStreak         int     `json:"loginStreak"`
	NextClaimTime       *string `json:"nextClaimTime"`
	LastRewardClaim     *string `json:"lastRewardClaim"`
}

// Result is the payload returned by POST /rewards/claim
type Result struct {
	Success             bool    `json:"success"`
	RewardAmount        float64 `json:"rewardAmount"`
	BaseReward          float64 `json:"baseReward"`
	PrestigeBonus       float64 `json:"prestigeBonus"`
	PrestigeLevel       int     `json:"prestigeLevel"`
	NewBalance          float64 `json:"newBalance"`
	TotalRewardsClaimed int     `json:"totalRewardsClaimed"`
	LoginStreak         int     `json:"loginStreak"`
	NextClaimTime       *string `json:"nextClaimTime"`
}

// payloadShape lists the keys a response must carry before it is decoded
// into its public type. Pointer fields stay nil when a key is absent.
type payloadShape interface {
	missing() []string
}

type statusShape struct {
	CanClaim      *bool   `json:"canClaim"`
	TimeRemaining *uint64 `json:"timeRemaining"`
}

func (s *statusShape) missing() []string {
	var keys []string
	if s.CanClaim == nil {
		keys = append(keys, "canClaim")
	}
	if s.TimeRemaining == nil {
		keys = append(keys, "timeRemaining")
	}
	return keys
}

type resultShape struct {
	Success      *bool    `json:"success"`
	RewardAmount *float64 `json:"rewardAmount"`
	NewBalance   *float64 `json:"newBalance"`
	LoginStreak  *int     `json:"loginStreak"`
}

func (r *resultShape) missing() []string {
	var keys []string
	if r.Success == nil {
		keys = append(keys, "success")
	}
	if r.RewardAmount == nil {
		keys = append(keys, "rewardAmount")
	}
	if r.NewBalance == nil {
		keys = append(keys, "newBalance")
	}
	if r.LoginStreak == nil {
		keys = append(keys, "loginStreak")
	}
	return keys
}
