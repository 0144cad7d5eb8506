// Package account implements provider-account pool rotation: selecting
// which credential an agent uses next under health, cooldown, and
// rate-limit constraints.
package account

import "time"

// ProfileStatus is the closed set of states an AccountProfile can be in.
type ProfileStatus string

const (
	ProfileUnlinked ProfileStatus = "unlinked"
	ProfileVerified ProfileStatus = "verified"
	ProfileCooldown ProfileStatus = "cooldown"
	ProfileError    ProfileStatus = "error"
	ProfileExpired  ProfileStatus = "expired"
)

// AccountProfile is a single provider credential under rotation.
type AccountProfile struct {
	ID             string
	WorkspaceID    string
	Provider       string
	Status         ProfileStatus
	HealthScore    float64 // 0-100
	LastUsedAt     *time.Time
	LastVerifiedAt *time.Time
	CooldownUntil  *time.Time
	ExpiresAt      *time.Time
	Labels         []string
}

// IsAvailable reports whether the profile can be selected for rotation:
// verified, not currently cooling down, and not expired.
func (p AccountProfile) IsAvailable(now time.Time) bool {
	if p.Status != ProfileVerified {
		return false
	}
	if p.CooldownUntil != nil && p.CooldownUntil.After(now) {
		return false
	}
	if p.ExpiresAt != nil && !p.ExpiresAt.After(now) {
		return false
	}
	return true
}

// RotationStrategy is the closed set of profile-selection algorithms.
type RotationStrategy string

const (
	StrategyRoundRobin  RotationStrategy = "round_robin"
	StrategyLeastRecent RotationStrategy = "least_recent"
	StrategyRandom      RotationStrategy = "random"
	StrategySmart       RotationStrategy = "smart"
)

// AccountPool groups the profiles available for one (workspace, provider)
// pair and remembers rotation state.
type AccountPool struct {
	ID                     string
	WorkspaceID            string
	Provider               string
	RotationStrategy       RotationStrategy
	CooldownMinutesDefault int
	MaxRetries             int
	ActiveProfileID        *string
	LastRotatedAt          *time.Time
}

// RotationResult is the outcome of a rotate or handleRateLimit call.
type RotationResult struct {
	Success           bool
	NewProfileID      *string
	PreviousProfileID *string
	Reason            string
	RetriesRemaining  int
	Error             *string
}
