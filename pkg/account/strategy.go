package account

import (
	"crypto/rand"
	"math/big"
	"sort"
	"time"
)

// selectNext dispatches to the strategy-specific selection function. It
// never mutates profiles; callers apply the result.
func selectNext(strategy RotationStrategy, profiles []AccountProfile, currentProfileID *string, now time.Time) (string, bool) {
	available := availableProfiles(profiles, now)
	if len(available) == 0 {
		return "", false
	}

	switch strategy {
	case StrategyRoundRobin:
		return selectRoundRobin(available, currentProfileID)
	case StrategyLeastRecent:
		return selectLeastRecent(available)
	case StrategyRandom:
		return selectRandom(available)
	case StrategySmart:
		return selectSmart(available, currentProfileID, now)
	default:
		return selectRoundRobin(available, currentProfileID)
	}
}

// availableProfiles preserves the insertion order of profiles.
func availableProfiles(profiles []AccountProfile, now time.Time) []AccountProfile {
	out := make([]AccountProfile, 0, len(profiles))
	for _, p := range profiles {
		if p.IsAvailable(now) {
			out = append(out, p)
		}
	}
	return out
}

// selectRoundRobin picks the available profile after currentProfileID in
// insertion order, wrapping to the first when current is last or absent
// from the available set.
func selectRoundRobin(available []AccountProfile, currentProfileID *string) (string, bool) {
	if currentProfileID == nil {
		return available[0].ID, true
	}
	for i, p := range available {
		if p.ID == *currentProfileID {
			return available[(i+1)%len(available)].ID, true
		}
	}
	return available[0].ID, true
}

// selectLeastRecent picks the available profile with the smallest
// lastUsedAt, treating a nil lastUsedAt as older than any timestamp.
func selectLeastRecent(available []AccountProfile) (string, bool) {
	best := available[0]
	for _, p := range available[1:] {
		if lastUsedBefore(p, best) {
			best = p
		}
	}
	return best.ID, true
}

func lastUsedBefore(a, b AccountProfile) bool {
	if a.LastUsedAt == nil {
		return b.LastUsedAt != nil
	}
	if b.LastUsedAt == nil {
		return false
	}
	return a.LastUsedAt.Before(*b.LastUsedAt)
}

// selectRandom picks uniformly among available profiles using a
// cryptographically secure source, per spec.
func selectRandom(available []AccountProfile) (string, bool) {
	n := big.NewInt(int64(len(available)))
	idx, err := rand.Int(rand.Reader, n)
	if err != nil {
		return available[0].ID, true
	}
	return available[idx.Int64()].ID, true
}

// selectSmart ranks available profiles by a weighted health/recency
// score, highest wins, ties broken by insertion order.
//
//	score = 0.4*healthScore + 1.25*min(hoursSinceLastUse, 24)
//	        + max(0, 30 - daysSinceLastVerified) - (10 if id == current)
func selectSmart(available []AccountProfile, currentProfileID *string, now time.Time) (string, bool) {
	type scored struct {
		profile AccountProfile
		score   float64
		index   int
	}

	scoredProfiles := make([]scored, len(available))
	for i, p := range available {
		scoredProfiles[i] = scored{profile: p, score: smartScore(p, currentProfileID, now), index: i}
	}

	sort.SliceStable(scoredProfiles, func(i, j int) bool {
		return scoredProfiles[i].score > scoredProfiles[j].score
	})

	return scoredProfiles[0].profile.ID, true
}

func smartScore(p AccountProfile, currentProfileID *string, now time.Time) float64 {
	hoursSinceLastUse := 24.0
	if p.LastUsedAt != nil {
		hoursSinceLastUse = now.Sub(*p.LastUsedAt).Hours()
		if hoursSinceLastUse < 0 {
			hoursSinceLastUse = 0
		}
	}
	if hoursSinceLastUse > 24 {
		hoursSinceLastUse = 24
	}

	daysSinceLastVerified := 0.0
	if p.LastVerifiedAt != nil {
		daysSinceLastVerified = now.Sub(*p.LastVerifiedAt).Hours() / 24
		if daysSinceLastVerified < 0 {
			daysSinceLastVerified = 0
		}
	}
	verifiedBonus := 30 - daysSinceLastVerified
	if verifiedBonus < 0 {
		verifiedBonus = 0
	}

	score := 0.4*p.HealthScore + 1.25*hoursSinceLastUse + verifiedBonus
	if currentProfileID != nil && p.ID == *currentProfileID {
		score -= 10
	}
	return score
}
