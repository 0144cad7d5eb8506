package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoPool is returned when no pool exists for a (workspace, provider) pair.
var ErrNoPool = errors.New("account: no pool for provider")

// ErrNoProfiles describes a pool with no profiles registered at all.
// Rotate does not return it; it reports that case as an unsuccessful
// RotationResult.
var ErrNoProfiles = errors.New("account: pool has no profiles")

// Store is the persistence seam the rotation engine depends on. The
// production implementation is backed by storage.Client; tests use an
// in-memory Store.
type Store interface {
	GetPool(ctx context.Context, workspaceID, provider string) (AccountPool, error)
	ListProfiles(ctx context.Context, workspaceID, provider string) ([]AccountProfile, error)
	ApplyRotation(ctx context.Context, workspaceID, provider, newProfileID string, now time.Time) error
	SetCooldown(ctx context.Context, profileID string, until time.Time, now time.Time) error
}

// Engine runs rotation and rate-limit handling against a Store.
type Engine struct {
	store   Store
	nowFunc func() time.Time
}

// NewEngine builds a rotation engine. nowFunc defaults to time.Now when nil.
func NewEngine(store Store, nowFunc func() time.Time) *Engine {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &Engine{store: store, nowFunc: nowFunc}
}

// Rotate selects the next profile for (workspaceID, provider) per the
// pool's configured strategy and persists the new active profile.
func (e *Engine) Rotate(ctx context.Context, workspaceID, provider, reason string) (RotationResult, error) {
	now := e.nowFunc()

	pool, err := e.store.GetPool(ctx, workspaceID, provider)
	if err != nil {
		return failure(fmt.Sprintf("no pool for provider %s", provider)), nil
	}

	profiles, err := e.store.ListProfiles(ctx, workspaceID, provider)
	if err != nil {
		return RotationResult{}, err
	}
	if len(profiles) == 0 {
		return failure("pool has no profiles"), nil
	}

	newID, ok := selectNext(pool.RotationStrategy, profiles, pool.ActiveProfileID, now)
	if !ok {
		return failure("no available profile"), nil
	}

	if err := e.store.ApplyRotation(ctx, workspaceID, provider, newID, now); err != nil {
		return RotationResult{}, err
	}

	available := availableProfiles(profiles, now)
	retriesRemaining := len(available) - 1
	if retriesRemaining < 0 {
		retriesRemaining = 0
	}

	return RotationResult{
		Success:           true,
		NewProfileID:      &newID,
		PreviousProfileID: pool.ActiveProfileID,
		Reason:            reason,
		RetriesRemaining:  retriesRemaining,
	}, nil
}

// HandleRateLimit cools down the pool's current profile and rotates to
// the next available one.
func (e *Engine) HandleRateLimit(ctx context.Context, workspaceID, provider, msg string) (RotationResult, error) {
	now := e.nowFunc()

	pool, err := e.store.GetPool(ctx, workspaceID, provider)
	if err != nil {
		return failure(fmt.Sprintf("no pool for provider %s", provider)), nil
	}
	if pool.ActiveProfileID == nil {
		return failure("no active profile to cool down"), nil
	}

	cooldownUntil := now.Add(time.Duration(pool.CooldownMinutesDefault) * time.Minute)
	if err := e.store.SetCooldown(ctx, *pool.ActiveProfileID, cooldownUntil, now); err != nil {
		return RotationResult{}, err
	}

	return e.Rotate(ctx, workspaceID, provider, "Rate limit: "+msg)
}

func failure(reason string) RotationResult {
	return RotationResult{Success: false, Reason: reason, Error: &reason}
}

// rateLimitSignatures holds provider-specific substrings that indicate a
// rate-limit error, matched case-insensitively. "default" applies to any
// provider not listed explicitly.
var rateLimitSignatures = map[string][]string{
	"default":   {"rate limit", "too many requests", "429", "quota exceeded"},
	"anthropic": {"rate_limit_error", "overloaded_error"},
	"openai":    {"rate limit reached", "rate_limit_exceeded"},
}

// IsRateLimitError reports whether msg looks like a rate-limit signal
// for provider, via case-insensitive substring match.
func IsRateLimitError(provider, msg string) bool {
	lower := strings.ToLower(msg)
	for _, sig := range rateLimitSignatures["default"] {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	for _, sig := range rateLimitSignatures[strings.ToLower(provider)] {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}
