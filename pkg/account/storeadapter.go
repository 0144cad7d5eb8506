package account

import (
	"context"
	"errors"
	"time"

	"github.com/joyshmitz/flywheel-gateway-sub002/pkg/ids"
	"github.com/joyshmitz/flywheel-gateway-sub002/pkg/storage"
)

// SQLStore adapts storage.Client's generic profile/pool rows onto the
// Store interface the rotation engine consumes.
type SQLStore struct {
	client          *storage.Client
	defaultStrategy string
	nowFunc         func() time.Time
}

// NewSQLStore wraps a storage client. defaultStrategy seeds newly
// created pools (EnsurePool) that don't exist yet.
func NewSQLStore(client *storage.Client, defaultStrategy string) *SQLStore {
	return &SQLStore{client: client, defaultStrategy: defaultStrategy, nowFunc: time.Now}
}

func (s *SQLStore) GetPool(ctx context.Context, workspaceID, provider string) (AccountPool, error) {
	row, err := s.client.GetPoolByWorkspace(ctx, workspaceID, provider)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return AccountPool{}, ErrNoPool
		}
		return AccountPool{}, err
	}
	return poolFromRow(row), nil
}

func (s *SQLStore) ListProfiles(ctx context.Context, workspaceID, provider string) ([]AccountProfile, error) {
	pool, err := s.client.GetPoolByWorkspace(ctx, workspaceID, provider)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := s.client.ListProfiles(ctx, pool.ID)
	if err != nil {
		return nil, err
	}

	now := s.nowFunc()
	out := make([]AccountProfile, len(rows))
	for i, row := range rows {
		out[i] = profileFromRow(row, workspaceID, provider, now)
	}
	return out, nil
}

func (s *SQLStore) ApplyRotation(ctx context.Context, workspaceID, provider, newProfileID string, now time.Time) error {
	pool, err := s.client.GetPoolByWorkspace(ctx, workspaceID, provider)
	if err != nil {
		return err
	}
	id := newProfileID
	if err := s.client.UpdatePoolRotationState(ctx, pool.ID, &id, pool.CooldownUntil, now); err != nil {
		return err
	}

	profile, err := s.client.GetProfile(ctx, newProfileID)
	if err != nil {
		return err
	}
	profile.LastUsedAt = &now
	profile.UpdatedAt = now
	return s.client.UpdateProfile(ctx, profile)
}

func (s *SQLStore) SetCooldown(ctx context.Context, profileID string, until time.Time, now time.Time) error {
	profile, err := s.client.GetProfile(ctx, profileID)
	if err != nil {
		return err
	}
	profile.RateLimitedUntil = &until
	profile.UpdatedAt = now
	return s.client.UpdateProfile(ctx, profile)
}

// EnsurePool creates the (workspaceID, provider) pool if absent, using
// s.defaultStrategy and ids.New for the pool id.
func (s *SQLStore) EnsurePool(ctx context.Context, workspaceID, provider string, now time.Time) (AccountPool, error) {
	row, err := s.client.EnsurePool(ctx, workspaceID, provider, s.defaultStrategy, now, ids.New)
	if err != nil {
		return AccountPool{}, err
	}
	return poolFromRow(row), nil
}

func poolFromRow(row storage.PoolRow) AccountPool {
	return AccountPool{
		ID:                     row.ID,
		WorkspaceID:            row.WorkspaceID,
		Provider:               row.Provider,
		RotationStrategy:       RotationStrategy(row.Strategy),
		CooldownMinutesDefault: row.CooldownMinutesDefault,
		MaxRetries:             row.MaxRetries,
		ActiveProfileID:        row.CurrentProfileID,
		LastRotatedAt:          row.LastRotatedAt,
	}
}

// profileFromRow derives the profile's current status against a live
// now rather than the row's persisted UpdatedAt: RateLimitedUntil and
// UpdatedAt are written together by SetCooldown, so comparing them
// against each other would report cooldown forever after the first
// rate limit, even long after the cooldown window has elapsed.
func profileFromRow(row storage.ProfileRow, workspaceID, provider string, now time.Time) AccountProfile {
	status := ProfileVerified
	if row.RateLimitedUntil != nil && row.RateLimitedUntil.After(now) {
		status = ProfileCooldown
	}
	return AccountProfile{
		ID:             row.ID,
		WorkspaceID:    workspaceID,
		Provider:       provider,
		Status:         status,
		HealthScore:    row.HealthScore,
		LastUsedAt:     row.LastUsedAt,
		LastVerifiedAt: row.LastVerifiedAt,
		CooldownUntil:  row.RateLimitedUntil,
	}
}
