// Package storage provides the PostgreSQL-backed persistence layer for
// account profiles and pools.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a lookup by id finds no row.
var ErrNotFound = errors.New("storage: not found")

// Client wraps a pgx connection pool and exposes the account profile /
// pool persistence operations the rotation engine needs.
type Client struct {
	pool *pgxpool.Pool
}

// Pool returns the underlying connection pool for health checks.
func (c *Client) Pool() *pgxpool.Pool {
	return c.pool
}

// NewClientFromPool wraps an existing pool (useful for testing against
// a real test database without going through NewClient's bootstrap).
func NewClientFromPool(pool *pgxpool.Pool) *Client {
	return &Client{pool: pool}
}

// NewClient opens a connection pool and ensures the schema exists.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	client := &Client{pool: pool}
	if err := client.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to bootstrap schema: %w", err)
	}

	return client, nil
}

// Close releases all pooled connections.
func (c *Client) Close() {
	c.pool.Close()
}

// ensureSchema creates the account_pools and account_profiles tables
// and the index on account_profiles.pool_id if they do not already
// exist. Idempotent so it
// can run on every process start without a separate migration runner.
func (c *Client) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS account_pools (
			id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			strategy TEXT NOT NULL,
			cooldown_minutes_default INTEGER NOT NULL DEFAULT 15,
			max_retries INTEGER NOT NULL DEFAULT 3,
			current_profile_id TEXT,
			cooldown_until TIMESTAMPTZ,
			last_rotated_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			UNIQUE (workspace_id, provider)
		)`,
		`CREATE TABLE IF NOT EXISTS account_profiles (
			id TEXT PRIMARY KEY,
			pool_id TEXT NOT NULL REFERENCES account_pools(id) ON DELETE CASCADE,
			label TEXT NOT NULL,
			credential_ref TEXT NOT NULL,
			health_score DOUBLE PRECISION NOT NULL DEFAULT 100.0,
			last_used_at TIMESTAMPTZ,
			last_verified_at TIMESTAMPTZ,
			rate_limited_until TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_account_profiles_pool_id ON account_profiles(pool_id)`,
	}

	for _, stmt := range stmts {
		if _, err := c.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// ProfileRow is the persisted representation of an account profile.
type ProfileRow struct {
	ID                string
	PoolID            string
	Label             string
	CredentialRef     string
	HealthScore       float64
	LastUsedAt        *time.Time
	LastVerifiedAt    *time.Time
	RateLimitedUntil  *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PoolRow is the persisted representation of an account pool.
type PoolRow struct {
	ID                     string
	WorkspaceID            string
	Provider               string
	Strategy               string
	CooldownMinutesDefault int
	MaxRetries             int
	CurrentProfileID       *string
	CooldownUntil          *time.Time
	LastRotatedAt          *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// InsertProfile persists a new account profile.
func (c *Client) InsertProfile(ctx context.Context, p ProfileRow) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO account_profiles
			(id, pool_id, label, credential_ref, health_score, last_used_at, last_verified_at, rate_limited_until, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.PoolID, p.Label, p.CredentialRef, p.HealthScore,
		p.LastUsedAt, p.LastVerifiedAt, p.RateLimitedUntil, p.CreatedAt, p.UpdatedAt)
	return err
}

// GetProfile fetches a single profile by id.
func (c *Client) GetProfile(ctx context.Context, id string) (ProfileRow, error) {
	row := c.pool.QueryRow(ctx, `
		SELECT id, pool_id, label, credential_ref, health_score, last_used_at, last_verified_at, rate_limited_until, created_at, updated_at
		FROM account_profiles WHERE id = $1`, id)
	return scanProfile(row)
}

// ListProfiles returns every profile belonging to a pool.
func (c *Client) ListProfiles(ctx context.Context, poolID string) ([]ProfileRow, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT id, pool_id, label, credential_ref, health_score, last_used_at, last_verified_at, rate_limited_until, created_at, updated_at
		FROM account_profiles WHERE pool_id = $1 ORDER BY created_at ASC`, poolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProfileRow
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateProfile writes back mutable profile fields (health, usage
// timestamps, rate-limit window).
func (c *Client) UpdateProfile(ctx context.Context, p ProfileRow) error {
	tag, err := c.pool.Exec(ctx, `
		UPDATE account_profiles
		SET health_score = $2, last_used_at = $3, last_verified_at = $4, rate_limited_until = $5, updated_at = $6
		WHERE id = $1`,
		p.ID, p.HealthScore, p.LastUsedAt, p.LastVerifiedAt, p.RateLimitedUntil, p.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProfile removes a profile.
func (c *Client) DeleteProfile(ctx context.Context, id string) error {
	tag, err := c.pool.Exec(ctx, `DELETE FROM account_profiles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner) (ProfileRow, error) {
	var p ProfileRow
	err := row.Scan(&p.ID, &p.PoolID, &p.Label, &p.CredentialRef, &p.HealthScore,
		&p.LastUsedAt, &p.LastVerifiedAt, &p.RateLimitedUntil, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ProfileRow{}, ErrNotFound
	}
	return p, err
}

// EnsurePool returns the pool for (workspaceID, provider), creating it
// with the given default strategy if it does not exist yet.
func (c *Client) EnsurePool(ctx context.Context, workspaceID, provider, defaultStrategy string, now time.Time, idFunc func() string) (PoolRow, error) {
	existing, err := c.GetPoolByWorkspace(ctx, workspaceID, provider)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return PoolRow{}, err
	}

	p := PoolRow{
		ID:                     idFunc(),
		WorkspaceID:            workspaceID,
		Provider:               provider,
		Strategy:               defaultStrategy,
		CooldownMinutesDefault: 15,
		MaxRetries:             3,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	_, err = c.pool.Exec(ctx, `
		INSERT INTO account_pools
			(id, workspace_id, provider, strategy, cooldown_minutes_default, max_retries, current_profile_id, cooldown_until, last_rotated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULL, NULL, NULL, $7, $8)
		ON CONFLICT (workspace_id, provider) DO NOTHING`,
		p.ID, p.WorkspaceID, p.Provider, p.Strategy, p.CooldownMinutesDefault, p.MaxRetries, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return PoolRow{}, err
	}
	return c.GetPoolByWorkspace(ctx, workspaceID, provider)
}

const poolColumns = `id, workspace_id, provider, strategy, cooldown_minutes_default, max_retries, current_profile_id, cooldown_until, last_rotated_at, created_at, updated_at`

// GetPool fetches a pool by id.
func (c *Client) GetPool(ctx context.Context, id string) (PoolRow, error) {
	row := c.pool.QueryRow(ctx, `SELECT `+poolColumns+` FROM account_pools WHERE id = $1`, id)
	return scanPool(row)
}

// GetPoolByWorkspace fetches a pool by its (workspace, provider) key.
func (c *Client) GetPoolByWorkspace(ctx context.Context, workspaceID, provider string) (PoolRow, error) {
	row := c.pool.QueryRow(ctx, `SELECT `+poolColumns+` FROM account_pools WHERE workspace_id = $1 AND provider = $2`, workspaceID, provider)
	return scanPool(row)
}

// UpdatePoolRotationState writes the active profile and optional
// cooldown window back after a rotation decision.
func (c *Client) UpdatePoolRotationState(ctx context.Context, poolID string, currentProfileID *string, cooldownUntil *time.Time, updatedAt time.Time) error {
	tag, err := c.pool.Exec(ctx, `
		UPDATE account_pools SET current_profile_id = $2, cooldown_until = $3, last_rotated_at = $4, updated_at = $5 WHERE id = $1`,
		poolID, currentProfileID, cooldownUntil, updatedAt, updatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPool(row rowScanner) (PoolRow, error) {
	var p PoolRow
	err := row.Scan(&p.ID, &p.WorkspaceID, &p.Provider, &p.Strategy, &p.CooldownMinutesDefault, &p.MaxRetries,
		&p.CurrentProfileID, &p.CooldownUntil, &p.LastRotatedAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PoolRow{}, ErrNotFound
	}
	return p, err
}
