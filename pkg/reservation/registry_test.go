package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkReservation(id, project, requester string, ttl time.Duration) Reservation {
	now := time.Now()
	return Reservation{
		ID:          id,
		ProjectID:   project,
		RequesterID: requester,
		Patterns:    []string{"src/**"},
		Exclusive:   true,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

func TestRegistry_RegisterAndGetActive(t *testing.T) {
	r := NewRegistry()
	r.Register(mkReservation("r1", "P", "A", time.Minute))

	active := r.GetActive("P")
	require.Len(t, active, 1)
	assert.Equal(t, "r1", active[0].ID)
}

func TestRegistry_GetActiveFiltersExpired(t *testing.T) {
	r := NewRegistry()
	r.Register(mkReservation("r1", "P", "A", -time.Minute))
	r.Register(mkReservation("r2", "P", "A", time.Minute))

	active := r.GetActive("P")
	require.Len(t, active, 1)
	assert.Equal(t, "r2", active[0].ID)
}

func TestRegistry_GetActiveDropsEmptiedProjectKey(t *testing.T) {
	r := NewRegistry()
	r.Register(mkReservation("r1", "P", "A", -time.Minute))

	active := r.GetActive("P")
	assert.Empty(t, active)

	stats := r.Stats()
	assert.Equal(t, 0, stats.ProjectCount)
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()
	r.Register(mkReservation("r1", "P", "A", time.Minute))

	assert.True(t, r.Remove("P", "r1"))
	assert.False(t, r.Remove("P", "r1"))
	assert.False(t, r.Remove("missing-project", "r1"))

	stats := r.Stats()
	assert.Equal(t, 0, stats.ProjectCount)
}

func TestRegistry_RemoveDropsEmptiedProjectKey(t *testing.T) {
	r := NewRegistry()
	r.Register(mkReservation("r1", "P", "A", time.Minute))
	r.Remove("P", "r1")

	assert.Empty(t, r.GetActive("P"))
}

func TestRegistry_Stats(t *testing.T) {
	r := NewRegistry()
	r.Register(mkReservation("r1", "P1", "A", time.Minute))
	r.Register(mkReservation("r2", "P1", "B", -time.Minute))
	r.Register(mkReservation("r3", "P2", "A", time.Minute))

	stats := r.Stats()
	assert.Equal(t, 2, stats.ProjectCount)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Active)
}
