package reservation

import (
	"sync"
	"time"
)

// Reservation is a claim on a set of glob patterns within a project,
// held by requesterId until expiresAt.
type Reservation struct {
	ID          string
	ProjectID   string
	RequesterID string
	Patterns    []string
	Exclusive   bool
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Stats summarizes the registry's current occupancy.
type Stats struct {
	ProjectCount int
	Total        int
	Active       int
}

// Registry maps projectId to its ordered sequence of reservations.
// Expired entries are pruned lazily on read, never eagerly, matching
// the registry's role as a passive store (callers decide insertion and
// removal; ConflictEngine only reads active reservations).
type Registry struct {
	mu      sync.Mutex
	byProj  map[string][]Reservation
	nowFunc func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byProj:  make(map[string][]Reservation),
		nowFunc: time.Now,
	}
}

// Register appends res to its project's list. No uniqueness check is
// performed; the caller (ConflictEngine) is responsible for deciding
// whether a reservation should be allowed.
func (r *Registry) Register(res Reservation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byProj[res.ProjectID] = append(r.byProj[res.ProjectID], res)
}

// Remove deletes the reservation identified by resID from projectID.
// If the project's list becomes empty, the project key itself is
// dropped so the map does not accumulate empty slices indefinitely.
func (r *Registry) Remove(projectID, resID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, ok := r.byProj[projectID]
	if !ok {
		return false
	}

	for i, res := range list {
		if res.ID == resID {
			list = append(list[:i], list[i+1:]...)
			if len(list) == 0 {
				delete(r.byProj, projectID)
			} else {
				r.byProj[projectID] = list
			}
			return true
		}
	}
	return false
}

// GetActive returns the reservations for projectID whose ExpiresAt is
// still in the future, rewriting the stored list in the process (or
// dropping the project key if it becomes empty) so expired entries
// never leak into a later call.
func (r *Registry) GetActive(projectID string) []Reservation {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, ok := r.byProj[projectID]
	if !ok {
		return nil
	}

	now := r.nowFunc()
	active := make([]Reservation, 0, len(list))
	for _, res := range list {
		if res.ExpiresAt.After(now) {
			active = append(active, res)
		}
	}

	if len(active) == 0 {
		delete(r.byProj, projectID)
		return nil
	}
	if len(active) != len(list) {
		r.byProj[projectID] = active
	}

	out := make([]Reservation, len(active))
	copy(out, active)
	return out
}

// Stats reports aggregate registry occupancy. Total counts every
// stored reservation, including expired ones not yet pruned by a
// GetActive call; Active recomputes the live count across all
// projects.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFunc()
	stats := Stats{ProjectCount: len(r.byProj)}
	for _, list := range r.byProj {
		stats.Total += len(list)
		for _, res := range list {
			if res.ExpiresAt.After(now) {
				stats.Active++
			}
		}
	}
	return stats
}
