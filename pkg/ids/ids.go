// Package ids generates opaque, URL-safe, time-ordered identifiers for
// agents, reservations, conflicts, and hub connections.
package ids

import "github.com/google/uuid"

// New returns a time-ordered, URL-safe identifier with overwhelming
// uniqueness, suitable for agent IDs, reservation IDs, and the like.
//
// Backed by UUIDv7 (RFC 9562): the leading 48 bits are a millisecond
// timestamp, so IDs sort chronologically within a single process even
// though monotonicity across processes is not guaranteed. Falls back
// to UUIDv4 only if the system clock/entropy source is unavailable,
// which in practice does not happen on any supported platform.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// NewPrefixed returns New() with a short, human-readable prefix, e.g.
// "agent_018f...".
func NewPrefixed(prefix string) string {
	return prefix + "_" + New()
}
