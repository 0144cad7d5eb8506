package reservation

import "time"

// ResolutionKind is a closed variant of conflict resolution suggestions.
type ResolutionKind string

const (
	ResolutionWait     ResolutionKind = "wait"
	ResolutionNarrow   ResolutionKind = "narrow"
	ResolutionOverride ResolutionKind = "override"
	ResolutionShare    ResolutionKind = "share"
)

// Resolution is one suggested way for the requester to proceed.
type Resolution struct {
	Kind              ResolutionKind
	ExpiresAt         *time.Time
	SuggestedPatterns []string
}

// Conflict describes one overlapping pair between a requested pattern
// set and an existing reservation. Conflicts are ephemeral: the
// existing reservation is captured by value at detection time, so it
// remains valid even if the real reservation later expires or is
// removed.
type Conflict struct {
	ConflictID          string
	ProjectID           string
	OverlappingPattern  string
	ExistingReservation Reservation
	RequestedPatterns   []string
	Resolutions         []Resolution
	DetectedAt          time.Time
}

// CheckResult is the outcome of a conflict check against a project's
// active reservations.
type CheckResult struct {
	HasConflicts bool
	Conflicts    []Conflict
	CanProceed   bool
}

// waitWindow bounds how soon a conflicting reservation must expire for
// "wait" to be a sensible suggestion.
const waitWindow = 5 * time.Minute

// Engine wraps a Registry with overlap detection and resolution
// suggestions. It holds no state of its own beyond the registry and an
// id/time source, both overridable for tests.
type Engine struct {
	registry *Registry
	idFunc   func() string
	nowFunc  func() time.Time
}

// NewEngine wraps registry. idFunc generates conflict ids.
func NewEngine(registry *Registry, idFunc func() string) *Engine {
	return &Engine{
		registry: registry,
		idFunc:   idFunc,
		nowFunc:  time.Now,
	}
}

// CheckConflicts evaluates a prospective reservation against every
// active reservation in projectID, producing at most one conflict per
// existing reservation.
func (e *Engine) CheckConflicts(projectID, requesterID string, patterns []string, exclusive bool) CheckResult {
	active := e.registry.GetActive(projectID)

	var conflicts []Conflict
	for _, existing := range active {
		if existing.RequesterID == requesterID {
			continue
		}
		if !existing.Exclusive && !exclusive {
			continue
		}

		overlapPattern, found := firstOverlap(patterns, existing.Patterns)
		if !found {
			continue
		}

		conflicts = append(conflicts, e.createConflict(projectID, overlapPattern, existing, patterns, exclusive))
	}

	return CheckResult{
		HasConflicts: len(conflicts) > 0,
		Conflicts:    conflicts,
		CanProceed:   len(conflicts) == 0,
	}
}

// firstOverlap returns the first existing pattern that overlaps any
// requested pattern, scanning requested patterns outer, existing
// patterns inner.
func firstOverlap(requested, existing []string) (string, bool) {
	for _, req := range requested {
		for _, exist := range existing {
			if Overlap(req, exist) {
				return exist, true
			}
		}
	}
	return "", false
}

// createConflict builds a Conflict record with resolution suggestions
// for one overlapping existing reservation.
func (e *Engine) createConflict(projectID, overlappingPattern string, existing Reservation, requested []string, requestedExclusive bool) Conflict {
	now := e.nowFunc()

	c := Conflict{
		ConflictID:          e.idFunc(),
		ProjectID:           projectID,
		OverlappingPattern:  overlappingPattern,
		ExistingReservation: existing,
		RequestedPatterns:   append([]string(nil), requested...),
		DetectedAt:          now,
	}

	remaining := existing.ExpiresAt.Sub(now)
	if remaining > 0 && remaining < waitWindow {
		expiresAt := existing.ExpiresAt
		c.Resolutions = append(c.Resolutions, Resolution{
			Kind:      ResolutionWait,
			ExpiresAt: &expiresAt,
		})
	}

	if narrowed, ok := narrowSuggestion(requested, existing.Patterns); ok {
		c.Resolutions = append(c.Resolutions, Resolution{
			Kind:              ResolutionNarrow,
			SuggestedPatterns: narrowed,
		})
	}

	if !existing.Exclusive && requestedExclusive {
		c.Resolutions = append(c.Resolutions, Resolution{Kind: ResolutionShare})
	}

	return c
}

// narrowSuggestion strips "**" from every requested and existing
// pattern that contains one and reports success only if the resulting
// stripped requested set, taken together, no longer overlaps any
// stripped existing pattern. Stripping has to apply to both sides:
// a fully literal request (e.g. "src/app.ts") still conflicts with a
// "**" existing reservation (e.g. "src/**") only because of the
// existing side's "**" — narrowing the existing pattern down to "src"
// is what breaks the overlap.
func narrowSuggestion(requested, existingPatterns []string) ([]string, bool) {
	strippedRequested, requestedHadDoubleStar := stripAllDoubleStars(requested)
	strippedExisting, existingHadDoubleStar := stripAllDoubleStars(existingPatterns)

	if !requestedHadDoubleStar && !existingHadDoubleStar {
		return nil, false
	}

	for _, s := range strippedRequested {
		for _, e := range strippedExisting {
			if Overlap(s, e) {
				return nil, false
			}
		}
	}
	return strippedRequested, true
}

// stripAllDoubleStars strips "**" from every pattern that contains it,
// leaving the rest unchanged, and reports whether any pattern needed
// stripping.
func stripAllDoubleStars(patterns []string) ([]string, bool) {
	out := make([]string, len(patterns))
	sawDoubleStar := false
	for i, p := range patterns {
		if containsDoubleStar(p) {
			sawDoubleStar = true
			out[i] = stripDoubleStar(p)
		} else {
			out[i] = p
		}
	}
	return out, sawDoubleStar
}

func containsDoubleStar(p string) bool {
	for _, seg := range splitPath(p) {
		if seg == "**" {
			return true
		}
	}
	return false
}

// stripDoubleStar removes every "**" segment from p, collapsing the
// remaining segments back into a path.
func stripDoubleStar(p string) string {
	segs := splitPath(p)
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		if s != "**" {
			out = append(out, s)
		}
	}
	return joinPath(out)
}

func joinPath(segs []string) string {
	result := ""
	for i, s := range segs {
		if i > 0 {
			result += "/"
		}
		result += s
	}
	return result
}
