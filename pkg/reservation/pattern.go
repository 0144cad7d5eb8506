// Package reservation implements glob-based file reservation and the
// conflict detection/resolution engine layered on top of it.
package reservation

import (
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar"
)

// Matcher compiles a glob pattern once and answers whether a concrete
// path matches it. Overlap between two patterns is checked by the
// package-level Overlap function.
type Matcher struct {
	raw      string
	segments []string
}

// Compile tokenizes pattern into path segments for overlap analysis.
// `?` matches exactly one non-separator character, `*` matches zero or
// more non-separator characters, `**` matches zero or more whole path
// segments.
func Compile(pattern string) *Matcher {
	return &Matcher{
		raw:      pattern,
		segments: splitPath(pattern),
	}
}

func splitPath(pattern string) []string {
	normalized := normalize(pattern)
	if normalized == "" {
		return []string{}
	}
	return strings.Split(normalized, "/")
}

// normalize collapses repeated separators and strips a trailing slash
// so that "src//app.ts/" and "src/app.ts" compare equal.
func normalize(pattern string) string {
	for strings.Contains(pattern, "//") {
		pattern = strings.ReplaceAll(pattern, "//", "/")
	}
	return strings.TrimSuffix(pattern, "/")
}

// MatchLiteral reports whether a concrete, non-glob path matches this
// pattern. Delegates to doublestar, which implements the same `?`, `*`,
// `**` semantics this package assumes.
func (m *Matcher) MatchLiteral(path string) bool {
	ok, err := doublestar.Match(m.raw, normalize(path))
	if err != nil {
		return false
	}
	return ok
}

// segmentRegex compiles a single path segment (which may contain `*`
// or `?` but never `/`) into an anchored regexp.
func segmentRegex(seg string) *regexp.Regexp {
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range seg {
		switch r {
		case '*':
			b.WriteString("[^/]*")
		case '?':
			b.WriteString("[^/]")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')
	return regexp.MustCompile(b.String())
}

func hasWildcard(seg string) bool {
	return strings.ContainsAny(seg, "*?")
}

// Overlap reports whether two glob patterns can possibly match a
// common concrete path. It is conservatively safe: it may return true
// for globs that share no real path, but it must never return false
// for globs that do. Overlap is reflexive and symmetric by
// construction, since the recursion treats both arguments identically.
func Overlap(p1, p2 string) bool {
	return overlapSegments(splitPath(p1), splitPath(p2))
}

func overlapSegments(a, b []string) bool {
	switch {
	case len(a) == 0 && len(b) == 0:
		return true
	case len(a) == 0:
		return allDoubleStar(b)
	case len(b) == 0:
		return allDoubleStar(a)
	}

	aHead, bHead := a[0], b[0]

	if aHead == "**" {
		// ** may consume zero segments from a and retry, or consume one
		// segment from b and stay in place.
		return overlapSegments(a[1:], b) || overlapSegments(a, b[1:])
	}
	if bHead == "**" {
		return overlapSegments(a, b[1:]) || overlapSegments(a[1:], b)
	}

	if !segmentsCompatible(aHead, bHead) {
		return false
	}
	return overlapSegments(a[1:], b[1:])
}

// allDoubleStar reports whether every remaining segment is "**", the
// base case for one pattern running out of segments while the other
// still has trailing "**" components (which can match zero segments).
func allDoubleStar(segs []string) bool {
	for _, s := range segs {
		if s != "**" {
			return false
		}
	}
	return true
}

// segmentsCompatible decides whether two single, non-"**" path
// segments can match the same text.
func segmentsCompatible(a, b string) bool {
	if a == b {
		return true
	}
	aWild, bWild := hasWildcard(a), hasWildcard(b)

	switch {
	case !aWild && !bWild:
		return false // distinct literals
	case aWild && !bWild:
		return segmentRegex(a).MatchString(b)
	case !aWild && bWild:
		return segmentRegex(b).MatchString(a)
	default:
		return wildcardsCompatible(a, b)
	}
}

// wildcardsCompatible conservatively approves two wildcard segments as
// compatible unless their fixed (non-wildcard) prefixes or suffixes
// provably conflict. This never false-negatives: anything it cannot
// disprove, it allows.
func wildcardsCompatible(a, b string) bool {
	aPrefix, aSuffix := fixedPrefixSuffix(a)
	bPrefix, bSuffix := fixedPrefixSuffix(b)

	if !compatiblePrefix(aPrefix, bPrefix) {
		return false
	}
	if !compatibleSuffix(aSuffix, bSuffix) {
		return false
	}
	return true
}

// fixedPrefixSuffix returns the literal run before the first wildcard
// and the literal run after the last wildcard in seg.
func fixedPrefixSuffix(seg string) (prefix, suffix string) {
	firstWild := strings.IndexAny(seg, "*?")
	if firstWild < 0 {
		return seg, seg
	}
	prefix = seg[:firstWild]

	lastWild := strings.LastIndexAny(seg, "*?")
	suffix = seg[lastWild+1:]
	return prefix, suffix
}

func compatiblePrefix(a, b string) bool {
	n := minLen(a, b)
	return a[:n] == b[:n]
}

func compatibleSuffix(a, b string) bool {
	n := minLen(a, b)
	return a[len(a)-n:] == b[len(b)-n:]
}

func minLen(a, b string) int {
	if len(a) < len(b) {
		return len(a)
	}
	return len(b)
}
