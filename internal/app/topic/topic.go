// Package topic implements the bridge's subscription-pattern matcher: the
// segment-wise comparison between a short topic (a published topic with its
// "N/<system-id>/" prefix stripped) and a subscribed pattern using the
// broker's "+" (single segment) and "#" (zero or more trailing segments)
// wildcards.
package topic

import "strings"

// Pattern matches short topics (already split into '/'-separated segments)
// against a subscribed pattern. Three concrete forms exist behind this one
// interface: an exact pattern with no wildcard segments, a wildcard pattern
// with one or more '+'/'#' segments, and the all-wildcard pattern used by
// subscribe-all ("#" alone).
type Pattern interface {
	// Match reports whether the given short topic segments satisfy this
	// pattern.
	Match(short []string) bool

	// Key returns a string uniquely identifying this pattern's segments,
	// used for de-duplication and refresh-on-resubscribe lookups.
	Key() string
}

// allWildcard is the pattern created by a bare subscribe-all ("#"); it
// matches every short topic unconditionally.
type allWildcard struct{}

func (allWildcard) Match(short []string) bool { return true }
func (allWildcard) Key() string               { return "#" }

// AllWildcardPattern is the single shared instance of the all-wildcard
// pattern.
var AllWildcardPattern Pattern = allWildcard{}

// exact is a pattern with no wildcard segments: fast-path plain equality.
type exact struct {
	segments []string
	key      string
}

func (e exact) Match(short []string) bool {
	if len(short) != len(e.segments) {
		return false
	}

	for i, s := range e.segments {
		if s != short[i] {
			return false
		}
	}

	return true
}

func (e exact) Key() string { return e.key }

// wildcard is a pattern containing at least one '+' or '#' segment.
type wildcard struct {
	segments []string
	key      string
}

func (w wildcard) Match(short []string) bool {
	for i, seg := range w.segments {
		if seg == "#" {
			return true
		}

		if i >= len(short) {
			return false
		}

		if seg == "+" {
			continue
		}

		if seg != short[i] {
			return false
		}
	}

	return len(short) == len(w.segments)
}

func (w wildcard) Key() string { return w.key }

// New builds a Pattern from a '/'-separated pattern string. A pattern of
// exactly "#" returns AllWildcardPattern. Patterns containing '+' or '#'
// segments build a wildcard matcher; all others build the exact fast path.
func New(pattern string) Pattern {
	segments := strings.Split(pattern, "/")

	if len(segments) == 1 && segments[0] == "#" {
		return AllWildcardPattern
	}

	hasWildcard := false

	for _, s := range segments {
		if s == "+" || s == "#" {
			hasWildcard = true

			break
		}
	}

	key := strings.Join(segments, "/")

	if hasWildcard {
		return wildcard{segments: segments, key: key}
	}

	return exact{segments: segments, key: key}
}

// Split turns a full topic (e.g. "N/<system-id>/battery/0/Dc/0/Voltage")
// into its short-topic segments by dropping the first two ('/'-joined)
// components (action and system id).
func Split(fullTopic string) []string {
	parts := strings.Split(fullTopic, "/")
	if len(parts) <= 2 {
		return nil
	}

	return parts[2:]
}
