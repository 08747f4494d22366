package section

import (
	"path/filepath"
	"strings"
)

// SortPolicy orders the sections a WildcardPattern matches (spec §3,
// SORT_BY_* script directives).
type SortPolicy int

const (
	SortNone SortPolicy = iota
	SortByName
	SortByAlignment
	SortByNameAlignment
	SortByAlignmentName
	SortByInitPriority
)

// WildcardPattern is a literal-or-glob pattern with a sort policy and a
// stable hash id used to key the per-input match-result cache (spec §4.5
// step 1: "resize a per-input pattern-match cache to num_wildcards slots").
type WildcardPattern struct {
	ID      int
	Text    string
	Sort    SortPolicy
	literal bool
}

// NewWildcardPattern builds a pattern, pre-classifying it as a plain
// literal (no glob metacharacters) so Match can take the fast path.
func NewWildcardPattern(id int, text string, sort SortPolicy) *WildcardPattern {
	return &WildcardPattern{ID: id, Text: text, Sort: sort, literal: !strings.ContainsAny(text, "*?[")}
}

// Match reports whether name satisfies the pattern, using shell-glob
// semantics the way GNU linker scripts do (spec §4.4's "wildcard
// patterns").
func (p *WildcardPattern) Match(name string) bool {
	if p.literal {
		return p.Text == name
	}
	ok, err := filepath.Match(p.Text, name)
	return err == nil && ok
}
