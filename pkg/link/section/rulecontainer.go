package section

import (
	"sync"
	"time"
)

// RulePolicy is the keep/discard discipline a RuleContainer enforces, from
// spec §3's "policy {NoKeep, Keep, Fixed, SpecialKeep, SpecialNoKeep, KeepFixed}".
type RulePolicy int

const (
	PolicyNoKeep RulePolicy = iota
	PolicyKeep
	PolicyFixed
	PolicySpecialKeep
	PolicySpecialNoKeep
	PolicyKeepFixed
)

// Keeps reports whether sections matched under this policy survive
// --gc-sections (KEEP(...) and its SpecialKeep sibling).
func (p RulePolicy) Keeps() bool {
	return p == PolicyKeep || p == PolicyFixed || p == PolicySpecialKeep || p == PolicyKeepFixed
}

// Special reports whether this is a tentative-match policy a later, more
// specific rule may steal a section from (spec §4.5 step 4).
func (p RulePolicy) Special() bool {
	return p == PolicySpecialKeep || p == PolicySpecialNoKeep
}

// RuleSpec is the pattern half of a RuleContainer: spec §3's "spec (file
// pattern, archive-member pattern, section patterns, exclude-files)".
type RuleSpec struct {
	FilePattern    *WildcardPattern
	MemberPattern  *WildcardPattern
	SectionPattern []*WildcardPattern
	ExcludeFiles   []*WildcardPattern
}

// Constraint restricts a rule to read-only or read-write input sections
// (ONLY_IF_RO / ONLY_IF_RW from spec §4.5 step 3).
type Constraint int

const (
	ConstraintNone Constraint = iota
	ConstraintOnlyIfRO
	ConstraintOnlyIfRW
)

// SymbolAssign is a script assignment statement attached inside a rule
// (spec §3's "symbol assignments inside the rule").
type SymbolAssign struct {
	Name     string
	Expr     Expression
	Provide  bool
	Hidden   bool
}

// Expression is implemented by pkg/link/script's AST nodes; section only
// needs to hold and later evaluate them, not construct them, so it is
// declared as an interface to avoid an import cycle with the script
// package (which itself needs OutputSectionEntry to resolve '.').
type Expression interface {
	Eval(ctx EvalContext) (int64, error)
}

// EvalContext is the minimal surface an Expression needs: the current
// location counter and a symbol lookup, both satisfied by pkg/link's
// Module and by pkg/link/layout's location-counter tracker.
type EvalContext interface {
	Dot() int64
	SetDot(int64)
	Lookup(name string) (int64, bool)
}

// RuleContainer is one input-section description inside an output-section
// description (spec §3). Its matched-section list and match counters are
// mutated by the rule matcher (C5) under the per-rule statistics mutex
// named in spec §5.
type RuleContainer struct {
	Policy  RulePolicy
	Spec    RuleSpec
	Assigns []SymbolAssign

	// cloneSection accumulates the merged fragments this rule contributed,
	// spec §3's "per-rule section clone that holds merged fragments".
	clone *Section

	Next *RuleContainer

	mu             sync.Mutex
	matched        []*Section
	matchCount     uint64
	matchNanos     time.Duration // supplemented from original_source/include/eld/Object/RuleContainer.h
}

// NewRuleContainer constructs a rule with its own merged-fragment clone
// section, named after outName so diagnostics can describe it.
func NewRuleContainer(policy RulePolicy, spec RuleSpec, outName string) *RuleContainer {
	return &RuleContainer{
		Policy: policy,
		Spec:   spec,
		clone:  NewSection(outName, KSRegular, nil),
	}
}

// Clone returns the per-rule section that accumulates this rule's merged
// fragments.
func (r *RuleContainer) Clone() *Section { return r.clone }

// RecordMatch atomically appends a matched section and bumps the counter;
// concurrency-safe per spec §4.5 concurrency note ("counter update is
// atomic; the match-time accumulator is lock-guarded").
func (r *RuleContainer) RecordMatch(s *Section, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matched = append(r.matched, s)
	r.matchCount++
	r.matchNanos += elapsed
}

// Matched returns the sections this rule has claimed so far.
func (r *RuleContainer) Matched() []*Section {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Section, len(r.matched))
	copy(out, r.matched)
	return out
}

// MatchCount returns the number of sections this rule has claimed.
func (r *RuleContainer) MatchCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.matchCount
}

// MatchTime returns the accumulated time spent evaluating this rule's
// pattern, for --print-timing-equivalent instrumentation.
func (r *RuleContainer) MatchTime() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.matchNanos
}

// Unclaim removes a section from this rule's matched list, used when a
// more specific rule steals a SpecialKeep/SpecialNoKeep tentative match
// (spec §4.5 step 4).
func (r *RuleContainer) Unclaim(s *Section) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, other := range r.matched {
		if other == s {
			r.matched = append(r.matched[:i], r.matched[i+1:]...)
			r.matchCount--
			return
		}
	}
}
