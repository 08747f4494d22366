// Package rules implements the rule matcher (spec §4.5): assigning every
// input section to exactly one output-section rule by pattern, file,
// archive-member, and constraint matching.
package rules

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/eldlink/eld/pkg/link/input"
	"github.com/eldlink/eld/pkg/link/section"
)

// OrphanPolicy mirrors --orphan-handling=<policy> (spec.md §6).
type OrphanPolicy int

const (
	OrphanPlace OrphanPolicy = iota
	OrphanWarn
	OrphanError
	OrphanDiscard
)

// PatternCache holds one input file's per-wildcard match results, sized to
// num_wildcards slots (spec §4.5 step 1).
type PatternCache struct {
	fileMatch   []int8 // -1 unknown, 0 no, 1 yes
	memberMatch []int8
}

func newPatternCache(numWildcards int) *PatternCache {
	c := &PatternCache{fileMatch: make([]int8, numWildcards), memberMatch: make([]int8, numWildcards)}
	for i := range c.fileMatch {
		c.fileMatch[i] = -1
		c.memberMatch[i] = -1
	}
	return c
}

// Matcher is the C5 rule matcher. Only the pattern-cache map and the
// pending list are guarded by locks; claiming a section appends to the
// output section's list without one, so AssignInputFromOutput and
// RetryPending are not safe to call from several goroutines at once.
type Matcher struct {
	sectionMap *section.SectionMap
	policy     OrphanPolicy

	mu     sync.Mutex
	caches map[*input.File]*PatternCache

	pending []*section.Section // sections tentatively matched by a Special* rule, subject to being stolen
	pendMu  sync.Mutex

	orphanCount int64
}

// NewMatcher builds a matcher over sm, numWildcards being the total count
// of distinct WildcardPatterns registered across every rule (used to size
// each input's PatternCache).
func NewMatcher(sm *section.SectionMap, policy OrphanPolicy) *Matcher {
	return &Matcher{sectionMap: sm, policy: policy, caches: make(map[*input.File]*PatternCache)}
}

// StorePatternsForInput evaluates every rule's file/archive-member pattern
// against f and caches the results (spec §4.5 step 2).
func (m *Matcher) StorePatternsForInput(f *input.File, numWildcards int) *PatternCache {
	cache := newPatternCache(numWildcards)
	for _, out := range m.sectionMap.Entries() {
		for _, rule := range out.Rules {
			if rule.Spec.FilePattern != nil {
				id := rule.Spec.FilePattern.ID
				if id >= 0 && id < len(cache.fileMatch) {
					cache.fileMatch[id] = boolToTri(rule.Spec.FilePattern.Match(pathForMatch(f)))
				}
			}
			if rule.Spec.MemberPattern != nil {
				id := rule.Spec.MemberPattern.ID
				if id >= 0 && id < len(cache.memberMatch) {
					cache.memberMatch[id] = boolToTri(rule.Spec.MemberPattern.Match(f.ArchiveMember()))
				}
			}
		}
	}
	m.mu.Lock()
	m.caches[f] = cache
	m.mu.Unlock()
	return cache
}

func pathForMatch(f *input.File) string {
	if f.Parent != nil {
		return f.Parent.Path()
	}
	return f.Path()
}

func boolToTri(b bool) int8 {
	if b {
		return 1
	}
	return 0
}

func (c *PatternCache) fileMatches(p *section.WildcardPattern) bool {
	if p == nil {
		return true
	}
	if p.ID >= 0 && p.ID < len(c.fileMatch) && c.fileMatch[p.ID] >= 0 {
		return c.fileMatch[p.ID] == 1
	}
	return false
}

func (c *PatternCache) memberMatches(p *section.WildcardPattern) bool {
	if p == nil {
		return true
	}
	if p.ID >= 0 && p.ID < len(c.memberMatch) && c.memberMatch[p.ID] >= 0 {
		return c.memberMatch[p.ID] == 1
	}
	return false
}

// isReadOnly is a crude proxy for ONLY_IF_RO/ONLY_IF_RW: a section is
// read-only if it lacks SHF_WRITE.
func isReadOnly(s *section.Section) bool { return !s.Flags.Has(section.SHFWrite) }

func constraintSatisfied(c section.Constraint, s *section.Section) bool {
	switch c {
	case section.ConstraintOnlyIfRO:
		return isReadOnly(s)
	case section.ConstraintOnlyIfRW:
		return !isReadOnly(s)
	default:
		return true
	}
}

// AssignInputFromOutput assigns every section of f to an output rule
// (spec §4.5 step 3-4). It returns the sections that matched no rule at
// all (candidates for orphan handling).
func (m *Matcher) AssignInputFromOutput(f *input.File) []*section.Section {
	m.mu.Lock()
	cache, ok := m.caches[f]
	m.mu.Unlock()
	if !ok {
		cache = newPatternCache(0)
	}

	var orphans []*section.Section
	for _, sec := range f.Sections {
		if sec.Kind == section.KSDiscard || sec.Kind == section.KSExclude {
			continue
		}
		matched := m.matchOne(sec, f, cache)
		if !matched {
			orphans = append(orphans, sec)
		}
	}
	return orphans
}

func (m *Matcher) matchOne(sec *section.Section, f *input.File, cache *PatternCache) bool {
	var tentative *section.RuleContainer
	var tentativeOut *section.OutputSectionEntry

	for _, out := range m.sectionMap.Entries() {
		for _, rule := range out.Rules {
			start := time.Now()
			if !constraintSatisfied(out.Prolog.Constraint, sec) {
				continue
			}
			if !cache.fileMatches(rule.Spec.FilePattern) {
				continue
			}
			if !cache.memberMatches(rule.Spec.MemberPattern) {
				continue
			}
			if excludedBy(rule.Spec.ExcludeFiles, f) {
				continue
			}
			if !matchesAnySectionPattern(rule.Spec.SectionPattern, sec.Name) {
				continue
			}

			if rule.Policy.Special() {
				if tentative == nil {
					tentative = rule
					tentativeOut = out
				}
				continue
			}

			// A concrete (non-special) match wins immediately and steals
			// from any prior tentative match (spec §4.5 step 4).
			m.claim(sec, out, rule, time.Since(start))
			return true
		}
	}

	if tentative != nil {
		m.claim(sec, tentativeOut, tentative, 0)
		m.pendMu.Lock()
		m.pending = append(m.pending, sec)
		m.pendMu.Unlock()
		return true
	}
	return false
}

func (m *Matcher) claim(sec *section.Section, out *section.OutputSectionEntry, rule *section.RuleContainer, elapsed time.Duration) {
	if sec.Rule != nil {
		sec.Rule.Unclaim(sec)
	}
	sec.Output = out
	sec.Rule = rule
	out.AddSection(sec)
	rule.RecordMatch(sec, elapsed)
}

// RetryPending re-evaluates every tentatively (Special*) matched section
// against the full rule set, letting a rule added or discovered later
// steal the match (spec §4.5 step 4's "The matcher retries such sections").
func (m *Matcher) RetryPending(f *input.File, cache *PatternCache) {
	m.pendMu.Lock()
	pending := m.pending
	m.pending = nil
	m.pendMu.Unlock()

	for _, sec := range pending {
		m.matchOne(sec, f, cache)
	}
}

func excludedBy(patterns []*section.WildcardPattern, f *input.File) bool {
	for _, p := range patterns {
		if p.Match(pathForMatch(f)) {
			return true
		}
	}
	return false
}

func matchesAnySectionPattern(patterns []*section.WildcardPattern, name string) bool {
	if len(patterns) == 0 {
		return false
	}
	for _, p := range patterns {
		if p.Match(name) {
			return true
		}
	}
	return false
}

// OrphanCount returns the number of sections handled as orphans so far.
func (m *Matcher) OrphanCount() int64 { return atomic.LoadInt64(&m.orphanCount) }

// NoteOrphan increments the orphan counter. Nothing in this module calls
// it, so OrphanCount stays 0 during a link.
func (m *Matcher) NoteOrphan() { atomic.AddInt64(&m.orphanCount, 1) }

// Policy returns the configured --orphan-handling policy.
func (m *Matcher) Policy() OrphanPolicy { return m.policy }
