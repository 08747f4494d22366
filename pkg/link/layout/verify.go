package layout

import (
	"fmt"
	"sort"

	"github.com/eldlink/eld/pkg/link/section"
)

// Assertion is a deferred ASSERT(expr, message) recorded while scripts were
// evaluated, checked once offsets are final (spec §4.8 step 11).
type Assertion struct {
	Expr    section.Expression
	Message string
}

// OverlapError reports two output sections claiming the same byte range in
// one of the three address spaces the engine tracks.
type OverlapError struct {
	Space      string // "file offset", "VMA", or "LMA"
	A, B       string
	AStart, AEnd, BStart, BEnd uint64
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("layout: overlap (%s): %s [%#x,%#x) and %s [%#x,%#x)",
		e.Space, e.A, e.AStart, e.AEnd, e.B, e.BStart, e.BEnd)
}

// CheckAssertions evaluates every deferred assertion against ctx, returning
// the first failure (spec §4.8 step 11's "evaluate deferred ASSERTs").
func CheckAssertions(assertions []Assertion, ctx section.EvalContext) error {
	for _, a := range assertions {
		v, err := a.Expr.Eval(ctx)
		if err != nil {
			return fmt.Errorf("layout: assertion expression: %w", err)
		}
		if v == 0 {
			return fmt.Errorf("layout: assertion failed: %s", a.Message)
		}
	}
	return nil
}

// CheckOverlaps verifies no two output sections overlap in file offset, VMA,
// or LMA, excluding SHT_NOBITS sections from the file-offset check and
// non-allocated sections from the VMA/LMA checks (spec §4.8 step 11).
func CheckOverlaps(sm *section.SectionMap) error {
	entries := sm.Entries()

	if err := checkRanges(entries, "file offset", func(e *section.OutputSectionEntry) (uint64, uint64, bool) {
		if e.Prolog.Type == shtNobits {
			return 0, 0, false
		}
		return e.Offset, e.Offset + e.Size, true
	}); err != nil {
		return err
	}

	allocOnly := func(get func(*section.OutputSectionEntry) uint64) func(*section.OutputSectionEntry) (uint64, uint64, bool) {
		return func(e *section.OutputSectionEntry) (uint64, uint64, bool) {
			if !e.Prolog.Flags.Has(section.SHFAlloc) {
				return 0, 0, false
			}
			start := get(e)
			return start, start + e.Size, true
		}
	}
	if err := checkRanges(entries, "VMA", allocOnly(func(e *section.OutputSectionEntry) uint64 { return e.VMA })); err != nil {
		return err
	}
	return checkRanges(entries, "LMA", allocOnly(func(e *section.OutputSectionEntry) uint64 { return e.LMA }))
}

func checkRanges(entries []*section.OutputSectionEntry, space string, span func(*section.OutputSectionEntry) (uint64, uint64, bool)) error {
	type ranged struct {
		name       string
		start, end uint64
	}
	var rs []ranged
	for _, e := range entries {
		start, end, ok := span(e)
		if !ok || start == end {
			continue
		}
		rs = append(rs, ranged{e.Name, start, end})
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].start < rs[j].start })
	for i := 1; i < len(rs); i++ {
		if rs[i].start < rs[i-1].end {
			return &OverlapError{Space: space, A: rs[i-1].name, AStart: rs[i-1].start, AEnd: rs[i-1].end, B: rs[i].name, BStart: rs[i].start, BEnd: rs[i].end}
		}
	}
	return nil
}
