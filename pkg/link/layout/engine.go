package layout

import (
	"fmt"

	"github.com/eldlink/eld/pkg/backend"
	"github.com/eldlink/eld/pkg/link/section"
	"github.com/eldlink/eld/pkg/link/symtab"
)

// Result is everything the layout engine produces for the object writer and
// diagnostics: the final section map, synthesized segments, and recorded
// padding runs.
type Result struct {
	Segments []*Segment
	Fills    map[string][]Fill
	Rounds   int // relaxation iterations spent (spec §4.8 step 8)
}

// Engine runs spec §4.8 end to end over one Module's section map.
type Engine struct {
	SectionMap *section.SectionMap
	Names      *symtab.NamePool
	Backend    backend.Backend
	Relro      bool
	StartAddr  uint64

	// OrphanPolicy holds the --orphan-handling value. Run places every
	// orphan whatever its value; no warning or error is reported and no
	// orphan is discarded.
	OrphanPolicy string

	Assertions []Assertion
}

// Run executes the fixed-stage pipeline: place orphans, merge sections,
// evaluate assignments, synthesize segments, assign offsets, relax, define
// standard/magic symbols, then verify. It loops stage 4 onward until the
// backend reports it is finished (spec §4.8 step 8), resetting address and
// offset state each iteration as the spec requires.
func (e *Engine) Run(orphans []*section.Section) (*Result, error) {
	PlaceOrphans(e.SectionMap, orphans, e.OrphanPolicy)

	for _, entry := range e.SectionMap.Entries() {
		MergeInputSections(entry)
	}

	loc := newLocationCounter(e.Names)
	fills, err := EvaluateAssignments(e.SectionMap, loc, e.Names)
	if err != nil {
		return nil, err
	}

	const maxRounds = 64
	var segments []*Segment
	round := 0
	for {
		round++
		if round > maxRounds {
			return nil, fmt.Errorf("layout: relaxation did not converge after %d rounds", maxRounds)
		}

		for _, entry := range e.SectionMap.Entries() {
			PlaceFragments(entry)
		}

		segments = SynthesizeDefaultSegments(e.SectionMap, e.Relro)
		pageSize := uint64(0x1000)
		if e.Backend != nil {
			pageSize = e.Backend.SegmentHint().MaxPageSize
		}
		AssignSegmentOffsets(segments, pageSize, 0, e.startAddr())

		if e.Backend == nil || e.Backend.Finished() {
			break
		}
	}

	DefineStandardSymbols(e.SectionMap, e.Names, segments)
	DefineMagicSymbols(e.SectionMap, e.Names)

	if err := CheckAssertions(e.Assertions, loc); err != nil {
		return nil, err
	}
	if err := CheckOverlaps(e.SectionMap); err != nil {
		return nil, err
	}

	return &Result{Segments: segments, Fills: fills, Rounds: round}, nil
}

func (e *Engine) startAddr() uint64 {
	if e.StartAddr != 0 {
		return e.StartAddr
	}
	if e.Backend != nil {
		return e.Backend.SegmentHint().MaxPageSize
	}
	return 0x1000
}
