package reloc

import (
	"fmt"

	"github.com/eldlink/eld/pkg/backend"
	"github.com/eldlink/eld/pkg/link/section"
)

// AppliedReloc is one write-back instruction for the object writer: a final
// value of Width bytes to splice into Target at the given fragment offset.
type AppliedReloc struct {
	Target *section.Fragment
	Offset uint64
	Value  uint64
	Width  int
}

// Applier runs the apply phase (spec §4.7): once layout has fixed every
// address, recompute each relocation's final value and report it for
// write-back.
type Applier struct {
	be backend.Relocator
}

// NewApplier creates an Applier bound to be.
func NewApplier(be backend.Relocator) *Applier {
	return &Applier{be: be}
}

// Apply computes the final value for one previously-scanned relocation. If
// the relocation's target fragment was discarded, it substitutes the
// backend's discarded-relocation value instead of failing (spec §4.7 apply
// phase: "a relocation whose target section was discarded ... is resolved
// to value_for_discarded_relocation rather than erroring").
func (a *Applier) Apply(r Resolved, s *Scanner) (AppliedReloc, error) {
	req := s.request(r)

	if req.Target != nil && req.Target.Discarded() {
		return AppliedReloc{
			Target: req.Target,
			Offset: req.Offset,
			Value:  a.be.ValueForDiscardedRelocation(req),
			Width:  a.be.Width(req.Type),
		}, nil
	}

	if a.be.ShouldSkip(req) {
		return AppliedReloc{}, nil
	}

	value, err := a.be.Apply(req)
	if err != nil {
		return AppliedReloc{}, fmt.Errorf("reloc: apply %s against %q: %w", r.Rec.Symbol, a.be.Name(), err)
	}
	return AppliedReloc{Target: req.Target, Offset: req.Offset, Value: value, Width: a.be.Width(req.Type)}, nil
}
