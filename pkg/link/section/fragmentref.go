package section

// FragmentRef is a stable, address-independent reference into a fragment:
// the pair (fragment, offset-within-fragment). Relocations, symbol
// placements, and branch islands all resolve through a FragmentRef rather
// than a raw address, so they remain valid across the layout engine's
// idempotent re-runs (spec §4.8, "Layout idempotence").
type FragmentRef struct {
	Frag   *Fragment
	Offset uint64
}

// Null is the distinguished sentinel FragmentRef used where no placement
// exists yet (an unresolved symbol, an absolute symbol with no section).
var Null = FragmentRef{}

// IsNull reports whether r is the sentinel.
func (r FragmentRef) IsNull() bool { return r.Frag == nil }

// Discarded reports whether r's section was ignored, per spec §4.3: "a
// distinguished sentinel ... marks references whose section was ignored".
func (r FragmentRef) Discarded() bool { return r.Frag != nil && r.Frag.Discarded() }

// Address returns the fragment's owning-section-relative byte offset of
// this reference: the fragment's placed offset plus the ref's own offset.
// Panics if the fragment has not been placed (propagated from Fragment.Offset).
func (r FragmentRef) Address() uint64 {
	if r.IsNull() {
		return 0
	}
	return r.Frag.Offset() + r.Offset
}

// OutputVMA returns the absolute virtual address this reference resolves
// to, given its owning section's final VMA. Call only after layout has
// assigned the section's VMA.
func (r FragmentRef) OutputVMA() uint64 {
	if r.IsNull() || r.Frag.Owner == nil || r.Frag.Owner.Output == nil {
		return 0
	}
	return r.Frag.Owner.Output.VMA + r.Address()
}
