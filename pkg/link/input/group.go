package input

// Group models a --start-group/--end-group (or script GROUP(...)) bracket:
// spec §4.2's "re-read until a pass adds no new symbols".
type Group struct {
	Archives []*Archive

	// lastPassAddedNothing supplements the base fixed-point loop with
	// original_source/include/eld/Object/GroupReader.h's short-circuit
	// (SPEC_FULL §12): once a pass adds nothing, the next pass skips
	// re-scanning the index unless a sibling group added new symbols that
	// could now satisfy this one.
	lastPassAddedNothing bool
}

// NewGroup wraps a set of archives under one group bracket.
func NewGroup(archives ...*Archive) *Group {
	return &Group{Archives: archives}
}

// Extract runs one pass over the group, extracting every member whose
// ShouldExtract predicate is satisfied by undefined, and reports whether
// any member was newly extracted this pass.
func (g *Group) Extract(undefined func(name string) bool, onExtract func(a *Archive, member string)) bool {
	if g.lastPassAddedNothing {
		return false
	}
	addedAny := false
	for _, a := range g.Archives {
		candidates := a.AllMembers()
		for _, member := range candidates {
			if a.ShouldExtract(member, undefined) {
				a.MarkExtracted(member)
				onExtract(a, member)
				addedAny = true
			}
		}
	}
	g.lastPassAddedNothing = !addedAny
	return addedAny
}

// Reopen clears the short-circuit, used when a later-read file (another
// group, or a later archive) adds symbols that might let this group make
// further progress.
func (g *Group) Reopen() { g.lastPassAddedNothing = false }

// GroupReader drives the fixed-point extraction loop over a sequence of
// groups in command-line order (spec §4.2: "the driver calls
// GroupReader.read(group_iterator) which in turn defers to archive
// extraction").
type GroupReader struct {
	undefined func(name string) bool
	onExtract func(a *Archive, member string)
}

// NewGroupReader builds a reader bound to the resolver's undefined-symbol
// predicate and an extraction callback that feeds the new member back
// into the input graph and resolver.
func NewGroupReader(undefined func(name string) bool, onExtract func(a *Archive, member string)) *GroupReader {
	return &GroupReader{undefined: undefined, onExtract: onExtract}
}

// Read runs groups to a fixed point: repeatedly sweep every group until a
// full sweep extracts nothing from any of them.
func (r *GroupReader) Read(groups []*Group) {
	for {
		progressed := false
		for _, g := range groups {
			if g.Extract(r.undefined, r.onExtract) {
				progressed = true
				for _, other := range groups {
					if other != g {
						other.Reopen()
					}
				}
			}
		}
		if !progressed {
			return
		}
	}
}
