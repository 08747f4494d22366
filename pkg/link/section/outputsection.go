package section

// SegmentRef names a PHDRS segment an output section belongs to; kept as a
// plain string here (the PHDRS engine in pkg/link/layout resolves it to a
// concrete ELFSegment).
type SegmentRef string

// Prolog is the VMA/LMA/type/flags/align/constraint/plugin header of an
// output-section description (spec §3).
type Prolog struct {
	VMA        Expression // nil: no explicit VMA, layout engine assigns one
	LMA        Expression // nil: VMA == LMA (no AT())
	Type       uint32
	Flags      SHFlags
	Align      uint64
	SubAlign   uint64
	Constraint Constraint
	Plugin     string // name of a registered ControlFileSizePlugin/ControlMemorySizePlugin, "" if none
}

// Epilog is the trailing VMA-region/LMA-region/phdr-list/fill of an
// output-section description (spec §3).
type Epilog struct {
	VMARegion string
	LMARegion string
	Phdrs     []SegmentRef
	Fill      Expression
}

// BranchIsland is a synthesized trampoline fragment plus the relocations
// attached to it (spec §4.7's "Branch islands (trampolines) are applied
// in the same phase").
type BranchIsland struct {
	Frag  *Fragment
	Label string
}

// OutputSectionEntry is the output half of the section model (spec §3):
// created once per script SECTIONS description, or synthesized for an
// orphan, mutated during layout, and read-only afterwards.
type OutputSectionEntry struct {
	Name   string
	Prolog Prolog
	Epilog Epilog

	Rules   []*RuleContainer
	Assigns []SymbolAssign
	Islands []BranchIsland

	// mergeScope is the per-output-section content->survivor map for
	// SHF_ALLOC mergeable strings (spec §4.6's "Alloc strings: per output
	// section").
	mergeScope map[string]*MergeableString

	Hash uint64 // populated by a --hash-style pass once .dynsym is final

	// Layout results, valid once the layout engine (C8) has run.
	VMA    uint64
	LMA    uint64
	Offset uint64
	Size   uint64

	sections []*Section
	orphan   bool
}

// NewOutputSectionEntry creates an empty output section description with
// no rules; CreateDefaultRule installs the fall-through rule.
func NewOutputSectionEntry(name string) *OutputSectionEntry {
	o := &OutputSectionEntry{Name: name, mergeScope: make(map[string]*MergeableString)}
	return o
}

// CreateDefaultRule installs the `*` fall-through RuleContainer.
func (o *OutputSectionEntry) CreateDefaultRule() *RuleContainer {
	r := NewRuleContainer(PolicyNoKeep, RuleSpec{SectionPattern: []*WildcardPattern{NewWildcardPattern(-1, "*", SortNone)}}, o.Name)
	o.Rules = append(o.Rules, r)
	return r
}

// AddRule appends an explicit script-authored rule.
func (o *OutputSectionEntry) AddRule(r *RuleContainer) { o.Rules = append(o.Rules, r) }

// AddSection records that an input section was placed into this output
// section (called by the rule matcher once a match is final).
func (o *OutputSectionEntry) AddSection(s *Section) {
	s.Output = o
	o.sections = append(o.sections, s)
}

// Sections returns the input sections currently placed here.
func (o *OutputSectionEntry) Sections() []*Section { return o.sections }

// MergeScope returns the content->survivor map used for SHF_ALLOC
// mergeable-string dedup scoped to this output section.
func (o *OutputSectionEntry) MergeScope() map[string]*MergeableString { return o.mergeScope }

// IsOrphan reports whether this entry was synthesized for an input
// section no explicit script rule matched (spec §4.5 step 5, §4.8 step 1).
func (o *OutputSectionEntry) IsOrphan() bool { return o.orphan }

// MarkOrphan flags the entry as synthesized rather than script-authored.
func (o *OutputSectionEntry) MarkOrphan() { o.orphan = true }
