// Package section models the input/output section and fragment graph of
// spec §4.3: every byte the linker places lives in a Fragment, every
// Fragment belongs to exactly one Section, and every Section belongs to
// at most one OutputSectionEntry once layout has run.
package section

import "golang.org/x/exp/constraints"

// Kind is the closed fragment-variant set from spec §3's Data Model.
type Kind int

const (
	KindRegion Kind = iota
	KindFill
	KindMergeString
	KindString
	KindHash
	KindEhFrameHdr
	KindBuildID
	KindTiming
)

func (k Kind) String() string {
	switch k {
	case KindFill:
		return "fill"
	case KindMergeString:
		return "merge-string"
	case KindString:
		return "string"
	case KindHash:
		return "hash"
	case KindEhFrameHdr:
		return "eh-frame-hdr"
	case KindBuildID:
		return "build-id"
	case KindTiming:
		return "timing"
	default:
		return "region"
	}
}

// HashStyle distinguishes the two symbol-hash fragment encodings a Hash
// fragment can hold (spec.md §6's --hash-style=<sysv|gnu|both>).
type HashStyle int

const (
	HashSysV HashStyle = iota
	HashGNU
)

// AlignUp rounds n up to the next multiple of align (align must be a power
// of two, or zero to mean "no constraint"). Generic so both the 32-bit and
// 64-bit address arithmetic used across the layout and fragment code share
// one implementation.
func AlignUp[T constraints.Unsigned](n, align T) T {
	if align == 0 {
		return n
	}
	mask := align - 1
	return (n + mask) &^ mask
}

// Fragment is the smallest unit of content the layout engine places. The
// Kind-specific payload lives in the matching field; only one is ever
// populated for a given Kind.
type Fragment struct {
	Kind  Kind
	Owner *Section

	Align uint64
	size  uint64 // authoritative size; Region/Fill/MergeString/String derive it, Hash/EhFrameHdr/BuildID/Timing set it explicitly

	offset    uint64 // offset within Owner; valid only once discarded==false && placed
	placed    bool
	discarded bool

	// Region holds raw bytes copied from an input section.
	Region []byte

	// Fill holds a repeating fill pattern; Value is replicated to Size bytes
	// by the writer.
	FillValue uint32
	FillSize  uint64

	// MergeStrings holds the deduplicated string table for a
	// SHF_MERGE|SHF_STRINGS input section (spec §4.6).
	MergeStrings []*MergeableString

	// StringValue backs a plain String fragment (e.g. a synthesized
	// .shstrtab entry written as one contiguous NUL-terminated blob).
	StringValue []byte

	// HashStyle/HashPayload back a Hash fragment.
	HashStyle   HashStyle
	HashPayload []byte

	// EhFrameHdrPayload, BuildIDPayload, TimingPayload back their
	// respective synthesized fragments. No component in this module
	// fills them.
	EhFrameHdrPayload []byte
	BuildIDPayload    []byte
	TimingPayload     []byte
}

// NewRegionFragment wraps a raw byte slice copied verbatim from an input
// section.
func NewRegionFragment(data []byte, align uint64) *Fragment {
	return &Fragment{Kind: KindRegion, Region: data, Align: align, size: uint64(len(data))}
}

// NewFillFragment creates padding emitted by a script FILL/=fill directive.
func NewFillFragment(value uint32, size, align uint64) *Fragment {
	return &Fragment{Kind: KindFill, FillValue: value, FillSize: size, Align: align, size: size}
}

// Size returns the fragment's content size in bytes. For KindMergeString it
// is the sum of surviving (non-excluded) strings; the others are fixed at
// construction or explicitly set via SetSize.
func (f *Fragment) Size() uint64 {
	switch f.Kind {
	case KindMergeString:
		var total uint64
		for _, m := range f.MergeStrings {
			if !m.Excluded {
				total = AlignUp(total, 1) + uint64(len(m.Data))
			}
		}
		return total
	case KindString:
		return uint64(len(f.StringValue))
	case KindHash:
		return uint64(len(f.HashPayload))
	case KindEhFrameHdr:
		return uint64(len(f.EhFrameHdrPayload))
	case KindBuildID:
		return uint64(len(f.BuildIDPayload))
	case KindTiming:
		return uint64(len(f.TimingPayload))
	default:
		return f.size
	}
}

// SetSize overrides the authoritative size for fragment kinds whose payload
// is filled in after construction (Hash, EhFrameHdr, BuildID, Timing).
func (f *Fragment) SetSize(n uint64) { f.size = n }

// Discard marks a fragment as excluded from output; spec §4.7's apply
// phase consults this to redirect relocations rather than emit bytes.
func (f *Fragment) Discard() { f.discarded = true }

// Discarded reports whether the fragment's owning section was dropped
// (gc'd, COMDAT loser, or --gc-sections).
func (f *Fragment) Discarded() bool { return f.discarded }

// PlaceAt records the fragment's final offset within its owning section.
// Calling Offset before PlaceAt is a bug (spec §4.3 invariant).
func (f *Fragment) PlaceAt(offset uint64) {
	f.offset = offset
	f.placed = true
}

// Offset returns the fragment's offset within its owning section. Panics
// if layout has not placed the fragment yet, matching the spec's stated
// invariant that calling this before assignment is a programming error.
func (f *Fragment) Offset() uint64 {
	if !f.placed {
		panic("section: Offset() called before layout placed the fragment")
	}
	return f.offset
}

// Placed reports whether PlaceAt has run.
func (f *Fragment) Placed() bool { return f.placed }
