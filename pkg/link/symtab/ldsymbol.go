package symtab

import "github.com/eldlink/eld/pkg/link/section"

// ValueKind distinguishes how an LdSymbol's value is computed, following
// original_source/include/eld/Input/ObjectFile.h's LDSymbol value
// categories (SPEC_FULL §12): most symbols resolve through a section
// fragment, but absolute symbols (--defsym, ABS ELF symbols) carry a raw
// value with no placement at all.
type ValueKind int

const (
	ValueSection ValueKind = iota
	ValueAbsolute
	ValueNone
)

// LdSymbol is a concrete symbol placement: a fragment reference plus value
// plus output-symtab index (spec §3). Multiple LdSymbols may share one
// ResolveInfo during resolution; exactly one becomes the prevailing
// out-symbol once the resolver closes.
type LdSymbol struct {
	Info  *ResolveInfo
	Kind  ValueKind
	Ref   section.FragmentRef // valid when Kind == ValueSection
	Abs   uint64              // valid when Kind == ValueAbsolute
	Index int                 // index into the output symbol table, -1 until the writer assigns one
}

// NewSectionSymbol creates a placement backed by a fragment reference.
func NewSectionSymbol(info *ResolveInfo, ref section.FragmentRef) *LdSymbol {
	return &LdSymbol{Info: info, Kind: ValueSection, Ref: ref, Index: -1}
}

// NewAbsoluteSymbol creates a placement with a raw numeric value and no
// section backing (e.g. a --defsym constant).
func NewAbsoluteSymbol(info *ResolveInfo, value uint64) *LdSymbol {
	return &LdSymbol{Info: info, Kind: ValueAbsolute, Abs: value, Index: -1}
}

// Value returns the symbol's numeric value. For a ValueSection symbol this
// requires the fragment to have been placed by the layout engine.
func (s *LdSymbol) Value() uint64 {
	switch s.Kind {
	case ValueAbsolute:
		return s.Abs
	case ValueSection:
		return s.Ref.OutputVMA()
	default:
		return 0
	}
}
