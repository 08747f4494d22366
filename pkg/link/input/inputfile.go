// Package input models the input graph of spec §4.2: object files,
// archive members, shared objects, bitcode, linker scripts, binary blobs,
// and internally synthesized files, plus the traversal order that
// reproduces GNU command-line semantics.
package input

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/eldlink/eld/pkg/link/section"
)

// Kind is the InputFile tagged-variant discriminant (spec §3).
type Kind int

const (
	KindELFRelocObj Kind = iota
	KindELFExec
	KindELFDynObj
	KindArchive
	KindArchiveMember
	KindBitcode
	KindLinkerScript
	KindSymDef
	KindBinary
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindELFExec:
		return "elf-exec"
	case KindELFDynObj:
		return "elf-dynobj"
	case KindArchive:
		return "archive"
	case KindArchiveMember:
		return "archive-member"
	case KindBitcode:
		return "bitcode"
	case KindLinkerScript:
		return "linker-script"
	case KindSymDef:
		return "symdef"
	case KindBinary:
		return "binary"
	case KindInternal:
		return "internal"
	default:
		return "elf-relocobj"
	}
}

// File is one node of the input graph. Archive members reference their
// owning Archive through Parent/MemberName; everything else leaves those
// empty.
type File struct {
	path string
	Kind Kind

	Parent     *File // set on KindArchiveMember
	MemberName string

	Sections []*section.Section
	Locals   []string // local symbol names, for --cref/diagnostics only
	Globals  []string // global symbol names this file declares

	// SymbolRecords carries what the name pool's InsertSymbol needs beyond
	// a bare name: definedness, binding, size, and which section (if any)
	// backs the definition. Locals/Globals above stay name-only since
	// that's all --cref/diagnostics and the LTO bridge's global list need.
	SymbolRecords []SymbolRecord

	Relocations []Relocation // raw, pre-scan relocation records (ELF inputs only)

	LTOModule any // opaque LTO-engine-specific handle, set for KindBitcode

	// GroupSignatures maps a COMDAT/bitcode group signature to the member
	// section names it covers, used by the dedup pass (spec §4.6).
	GroupSignatures map[string][]string

	wholeArchive bool
	asNeeded     bool
}

// SymbolRecord is one ELF symbol-table entry translated out of the raw
// reader format, carrying exactly the fields symtab.NamePool.InsertSymbol
// needs (spec §4.1's resolution inputs), independent of how the object
// format actually encodes them.
type SymbolRecord struct {
	Name       string
	Local      bool
	Weak       bool
	Undefined  bool
	Common     bool
	Size       uint64
	Align      uint64
	Value      uint64
	Section    *section.Section // backing section, nil if undefined/common/absolute
}

// Relocation is the minimal per-relocation record the reader hands to the
// relocation engine: which section it targets, at what offset, against
// which symbol name, with which target-specific type code and addend. The
// type code's meaning is opaque here — only a Backend/Relocator (pkg/backend)
// interprets it (spec §1: "target-specific relocation arithmetic ... exposed
// as a Relocator trait").
type Relocation struct {
	TargetSection *section.Section
	Offset        uint64
	Symbol        string
	Type          uint32
	Addend        int64
}

// NewFile constructs a plain (non-member) input file.
func NewFile(path string, kind Kind) *File {
	return &File{path: path, Kind: kind, GroupSignatures: make(map[string][]string)}
}

// NewArchiveMember constructs a member file lazily materialized from an
// Archive (spec §4.2: "archives lazily materialize members").
func NewArchiveMember(parent *File, memberName string) *File {
	return &File{path: parent.path, Kind: KindArchiveMember, Parent: parent, MemberName: memberName, GroupSignatures: make(map[string][]string)}
}

// Path returns the resolved filesystem path (satisfies section.InputFileRef).
func (f *File) Path() string { return f.path }

// ArchiveMember returns the member name, or "" for non-member files
// (satisfies section.InputFileRef).
func (f *File) ArchiveMember() string { return f.MemberName }

// IsDynamic reports whether this file is, or is a member extracted from, a
// shared object (satisfies both section.InputFileRef and symtab.Origin).
func (f *File) IsDynamic() bool { return f.Kind == KindELFDynObj }

// IsBitcode satisfies symtab.Origin.
func (f *File) IsBitcode() bool { return f.Kind == KindBitcode }

// Describe satisfies symtab.Origin with a GNU-ld-style origin string:
// "archive.a(member.o)" for members, the bare path otherwise.
func (f *File) Describe() string {
	if f.Kind == KindArchiveMember && f.Parent != nil {
		return fmt.Sprintf("%s(%s)", f.Parent.path, f.MemberName)
	}
	return f.path
}

// SetWholeArchive records that --whole-archive governs the file. Only
// WholeArchive reads the flag back; archive.go's extraction policy uses the
// Archive's own whole-archive setting instead.
func (f *File) SetWholeArchive(v bool) { f.wholeArchive = v }

// WholeArchive reports whether --whole-archive governs this file.
func (f *File) WholeArchive() bool { return f.wholeArchive }

// SetAsNeeded records that --as-needed governs the file. Only AsNeeded
// reads the flag back; no DT_NEEDED handling depends on it.
func (f *File) SetAsNeeded(v bool) { f.asNeeded = v }

// AsNeeded reports whether --as-needed governs this file.
func (f *File) AsNeeded() bool { return f.asNeeded }

var binaryMangleRE = regexp.MustCompile(`[^A-Za-z0-9_]`)

// BinarySymbolNames returns the _binary_<mangled-path>_start/_end/_size
// triad spec §4.2 and original_source/include/eld/Readers/BinaryFileParser.h
// (SPEC_FULL §12) specify for a raw binary blob input.
func BinarySymbolNames(path string) (start, end, size string) {
	mangled := binaryMangleRE.ReplaceAllString(filepath.ToSlash(path), "_")
	base := "_binary_" + mangled
	return base + "_start", base + "_end", base + "_size"
}

// NewBinaryInput synthesizes the single .data section and symbol triad for
// a -b binary / raw blob input (spec §4.2).
func NewBinaryInput(path string, data []byte) (*File, *section.Fragment) {
	f := NewFile(path, KindBinary)
	sec := section.NewSection(".data", section.KSRegular, f)
	frag := section.NewRegionFragment(data, 1)
	sec.AddFragment(frag)
	f.Sections = append(f.Sections, sec)
	start, end, size := BinarySymbolNames(path)
	f.Globals = append(f.Globals, start, end, size)
	return f, frag
}

// IsObjectLike reports whether the file directly contributes sections and
// symbols the resolver should process (as opposed to a script or symdef
// file, which only contribute directives).
func (f *File) IsObjectLike() bool {
	switch f.Kind {
	case KindELFRelocObj, KindELFExec, KindELFDynObj, KindArchiveMember, KindBitcode, KindBinary, KindInternal:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer for diagnostics and logging.
func (f *File) String() string { return strings.TrimSpace(f.Kind.String() + " " + f.Describe()) }
