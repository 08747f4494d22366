package layout

import "github.com/eldlink/eld/pkg/link/section"

// ELF program header types this engine synthesizes (spec §4.8 step 4).
const (
	PTNull         = 0
	PTLoad         = 1
	PTDynamic      = 2
	PTInterp       = 3
	PTNote         = 4
	PTPHDR         = 6
	PTTLS          = 7
	PTGNUEhFrame   = 0x6474e550
	PTGNUStack     = 0x6474e551
	PTGNURelro     = 0x6474e552
)

// Flags mirrors the PF_R/PF_W/PF_X program header permission bits.
type Flags uint32

const (
	PFExec  Flags = 1
	PFWrite Flags = 2
	PFRead  Flags = 4
)

// flagsFor derives PT_LOAD permissions from an output section's flags,
// matching the R/W/X union spec §4.8 step 4 checks for to decide when a new
// PT_LOAD is required ("opening a new PT_LOAD when permissions change").
func flagsFor(flags section.SHFlags) Flags {
	f := PFRead
	if flags.Has(section.SHFWrite) {
		f |= PFWrite
	}
	if flags.Has(section.SHFExecInstr) {
		f |= PFExec
	}
	return f
}

// Segment is a synthesized or script-declared program header
// (original_source/include/eld/Target/ELFSegment.h, SPEC_FULL §12): it owns
// an ordered list of output sections and the computed file/memory geometry
// once offset assignment (step 7) has run.
type Segment struct {
	Type  uint32
	Flags Flags
	Align uint64

	Sections []*section.OutputSectionEntry

	Offset uint64
	VAddr  uint64
	PAddr  uint64
	Filesz uint64
	Memsz  uint64

	// FixedLMA holds the evaluated AT() address when the segment (or its
	// leading section) pinned its load address explicitly.
	FixedLMA    uint64
	HasFixedLMA bool
}

// AddSection appends o to the segment and widens Flags to the union of
// every contributor's permissions.
func (s *Segment) AddSection(o *section.OutputSectionEntry) {
	s.Sections = append(s.Sections, o)
	s.Flags |= flagsFor(o.Prolog.Flags)
	if o.Prolog.Align > s.Align {
		s.Align = o.Prolog.Align
	}
}
