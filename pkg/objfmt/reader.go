// Package objfmt is the linker's object-file I/O boundary (spec §1, §6):
// a thin ObjectReader that turns an ELF relocatable object into the
// pkg/link/input and pkg/link/section graph, and a thin ObjectWriter that
// serializes a finished pkg/link/layout.Result back into ELF bytes.
//
// Both sides are necessarily built on the standard library's debug/elf and
// encoding/binary: ELF structure parsing is the one concern in this whole
// module with no plausible third-party substitute anywhere in the
// retrieval pack (no repo there ships an ELF reader/writer library), and
// debug/elf is the same tool real Go toolchain code reaches for when it
// needs to read an object file it didn't produce itself. This package
// stays deliberately shallow: it does not attempt to model every ELF
// feature, only what feeds the C1-C8 pipeline.
package objfmt

import (
	"debug/elf"
	"fmt"
	"strings"

	"github.com/eldlink/eld/pkg/link/input"
	"github.com/eldlink/eld/pkg/link/section"
)

// ObjectReader turns a relocatable object file into an input.File whose
// Sections/Relocations/Globals/Locals are populated (spec §4.2 step 1,
// "ingest").
type ObjectReader interface {
	Read(path string) (*input.File, error)
}

// ELFReader is the concrete, debug/elf-backed ObjectReader.
type ELFReader struct{}

// NewELFReader returns the default reader.
func NewELFReader() *ELFReader { return &ELFReader{} }

// Read opens path, which must be an ET_REL ELF object, and builds the
// input.File graph node plus section/fragment/relocation records the rest
// of the pipeline consumes.
func (ELFReader) Read(path string) (*input.File, error) {
	ef, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("objfmt: opening %s: %w", path, err)
	}
	defer ef.Close()

	if ef.Type != elf.ET_REL {
		return nil, fmt.Errorf("objfmt: %s is not a relocatable object (type %s)", path, ef.Type)
	}

	f := input.NewFile(path, input.KindELFRelocObj)
	secByIndex := make(map[int]*section.Section, len(ef.Sections))

	for i, s := range ef.Sections {
		if s.Type == elf.SHT_NULL {
			continue
		}
		sec := section.NewSection(s.Name, sectionKind(s), f)
		sec.Type = uint32(s.Type)
		sec.Flags = shFlags(s.Flags)
		sec.Align = s.Addralign
		sec.EntSize = s.Entsize
		sec.Link = s.Link
		sec.Info = s.Info

		if s.Type != elf.SHT_NOBITS && s.Size > 0 {
			data, err := s.Data()
			if err != nil {
				return nil, fmt.Errorf("objfmt: reading %s section %s: %w", path, s.Name, err)
			}
			sec.AddFragment(section.NewRegionFragment(data, maxu64(s.Addralign, 1)))
		} else if s.Type == elf.SHT_NOBITS && s.Size > 0 {
			sec.AddFragment(section.NewFillFragment(0, s.Size, maxu64(s.Addralign, 1)))
		}

		f.Sections = append(f.Sections, sec)
		secByIndex[i] = sec
	}

	syms, err := ef.Symbols()
	if err != nil && err != elf.ErrNoSymbols {
		return nil, fmt.Errorf("objfmt: reading symbols of %s: %w", path, err)
	}
	for _, sym := range syms {
		if sym.Name == "" {
			continue
		}
		local := elf.ST_BIND(sym.Info) == elf.STB_LOCAL
		if local {
			f.Locals = append(f.Locals, sym.Name)
		} else {
			f.Globals = append(f.Globals, sym.Name)
		}

		rec := input.SymbolRecord{
			Name:   sym.Name,
			Local:  local,
			Weak:   elf.ST_BIND(sym.Info) == elf.STB_WEAK,
			Size:   sym.Size,
			Value:  sym.Value,
		}
		switch sym.Section {
		case elf.SHN_UNDEF:
			rec.Undefined = true
		case elf.SHN_COMMON:
			rec.Common = true
			rec.Align = sym.Value // ELF convention: st_value holds alignment for SHN_COMMON
			rec.Value = 0
		case elf.SHN_ABS:
			// Absolute symbol: defined, no backing section.
		default:
			if s, ok := secByIndex[int(sym.Section)]; ok {
				rec.Section = s
			}
		}
		f.SymbolRecords = append(f.SymbolRecords, rec)
	}

	for _, s := range ef.Sections {
		if s.Type != elf.SHT_RELA && s.Type != elf.SHT_REL {
			continue
		}
		target, ok := secByIndex[int(s.Info)]
		if !ok {
			continue
		}
		relocs, err := readRelocs(ef, s)
		if err != nil {
			return nil, fmt.Errorf("objfmt: reading relocations of %s in %s: %w", s.Name, path, err)
		}
		for _, r := range relocs {
			r.TargetSection = target
			f.Relocations = append(f.Relocations, r)
		}
	}

	return f, nil
}

// sectionKind classifies an input ELF section into the closed SectionKind
// set the rest of the pipeline dispatches on. Name-based recognition of
// .eh_frame/.note/.group/.debug_* mirrors how every production ELF linker
// (and debug/elf itself, for DWARF) special-cases these by name rather
// than by a dedicated SHT_* type, since the generic ELF type fields don't
// distinguish them.
func sectionKind(s *elf.Section) section.SectionKind {
	switch s.Type {
	case elf.SHT_RELA, elf.SHT_REL:
		return section.KSRelocation
	case elf.SHT_GROUP:
		return section.KSGroup
	case elf.SHT_NOTE:
		return section.KSNote
	case elf.SHT_NOBITS:
		if s.Flags&elf.SHF_ALLOC == 0 {
			return section.KSDebug
		}
	}

	switch {
	case s.Name == ".eh_frame":
		return section.KSEhFrame
	case s.Name == ".eh_frame_hdr":
		return section.KSEhFrameHdr
	case s.Name == ".gcc_except_table" || strings.HasPrefix(s.Name, ".gcc_except_table."):
		return section.KSGCCExceptTable
	case s.Name == ".note.gnu.property":
		return section.KSGNUProperty
	case strings.HasPrefix(s.Name, ".debug_"):
		return section.KSDebug
	case strings.HasPrefix(s.Name, ".gnu.linkonce."):
		return section.KSLinkOnce
	case s.Flags&elf.SHF_MERGE != 0 && s.Flags&elf.SHF_STRINGS != 0:
		return section.KSMergeStr
	case s.Flags&elf.SHF_ALLOC == 0 && s.Type == elf.SHT_PROGBITS && strings.HasPrefix(s.Name, "."):
		return section.KSRegular
	}

	return section.KSRegular
}

func shFlags(f elf.SectionFlag) section.SHFlags {
	var out section.SHFlags
	if f&elf.SHF_WRITE != 0 {
		out |= section.SHFWrite
	}
	if f&elf.SHF_ALLOC != 0 {
		out |= section.SHFAlloc
	}
	if f&elf.SHF_EXECINSTR != 0 {
		out |= section.SHFExecInstr
	}
	if f&elf.SHF_MERGE != 0 {
		out |= section.SHFMerge
	}
	if f&elf.SHF_STRINGS != 0 {
		out |= section.SHFStrings
	}
	if f&elf.SHF_LINK_ORDER != 0 {
		out |= section.SHFLinkOrder
	}
	if f&elf.SHF_TLS != 0 {
		out |= section.SHFTLS
	}
	if f&elf.SHF_GROUP != 0 {
		out |= section.SHFGroup
	}
	return out
}

func maxu64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
