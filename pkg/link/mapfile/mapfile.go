// Package mapfile renders a finished link as a human-readable or YAML map
// file (spec §7's "link map"). The text format follows the teacher's
// dump-writer idiom (pkg/hw/cpu/mc/programfiledump.go: a struct holding an
// io.Writer plus the data, one dump<Block> method per section); the YAML
// format is new, grounded on gopkg.in/yaml.v3's Marshal for the structured
// variant map/script/tools output wants.
package mapfile

import (
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/eldlink/eld/pkg/link/layout"
	"github.com/eldlink/eld/pkg/link/section"
	"github.com/eldlink/eld/pkg/link/symtab"
	"github.com/eldlink/eld/pkg/utils"
)

// SegmentEntry is one PT_LOAD/PT_* row of the map.
type SegmentEntry struct {
	Type   string `yaml:"type"`
	VAddr  uint64 `yaml:"vaddr"`
	PAddr  uint64 `yaml:"paddr"`
	Filesz uint64 `yaml:"filesz"`
	Memsz  uint64 `yaml:"memsz"`
	Flags  string `yaml:"flags"`
}

// SectionEntry is one output-section row, with its contributing input
// sections nested underneath (spec §7's "map file lists which input
// sections landed in which output section, and where").
type SectionEntry struct {
	Name    string   `yaml:"name"`
	VMA     uint64   `yaml:"vma"`
	LMA     uint64   `yaml:"lma"`
	Size    uint64   `yaml:"size"`
	Inputs  []string `yaml:"inputs,omitempty"`
	Orphan  bool     `yaml:"orphan,omitempty"`
}

// SymbolEntry is one defined symbol row.
type SymbolEntry struct {
	Name  string `yaml:"name"`
	Value uint64 `yaml:"value"`
}

// Map is the whole rendered document.
type Map struct {
	ImageStart uint64         `yaml:"image_start"`
	ImageEnd   uint64         `yaml:"image_end"`
	Segments   []SegmentEntry `yaml:"segments"`
	Sections   []SectionEntry `yaml:"sections"`
	Symbols    []SymbolEntry  `yaml:"symbols"`
}

// Build assembles a Map from the layout engine's result and the resolved
// symbol table.
func Build(segments []*layout.Segment, entries []*section.OutputSectionEntry, names *symtab.NamePool) *Map {
	m := &Map{}

	if len(segments) > 0 {
		starts := make([]uint64, len(segments))
		ends := make([]uint64, len(segments))
		for i, seg := range segments {
			starts[i] = seg.VAddr
			ends[i] = seg.VAddr + seg.Memsz
		}
		m.ImageStart = utils.Min(starts)
		m.ImageEnd = utils.Max(ends)
	}

	for _, seg := range segments {
		m.Segments = append(m.Segments, SegmentEntry{
			Type:   segmentTypeName(seg.Type),
			VAddr:  seg.VAddr,
			PAddr:  seg.PAddr,
			Filesz: seg.Filesz,
			Memsz:  seg.Memsz,
			Flags:  flagString(seg.Flags),
		})
	}

	for _, e := range entries {
		se := SectionEntry{Name: e.Name, VMA: e.VMA, LMA: e.LMA, Size: e.Size, Orphan: e.IsOrphan()}
		for _, s := range e.Sections() {
			se.Inputs = append(se.Inputs, inputLabel(s))
		}
		m.Sections = append(m.Sections, se)
	}

	if names != nil {
		for _, name := range names.Names() {
			if sym, ok := names.FindSymbol(name); ok {
				m.Symbols = append(m.Symbols, SymbolEntry{Name: name, Value: sym.Value()})
			}
		}
		sort.Slice(m.Symbols, func(i, j int) bool { return m.Symbols[i].Name < m.Symbols[j].Name })
	}

	return m
}

func inputLabel(s *section.Section) string {
	if s.Owner == nil {
		return s.Name
	}
	return fmt.Sprintf("%s(%s)", s.Owner.Path(), s.Name)
}

func segmentTypeName(t uint32) string {
	switch t {
	case layout.PTLoad:
		return "PT_LOAD"
	case layout.PTDynamic:
		return "PT_DYNAMIC"
	case layout.PTInterp:
		return "PT_INTERP"
	case layout.PTNote:
		return "PT_NOTE"
	case layout.PTGNURelro:
		return "PT_GNU_RELRO"
	case layout.PTPHDR:
		return "PT_PHDR"
	case layout.PTTLS:
		return "PT_TLS"
	default:
		return fmt.Sprintf("PT_%#x", t)
	}
}

func flagString(f layout.Flags) string {
	s := ""
	if f&layout.PFRead != 0 {
		s += "R"
	}
	if f&layout.PFWrite != 0 {
		s += "W"
	}
	if f&layout.PFExec != 0 {
		s += "E"
	}
	if s == "" {
		return "-"
	}
	return s
}

// WriteText renders the human-readable map, following the teacher's
// dump-writer layout: one "=== Memory Map ===" header and an "Image:" line,
// then labelled "Segments:", "Sections:" and "Symbols:" blocks.
func WriteText(w io.Writer, m *Map) error {
	fmt.Fprintln(w, "=== Memory Map ===")
	fmt.Fprintf(w, "Image: [%s, %s)\n", utils.FormatUintHex(m.ImageStart, 8), utils.FormatUintHex(m.ImageEnd, 8))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Segments:")
	for _, s := range m.Segments {
		fmt.Fprintf(w, "  %-14s vaddr=0x%08x paddr=0x%08x filesz=0x%-8x memsz=0x%-8x flags=%s\n",
			s.Type, s.VAddr, s.PAddr, s.Filesz, s.Memsz, s.Flags)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Sections:")
	for _, s := range m.Sections {
		orphan := ""
		if s.Orphan {
			orphan = " (orphan)"
		}
		fmt.Fprintf(w, "  %-20s vma=0x%08x lma=0x%08x size=0x%x%s\n", s.Name, s.VMA, s.LMA, s.Size, orphan)
		for _, in := range s.Inputs {
			fmt.Fprintf(w, "      %s\n", in)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Symbols:")
	for _, sym := range m.Symbols {
		fmt.Fprintf(w, "  0x%016x %s\n", sym.Value, sym.Name)
	}
	return nil
}

// WriteYAML renders the structured map, for the `eld map browse` viewer and
// other tooling to parse without screen-scraping the text format.
func WriteYAML(w io.Writer, m *Map) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(m)
}
