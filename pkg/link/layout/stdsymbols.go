package layout

import (
	"regexp"
	"strings"

	"github.com/eldlink/eld/pkg/link/section"
	"github.com/eldlink/eld/pkg/link/symtab"
)

// DefineStandardSymbols implements spec §4.8 step 9: define the
// conventional ELF layout symbols, skipping any name a linker script (or
// an input object) already defined.
func DefineStandardSymbols(sm *section.SectionMap, names *symtab.NamePool, segments []*Segment) {
	firstLoad := firstLoadVAddr(segments)
	defineIfAbsent(names, "__ehdr_start", firstLoad, false)
	defineIfAbsent(names, "__executable_start", firstLoad, false)

	if text, ok := sm.Find(".text"); ok {
		end := text.VMA + text.Size
		defineIfAbsent(names, "etext", end, false)
		defineIfAbsent(names, "_etext", end, false)
	}

	lastData, lastAny := lastAllocEnds(sm)
	defineIfAbsent(names, "edata", lastData, false)
	defineIfAbsent(names, "_edata", lastData, false)
	defineIfAbsent(names, "end", lastAny, false)
	defineIfAbsent(names, "_end", lastAny, false)

	if bss, ok := sm.Find(".bss"); ok {
		defineIfAbsent(names, "__bss_start", bss.VMA, false)
	}
	if dyn, ok := sm.Find(".dynamic"); ok {
		defineIfAbsent(names, "_DYNAMIC", dyn.VMA, true)
	}
	if ia, ok := sm.Find(".init_array"); ok {
		defineIfAbsent(names, "__init_array_start", ia.VMA, true)
		defineIfAbsent(names, "__init_array_end", ia.VMA+ia.Size, true)
	}
	if fa, ok := sm.Find(".fini_array"); ok {
		defineIfAbsent(names, "__fini_array_start", fa.VMA, true)
		defineIfAbsent(names, "__fini_array_end", fa.VMA+fa.Size, true)
	}
}

func firstLoadVAddr(segments []*Segment) uint64 {
	for _, s := range segments {
		if s.Type == PTLoad {
			return s.VAddr
		}
	}
	return 0
}

// lastAllocEnds returns (end of last non-NOBITS alloc section, end of last
// alloc section overall) for edata/end.
func lastAllocEnds(sm *section.SectionMap) (dataEnd, allEnd uint64) {
	for _, e := range sm.Entries() {
		if !e.Prolog.Flags.Has(section.SHFAlloc) {
			continue
		}
		end := e.VMA + e.Size
		if end > allEnd {
			allEnd = end
		}
		if e.Prolog.Type != shtNobits && end > dataEnd {
			dataEnd = end
		}
	}
	return dataEnd, allEnd
}

func defineIfAbsent(names *symtab.NamePool, name string, value uint64, hidden bool) {
	if info, ok := names.FindInfo(name); ok && info.Desc != symtab.DescUndefined {
		return
	}
	defineAbsolute(names, name, value, hidden)
}

var magicSymbolRE = regexp.MustCompile(`^__(start|stop)_([A-Za-z0-9_]+)$`)

// DefineMagicSymbols implements spec §4.8 step 10: for every undefined
// reference shaped like __start_<C-identifier> or __stop_<C-identifier>,
// define it at the first/last byte of the output section named
// <C-identifier>, if one exists. The C-identifier is the section name with
// every non-identifier byte already folded to '_' by the caller that built
// the reference (matching BinaryFileParser's mangling rule, SPEC_FULL §12).
func DefineMagicSymbols(sm *section.SectionMap, names *symtab.NamePool) {
	for _, name := range names.Names() {
		m := magicSymbolRE.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		if _, resolved := names.FindSymbol(name); resolved {
			continue
		}
		entry := findSectionByIdent(sm, m[2])
		if entry == nil {
			continue
		}
		value := entry.VMA
		if m[1] == "stop" {
			value = entry.VMA + entry.Size
		}
		defineAbsolute(names, name, value, false)
	}
}

func findSectionByIdent(sm *section.SectionMap, ident string) *section.OutputSectionEntry {
	for _, e := range sm.Entries() {
		if cIdent(e.Name) == ident {
			return e
		}
	}
	return nil
}

var nonIdentRE = regexp.MustCompile(`[^A-Za-z0-9_]`)

func cIdent(name string) string {
	return nonIdentRE.ReplaceAllString(strings.TrimPrefix(name, "."), "_")
}
