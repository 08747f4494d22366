package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x86_64 "github.com/eldlink/eld/pkg/backend/x86_64"
	"github.com/eldlink/eld/pkg/link/input"
	"github.com/eldlink/eld/pkg/link/section"
	"github.com/eldlink/eld/pkg/link/symtab"
)

func claim(out *section.OutputSectionEntry, sec *section.Section) {
	rule := out.Rules[len(out.Rules)-1]
	out.AddSection(sec)
	rule.RecordMatch(sec, 0)
}

func buildSectionMap() (*section.SectionMap, *input.File) {
	sm := section.NewSectionMap()
	f := input.NewFile("a.o", input.KindELFRelocObj)

	text := sm.GetOrCreate(".text")
	text.CreateDefaultRule()
	text.Prolog.Flags = section.SHFAlloc | section.SHFExecInstr
	textSec := section.NewSection(".text", section.KSRegular, f)
	textSec.Flags = section.SHFAlloc | section.SHFExecInstr
	textSec.AddFragment(section.NewRegionFragment(make([]byte, 32), 16))
	claim(text, textSec)

	data := sm.GetOrCreate(".data")
	data.CreateDefaultRule()
	data.Prolog.Flags = section.SHFAlloc | section.SHFWrite
	dataSec := section.NewSection(".data", section.KSRegular, f)
	dataSec.Flags = section.SHFAlloc | section.SHFWrite
	dataSec.AddFragment(section.NewRegionFragment(make([]byte, 16), 8))
	claim(data, dataSec)

	bss := sm.GetOrCreate(".bss")
	bss.CreateDefaultRule()
	bss.Prolog.Flags = section.SHFAlloc | section.SHFWrite
	bss.Prolog.Type = shtNobits
	bssSec := section.NewSection(".bss", section.KSRegular, f)
	bssSec.Flags = section.SHFAlloc | section.SHFWrite
	bssSec.AddFragment(section.NewFillFragment(0, 64, 8))
	claim(bss, bssSec)

	return sm, f
}

func TestEngineRunProducesNonOverlappingSegmentsAndStandardSymbols(t *testing.T) {
	sm, _ := buildSectionMap()
	names := symtab.NewNamePool(false)

	eng := &Engine{SectionMap: sm, Names: names, Backend: x86_64.New(false), StartAddr: 0x400000}
	result, err := eng.Run(nil)
	require.NoError(t, err)
	require.NotEmpty(t, result.Segments)

	textEntry, _ := sm.Find(".text")
	dataEntry, _ := sm.Find(".data")
	bssEntry, _ := sm.Find(".bss")

	assert.Equal(t, uint64(0x400000), textEntry.VMA)
	assert.True(t, dataEntry.VMA > textEntry.VMA)
	assert.True(t, bssEntry.VMA > dataEntry.VMA)

	end, ok := names.FindSymbol("_end")
	require.True(t, ok)
	assert.Equal(t, bssEntry.VMA+bssEntry.Size, end.Value())

	bssStart, ok := names.FindSymbol("__bss_start")
	require.True(t, ok)
	assert.Equal(t, bssEntry.VMA, bssStart.Value())
}

func TestPlaceOrphansInsertsByCoarseOrder(t *testing.T) {
	sm := section.NewSectionMap()
	text := sm.GetOrCreate(".text")
	text.CreateDefaultRule()

	f := input.NewFile("a.o", input.KindELFRelocObj)
	rodata := section.NewSection(".rodata.str1.1", section.KSRegular, f)

	PlaceOrphans(sm, []*section.Section{rodata}, "")

	names := make([]string, 0)
	for _, e := range sm.Entries() {
		names = append(names, e.Name)
	}
	require.Equal(t, []string{".text", ".rodata.str1.1"}, names)
}

func TestDefineMagicSymbolsResolvesStartStop(t *testing.T) {
	sm := section.NewSectionMap()
	custom := sm.GetOrCreate("my_array")
	custom.VMA = 0x1000
	custom.Size = 0x40

	names := symtab.NewNamePool(false)
	names.CreateSymbol(nil, "__start_my_array", false, symtab.TypeNone, symtab.DescUndefined, symtab.BindingGlobal, 0, symtab.VisibilityDefault, false)
	names.CreateSymbol(nil, "__stop_my_array", false, symtab.TypeNone, symtab.DescUndefined, symtab.BindingGlobal, 0, symtab.VisibilityDefault, false)

	DefineMagicSymbols(sm, names)

	start, ok := names.FindSymbol("__start_my_array")
	require.True(t, ok)
	assert.Equal(t, uint64(0x1000), start.Value())

	stop, ok := names.FindSymbol("__stop_my_array")
	require.True(t, ok)
	assert.Equal(t, uint64(0x1040), stop.Value())
}
