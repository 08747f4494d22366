package link

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldlink/eld/pkg/link/config"
	"github.com/eldlink/eld/pkg/link/input"
	"github.com/eldlink/eld/pkg/link/section"
)

// fakeReader hands back pre-built input.File graphs instead of parsing real
// ELF bytes off disk, the same role a stub Reader plays in the teacher's
// own loader tests (a map keyed by the path the caller asks for).
type fakeReader struct {
	files map[string]*input.File
}

func (r *fakeReader) Read(path string) (*input.File, error) {
	f, ok := r.files[path]
	if !ok {
		return nil, assertUnknownPath(path)
	}
	return f, nil
}

func assertUnknownPath(path string) error {
	return &unknownPathError{path: path}
}

type unknownPathError struct{ path string }

func (e *unknownPathError) Error() string { return "link: unknown fixture path " + e.path }

func oneObject(path string) *input.File {
	f := input.NewFile(path, input.KindELFRelocObj)

	text := section.NewSection(".text", section.KSRegular, f)
	text.Flags = section.SHFAlloc | section.SHFExecInstr
	text.AddFragment(section.NewRegionFragment(make([]byte, 16), 16))
	f.Sections = append(f.Sections, text)

	data := section.NewSection(".data", section.KSRegular, f)
	data.Flags = section.SHFAlloc | section.SHFWrite
	data.AddFragment(section.NewRegionFragment(make([]byte, 8), 8))
	f.Sections = append(f.Sections, data)

	f.SymbolRecords = []input.SymbolRecord{
		{Name: "_start", Size: 4, Section: text},
	}
	return f
}

func newTestConfig(inputs ...string) *config.LinkConfig {
	return &config.LinkConfig{
		Target:            "x86_64-unknown-linux-gnu",
		Endian:            "little",
		Inputs:            inputs,
		Output:            "a.out",
		Entry:             "_start",
		OrphanHandling:    config.OrphanPlace,
		HashStyle:         "gnu",
		Relro:             true,
		UnresolvedSymbols: config.UnresolvedReportAll,
	}
}

func TestLinkSimpleObjectNoScriptNoLTO(t *testing.T) {
	cfg := newTestConfig("a.o")
	m, err := NewModule(cfg)
	require.NoError(t, err)

	m.Reader = &fakeReader{files: map[string]*input.File{"a.o": oneObject("a.o")}}

	result, err := m.Link()
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.Layout.Segments)

	text, ok := m.SectionMap.Find(".text")
	require.True(t, ok)
	assert.True(t, text.VMA > 0)

	start, ok := m.Names.FindSymbol("_start")
	require.True(t, ok)
	assert.Equal(t, text.VMA, start.Value())
}

func TestLinkOrphanSectionGetsPlaced(t *testing.T) {
	cfg := newTestConfig("a.o")
	m, err := NewModule(cfg)
	require.NoError(t, err)

	f := oneObject("a.o")
	orphan := section.NewSection(".rodata.str1.1", section.KSRegular, f)
	orphan.Flags = section.SHFAlloc
	orphan.AddFragment(section.NewRegionFragment([]byte("hi\x00"), 1))
	f.Sections = append(f.Sections, orphan)

	m.Reader = &fakeReader{files: map[string]*input.File{"a.o": f}}

	result, err := m.Link()
	require.NoError(t, err)
	require.NotNil(t, result)

	_, ok := m.SectionMap.Find(".rodata.str1.1")
	assert.True(t, ok, "orphan section should have been auto-placed under --orphan-handling=place")
}

func TestLinkDefsymCreatesAbsoluteSymbol(t *testing.T) {
	cfg := newTestConfig("a.o")
	cfg.Defsyms = []string{"PATCH_BASE=0x1000"}
	m, err := NewModule(cfg)
	require.NoError(t, err)

	m.Reader = &fakeReader{files: map[string]*input.File{"a.o": oneObject("a.o")}}

	_, err = m.Link()
	require.NoError(t, err)

	sym, ok := m.Names.FindSymbol("PATCH_BASE")
	require.True(t, ok)
	assert.Equal(t, uint64(0x1000), sym.Value())
}

func TestLinkMalformedDefsymIsRejected(t *testing.T) {
	cfg := newTestConfig("a.o")
	cfg.Defsyms = []string{"no-equals-sign"}
	m, err := NewModule(cfg)
	require.NoError(t, err)

	m.Reader = &fakeReader{files: map[string]*input.File{"a.o": oneObject("a.o")}}

	_, err = m.Link()
	assert.Error(t, err)
}

func TestLinkUndefinedReferenceAborts(t *testing.T) {
	cfg := newTestConfig("a.o")
	m, err := NewModule(cfg)
	require.NoError(t, err)

	f := oneObject("a.o")
	f.Relocations = []input.Relocation{
		{TargetSection: f.Sections[0], Offset: 4, Symbol: "does_not_exist", Type: 0},
	}
	m.Reader = &fakeReader{files: map[string]*input.File{"a.o": f}}

	_, err = m.Link()
	assert.Error(t, err, "an unresolved relocation target should abort the scan phase")
}

func TestLinkWritesELFOutput(t *testing.T) {
	cfg := newTestConfig("a.o")
	m, err := NewModule(cfg)
	require.NoError(t, err)

	m.Reader = &fakeReader{files: map[string]*input.File{"a.o": oneObject("a.o")}}

	result, err := m.Link()
	require.NoError(t, err)

	entry, ok := m.Names.FindSymbol("_start")
	require.True(t, ok)

	var buf bytes.Buffer
	err = m.Writer.Write(&buf, result.Layout, m.SectionMap, entry.Value())
	require.NoError(t, err)
	assert.NotEmpty(t, buf.Bytes())
	assert.Equal(t, "\x7fELF", string(buf.Bytes()[:4]))
}
