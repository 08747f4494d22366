// Package link is the top-level orchestrator: it owns one link's shared
// state (name pool, section map, input graph) and drives one link in this
// order: C4 script load -> C2 read inputs -> C1 resolve (+ --defsym) ->
// C9 LTO when bitcode is present (fresh name pool and section map, then
// re-resolve) -> C5 match -> plugins -> C6 dedup -> C7.scan -> C8 layout
// -> C7.apply -> map build. Link does not write the output file; the
// caller does that with Module.Writer. Grounded on the teacher's
// mc.Resolve()-style single entry point that owns a Controller's state
// and calls into each subsystem in a fixed order
// (pkg/hw/cpu/mc/symbolresolver.go's Resolve method).
package link

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/eldlink/eld/pkg/backend"
	"github.com/eldlink/eld/pkg/backend/aarch64"
	"github.com/eldlink/eld/pkg/backend/x86_64"
	"github.com/eldlink/eld/pkg/link/config"
	"github.com/eldlink/eld/pkg/link/dedup"
	"github.com/eldlink/eld/pkg/link/diag"
	"github.com/eldlink/eld/pkg/link/input"
	"github.com/eldlink/eld/pkg/link/layout"
	"github.com/eldlink/eld/pkg/link/lto"
	"github.com/eldlink/eld/pkg/link/mapfile"
	"github.com/eldlink/eld/pkg/link/plugin"
	"github.com/eldlink/eld/pkg/link/reloc"
	"github.com/eldlink/eld/pkg/link/rules"
	"github.com/eldlink/eld/pkg/link/script"
	"github.com/eldlink/eld/pkg/link/section"
	"github.com/eldlink/eld/pkg/link/symtab"
	"github.com/eldlink/eld/pkg/objfmt"
	"github.com/eldlink/eld/pkg/utils"
)

// Module is one link's shared state (spec §3's "Data Model"): the name
// pool, the section map, and the input graph every C1-C10 component reads
// or mutates during the run.
type Module struct {
	Config *config.LinkConfig
	Diag   *diag.Collector

	Names      *symtab.NamePool
	SectionMap *section.SectionMap
	Graph      *input.Graph
	Backend    backend.Backend

	Reader objfmt.ObjectReader
	Writer objfmt.ObjectWriter
	Plugins *plugin.Bus
}

// NewModule builds the shared state for one link from a resolved
// LinkConfig. Target selects the backend the way the teacher's llvm
// package selects an ISA-specific code path off a string target triple.
func NewModule(cfg *config.LinkConfig) (*Module, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d, err := diag.NewCollector(cfg.LogFile)
	if err != nil {
		return nil, err
	}

	var be backend.Backend
	switch {
	case hasPrefix(cfg.Target, "aarch64"):
		be = aarch64.New()
	default:
		be = x86_64.New(cfg.PIE)
	}

	m := &Module{
		Config:     cfg,
		Diag:       d,
		Names:      symtab.NewNamePool(false),
		SectionMap: section.NewSectionMap(),
		Graph:      input.NewGraph(),
		Backend:    be,
		Reader:     objfmt.NewELFReader(),
		Writer:     objfmt.NewELFWriter(),
		Plugins:    plugin.NewBus(),
	}
	for _, w := range cfg.Wrap {
		m.Names.SetWrap(w)
	}
	return m, nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// Result is what a completed link produced, for the caller (cmd/eld) to
// write out and report.
type Result struct {
	Layout *layout.Result
	Map    *mapfile.Map
}

// Link runs the fixed pipeline end to end. When bitcode inputs are present,
// the LTO bridge runs before rule matching and the name pool and section
// map are rebuilt from its native output; the §4.5-§4.8 stages run once.
func (m *Module) Link() (*Result, error) {
	defer m.Plugins.Destroy()

	scr, err := m.loadScript()
	if err != nil {
		return nil, err
	}

	files, bitcodeFiles, err := m.readInputs()
	if err != nil {
		return nil, err
	}
	if scr != nil {
		m.seedSectionMapFromScript(scr)
	}

	if err := m.resolveAll(files); err != nil {
		return nil, err
	}
	if err := m.applyDefsyms(); err != nil {
		return nil, err
	}
	if err := m.Diag.Abort("resolve"); err != nil {
		return nil, err
	}

	if len(bitcodeFiles) > 0 {
		native, err := m.runLTO(bitcodeFiles)
		if err != nil {
			return nil, err
		}
		nativeFiles, _, err := m.readFiles(native)
		if err != nil {
			return nil, err
		}
		files = append(nonBitcode(files), nativeFiles...)
		m.Names = symtab.NewNamePool(false)
		for _, w := range m.Config.Wrap {
			m.Names.SetWrap(w)
		}
		m.SectionMap = section.NewSectionMap()
		if scr != nil {
			m.seedSectionMapFromScript(scr)
		}
		if err := m.resolveAll(files); err != nil {
			return nil, err
		}
		if err := m.applyDefsyms(); err != nil {
			return nil, err
		}
		if err := m.Diag.Abort("resolve-post-lto"); err != nil {
			return nil, err
		}
	}

	orphans, err := m.matchRules(files)
	if err != nil {
		return nil, err
	}

	m.Plugins.VisitSections(allSections(files), m.SectionMap)
	if err := m.Plugins.Run(); err != nil {
		return nil, err
	}

	m.dedupAll(files)

	if err := m.scanRelocations(files); err != nil {
		return nil, err
	}
	if err := m.Diag.Abort("scan"); err != nil {
		return nil, err
	}

	var assertions []layout.Assertion
	if scr != nil {
		for _, a := range scr.Assertions {
			assertions = append(assertions, layout.Assertion{Expr: a.Expr, Message: a.Message})
		}
	}

	m.Plugins.VisitOutputSections(plugin.BeforeLayout, m.SectionMap)

	engine := &layout.Engine{
		SectionMap:   m.SectionMap,
		Names:        m.Names,
		Backend:      m.Backend,
		Relro:        m.Config.Relro,
		OrphanPolicy: string(m.Config.OrphanHandling),
		Assertions:   assertions,
	}
	res, err := engine.Run(orphans)
	if err != nil {
		return nil, err
	}
	if err := m.Diag.Abort("layout"); err != nil {
		return nil, err
	}

	m.Plugins.VisitOutputSections(plugin.AfterLayout, m.SectionMap)

	if err := m.applyRelocations(files); err != nil {
		return nil, err
	}
	if err := m.Diag.Abort("apply"); err != nil {
		return nil, err
	}

	mp := mapfile.Build(res.Segments, m.SectionMap.Entries(), m.Names)
	return &Result{Layout: res, Map: mp}, nil
}

func allSections(files []*input.File) []*section.Section {
	var out []*section.Section
	for _, f := range files {
		out = append(out, f.Sections...)
	}
	return out
}

func nonBitcode(files []*input.File) []*input.File {
	out := make([]*input.File, 0, len(files))
	for _, f := range files {
		if !f.IsBitcode() {
			out = append(out, f)
		}
	}
	return out
}

func (m *Module) loadScript() (*script.Script, error) {
	if len(m.Config.ScriptPath) == 0 {
		return nil, nil
	}
	// Only the first -T is honored here; INCLUDE/GROUP directive
	// expansion across multiple script files is left to the input
	// graph's own GROUP() handling once a script names further inputs.
	data, err := readFileBytes(m.Config.ScriptPath[0])
	if err != nil {
		return nil, utils.MakeError(err, "link: reading script %s", m.Config.ScriptPath[0])
	}
	p, err := script.NewParser(string(data))
	if err != nil {
		return nil, err
	}
	return p.Parse()
}

func (m *Module) readInputs() (files, bitcode []*input.File, err error) {
	return m.readFiles(m.Config.Inputs)
}

func (m *Module) readFiles(paths []string) (files, bitcode []*input.File, err error) {
	for _, path := range paths {
		f, err := m.Reader.Read(path)
		if err != nil {
			return nil, nil, err
		}
		m.Graph.AddFile(f)
		files = append(files, f)
		if f.IsBitcode() {
			bitcode = append(bitcode, f)
		}
	}
	return files, bitcode, nil
}

// seedSectionMapFromScript copies the script-authored output sections and
// memory layout into the module's live section map, run once per (re-)
// resolution pass since layout/resolve state resets on LTO re-entry.
func (m *Module) seedSectionMapFromScript(s *script.Script) {
	for _, out := range s.Sections {
		if existing, ok := m.SectionMap.Find(out.Name); ok {
			existing.Rules = out.Rules
			existing.Assigns = out.Assigns
			continue
		}
		entry := m.SectionMap.GetOrCreate(out.Name)
		entry.Rules = out.Rules
		entry.Assigns = out.Assigns
		entry.Prolog = out.Prolog
		entry.Epilog = out.Epilog
	}
}

// resolveAll feeds every file's symbols through the name pool in graph
// order (spec §4.1's command-line-order resolution).
func (m *Module) resolveAll(files []*input.File) error {
	for _, f := range files {
		for _, rec := range f.SymbolRecords {
			params := symtab.InsertParams{
				Origin:  f,
				Name:    m.Names.RewriteReference(rec.Name),
				Binding: bindingFor(rec),
				Desc:    descFor(rec),
				Size:    rec.Size,
				Align:   rec.Align,
				Value:   rec.Value,
			}
			res, err := m.Names.InsertSymbol(params)
			if err != nil {
				m.Diag.Errorf("resolve", "%s: %v", f.Describe(), err)
				continue
			}
			if rec.Undefined {
				continue
			}
			placement := m.placementFor(res.Info, rec)
			if placement != nil {
				m.Names.SetPlacement(res.Info, placement)
			}
		}
	}
	return nil
}

func bindingFor(rec input.SymbolRecord) symtab.Binding {
	switch {
	case rec.Local:
		return symtab.BindingLocal
	case rec.Weak:
		return symtab.BindingWeak
	default:
		return symtab.BindingGlobal
	}
}

func descFor(rec input.SymbolRecord) symtab.Desc {
	switch {
	case rec.Undefined:
		return symtab.DescUndefined
	case rec.Common:
		return symtab.DescCommon
	default:
		return symtab.DescDefined
	}
}

// applyDefsyms synthesizes one absolute symbol per --defsym name=value flag.
// Only a bare decimal or 0x-prefixed hex literal is accepted on the right
// side; the full linker-script expression grammar (script.Parser.parseExpr)
// is intentionally not reused here since it resolves against a live
// location counter/section context a bare CLI flag never has.
func (m *Module) applyDefsyms() error {
	for _, d := range m.Config.Defsyms {
		name, valueStr, ok := strings.Cut(d, "=")
		if !ok {
			return fmt.Errorf("link: malformed --defsym %q, want name=value", d)
		}
		value, err := parseDefsymValue(valueStr)
		if err != nil {
			return fmt.Errorf("link: --defsym %s: %w", d, err)
		}
		info := m.Names.CreateSymbol(nil, name, false, symtab.TypeNone, symtab.DescAbsolute, symtab.BindingGlobal, 0, symtab.VisibilityDefault, false)
		m.Names.SetPlacement(info, symtab.NewAbsoluteSymbol(info, value))
	}
	return nil
}

func parseDefsymValue(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	return strconv.ParseUint(s, base, 64)
}

func (m *Module) placementFor(info *symtab.ResolveInfo, rec input.SymbolRecord) *symtab.LdSymbol {
	if rec.Section != nil && len(rec.Section.Fragments) > 0 {
		ref := section.FragmentRef{Frag: rec.Section.Fragments[0], Offset: rec.Value}
		return symtab.NewSectionSymbol(info, ref)
	}
	if rec.Common {
		return symtab.NewAbsoluteSymbol(info, 0)
	}
	return nil
}

// runLTO drives the C9 bridge's phase A over every bitcode input,
// defaulting to whatever LTO-capable compiler exec.LookPath finds.
func (m *Module) runLTO(bitcodeFiles []*input.File) ([]string, error) {
	engine, err := lto.NewExternalEngine("")
	if err != nil {
		return nil, fmt.Errorf("link: LTO requested but no engine available: %w", err)
	}
	engine.Verbose = m.Config.Verbose

	bridge, err := lto.NewBridge(engine, "")
	if err != nil {
		return nil, err
	}

	exportDyn := toSet(m.Config.ExportDynamic)
	wrapTargets := toSet(m.Config.Wrap)

	if len(exportDyn) > 0 {
		preserved := utils.Keys(exportDyn)
		sort.Strings(preserved)
		m.Diag.Notef("lto", "preserving %d export-dynamic symbol(s) across LTO: %s", len(preserved), strings.Join(preserved, ", "))
	}

	referenced := make(map[string]bool)
	for _, name := range m.Names.Names() {
		if info, ok := m.Names.FindInfo(name); ok && (info.Origin == nil || !info.Origin.IsBitcode()) {
			referenced[name] = true
		}
	}

	rules := lto.PreserveRules{
		ExportDynamicSymbols: exportDyn,
		WrapTargets:          wrapTargets,
		ScriptPresent:        len(m.Config.ScriptPath) > 0,
	}

	wraps := make(map[string]string)
	return bridge.RunPhaseA(bitcodeFiles, m.Names, rules, referenced, wraps)
}

func toSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, s := range items {
		out[s] = true
	}
	return out
}

func (m *Module) matchRules(files []*input.File) ([]*section.Section, error) {
	policy := rules.OrphanPlace
	switch m.Config.OrphanHandling {
	case config.OrphanWarn:
		policy = rules.OrphanWarn
	case config.OrphanError:
		policy = rules.OrphanError
	case config.OrphanDiscard:
		policy = rules.OrphanDiscard
	}

	matcher := rules.NewMatcher(m.SectionMap, policy)
	numWildcards := m.countWildcards()

	var orphans []*section.Section
	for _, f := range files {
		if !f.IsObjectLike() {
			continue
		}
		cache := matcher.StorePatternsForInput(f, numWildcards)
		orphans = append(orphans, matcher.AssignInputFromOutput(f)...)
		matcher.RetryPending(f, cache)
	}
	return orphans, nil
}

func (m *Module) countWildcards() int {
	max := -1
	for _, out := range m.SectionMap.Entries() {
		for _, rule := range out.Rules {
			if rule.Spec.FilePattern != nil && rule.Spec.FilePattern.ID > max {
				max = rule.Spec.FilePattern.ID
			}
			if rule.Spec.MemberPattern != nil && rule.Spec.MemberPattern.ID > max {
				max = rule.Spec.MemberPattern.ID
			}
		}
	}
	return max + 1
}

// dedupAll runs the COMDAT group and mergeable-string passes (spec §4.6)
// over every output section once sections are matched.
func (m *Module) dedupAll(files []*input.File) {
	tracker := dedup.NewGroupTracker()
	for _, f := range files {
		for sig, members := range f.GroupSignatures {
			won, _ := tracker.Claim(sig, f.Describe())
			if !won {
				for _, name := range members {
					for _, s := range f.Sections {
						if s.Name == name {
							s.Kind = section.KSIgnore
						}
					}
				}
			}
		}
	}

	merger := dedup.NewStringMerger(false)
	for _, out := range m.SectionMap.Entries() {
		for _, s := range out.Sections() {
			if s.Kind != section.KSMergeStr {
				continue
			}
			for _, frag := range s.Fragments {
				if frag.Kind == section.KindMergeString {
					merger.MergeFragment(frag, out, s.Flags.Has(section.SHFAlloc))
				}
			}
		}
	}
}

func (m *Module) scanRelocations(files []*input.File) error {
	scanner := reloc.NewScanner(m.Backend)
	for _, f := range files {
		for _, r := range f.Relocations {
			resolved, ok := m.resolveRelocation(r)
			if !ok {
				m.Diag.Errorf("scan", "undefined reference to %q in %s", r.Symbol, f.Describe())
				continue
			}
			if err := scanner.Scan(resolved); err != nil {
				m.Diag.Errorf("scan", "%s: %v", f.Describe(), err)
			}
		}
	}
	return nil
}

func (m *Module) applyRelocations(files []*input.File) error {
	scanner := reloc.NewScanner(m.Backend)
	applier := reloc.NewApplier(m.Backend)
	for _, f := range files {
		for _, r := range f.Relocations {
			resolved, ok := m.resolveRelocation(r)
			if !ok {
				continue
			}
			applied, err := applier.Apply(resolved, scanner)
			if err != nil {
				m.Diag.Errorf("apply", "%s: %v", f.Describe(), err)
				continue
			}
			writeBack(applied)
		}
	}
	return nil
}

// writeBack splices an applied relocation's final value into the target
// fragment's raw bytes. Only KindRegion fragments hold bytes a relocation
// can address; other kinds (fill, hash, merge-string, ...) never carry
// relocations against them.
func writeBack(a reloc.AppliedReloc) {
	if a.Target == nil || a.Target.Kind != section.KindRegion || a.Width <= 0 {
		return
	}
	end := a.Offset + uint64(a.Width)
	if end > uint64(len(a.Target.Region)) {
		return
	}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, a.Value)
	copy(a.Target.Region[a.Offset:end], buf[:a.Width])
}

func (m *Module) resolveRelocation(r input.Relocation) (reloc.Resolved, bool) {
	name := m.Names.RewriteReference(r.Symbol)
	info, haveInfo := m.Names.FindInfo(name)
	sym, haveSym := m.Names.FindSymbol(name)
	if !haveInfo && !haveSym {
		return reloc.Resolved{}, false
	}
	return reloc.Resolved{Rec: r, Info: info, Symbol: sym}, true
}

func readFileBytes(path string) ([]byte, error) {
	return os.ReadFile(path)
}
