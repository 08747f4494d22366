// Package lto is the link-time-optimization bridge (spec §4.9, external
// collaborator "LtoEngine" of spec §1): it classifies every bitcode
// global, decides what must survive the LTO backend's internal pruning,
// hands the bitcode off to an external compiler, and folds the resulting
// native objects back into the link.
//
// The bridge never performs code generation itself (spec.md's explicit
// non-goal); Engine is a thin exec.Command wrapper in the shape of the
// teacher's llvm.ClangToolchain (pkg/hw/cpu/llvm/clang.go): discover a
// tool on PATH or an explicit path, build its argument list, run it,
// report what it produced.
package lto

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/eldlink/eld/pkg/link/input"
	"github.com/eldlink/eld/pkg/link/symtab"
)

// Resolution is one bitcode global's classification, fed to the external
// LTO engine so its internal optimizer knows what it may discard (spec
// §4.9 phase A: "(prevailing, visible_to_regular_obj,
// final_definition_in_linkage_unit, linker_redefined)").
type Resolution struct {
	Name                      string
	Prevailing                bool
	VisibleToRegularObj       bool
	FinalDefinitionInLinkage  bool
	LinkerRedefined           bool
}

// Engine is the external collaborator spec §1 calls LtoEngine: it
// compiles a set of bitcode inputs, informed by Resolutions, into one or
// more native relocatable objects.
type Engine interface {
	Run(inputs []string, resolutions []Resolution, workDir string) ([]string, error)
}

// ExternalEngine shells out to an LLVM LTO-capable compiler, discovered
// the way the teacher's ClangToolchain finds clang: explicit path, then
// PATH lookup. Unlike the teacher it never tries to
// build the compiler itself — that is out of scope here, the LTO engine
// is assumed to already exist in the environment.
type ExternalEngine struct {
	// Path is the LTO-capable driver to invoke, e.g. "clang" or
	// "ld.lld". NewExternalEngine fills it via exec.LookPath when no
	// explicit path is given; Run invokes it as set.
	Path string
	// ExtraArgs are passed through verbatim after the fixed -flto flags
	// (spec's --lto-* pass-through options land here).
	ExtraArgs []string
	Verbose   bool
}

// NewExternalEngine resolves the driver path, preferring an explicit
// override, falling back to "clang" on PATH.
func NewExternalEngine(path string) (*ExternalEngine, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("lto: explicit engine path %s: %w", path, err)
		}
		return &ExternalEngine{Path: path}, nil
	}
	found, err := exec.LookPath("clang")
	if err != nil {
		return nil, fmt.Errorf("lto: no LTO-capable compiler found on PATH: %w", err)
	}
	return &ExternalEngine{Path: found}, nil
}

// Run invokes the external compiler once per input module (spec §4.9
// phase A: "invoke LtoEngine.run(inputs, resolutions) -> [native_object_path]"),
// passing each resolution as a -Wl,--lto-resolution-style hint via a
// generated response file so the backend's internal DCE keeps exactly the
// symbols the bridge decided must survive.
func (e *ExternalEngine) Run(inputs []string, resolutions []Resolution, workDir string) ([]string, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	resFile, err := writeResolutionFile(workDir, resolutions)
	if err != nil {
		return nil, err
	}

	var outputs []string
	for _, in := range inputs {
		out := filepath.Join(workDir, filepath.Base(in)+".lto.o")
		args := []string{"-flto", "-c", "-o", out, in, "-Wl,--lto-resolution-file=" + resFile}
		args = append(args, e.ExtraArgs...)

		cmd := exec.Command(e.Path, args...)
		if e.Verbose {
			fmt.Fprintf(os.Stderr, "lto: %s %v\n", e.Path, args)
		}
		output, err := cmd.CombinedOutput()
		if err != nil {
			return nil, fmt.Errorf("lto: compiling %s failed: %w\n%s", in, err, output)
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

// writeResolutionFile renders one "name prevailing visible final redefined"
// line per resolved global, sorted for determinism, matching the plain
// line-oriented per-record text files the rest of this codebase (script
// lexing, map output) favors over a binary protocol.
func writeResolutionFile(workDir string, resolutions []Resolution) (string, error) {
	sorted := append([]Resolution(nil), resolutions...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	path := filepath.Join(workDir, "resolutions.txt")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("lto: creating resolution file: %w", err)
	}
	defer f.Close()
	for _, r := range sorted {
		fmt.Fprintf(f, "%s %t %t %t %t\n", r.Name, r.Prevailing, r.VisibleToRegularObj, r.FinalDefinitionInLinkage, r.LinkerRedefined)
	}
	return path, nil
}

// PreserveRules bundles phase A's preserve criteria (spec §4.9: "Preserve:
// symbols referenced by regular objects, symbols with explicit
// --export-dynamic-symbol or preserveSymbolsLTO, commons when a linker
// script is present, dynamic-list matches, and --wrap targets").
type PreserveRules struct {
	ExportDynamicSymbols map[string]bool
	PreserveSymbolsLTO   map[string]bool
	DynamicListMatches   map[string]bool
	WrapTargets          map[string]bool
	ScriptPresent        bool
}

func (r PreserveRules) preserves(name string) bool {
	return r.ExportDynamicSymbols[name] || r.PreserveSymbolsLTO[name] ||
		r.DynamicListMatches[name] || r.WrapTargets[name]
}

// Classify builds the Resolution set for every bitcode global in names,
// applying spec §4.9 phase A's preserve rules plus §4.1's FlagShouldPreserve
// hook. referencedByRegular carries the names any non-bitcode input
// referenced, since NamePool itself does not track per-origin reference
// counts.
func Classify(names *symtab.NamePool, bitcodeGlobals []string, referencedByRegular map[string]bool, rules PreserveRules) []Resolution {
	out := make([]Resolution, 0, len(bitcodeGlobals))
	for _, name := range bitcodeGlobals {
		info, ok := names.FindInfo(name)
		if !ok {
			continue
		}
		prevailing := info.Origin != nil && info.Origin.IsBitcode()
		visible := referencedByRegular[name] || rules.preserves(name) ||
			(rules.ScriptPresent && info.Desc == symtab.DescCommon)

		out = append(out, Resolution{
			Name:                     name,
			Prevailing:               prevailing,
			VisibleToRegularObj:      visible,
			FinalDefinitionInLinkage: prevailing && !info.IsDyn(),
			LinkerRedefined:          info.IsLocalScope(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Bridge runs spec §4.9's two phases against one link's bitcode inputs.
type Bridge struct {
	Engine  Engine
	WorkDir string
	// savedWraps holds the --wrap bindings phase A must restore in phase B
	// (spec §4.9 phase B: "Restore __wrap_/__real_ bindings saved in phase A").
	savedWraps map[string]string
}

// NewBridge creates a Bridge, defaulting WorkDir to a process-private temp
// directory when empty (spec.md §4's "--save-temps[-dir] or the system
// temp").
func NewBridge(engine Engine, workDir string) (*Bridge, error) {
	if workDir == "" {
		dir, err := os.MkdirTemp("", "eld-lto-")
		if err != nil {
			return nil, fmt.Errorf("lto: creating work dir: %w", err)
		}
		workDir = dir
	} else if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("lto: preparing work dir %s: %w", workDir, err)
	}
	return &Bridge{Engine: engine, WorkDir: workDir}, nil
}

// RunPhaseA partitions and preserves (spec §4.9 phase A), saves the
// caller's wrap bindings for restoration, and invokes Engine.Run.
// referencedByRegular is the set of names any non-bitcode input
// referenced, assembled by the orchestrator's cross-reference pass over
// the non-bitcode input graph before this runs.
func (b *Bridge) RunPhaseA(bitcodeFiles []*input.File, names *symtab.NamePool, rules PreserveRules, referencedByRegular map[string]bool, wraps map[string]string) ([]string, error) {
	b.savedWraps = make(map[string]string, len(wraps))
	for k, v := range wraps {
		b.savedWraps[k] = v
	}

	var paths []string
	var globals []string
	for _, f := range bitcodeFiles {
		if !f.IsBitcode() {
			continue
		}
		paths = append(paths, f.Path())
		globals = append(globals, f.Globals...)
	}

	resolutions := Classify(names, globals, referencedByRegular, rules)
	for _, r := range resolutions {
		if info, ok := names.FindInfo(r.Name); ok && r.VisibleToRegularObj {
			info.Flags |= symtab.FlagShouldPreserve
		}
	}

	return b.Engine.Run(paths, resolutions, b.WorkDir)
}

// RunPhaseB releases the bitcode modules' opaque handles and restores the
// saved wrap bindings (spec §4.9 phase B). It does not itself re-run
// §4.5-§4.8; the orchestrator (pkg/link) re-enters those stages with
// nativeObjects substituted for the consumed bitcode inputs.
func (b *Bridge) RunPhaseB(bitcodeFiles []*input.File) map[string]string {
	for _, f := range bitcodeFiles {
		if f.IsBitcode() {
			f.LTOModule = nil
		}
	}
	restored := b.savedWraps
	b.savedWraps = nil
	return restored
}

// Cleanup removes the LTO work directory's temporary artifacts unless the
// caller asked to keep them (--save-temps).
func (b *Bridge) Cleanup(keep bool) error {
	if keep {
		return nil
	}
	return os.RemoveAll(b.WorkDir)
}
