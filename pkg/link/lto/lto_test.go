package lto

import (
	"testing"

	"github.com/eldlink/eld/pkg/link/input"
	"github.com/eldlink/eld/pkg/link/symtab"
)

type fakeEngine struct {
	gotInputs      []string
	gotResolutions []Resolution
	outputs        []string
}

func (f *fakeEngine) Run(inputs []string, resolutions []Resolution, workDir string) ([]string, error) {
	f.gotInputs = inputs
	f.gotResolutions = resolutions
	return f.outputs, nil
}

func TestClassifyMarksPrevailingBitcodeDefinitions(t *testing.T) {
	names := symtab.NewNamePool(false)
	bc := &fakeOrigin{bitcode: true}
	names.InsertSymbol(symtab.InsertParams{Origin: bc, Name: "foo", Desc: symtab.DescDefined, Binding: symtab.BindingGlobal})

	res := Classify(names, []string{"foo"}, map[string]bool{"foo": true}, PreserveRules{})
	if len(res) != 1 {
		t.Fatalf("expected 1 resolution, got %d", len(res))
	}
	if !res[0].Prevailing {
		t.Fatalf("expected foo to be prevailing (bitcode origin)")
	}
	if !res[0].VisibleToRegularObj {
		t.Fatalf("expected foo to be visible (referenced by a regular object)")
	}
}

func TestPreserveRulesCoverExportDynamicAndWrap(t *testing.T) {
	r := PreserveRules{
		ExportDynamicSymbols: map[string]bool{"a": true},
		WrapTargets:          map[string]bool{"b": true},
	}
	if !r.preserves("a") || !r.preserves("b") {
		t.Fatalf("expected both export-dynamic and wrap targets to be preserved")
	}
	if r.preserves("c") {
		t.Fatalf("did not expect c to be preserved")
	}
}

func TestBridgeRunPhaseAInvokesEngineAndRestoresWraps(t *testing.T) {
	names := symtab.NewNamePool(false)
	bcFile := input.NewFile("mod.bc", input.KindBitcode)
	bcFile.Globals = []string{"foo"}
	names.InsertSymbol(symtab.InsertParams{Origin: bcFile, Name: "foo", Desc: symtab.DescDefined, Binding: symtab.BindingGlobal})

	eng := &fakeEngine{outputs: []string{"mod.lto.o"}}
	b := &Bridge{Engine: eng, WorkDir: t.TempDir()}

	wraps := map[string]string{"malloc": "__wrap_malloc"}
	outs, err := b.RunPhaseA([]*input.File{bcFile}, names, PreserveRules{}, nil, wraps)
	if err != nil {
		t.Fatalf("RunPhaseA: %v", err)
	}
	if len(outs) != 1 || outs[0] != "mod.lto.o" {
		t.Fatalf("unexpected outputs: %v", outs)
	}
	if len(eng.gotInputs) != 1 || eng.gotInputs[0] != "mod.bc" {
		t.Fatalf("expected engine to receive mod.bc, got %v", eng.gotInputs)
	}

	restored := b.RunPhaseB([]*input.File{bcFile})
	if restored["malloc"] != "__wrap_malloc" {
		t.Fatalf("expected wrap binding to be restored, got %v", restored)
	}
	if bcFile.LTOModule != nil {
		t.Fatalf("expected bitcode module handle to be released")
	}
}

type fakeOrigin struct {
	bitcode bool
	dynamic bool
}

func (o *fakeOrigin) Describe() string  { return "fake" }
func (o *fakeOrigin) IsDynamic() bool   { return o.dynamic }
func (o *fakeOrigin) IsBitcode() bool   { return o.bitcode }
