package plugin

import (
	"testing"

	"github.com/eldlink/eld/pkg/link/section"
)

type recordingPlugin struct {
	name        string
	visited     []string
	initialized bool
	destroyed   bool
	redirectTo  string
}

func (p *recordingPlugin) Name() string { return p.name }
func (p *recordingPlugin) Init(args []string) error {
	p.initialized = true
	return nil
}
func (p *recordingPlugin) Run() error { return nil }
func (p *recordingPlugin) Destroy()   { p.destroyed = true }

func (p *recordingPlugin) VisitSection(s *section.Section) {
	p.visited = append(p.visited, s.Name)
}

func (p *recordingPlugin) MatchSection(s *section.Section) string {
	return p.redirectTo
}

func TestBusLifecycleRunsInitRunDestroy(t *testing.T) {
	b := NewBus()
	p := &recordingPlugin{name: "probe"}
	if err := b.Register(p, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !p.initialized {
		t.Fatalf("expected Init to run on Register")
	}
	if err := b.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	b.Destroy()
	if !p.destroyed {
		t.Fatalf("expected Destroy to run")
	}
}

func TestBusVisitSectionsAppliesMatcherOverride(t *testing.T) {
	b := NewBus()
	p := &recordingPlugin{name: "redirector", redirectTo: ".custom"}
	if err := b.Register(p, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}

	owner := &fakeOwner{}
	s := section.NewSection(".text", section.KSRegular, owner)
	sm := section.NewSectionMap()

	b.VisitSections([]*section.Section{s}, sm)

	if len(p.visited) != 1 || p.visited[0] != ".text" {
		t.Fatalf("expected .text visited, got %v", p.visited)
	}
	if _, ok := sm.Find(".custom"); !ok {
		t.Fatalf("expected plugin override to create .custom output section")
	}
}

func TestBusVerifyMovesRejectsUnreported(t *testing.T) {
	b := NewBus()
	observed := map[string]string{".text.cold": ".text"}
	if err := b.VerifyMoves(observed); err == nil {
		t.Fatalf("expected unreported move to fail verification")
	}

	b.RecordMove("mover", ".text.cold", ".text")
	if err := b.VerifyMoves(observed); err != nil {
		t.Fatalf("VerifyMoves: %v", err)
	}
}

func TestBusControlFileSizesChainsPlugins(t *testing.T) {
	b := NewBus()
	b.plugins = append(b.plugins, &resizerPlugin{addBytes: 4}, &resizerPlugin{addBytes: 8})

	blocks := []Block{{Name: "a", Size: 10}}
	out, err := b.ControlFileSizes(".text", blocks)
	if err != nil {
		t.Fatalf("ControlFileSizes: %v", err)
	}
	if len(out) != 1 || out[0].Size != 22 {
		t.Fatalf("expected chained resize to 22, got %+v", out)
	}
}

type resizerPlugin struct {
	addBytes uint64
}

func (r *resizerPlugin) Name() string             { return "resizer" }
func (r *resizerPlugin) Init(args []string) error { return nil }
func (r *resizerPlugin) Run() error               { return nil }
func (r *resizerPlugin) Destroy()                 {}

func (r *resizerPlugin) ControlFileSize(outputSection string, blocks []Block) ([]Block, error) {
	out := append([]Block(nil), blocks...)
	for i := range out {
		out[i].Size += r.addBytes
	}
	return out, nil
}

type fakeOwner struct{}

func (fakeOwner) Path() string          { return "a.o" }
func (fakeOwner) ArchiveMember() string { return "" }
func (fakeOwner) IsDynamic() bool       { return false }
