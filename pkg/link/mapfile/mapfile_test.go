package mapfile

import (
	"bytes"
	"strings"
	"testing"

	"github.com/eldlink/eld/pkg/link/layout"
	"github.com/eldlink/eld/pkg/link/section"
)

func TestBuildAndWriteText(t *testing.T) {
	segs := []*layout.Segment{
		{Type: layout.PTLoad, VAddr: 0x1000, PAddr: 0x1000, Filesz: 0x200, Memsz: 0x200, Flags: layout.PFRead | layout.PFExec},
	}
	text := section.NewOutputSectionEntry(".text")
	text.VMA, text.Size = 0x1000, 0x100

	m := Build(segs, []*section.OutputSectionEntry{text}, nil)
	if len(m.Segments) != 1 || m.Segments[0].Type != "PT_LOAD" {
		t.Fatalf("unexpected segments: %+v", m.Segments)
	}
	if m.Segments[0].Flags != "RE" {
		t.Fatalf("expected flags RE, got %q", m.Segments[0].Flags)
	}

	var buf bytes.Buffer
	if err := WriteText(&buf, m); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	if !strings.Contains(buf.String(), ".text") {
		t.Fatalf("expected .text in map output, got:\n%s", buf.String())
	}
}

func TestWriteYAMLIncludesSectionName(t *testing.T) {
	m := &Map{Sections: []SectionEntry{{Name: ".data", VMA: 0x2000, Size: 0x40}}}
	var buf bytes.Buffer
	if err := WriteYAML(&buf, m); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	if !strings.Contains(buf.String(), ".data") {
		t.Fatalf("expected .data in yaml output, got:\n%s", buf.String())
	}
}
