package script

import "testing"

func mustParse(t *testing.T, src string) *Script {
	t.Helper()
	p, err := NewParser(src)
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}
	s, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return s
}

func TestParseMemoryAndPhdrs(t *testing.T) {
	src := `
MEMORY {
  rom (rx) : ORIGIN = 0x8000, LENGTH = 64K
  ram (rwx) : ORIGIN = 0x20000000, LENGTH = 0x1000
}
PHDRS {
  text PT_LOAD FLAGS(5);
  data PT_LOAD;
}
`
	s := mustParse(t, src)
	if len(s.Memory) != 2 {
		t.Fatalf("expected 2 memory regions, got %d", len(s.Memory))
	}
	if s.Memory[0].Name != "rom" || s.Memory[0].Attrs != "rx" {
		t.Fatalf("unexpected first region: %+v", s.Memory[0])
	}
	origin, err := s.Memory[0].Origin.Eval(nil)
	if err != nil || origin != 0x8000 {
		t.Fatalf("rom ORIGIN = %d, %v", origin, err)
	}
	length, err := s.Memory[0].Length.Eval(nil)
	if err != nil || length != 64*1024 {
		t.Fatalf("rom LENGTH = %d, %v", length, err)
	}

	if len(s.Phdrs) != 2 {
		t.Fatalf("expected 2 PHDRS entries, got %d", len(s.Phdrs))
	}
	if s.Phdrs[0].Name != "text" || s.Phdrs[0].Type != "PT_LOAD" {
		t.Fatalf("unexpected phdr: %+v", s.Phdrs[0])
	}
	flags, err := s.Phdrs[0].Flags.Eval(nil)
	if err != nil || flags != 5 {
		t.Fatalf("text FLAGS = %d, %v", flags, err)
	}
}

func TestParseSectionsWithKeepProvideAndFill(t *testing.T) {
	src := `
SECTIONS {
  .text : {
    *(.text .text.*)
    KEEP(*(.init))
  } > ram :text =0xff

  .data : {
    PROVIDE(__data_start = .);
    *(.data .data.*)
  } > ram

  ASSERT(SIZEOF(.text) < 0x1000, "text too big")
}
`
	s := mustParse(t, src)
	if len(s.Sections) != 2 {
		t.Fatalf("expected 2 output sections, got %d", len(s.Sections))
	}

	text := s.Sections[0]
	if text.Name != ".text" {
		t.Fatalf("expected .text, got %q", text.Name)
	}
	if len(text.Rules) != 2 {
		t.Fatalf("expected 2 rules in .text, got %d", len(text.Rules))
	}
	if text.Rules[0].Spec.FilePattern.Text != "*" {
		t.Fatalf("unexpected file pattern: %q", text.Rules[0].Spec.FilePattern.Text)
	}
	if len(text.Rules[0].Spec.SectionPattern) != 2 {
		t.Fatalf("expected 2 section patterns, got %d", len(text.Rules[0].Spec.SectionPattern))
	}
	if !text.Rules[1].Policy.Keeps() {
		t.Fatalf("expected KEEP rule to keep")
	}
	if text.Epilog.VMARegion != "ram" {
		t.Fatalf("unexpected VMA region %q", text.Epilog.VMARegion)
	}
	if len(text.Epilog.Phdrs) != 1 || text.Epilog.Phdrs[0] != "text" {
		t.Fatalf("unexpected phdr list: %+v", text.Epilog.Phdrs)
	}
	if text.Epilog.Fill == nil {
		t.Fatalf("expected fill expression")
	}
	fillVal, err := text.Epilog.Fill.Eval(nil)
	if err != nil || fillVal != 0xff {
		t.Fatalf("fill = %d, %v", fillVal, err)
	}

	data := s.Sections[1]
	if len(data.Assigns) != 1 || data.Assigns[0].Name != "__data_start" || !data.Assigns[0].Provide {
		t.Fatalf("unexpected PROVIDE assign: %+v", data.Assigns)
	}
	if _, ok := data.Assigns[0].Expr.(Dot); !ok {
		t.Fatalf("expected PROVIDE rhs to be Dot, got %T", data.Assigns[0].Expr)
	}

	if len(s.Assertions) != 1 || s.Assertions[0].Message != "text too big" {
		t.Fatalf("unexpected assertions: %+v", s.Assertions)
	}
}

func TestParseTopLevelAssignAndDot(t *testing.T) {
	src := `
SECTIONS {
  . = 0x8000;
  .text : { *(.text) }
  __end = ALIGN(4);
}
`
	s := mustParse(t, src)
	if len(s.Sections) != 1 {
		t.Fatalf("expected 1 output section, got %d", len(s.Sections))
	}
}

func TestParseCompoundAssignDesugarsToBinary(t *testing.T) {
	src := `x = 1; x += 2;`
	s := mustParse(t, src)
	if len(s.TopAssigns) != 2 {
		t.Fatalf("expected 2 top-level assigns, got %d", len(s.TopAssigns))
	}
	bin, ok := s.TopAssigns[1].Expr.(Binary)
	if !ok {
		t.Fatalf("expected Binary for +=, got %T", s.TopAssigns[1].Expr)
	}
	if bin.Op != "+" {
		t.Fatalf("expected '+' op, got %q", bin.Op)
	}
	if sym, ok := bin.Left.(Sym); !ok || sym.Name != "x" {
		t.Fatalf("expected left operand Sym{x}, got %#v", bin.Left)
	}
}
