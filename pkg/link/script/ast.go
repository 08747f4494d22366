package script

import "github.com/eldlink/eld/pkg/link/section"

// MemoryRegion is one MEMORY { name (attrs) : ORIGIN = o, LENGTH = l } entry
// (spec §4.4).
type MemoryRegion struct {
	Name   string
	Attrs  string
	Origin section.Expression
	Length section.Expression
}

// PhdrSpec is one PHDRS { name TYPE [FLAGS(expr)]; } entry.
type PhdrSpec struct {
	Name  string
	Type  string
	Flags section.Expression
}

// Assertion is a deferred ASSERT(cond, msg) encountered anywhere in the
// script (spec §4.4: "assertions that do not use `.` are deferred until
// after layout").
type Assertion struct {
	Expr    section.Expression
	Message string
}

// Script is the parsed result: everything the pipeline needs to seed a
// section.SectionMap and a set of PHDRS/MEMORY constraints before the rule
// matcher (C5) and layout engine (C8) run.
type Script struct {
	Memory     []MemoryRegion
	Phdrs      []PhdrSpec
	Sections   []*section.OutputSectionEntry
	TopAssigns []section.SymbolAssign
	Assertions []Assertion
	Defsyms    map[string]section.Expression
}
