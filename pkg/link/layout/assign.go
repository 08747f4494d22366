package layout

import (
	"fmt"

	"github.com/eldlink/eld/pkg/link/section"
	"github.com/eldlink/eld/pkg/link/symtab"
)

// Fill is one padding run recorded for an output section, keyed by the
// `(output_section) -> [(start, end, fill_expr)]` map spec §4.8 step 3
// names.
type Fill struct {
	Start, End uint64
	Value      int64
}

// EvaluateAssignments runs spec §4.8 step 3 over sm's entries in order,
// keeping `.` current in loc and defining or updating NamePool symbols for
// every SymbolAssign encountered (both rule-local and output-section-level
// assigns). The returned map accumulates FILL/`=fill` padding runs per
// output-section name.
func EvaluateAssignments(sm *section.SectionMap, loc *locationCounter, names *symtab.NamePool) (map[string][]Fill, error) {
	fills := make(map[string][]Fill)

	for _, entry := range sm.Entries() {
		sectionStart := uint64(loc.Dot())

		for _, rule := range entry.Rules {
			if err := evalAssigns(rule.Assigns, loc, names); err != nil {
				return nil, fmt.Errorf("layout: %s: %w", entry.Name, err)
			}
		}
		if err := evalAssigns(entry.Assigns, loc, names); err != nil {
			return nil, fmt.Errorf("layout: %s: %w", entry.Name, err)
		}

		if entry.Epilog.Fill != nil {
			v, err := entry.Epilog.Fill.Eval(loc)
			if err != nil {
				return nil, fmt.Errorf("layout: %s: fill expression: %w", entry.Name, err)
			}
			fills[entry.Name] = append(fills[entry.Name], Fill{Start: sectionStart, End: uint64(loc.Dot()), Value: v})
		}
	}
	return fills, nil
}

func evalAssigns(assigns []section.SymbolAssign, loc *locationCounter, names *symtab.NamePool) error {
	for _, a := range assigns {
		if a.Expr == nil {
			continue
		}
		v, err := a.Expr.Eval(loc)
		if err != nil {
			return fmt.Errorf("assignment %s: %w", a.Name, err)
		}
		if a.Name == "." {
			loc.SetDot(v)
			continue
		}
		if a.Provide {
			if _, exists := names.FindInfo(a.Name); exists {
				continue
			}
		}
		defineAbsolute(names, a.Name, uint64(v), a.Hidden)
	}
	return nil
}

// defineAbsolute creates (or overwrites the placement of) an absolute
// symbol for a script assignment or a standard/magic symbol the layout
// engine itself defines.
func defineAbsolute(names *symtab.NamePool, name string, value uint64, hidden bool) {
	vis := symtab.VisibilityDefault
	if hidden {
		vis = symtab.VisibilityHidden
	}
	info, ok := names.FindInfo(name)
	if !ok {
		info = names.CreateSymbol(nil, name, false, symtab.TypeNone, symtab.DescAbsolute, symtab.BindingGlobal, 0, vis, false)
	}
	names.SetPlacement(info, symtab.NewAbsoluteSymbol(info, value))
}
