package layout

import "github.com/eldlink/eld/pkg/link/symtab"

// locationCounter implements section.EvalContext (spec §4.8 step 3:
// "evaluate assignments in source order, maintaining `.`"). It resolves
// symbol lookups against the NamePool so a script expression like
// `next = . + SIZEOF(.text)` or a reference to a previously-assigned symbol
// works during the same evaluation pass.
type locationCounter struct {
	dot   int64
	names *symtab.NamePool
}

func newLocationCounter(names *symtab.NamePool) *locationCounter {
	return &locationCounter{names: names}
}

func (l *locationCounter) Dot() int64     { return l.dot }
func (l *locationCounter) SetDot(v int64) { l.dot = v }

// Lookup satisfies section.EvalContext for plain symbol references inside
// expressions; it does not implement SIZEOF/ADDR/etc. (those are script
// builtins owned by pkg/link/script's evaluator, which wraps this context).
func (l *locationCounter) Lookup(name string) (int64, bool) {
	if l.names == nil {
		return 0, false
	}
	sym, ok := l.names.FindSymbol(name)
	if !ok {
		return 0, false
	}
	return int64(sym.Value()), true
}
