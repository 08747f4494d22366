package script

import (
	"fmt"

	"github.com/eldlink/eld/pkg/link/section"
)

// Expr nodes implement section.Expression, so the layout engine can
// evaluate them without importing script (spec §4.4's "post-order walk
// over a borrow-free expression AST").

// Num is an integer literal.
type Num struct{ Value int64 }

func (n Num) Eval(ctx section.EvalContext) (int64, error) { return n.Value, nil }

// Dot evaluates to the current location counter.
type Dot struct{}

func (Dot) Eval(ctx section.EvalContext) (int64, error) { return ctx.Dot(), nil }

// Sym looks up a previously assigned or resolved symbol by name.
type Sym struct{ Name string }

func (s Sym) Eval(ctx section.EvalContext) (int64, error) {
	v, ok := ctx.Lookup(s.Name)
	if !ok {
		return 0, &EvalError{Context: "symbol " + s.Name, Reason: "undefined"}
	}
	return v, nil
}

// Unary applies a prefix operator ('-', '~', '!') to Operand.
type Unary struct {
	Op      string
	Operand section.Expression
}

func (u Unary) Eval(ctx section.EvalContext) (int64, error) {
	v, err := u.Operand.Eval(ctx)
	if err != nil {
		return 0, err
	}
	switch u.Op {
	case "-":
		return -v, nil
	case "~":
		return ^v, nil
	case "!":
		if v == 0 {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, &EvalError{Context: "unary " + u.Op, Reason: "unknown operator"}
	}
}

// Binary applies an infix arithmetic/comparison/logical operator.
type Binary struct {
	Op          string
	Left, Right section.Expression
}

func (b Binary) Eval(ctx section.EvalContext) (int64, error) {
	l, err := b.Left.Eval(ctx)
	if err != nil {
		return 0, err
	}
	r, err := b.Right.Eval(ctx)
	if err != nil {
		return 0, err
	}
	switch b.Op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return 0, &EvalError{Context: "binary /", Reason: "division by zero"}
		}
		return l / r, nil
	case "&":
		return l & r, nil
	case "|":
		return l | r, nil
	case "<<":
		return l << uint(r), nil
	case ">>":
		return l >> uint(r), nil
	case "==":
		return boolInt(l == r), nil
	case "!=":
		return boolInt(l != r), nil
	case "<":
		return boolInt(l < r), nil
	case ">":
		return boolInt(l > r), nil
	case "<=":
		return boolInt(l <= r), nil
	case ">=":
		return boolInt(l >= r), nil
	case "&&":
		return boolInt(l != 0 && r != 0), nil
	case "||":
		return boolInt(l != 0 || r != 0), nil
	default:
		return 0, &EvalError{Context: "binary " + b.Op, Reason: "unknown operator"}
	}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Align implements the ALIGN(expr) and ALIGN(expr, align) builtins:
// ALIGN(x) rounds `.` up to x; ALIGN(x, a) rounds x up to a.
type Align struct {
	Value section.Expression
	To    section.Expression // nil: align `.` itself to Value
}

func (a Align) Eval(ctx section.EvalContext) (int64, error) {
	if a.To == nil {
		v, err := a.Value.Eval(ctx)
		if err != nil {
			return 0, err
		}
		return alignUp(ctx.Dot(), v), nil
	}
	v, err := a.Value.Eval(ctx)
	if err != nil {
		return 0, err
	}
	to, err := a.To.Eval(ctx)
	if err != nil {
		return 0, err
	}
	return alignUp(v, to), nil
}

func alignUp(n, align int64) int64 {
	if align <= 0 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

// SizeOrAddrRef resolves ADDR(section)/SIZEOF(section)/LOADADDR(section)
// once the layout engine has run; callers wire a resolver function that
// knows how to look these up in the live SectionMap, since script itself
// must not depend on the concrete section.OutputSectionEntry registry
// (only the EvalContext surface).
type SizeOrAddrRef struct {
	Builtin string // "ADDR", "SIZEOF", "LOADADDR"
	Name    string
	Resolve func(builtin, name string) (int64, error)
}

func (s SizeOrAddrRef) Eval(ctx section.EvalContext) (int64, error) {
	if s.Resolve == nil {
		return 0, &EvalError{Context: s.Builtin + "(" + s.Name + ")", Reason: "no resolver bound"}
	}
	return s.Resolve(s.Builtin, s.Name)
}

// EvalError is spec §4.4's `ExprEval { context, reason }` failure shape.
type EvalError struct {
	Context string
	Reason  string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("script: expression evaluation failed (%s): %s", e.Context, e.Reason)
}
