package script

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/eldlink/eld/pkg/link/section"
)

// Parser is a two-token-lookahead recursive-descent parser over a Lexer.
type Parser struct {
	lex  *Lexer
	tok  Token
	next Token
}

// NewParser creates a Parser over src and primes its two-token lookahead.
func NewParser(src string) (*Parser, error) {
	p := &Parser{lex: NewLexer(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Parser) advance() error {
	p.tok = p.next
	t, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.next = t
	return nil
}

func (p *Parser) errf(format string, args ...any) error {
	return fmt.Errorf("script: line %d: %s", p.tok.Line, fmt.Sprintf(format, args...))
}

func (p *Parser) is(kind Kind, text string) bool {
	return p.tok.Kind == kind && p.tok.Text == text
}

func (p *Parser) expect(kind Kind, text string) error {
	if !p.is(kind, text) {
		return p.errf("expected %q, got %q", text, p.tok.Text)
	}
	return p.advance()
}

// Parse consumes the whole token stream and returns the assembled Script.
func (p *Parser) Parse() (*Script, error) {
	s := &Script{Defsyms: make(map[string]section.Expression)}
	for p.tok.Kind != EOF {
		switch {
		case p.is(Ident, "MEMORY"):
			if err := p.parseMemory(s); err != nil {
				return nil, err
			}
		case p.is(Ident, "PHDRS"):
			if err := p.parsePhdrs(s); err != nil {
				return nil, err
			}
		case p.is(Ident, "SECTIONS"):
			if err := p.parseSections(s); err != nil {
				return nil, err
			}
		case p.is(Ident, "ASSERT"):
			a, err := p.parseAssert()
			if err != nil {
				return nil, err
			}
			s.Assertions = append(s.Assertions, a)
			p.skipSemi()
		case p.tok.Kind == Ident:
			assign, err := p.parseAssignStmt()
			if err != nil {
				return nil, err
			}
			s.TopAssigns = append(s.TopAssigns, assign)
			if assign.Expr != nil {
				s.Defsyms[assign.Name] = assign.Expr
			}
			p.skipSemi()
		default:
			return nil, p.errf("unexpected token %q", p.tok.Text)
		}
	}
	return s, nil
}

func isAssignOp(text string) bool {
	switch text {
	case "=", "+=", "-=", "*=", "/=", "&=", "|=":
		return true
	default:
		return false
	}
}

func (p *Parser) skipSemi() {
	for p.is(Punct, ";") {
		p.advance()
	}
}

func (p *Parser) parseMemory(s *Script) error {
	if err := p.advance(); err != nil { // MEMORY
		return err
	}
	if err := p.expect(Punct, "{"); err != nil {
		return err
	}
	for !p.is(Punct, "}") {
		name := p.tok.Text
		if err := p.advance(); err != nil {
			return err
		}
		var attrs string
		if p.is(Punct, "(") {
			p.advance()
			attrs = p.tok.Text
			p.advance()
			if err := p.expect(Punct, ")"); err != nil {
				return err
			}
		}
		if err := p.expect(Punct, ":"); err != nil {
			return err
		}
		region := MemoryRegion{Name: name, Attrs: attrs}
		for {
			switch p.tok.Text {
			case "ORIGIN", "org", "o":
				p.advance()
				if err := p.expect(Punct, "="); err != nil {
					return err
				}
				expr, err := p.parseExpr()
				if err != nil {
					return err
				}
				region.Origin = expr
			case "LENGTH", "len", "l":
				p.advance()
				if err := p.expect(Punct, "="); err != nil {
					return err
				}
				expr, err := p.parseExpr()
				if err != nil {
					return err
				}
				region.Length = expr
			default:
				goto doneRegion
			}
			if p.is(Punct, ",") {
				p.advance()
				continue
			}
			break
		}
	doneRegion:
		s.Memory = append(s.Memory, region)
	}
	return p.expect(Punct, "}")
}

func (p *Parser) parsePhdrs(s *Script) error {
	if err := p.advance(); err != nil { // PHDRS
		return err
	}
	if err := p.expect(Punct, "{"); err != nil {
		return err
	}
	for !p.is(Punct, "}") {
		spec := PhdrSpec{Name: p.tok.Text}
		if err := p.advance(); err != nil {
			return err
		}
		spec.Type = p.tok.Text
		if err := p.advance(); err != nil {
			return err
		}
		if p.is(Ident, "FLAGS") {
			p.advance()
			if err := p.expect(Punct, "("); err != nil {
				return err
			}
			expr, err := p.parseExpr()
			if err != nil {
				return err
			}
			spec.Flags = expr
			if err := p.expect(Punct, ")"); err != nil {
				return err
			}
		}
		p.skipSemi()
		s.Phdrs = append(s.Phdrs, spec)
	}
	return p.expect(Punct, "}")
}

func (p *Parser) parseSections(s *Script) error {
	if err := p.advance(); err != nil { // SECTIONS
		return err
	}
	if err := p.expect(Punct, "{"); err != nil {
		return err
	}
	for !p.is(Punct, "}") {
		if p.is(Ident, "ASSERT") {
			a, err := p.parseAssert()
			if err != nil {
				return err
			}
			s.Assertions = append(s.Assertions, a)
			p.skipSemi()
			continue
		}
		if p.tok.Kind == Ident && isAssignOp(p.next.Text) {
			assign, err := p.parseAssignStmt()
			if err != nil {
				return err
			}
			s.TopAssigns = append(s.TopAssigns, assign)
			p.skipSemi()
			continue
		}
		entry, err := p.parseOutputSection(s)
		if err != nil {
			return err
		}
		s.Sections = append(s.Sections, entry)
	}
	return p.expect(Punct, "}")
}

func (p *Parser) parseOutputSection(s *Script) (*section.OutputSectionEntry, error) {
	name := p.tok.Text
	if err := p.advance(); err != nil {
		return nil, err
	}
	entry := section.NewOutputSectionEntry(name)

	if !p.is(Punct, ":") {
		vma, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		entry.Prolog.VMA = vma
	}

	if p.is(Ident, "AT") {
		p.advance()
		if err := p.expect(Punct, "("); err != nil {
			return nil, err
		}
		lma, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		entry.Prolog.LMA = lma
		if err := p.expect(Punct, ")"); err != nil {
			return nil, err
		}
	}

	if err := p.expect(Punct, ":"); err != nil {
		return nil, err
	}
	if p.is(Ident, "ALIGN") {
		p.advance()
		if err := p.expect(Punct, "("); err != nil {
			return nil, err
		}
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if v, ok := constValue(expr); ok {
			entry.Prolog.Align = uint64(v)
		}
		if err := p.expect(Punct, ")"); err != nil {
			return nil, err
		}
	}
	if err := p.expect(Punct, "{"); err != nil {
		return nil, err
	}

	for !p.is(Punct, "}") {
		if err := p.parseSectionCommand(entry, s); err != nil {
			return nil, err
		}
	}
	if err := p.expect(Punct, "}"); err != nil {
		return nil, err
	}

	for p.is(Punct, ">") || (p.tok.Kind == Ident && strings.HasPrefix(p.tok.Text, ">")) {
		p.advance()
		entry.Epilog.VMARegion = p.tok.Text
		p.advance()
	}
	if p.is(Ident, "AT") && p.next.Text == ">" {
		p.advance()
		p.advance()
		entry.Epilog.LMARegion = p.tok.Text
		p.advance()
	}
	for p.is(Punct, ":") {
		p.advance()
		entry.Epilog.Phdrs = append(entry.Epilog.Phdrs, section.SegmentRef(p.tok.Text))
		p.advance()
	}
	if p.is(Punct, "=") {
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		entry.Epilog.Fill = expr
	}
	p.skipSemi()
	return entry, nil
}

// parseSectionCommand parses one statement inside an output-section body:
// an input-section pattern (optionally KEEP()'d), a PROVIDE/assignment, or
// a nested ASSERT.
func (p *Parser) parseSectionCommand(entry *section.OutputSectionEntry, s *Script) error {
	switch {
	case p.is(Ident, "KEEP"):
		p.advance()
		if err := p.expect(Punct, "("); err != nil {
			return err
		}
		spec, err := p.parseInputSectionSpec()
		if err != nil {
			return err
		}
		if err := p.expect(Punct, ")"); err != nil {
			return err
		}
		r := section.NewRuleContainer(section.PolicyKeep, spec, entry.Name)
		entry.AddRule(r)
		p.skipSemi()
		return nil

	case p.is(Ident, "PROVIDE") || p.is(Ident, "PROVIDE_HIDDEN"):
		hidden := p.tok.Text == "PROVIDE_HIDDEN"
		p.advance()
		if err := p.expect(Punct, "("); err != nil {
			return err
		}
		assign, err := p.parseAssignStmt()
		if err != nil {
			return err
		}
		assign.Provide = true
		assign.Hidden = hidden
		entry.Assigns = append(entry.Assigns, assign)
		if err := p.expect(Punct, ")"); err != nil {
			return err
		}
		p.skipSemi()
		return nil

	case p.is(Ident, "ASSERT"):
		a, err := p.parseAssert()
		if err != nil {
			return err
		}
		s.Assertions = append(s.Assertions, a)
		p.skipSemi()
		return nil

	case p.is(Ident, "FILL"):
		p.advance()
		if err := p.expect(Punct, "("); err != nil {
			return err
		}
		expr, err := p.parseExpr()
		if err != nil {
			return err
		}
		entry.Epilog.Fill = expr
		if err := p.expect(Punct, ")"); err != nil {
			return err
		}
		p.skipSemi()
		return nil

	case p.tok.Kind == Ident && isAssignOp(p.next.Text):
		assign, err := p.parseAssignStmt()
		if err != nil {
			return err
		}
		entry.Assigns = append(entry.Assigns, assign)
		p.skipSemi()
		return nil

	case p.tok.Kind == Ident || p.is(Punct, "*"):
		spec, err := p.parseInputSectionSpec()
		if err != nil {
			return err
		}
		r := section.NewRuleContainer(section.PolicyNoKeep, spec, entry.Name)
		entry.AddRule(r)
		p.skipSemi()
		return nil

	default:
		return p.errf("unexpected token %q in output section body", p.tok.Text)
	}
}

// parseInputSectionSpec parses `archive-pattern(section-pattern...)`. A
// bare pattern with no parenthesised list is taken as the file pattern
// with no section patterns, so its rule matches no section. It flattens SORT_BY_NAME()/SORT_BY_ALIGNMENT()
// wrappers to their inner pattern (sort-order itself is a §4.5 concern the
// matcher applies, not something this AST node needs to carry structurally
// beyond recording SortPolicy on the WildcardPattern).
func (p *Parser) parseInputSectionSpec() (section.RuleSpec, error) {
	var spec section.RuleSpec

	filePattern := p.tok.Text
	if err := p.advance(); err != nil {
		return spec, err
	}
	spec.FilePattern = section.NewWildcardPattern(0, filePattern, section.SortNone)

	if !p.is(Punct, "(") {
		return spec, nil
	}
	p.advance()
	for !p.is(Punct, ")") {
		sortPolicy := section.SortNone
		if p.tok.Kind == Ident && strings.HasPrefix(p.tok.Text, "SORT_BY_NAME") {
			sortPolicy = section.SortByName
			p.advance()
			if p.is(Punct, "(") {
				p.advance()
			}
		} else if p.tok.Kind == Ident && strings.HasPrefix(p.tok.Text, "SORT_BY_ALIGNMENT") {
			sortPolicy = section.SortByAlignment
			p.advance()
			if p.is(Punct, "(") {
				p.advance()
			}
		}
		pattern := p.tok.Text
		p.advance()
		spec.SectionPattern = append(spec.SectionPattern, section.NewWildcardPattern(len(spec.SectionPattern), pattern, sortPolicy))
		if sortPolicy != section.SortNone && p.is(Punct, ")") {
			p.advance()
		}
	}
	return spec, p.expect(Punct, ")")
}

func (p *Parser) parseAssert() (Assertion, error) {
	if err := p.advance(); err != nil { // ASSERT
		return Assertion{}, err
	}
	if err := p.expect(Punct, "("); err != nil {
		return Assertion{}, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return Assertion{}, err
	}
	if err := p.expect(Punct, ","); err != nil {
		return Assertion{}, err
	}
	msg := p.tok.Text
	if err := p.advance(); err != nil {
		return Assertion{}, err
	}
	return Assertion{Expr: expr, Message: msg}, p.expect(Punct, ")")
}

func (p *Parser) parseAssignStmt() (section.SymbolAssign, error) {
	name := p.tok.Text
	if err := p.advance(); err != nil {
		return section.SymbolAssign{}, err
	}
	op := p.tok.Text
	if err := p.advance(); err != nil {
		return section.SymbolAssign{}, err
	}
	rhs, err := p.parseExpr()
	if err != nil {
		return section.SymbolAssign{}, err
	}
	expr := rhs
	if op != "=" {
		base := section.Expression(Dot{})
		if name != "." {
			base = Sym{Name: name}
		}
		expr = Binary{Op: strings.TrimSuffix(op, "="), Left: base, Right: rhs}
	}
	return section.SymbolAssign{Name: name, Expr: expr}, nil
}

// Operator precedence climbing, loosest first: ||; &&; all comparisons
// (==, !=, <, >, <=, >=) at one level; | and & at one level; <</>>; +/-;
// * and /; unary; atoms.
func (p *Parser) parseExpr() (section.Expression, error) { return p.parseOr() }

func (p *Parser) parseOr() (section.Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.is(Punct, "||") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: "||", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (section.Expression, error) {
	left, err := p.parseCompare()
	if err != nil {
		return nil, err
	}
	for p.is(Punct, "&&") {
		p.advance()
		right, err := p.parseCompare()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: "&&", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseCompare() (section.Expression, error) {
	left, err := p.parseBitwise()
	if err != nil {
		return nil, err
	}
	for p.is(Punct, "==") || p.is(Punct, "!=") || p.is(Punct, "<") || p.is(Punct, ">") || p.is(Punct, "<=") || p.is(Punct, ">=") {
		op := p.tok.Text
		p.advance()
		right, err := p.parseBitwise()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseBitwise() (section.Expression, error) {
	left, err := p.parseShift()
	if err != nil {
		return nil, err
	}
	for p.is(Punct, "|") || p.is(Punct, "&") {
		op := p.tok.Text
		p.advance()
		right, err := p.parseShift()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseShift() (section.Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.is(Punct, "<<") || p.is(Punct, ">>") {
		op := p.tok.Text
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAdditive() (section.Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.is(Punct, "+") || p.is(Punct, "-") {
		op := p.tok.Text
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (section.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.is(Punct, "*") || p.is(Punct, "/") {
		op := p.tok.Text
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (section.Expression, error) {
	if p.is(Punct, "-") || p.is(Punct, "~") || p.is(Punct, "!") {
		op := p.tok.Text
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Unary{Op: op, Operand: operand}, nil
	}
	return p.parseAtom()
}

func (p *Parser) parseAtom() (section.Expression, error) {
	switch {
	case p.is(Punct, "("):
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return expr, p.expect(Punct, ")")

	case p.tok.Kind == Number:
		v, err := parseNumber(p.tok.Text)
		if err != nil {
			return nil, p.errf("%v", err)
		}
		p.advance()
		return Num{Value: v}, nil

	case p.is(Ident, "."):
		p.advance()
		return Dot{}, nil

	case p.is(Ident, "ALIGN"):
		p.advance()
		if err := p.expect(Punct, "("); err != nil {
			return nil, err
		}
		first, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		align := Align{Value: first}
		if p.is(Punct, ",") {
			p.advance()
			to, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			align.To = to
		}
		return align, p.expect(Punct, ")")

	case p.tok.Kind == Ident && (p.tok.Text == "ADDR" || p.tok.Text == "SIZEOF" || p.tok.Text == "LOADADDR"):
		builtin := p.tok.Text
		p.advance()
		if err := p.expect(Punct, "("); err != nil {
			return nil, err
		}
		name := p.tok.Text
		p.advance()
		if err := p.expect(Punct, ")"); err != nil {
			return nil, err
		}
		return SizeOrAddrRef{Builtin: builtin, Name: name}, nil

	case p.tok.Kind == Ident:
		name := p.tok.Text
		p.advance()
		return Sym{Name: name}, nil

	default:
		return nil, p.errf("unexpected token %q in expression", p.tok.Text)
	}
}

func parseNumber(text string) (int64, error) {
	t := strings.TrimSuffix(strings.TrimSuffix(text, "K"), "k")
	mult := int64(1)
	if t != text {
		mult = 1024
	} else {
		t2 := strings.TrimSuffix(strings.TrimSuffix(text, "M"), "m")
		if t2 != text {
			t = t2
			mult = 1024 * 1024
		}
	}
	base := 10
	if strings.HasPrefix(t, "0x") || strings.HasPrefix(t, "0X") {
		base = 16
		t = t[2:]
	}
	v, err := strconv.ParseInt(t, base, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric literal %q: %w", text, err)
	}
	return v * mult, nil
}

func constValue(e section.Expression) (int64, bool) {
	n, ok := e.(Num)
	if !ok {
		return 0, false
	}
	return n.Value, true
}
