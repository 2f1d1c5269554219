package lttvfilter

import (
	"fmt"
	"strconv"
	"strings"
	"text/scanner"

	"github.com/giraldeau/lttv"
)

// Parse compiles a filter expression per spec.md §4.7's grammar:
//
//	expr   := '(' expr ')' | '!' expr | expr '&&' expr | expr '||' expr | expr '^^' expr | simple
//	simple := field_path op literal
//
// On a syntax error it returns a wrapped lttv.ErrFilterParse reporting the
// scanner's position. This uses text/scanner (standard library) rather
// than a third-party parser/lexer: none of the example repos in this
// corpus ship a parser-combinator or lexer-generator library, and a
// hand-rolled recursive-descent parser over text/scanner's tokens is the
// idiomatic Go shape for a small fixed grammar like this one (see
// DESIGN.md).
func Parse(expr string) (*Node, error) {
	p := &parser{}
	p.s.Init(strings.NewReader(expr))
	p.s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats | scanner.ScanStrings
	p.next()

	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok != scanner.EOF {
		return nil, p.errorf("unexpected trailing input %q", p.text)
	}
	return node, nil
}

type parser struct {
	s    scanner.Scanner
	tok  rune
	text string
}

func (p *parser) next() {
	p.tok = p.s.Scan()
	p.text = p.s.TokenText()
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", lttv.ErrFilterParse, p.s.Position, fmt.Sprintf(format, args...))
}

// parseOr handles '||' and '^^', the lowest-precedence operators.
func (p *parser) parseOr() (*Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		switch p.tok {
		case '|':
			p.consumeDouble('|')
			right, err := p.parseAnd()
			if err != nil {
				return nil, err
			}
			left = &Node{Op: OpOr, Left: left, Right: right}
		case '^':
			p.consumeDouble('^')
			right, err := p.parseAnd()
			if err != nil {
				return nil, err
			}
			left = &Node{Op: OpXor, Left: left, Right: right}
		default:
			return left, nil
		}
	}
}

func (p *parser) parseAnd() (*Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok == '&' {
		p.consumeDouble('&')
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Node{Op: OpAnd, Left: left, Right: right}
	}
	return left, nil
}

// consumeDouble expects the current token and the next rune to both equal
// ch (i.e. "&&", "||", "^^") and advances past both.
func (p *parser) consumeDouble(ch rune) {
	p.next()
	if p.tok == ch {
		p.next()
	}
}

func (p *parser) parseUnary() (*Node, error) {
	if p.tok == '!' {
		p.next()
		node, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		node.Negate = !node.Negate
		return node, nil
	}
	if p.tok == '(' {
		p.next()
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.tok != ')' {
			return nil, p.errorf("expected ')', got %q", p.text)
		}
		p.next()
		return node, nil
	}
	return p.parseSimple()
}

func (p *parser) parseSimple() (*Node, error) {
	path, err := p.parseFieldPath()
	if err != nil {
		return nil, err
	}

	op, err := p.parseCompareOp()
	if err != nil {
		return nil, err
	}

	lit, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}

	return &Node{
		Op:       OpLeaf,
		Field:    path,
		Compare:  op,
		Literal:  lit,
		accessor: path.resolve(),
	}, nil
}

var fieldKeywords = map[string]FieldKind{
	"trace.name":       FieldTraceName,
	"tracefile.name":   FieldTracefileName,
	"process.pid":      FieldProcessPID,
	"process.ppid":     FieldProcessPPID,
	"process.tgid":     FieldProcessTGID,
	"process.name":     FieldProcessName,
	"process.brand":    FieldProcessBrand,
	"process.status":   FieldProcessStatus,
	"process.mode":     FieldProcessMode,
	"process.submode":  FieldProcessSubmode,
	"process.cpu":      FieldProcessCPU,
	"event.name":       FieldEventName,
	"event.subname":    FieldEventSubname,
	"event.time":       FieldEventTime,
	"event.tsc":        FieldEventTSC,
	"event.target_pid": FieldEventTargetPID,
}

func (p *parser) parseFieldPath() (FieldPath, error) {
	if p.tok != scanner.Ident {
		return FieldPath{}, p.errorf("expected field path, got %q", p.text)
	}
	var parts []string
	parts = append(parts, p.text)
	p.next()
	for p.tok == '.' {
		p.next()
		if p.tok != scanner.Ident {
			return FieldPath{}, p.errorf("expected identifier after '.', got %q", p.text)
		}
		parts = append(parts, p.text)
		p.next()
	}
	full := strings.Join(parts, ".")

	if kind, ok := fieldKeywords[full]; ok {
		return FieldPath{Kind: kind}, nil
	}
	if len(parts) == 2 && parts[0] == "event" {
		return FieldPath{Kind: FieldEventField, MarkerField: parts[1]}, nil
	}
	return FieldPath{}, p.errorf("unknown field path %q", full)
}

func (p *parser) parseCompareOp() (CompareOp, error) {
	switch p.tok {
	case '=':
		p.next()
		if p.tok == '=' {
			p.next()
		}
		return OpEQ, nil
	case '<':
		p.next()
		if p.tok == '=' {
			p.next()
			return OpLE, nil
		}
		return OpLT, nil
	case '>':
		p.next()
		if p.tok == '=' {
			p.next()
			return OpGE, nil
		}
		return OpGT, nil
	case '!':
		p.next()
		if p.tok == '=' {
			p.next()
			return OpNE, nil
		}
		return 0, p.errorf("expected '=' after '!' in comparator")
	default:
		return 0, p.errorf("expected a comparison operator, got %q", p.text)
	}
}

func (p *parser) parseLiteral() (Literal, error) {
	switch p.tok {
	case scanner.String:
		s, err := strconv.Unquote(p.text)
		if err != nil {
			s = strings.Trim(p.text, `"`)
		}
		p.next()
		return Literal{Kind: LiteralString, String: s}, nil
	case scanner.Int:
		v, err := strconv.ParseInt(p.text, 10, 64)
		if err != nil {
			return Literal{}, p.errorf("invalid integer literal %q", p.text)
		}
		p.next()
		return Literal{Kind: LiteralInt, Integer: v}, nil
	case '-':
		p.next()
		if p.tok != scanner.Int {
			return Literal{}, p.errorf("expected integer after '-', got %q", p.text)
		}
		v, err := strconv.ParseInt(p.text, 10, 64)
		if err != nil {
			return Literal{}, p.errorf("invalid integer literal %q", p.text)
		}
		p.next()
		return Literal{Kind: LiteralInt, Integer: -v}, nil
	case scanner.Ident:
		s := p.text
		p.next()
		return Literal{Kind: LiteralString, String: s}, nil
	default:
		return Literal{}, p.errorf("expected a literal, got %q", p.text)
	}
}
