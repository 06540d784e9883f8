package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/litetable/litetable-query/internal/litetable"
)

// ErrSyntax is wrapped by every SyntaxError.
var ErrSyntax = errors.New("syntax error")

// SyntaxError reports malformed query text. Position is the byte offset the parser stopped at.
type SyntaxError struct {
	Position int
	Message  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at position %d: %s", e.Position, e.Message)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokLParen
	tokRParen
	tokComma
	tokOp
	tokWord
	tokQuoted   // "string literal"
	tokBacktick // `column name`
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

var keywords = map[string]struct{}{
	"AND": {}, "OR": {}, "NOT": {}, "IN": {}, "IS": {}, "NULL": {}, "BETWEEN": {},
}

func isKeyword(word string) bool {
	_, ok := keywords[strings.ToUpper(word)]
	return ok
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && (unicode.IsDigit(r) || r == '.'):
		default:
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return !unicode.IsSpace(r) && !strings.ContainsRune("()=!<>,\"`", r)
}

func lex(text string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == ',':
			tokens = append(tokens, token{kind: tokComma, text: ",", pos: i})
			i++
		case strings.ContainsRune("=!<>", rune(c)):
			start := i
			i++
			if i < len(text) && strings.ContainsRune("=>", rune(text[i])) {
				i++
			}
			op := text[start:i]
			if _, ok := parseOp(op); !ok {
				return nil, &SyntaxError{Position: start, Message: fmt.Sprintf("unknown operator %q", op)}
			}
			tokens = append(tokens, token{kind: tokOp, text: op, pos: start})
		case c == '"':
			start := i
			i++
			for i < len(text) && text[i] != '"' {
				if text[i] == '\\' {
					i++
				}
				i++
			}
			if i >= len(text) {
				return nil, &SyntaxError{Position: start, Message: "unterminated string"}
			}
			i++
			s, err := strconv.Unquote(text[start:i])
			if err != nil {
				return nil, &SyntaxError{Position: start, Message: "invalid string literal"}
			}
			tokens = append(tokens, token{kind: tokQuoted, text: s, pos: start})
		case c == '`':
			start := i
			var b strings.Builder
			i++
			for {
				if i >= len(text) {
					return nil, &SyntaxError{Position: start, Message: "unterminated quoted column"}
				}
				if text[i] == '`' {
					if i+1 < len(text) && text[i+1] == '`' {
						b.WriteByte('`')
						i += 2
						continue
					}
					i++
					break
				}
				b.WriteByte(text[i])
				i++
			}
			tokens = append(tokens, token{kind: tokBacktick, text: b.String(), pos: start})
		default:
			start := i
			for i < len(text) {
				r, size := rune(text[i]), 1
				if r >= 0x80 {
					r, size = utf8.DecodeRuneInString(text[i:])
				}
				if !isWordRune(r) {
					break
				}
				i += size
			}
			if i == start {
				return nil, &SyntaxError{Position: start, Message: fmt.Sprintf("unexpected character %q", c)}
			}
			tokens = append(tokens, token{kind: tokWord, text: text[start:i], pos: start})
		}
	}
	return append(tokens, token{kind: tokEOF, pos: len(text)}), nil
}

func parseOp(text string) (Op, bool) {
	switch text {
	case "=", "==":
		return Eq, true
	case "!=", "<>":
		return Ne, true
	case "<":
		return Lt, true
	case "<=":
		return Le, true
	case ">":
		return Gt, true
	case ">=":
		return Ge, true
	}
	return 0, false
}

type parser struct {
	tokens []token
	pos    int
}

// Parse reads a predicate expression. Keywords are case-insensitive; columns that are not bare
// identifiers are written in backticks; quoted literals are always strings and bare literals are
// inferred as integer, float, date or string.
func Parse(text string) (Expr, error) {
	tokens, err := lex(text)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	if p.peek().kind == tokEOF {
		return nil, p.fail("empty expression")
	}
	e, err := p.or()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.fail(fmt.Sprintf("unexpected %q", t.text))
	}
	return e, nil
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) fail(msg string) error {
	return &SyntaxError{Position: p.peek().pos, Message: msg}
}

func (p *parser) keyword(word string) bool {
	t := p.peek()
	if t.kind == tokWord && strings.EqualFold(t.text, word) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) or() (Expr, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.keyword("OR") {
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) and() (Expr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.keyword("AND") {
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = And{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) unary() (Expr, error) {
	if p.keyword("NOT") {
		child, err := p.unary()
		if err != nil {
			return nil, err
		}
		return Not{Child: child}, nil
	}
	if p.peek().kind == tokLParen {
		p.next()
		e, err := p.or()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, p.fail("expected )")
		}
		p.next()
		return e, nil
	}
	return p.predicate()
}

func (p *parser) column() (string, error) {
	t := p.peek()
	switch {
	case t.kind == tokBacktick:
		p.next()
		return t.text, nil
	case t.kind == tokWord && !isKeyword(t.text):
		p.next()
		return t.text, nil
	}
	return "", p.fail("expected column")
}

func (p *parser) literal() (litetable.Value, error) {
	t := p.peek()
	switch {
	case t.kind == tokQuoted:
		p.next()
		return litetable.String(t.text), nil
	case t.kind == tokWord && !isKeyword(t.text):
		p.next()
		return litetable.ParseValue(t.text), nil
	}
	return litetable.Value{}, p.fail("expected literal")
}

func (p *parser) op() (Op, error) {
	t := p.peek()
	if t.kind != tokOp {
		return 0, p.fail("expected operator")
	}
	p.next()
	op, _ := parseOp(t.text)
	return op, nil
}

func (p *parser) predicate() (Expr, error) {
	// a leading quoted literal can only start a range
	if p.peek().kind == tokQuoted {
		lower, err := p.literal()
		if err != nil {
			return nil, err
		}
		return p.rangeTail(lower)
	}

	start := p.pos
	col, err := p.column()
	if err != nil {
		return nil, err
	}

	switch {
	case p.keyword("IS"):
		notNull := p.keyword("NOT")
		if !p.keyword("NULL") {
			return nil, p.fail("expected NULL")
		}
		if notNull {
			return NotNull{Column: col}, nil
		}
		return IsNull{Column: col}, nil
	case p.keyword("IN"):
		return p.inTail(col)
	case p.keyword("BETWEEN"):
		lower, err := p.literal()
		if err != nil {
			return nil, err
		}
		if !p.keyword("AND") {
			return nil, p.fail("expected AND")
		}
		upper, err := p.literal()
		if err != nil {
			return nil, err
		}
		return Range{Column: col, Lower: lower, LowerInclusive: true, Upper: upper, UpperInclusive: true}, nil
	}

	op, err := p.op()
	if err != nil {
		return nil, err
	}
	// `lit op col op lit` reads the first word as a literal
	if p.peek().kind != tokEOF && p.tokens[p.pos+1].kind == tokOp {
		p.pos = start
		lower, err := p.literal()
		if err != nil {
			return nil, err
		}
		return p.rangeTail(lower)
	}
	v, err := p.literal()
	if err != nil {
		return nil, err
	}
	return Compare{Column: col, Op: op, Value: v}, nil
}

func (p *parser) rangeTail(lower litetable.Value) (Expr, error) {
	lowOp, err := p.op()
	if err != nil {
		return nil, err
	}
	col, err := p.column()
	if err != nil {
		return nil, err
	}
	highOp, err := p.op()
	if err != nil {
		return nil, err
	}
	upper, err := p.literal()
	if err != nil {
		return nil, err
	}
	if (lowOp != Lt && lowOp != Le) || (highOp != Lt && highOp != Le) {
		return nil, &SyntaxError{Position: p.peek().pos, Message: "a range must use < or <= on both sides"}
	}
	return Range{
		Column:         col,
		Lower:          lower,
		LowerInclusive: lowOp == Le,
		Upper:          upper,
		UpperInclusive: highOp == Le,
	}, nil
}

func (p *parser) inTail(col string) (Expr, error) {
	if p.peek().kind != tokLParen {
		return nil, p.fail("expected (")
	}
	p.next()
	var values []litetable.Value
	for {
		v, err := p.literal()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		if p.peek().kind == tokComma {
			p.next()
			continue
		}
		if p.peek().kind != tokRParen {
			return nil, p.fail("expected , or )")
		}
		p.next()
		return In{Column: col, Values: values}, nil
	}
}
