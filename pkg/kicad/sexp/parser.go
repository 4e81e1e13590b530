package sexp

import (
	"fmt"
	"io"
	"strings"
)

// ParseError reports a syntax problem with its source position.
type ParseError struct {
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d:%d: %s", e.Line, e.Col, e.Msg)
}

// Parser builds a node tree from a token stream.
type Parser struct {
	lexer   *Lexer
	current Token
}

// NewParser creates a parser reading from r.
func NewParser(r io.Reader) *Parser {
	return &Parser{lexer: NewLexer(r)}
}

// ParseAll parses every top-level expression until EOF.
func (p *Parser) ParseAll() ([]Node, error) {
	var result []Node

	if err := p.advance(); err != nil {
		return nil, err
	}

	for p.current.Type != TokenEOF {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		result = append(result, expr)

		if err := p.advance(); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (p *Parser) advance() error {
	tok, err := p.lexer.Next()
	if err != nil {
		return err
	}
	p.current = tok
	return nil
}

func (p *Parser) parseExpr() (Node, error) {
	switch p.current.Type {
	case TokenLeftParen:
		return p.parseList()

	case TokenSymbol:
		return Symbol(p.current.Value), nil

	case TokenString:
		return Str(p.current.Value), nil

	case TokenRightParen:
		return nil, p.errorf("unexpected ')'")

	case TokenEOF:
		return nil, p.errorf("unexpected end of input")

	default:
		return nil, p.errorf("unexpected token type %v", p.current.Type)
	}
}

func (p *Parser) parseList() (Node, error) {
	open := p.current
	list := &List{}

	for {
		if err := p.advance(); err != nil {
			return nil, err
		}

		if p.current.Type == TokenRightParen {
			return list, nil
		}

		if p.current.Type == TokenEOF {
			return nil, &ParseError{Line: open.Line, Col: open.Col, Msg: "unclosed list"}
		}

		elem, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		list.Items = append(list.Items, elem)
	}
}

func (p *Parser) errorf(format string, args ...any) error {
	return &ParseError{
		Line: p.current.Line,
		Col:  p.current.Col,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// Parse parses every top-level expression from r.
func Parse(r io.Reader) ([]Node, error) {
	return NewParser(r).ParseAll()
}

// ParseString parses every top-level expression from a string.
func ParseString(s string) ([]Node, error) {
	return Parse(strings.NewReader(s))
}

// ParseOne parses input expected to hold exactly one top-level list,
// the shape of every KiCad document.
func ParseOne(r io.Reader) (*List, error) {
	nodes, err := Parse(r)
	if err != nil {
		return nil, err
	}
	if len(nodes) != 1 {
		return nil, fmt.Errorf("expected a single top-level expression, got %d", len(nodes))
	}
	list, ok := nodes[0].(*List)
	if !ok {
		return nil, fmt.Errorf("expected a list at top level, got atom %s", nodes[0].String())
	}
	return list, nil
}
