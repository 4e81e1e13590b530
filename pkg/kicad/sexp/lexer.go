package sexp

import (
	"bufio"
	"io"
	"unicode"
)

// TokenType classifies a lexical token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenLeftParen
	TokenRightParen
	TokenSymbol
	TokenString
)

// Token is a lexical token with its source position (1-based).
type Token struct {
	Type  TokenType
	Value string
	Line  int
	Col   int
}

// Lexer tokenizes S-expressions from an io.Reader, streaming so that
// large board files never need to be held as a single string.
type Lexer struct {
	reader *bufio.Reader
	peeked *rune
	line   int
	col    int
}

// NewLexer creates a lexer reading from r.
func NewLexer(r io.Reader) *Lexer {
	return &Lexer{
		reader: bufio.NewReader(r),
		line:   1,
		col:    0,
	}
}

// Next reads the next token from the input.
func (l *Lexer) Next() (Token, error) {
	// Skip whitespace and line comments.
	for {
		ch, err := l.peek()
		if err != nil {
			if err == io.EOF {
				return l.token(TokenEOF, ""), nil
			}
			return Token{}, err
		}

		if unicode.IsSpace(ch) {
			l.read()
			continue
		}

		if ch == '#' {
			for {
				c, err := l.read()
				if err != nil || c == '\n' {
					break
				}
			}
			continue
		}

		break
	}

	ch, err := l.peek()
	if err != nil {
		if err == io.EOF {
			return l.token(TokenEOF, ""), nil
		}
		return Token{}, err
	}

	switch ch {
	case '(':
		tok := l.token(TokenLeftParen, "(")
		l.read()
		tok.Col++
		return tok, nil

	case ')':
		tok := l.token(TokenRightParen, ")")
		l.read()
		tok.Col++
		return tok, nil

	case '"':
		return l.readString()

	default:
		return l.readSymbol()
	}
}

func (l *Lexer) token(t TokenType, value string) Token {
	return Token{Type: t, Value: value, Line: l.line, Col: l.col}
}

// peek looks at the next rune without consuming it.
func (l *Lexer) peek() (rune, error) {
	if l.peeked != nil {
		return *l.peeked, nil
	}
	ch, _, err := l.reader.ReadRune()
	if err != nil {
		return 0, err
	}
	l.peeked = &ch
	return ch, nil
}

// read consumes and returns the next rune, tracking line and column.
func (l *Lexer) read() (rune, error) {
	var ch rune
	var err error
	if l.peeked != nil {
		ch = *l.peeked
		l.peeked = nil
	} else {
		ch, _, err = l.reader.ReadRune()
		if err != nil {
			return 0, err
		}
	}
	if ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
	return ch, nil
}

// readString reads a quoted string, resolving backslash escapes.
func (l *Lexer) readString() (Token, error) {
	tok := l.token(TokenString, "")
	tok.Col++
	l.read() // opening quote

	var result []rune
	for {
		ch, err := l.read()
		if err != nil {
			if err == io.EOF {
				return Token{}, &ParseError{Line: tok.Line, Col: tok.Col, Msg: "unterminated string"}
			}
			return Token{}, err
		}

		if ch == '"' {
			break
		}

		if ch == '\\' {
			next, err := l.read()
			if err != nil {
				return Token{}, &ParseError{Line: tok.Line, Col: tok.Col, Msg: "unterminated escape in string"}
			}
			switch next {
			case 'n':
				result = append(result, '\n')
			case 't':
				result = append(result, '\t')
			case 'r':
				result = append(result, '\r')
			default:
				// Unknown escapes keep the escaped rune.
				result = append(result, next)
			}
			continue
		}

		result = append(result, ch)
	}

	tok.Value = string(result)
	return tok, nil
}

// readSymbol reads an unquoted atom (identifier, number, keyword).
func (l *Lexer) readSymbol() (Token, error) {
	tok := l.token(TokenSymbol, "")
	tok.Col++

	var result []rune
	for {
		ch, err := l.peek()
		if err != nil {
			if err == io.EOF {
				break
			}
			return Token{}, err
		}

		if unicode.IsSpace(ch) || ch == '(' || ch == ')' || ch == '"' {
			break
		}

		l.read()
		result = append(result, ch)
	}

	if len(result) == 0 {
		return Token{}, &ParseError{Line: tok.Line, Col: tok.Col, Msg: "empty symbol"}
	}

	tok.Value = string(result)
	return tok, nil
}
