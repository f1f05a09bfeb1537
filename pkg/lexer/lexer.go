// Package lexer tokenizes the content of a python block into the token
// model. The lexical surface is deliberately narrow: it accepts the
// subset of Python that also survives the host file's comment syntax,
// and reports everything else with a precise span instead of letting
// the interpreter produce a confusing error later.
//
// The restrictions, all diagnosed here:
//
//   - strings use double quotes; a single quote introduces either a
//     one-character literal ('x') or a capture marker ('name)
//   - // starts a comment and is invisible to the tokenizer, so Python
//     floor division must be written ## (rewritten during
//     reconstruction)
//   - string prefixes b, r, br, rb attach directly; any other prefix
//     (f being the usual one) must be separated by a single space,
//     which reconstruction removes
//   - escape sequences are limited to \\ \n \t \r \0 \' \" \xHH and a
//     line continuation; raw strings cannot escape their own quote
package lexer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pyrite-lang/pyrite/pkg/diag"
	"github.com/pyrite-lang/pyrite/pkg/token"
)

const eof = -1

// Lex tokenizes block content. start is the host-file position of the
// first content byte, so every span in the result uses host
// coordinates. Errors are *diag.Diagnostic values anchored at the
// offending characters; the caller stamps the file path.
func Lex(content string, start token.Point) ([]token.Token, error) {
	s := &scanner{src: content, line: start.Line, col: start.Column}
	tokens, _, err := s.lexTokens(0, token.Span{})
	return tokens, err
}

type scanner struct {
	src  string
	off  int // byte offset
	line int // 1-based
	col  int // 0-based, counted in runes; a tab is one column
}

func (s *scanner) point() token.Point {
	return token.Point{Line: s.line, Column: s.col}
}

func (s *scanner) peek() rune {
	if s.off >= len(s.src) {
		return eof
	}
	r, _ := utf8.DecodeRuneInString(s.src[s.off:])
	return r
}

// peekNext looks one rune past the current one.
func (s *scanner) peekNext() rune {
	if s.off >= len(s.src) {
		return eof
	}
	_, w := utf8.DecodeRuneInString(s.src[s.off:])
	if s.off+w >= len(s.src) {
		return eof
	}
	r, _ := utf8.DecodeRuneInString(s.src[s.off+w:])
	return r
}

func (s *scanner) next() rune {
	if s.off >= len(s.src) {
		return eof
	}
	r, w := utf8.DecodeRuneInString(s.src[s.off:])
	s.off += w
	if r == '\n' {
		s.line++
		s.col = 0
	} else {
		s.col++
	}
	return r
}

func (s *scanner) errorAt(sp token.Span, format string, args ...any) error {
	return diag.Embedded("", &diag.Anchor{First: sp, Last: sp}, fmt.Sprintf(format, args...))
}

func (s *scanner) charSpan(p token.Point) token.Span {
	return token.Span{Start: p, End: token.Point{Line: p.Line, Column: p.Column + 1}}
}

// lexTokens scans until EOF or the matching close delimiter. close is
// 0 at the top level, otherwise open is the opening delimiter's span.
// The close delimiter's span is returned so the caller can record it
// on the group.
func (s *scanner) lexTokens(close rune, open token.Span) ([]token.Token, token.Span, error) {
	var tokens []token.Token

	for {
		if err := s.skipSpace(); err != nil {
			return nil, token.Span{}, err
		}

		r := s.peek()
		if r == eof {
			if close != 0 {
				return nil, token.Span{}, s.errorAt(open, "unclosed delimiter %c", openDelimFor(close))
			}
			return tokens, token.Span{}, nil
		}

		switch {
		case r == ')' || r == ']' || r == '}':
			p := s.point()
			if r != close {
				if close == 0 {
					return nil, token.Span{}, s.errorAt(s.charSpan(p), "unexpected closing delimiter %c", r)
				}
				return nil, token.Span{}, s.errorAt(s.charSpan(p), "mismatched closing delimiter %c, expected %c", r, close)
			}
			s.next()
			return tokens, s.charSpan(p), nil

		case r == '(' || r == '[' || r == '{':
			g, err := s.lexGroup(r)
			if err != nil {
				return nil, token.Span{}, err
			}
			tokens = append(tokens, g)

		case r == '"':
			lit, err := s.lexString(s.point(), s.off, false)
			if err != nil {
				return nil, token.Span{}, err
			}
			tokens = append(tokens, lit)

		case r == '\'':
			toks, err := s.lexSingleQuote()
			if err != nil {
				return nil, token.Span{}, err
			}
			tokens = append(tokens, toks...)

		case isIdentStart(r):
			tok, err := s.lexIdentOrPrefixedString()
			if err != nil {
				return nil, token.Span{}, err
			}
			tokens = append(tokens, tok)

		case unicode.IsDigit(r):
			tokens = append(tokens, s.lexNumber())

		default:
			tokens = append(tokens, s.lexPunct())
		}
	}
}

func (s *scanner) lexGroup(open rune) (*token.Group, error) {
	openSpan := s.charSpan(s.point())
	s.next()

	children, closeSpan, err := s.lexTokens(closeDelimFor(open), openSpan)
	if err != nil {
		return nil, err
	}
	return &token.Group{
		Delim:    delimFor(open),
		Open:     openSpan,
		Close:    closeSpan,
		Children: children,
	}, nil
}

// skipSpace consumes whitespace and // comments. A /* sequence is an
// error: the enclosing block comment in the host file already ended at
// the first */, so a nested comment cannot mean what the author
// intended.
func (s *scanner) skipSpace() error {
	for {
		switch r := s.peek(); {
		case r == ' ' || r == '\t' || r == '\r' || r == '\n':
			s.next()
		case r == '/' && s.peekNext() == '/':
			for s.peek() != '\n' && s.peek() != eof {
				s.next()
			}
		case r == '/' && s.peekNext() == '*':
			p := s.point()
			sp := token.Span{Start: p, End: token.Point{Line: p.Line, Column: p.Column + 2}}
			return s.errorAt(sp, "block comments cannot appear inside a python block")
		default:
			return nil
		}
	}
}

// lexSingleQuote handles the three meanings of a single quote: a
// one-character literal ('x' or '\n'), a capture marker immediately
// followed by an identifier, or an unsupported single-quoted string.
func (s *scanner) lexSingleQuote() ([]token.Token, error) {
	start := s.point()
	startOff := s.off
	s.next()

	switch r := s.peek(); {
	case r == eof:
		return nil, s.errorAt(s.charSpan(start), "unterminated character literal")

	case r == '\'':
		s.next()
		return nil, s.errorAt(token.Span{Start: start, End: s.point()}, "empty character literal")

	case r == '\\':
		s.next()
		if err := s.scanEscape(start); err != nil {
			return nil, err
		}
		return s.closeCharLiteral(start, startOff)

	case isIdentStart(r):
		identStart := s.point()
		identOff := s.off
		for isIdentPart(s.peek()) {
			s.next()
		}
		text := s.src[identOff:s.off]

		if s.peek() == '\'' {
			if utf8.RuneCountInString(text) == 1 {
				s.next()
				return []token.Token{&token.Literal{
					Text: s.src[startOff:s.off],
					Span: token.Span{Start: start, End: s.point()},
				}}, nil
			}
			s.next()
			return nil, s.errorAt(token.Span{Start: start, End: s.point()},
				"single-quoted strings are not supported, use double quotes")
		}

		// Capture marker: the quote glues to the identifier.
		marker := &token.Punct{Ch: '\'', Joint: true, Span: token.Span{Start: start, End: identStart}}
		ident := &token.Ident{Text: text, Span: token.Span{Start: identStart, End: s.point()}}
		return []token.Token{marker, ident}, nil

	default:
		s.next()
		return s.closeCharLiteral(start, startOff)
	}
}

func (s *scanner) closeCharLiteral(start token.Point, startOff int) ([]token.Token, error) {
	if s.peek() != '\'' {
		return nil, s.errorAt(token.Span{Start: start, End: s.point()}, "unterminated character literal")
	}
	s.next()
	return []token.Token{&token.Literal{
		Text: s.src[startOff:s.off],
		Span: token.Span{Start: start, End: s.point()},
	}}, nil
}

// lexIdentOrPrefixedString scans an identifier. When a double quote
// follows with no gap the identifier is a string prefix: b, r, br and
// rb attach to the literal, anything else is rejected with a pointer
// at the space-separated spelling.
func (s *scanner) lexIdentOrPrefixedString() (token.Token, error) {
	start := s.point()
	startOff := s.off
	for isIdentPart(s.peek()) {
		s.next()
	}
	text := s.src[startOff:s.off]

	if s.peek() != '"' {
		return &token.Ident{Text: text, Span: token.Span{Start: start, End: s.point()}}, nil
	}

	switch text {
	case "b", "r", "br", "rb":
		return s.lexString(start, startOff, strings.Contains(text, "r"))
	}
	return nil, s.errorAt(token.Span{Start: start, End: s.point()},
		"string prefix %s is not supported here, write %s \"...\" with a space", text, text)
}

// lexString scans a double-quoted literal starting at the current
// quote. start and startOff point at the literal's first byte, which
// is the prefix when one attaches. Raw literals take no escapes and
// end at the first quote.
func (s *scanner) lexString(start token.Point, startOff int, raw bool) (*token.Literal, error) {
	quote := s.point()
	s.next()

	for {
		switch r := s.peek(); {
		case r == eof:
			return nil, s.errorAt(s.charSpan(quote), "unterminated string literal")
		case r == '"':
			s.next()
			return &token.Literal{
				Text: s.src[startOff:s.off],
				Span: token.Span{Start: start, End: s.point()},
			}, nil
		case r == '\\' && !raw:
			s.next()
			if err := s.scanEscape(quote); err != nil {
				return nil, err
			}
		default:
			s.next()
		}
	}
}

// scanEscape validates one escape sequence; the backslash is already
// consumed. anchor is where the enclosing literal begins, used when
// the sequence is cut off by EOF.
func (s *scanner) scanEscape(anchor token.Point) error {
	p := token.Point{Line: s.line, Column: s.col - 1}
	switch r := s.peek(); r {
	case '\\', 'n', 't', 'r', '0', '\'', '"':
		s.next()
		return nil
	case '\n':
		// Line continuation inside a literal.
		s.next()
		return nil
	case 'x':
		s.next()
		for i := 0; i < 2; i++ {
			if !isHex(s.peek()) {
				sp := token.Span{Start: p, End: s.point()}
				return s.errorAt(sp, "invalid \\x escape, expected two hex digits")
			}
			s.next()
		}
		return nil
	case eof:
		return s.errorAt(s.charSpan(anchor), "unterminated string literal")
	default:
		s.next()
		sp := token.Span{Start: p, End: s.point()}
		return s.errorAt(sp, "escape \\%c is not supported here", r)
	}
}

// lexNumber scans a numeric literal greedily: digits, letters and
// underscores cover hex, binary and imaginary forms, one dot joins a
// fraction, and a sign is taken only directly after an exponent
// marker. Over-consumption is harmless because reconstruction emits
// the text verbatim at its recorded columns.
func (s *scanner) lexNumber() *token.Literal {
	start := s.point()
	startOff := s.off
	seenDot := false
	for {
		r := s.peek()
		switch {
		case isIdentPart(r):
			s.next()
		case r == '.' && !seenDot && unicode.IsDigit(s.peekNext()):
			seenDot = true
			s.next()
		case (r == '+' || r == '-') && isExpMarker(s.src[startOff:s.off]) && unicode.IsDigit(s.peekNext()):
			s.next()
		default:
			return &token.Literal{
				Text: s.src[startOff:s.off],
				Span: token.Span{Start: start, End: s.point()},
			}
		}
	}
}

// lexPunct emits one punctuation rune. Joint marks a punct whose
// neighbor is another punct with no gap, which is what pairs ## during
// reconstruction.
func (s *scanner) lexPunct() *token.Punct {
	p := s.point()
	r := s.next()
	return &token.Punct{
		Ch:    r,
		Joint: isPunct(s.peek()),
		Span:  token.Span{Start: p, End: s.point()},
	}
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isHex(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func isExpMarker(scanned string) bool {
	return strings.HasSuffix(scanned, "e") || strings.HasSuffix(scanned, "E")
}

func isPunct(r rune) bool {
	switch {
	case r == eof:
		return false
	case r == ' ' || r == '\t' || r == '\r' || r == '\n':
		return false
	case r == '"' || r == '\'':
		return false
	case r == '(' || r == ')' || r == '[' || r == ']' || r == '{' || r == '}':
		return false
	case isIdentStart(r) || unicode.IsDigit(r):
		return false
	}
	return true
}

func delimFor(open rune) token.Delim {
	switch open {
	case '(':
		return token.DelimParen
	case '[':
		return token.DelimBracket
	default:
		return token.DelimBrace
	}
}

func closeDelimFor(open rune) rune {
	switch open {
	case '(':
		return ')'
	case '[':
		return ']'
	default:
		return '}'
	}
}

func openDelimFor(close rune) rune {
	switch close {
	case ')':
		return '('
	case ']':
		return '['
	default:
		return '{'
	}
}
