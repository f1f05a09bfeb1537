// Package pysrc reconstructs Python source text from the token tree of
// an embedded block. The output is lexically and spatially faithful to
// the original: one output line per source line, indentation measured
// relative to the block's first line, and enough leading newlines that
// the text's line numbers equal host-file line numbers. That parity is
// what lets interpreter errors map straight back onto host source.
package pysrc

import (
	"strings"
	"unicode/utf8"

	"github.com/pyrite-lang/pyrite/pkg/diag"
	"github.com/pyrite-lang/pyrite/pkg/token"
)

// Reconstruct builds Python source from the token tree, rewriting
// capture markers ('x) to placeholder names and recording them in the
// returned registry. A failure is always a *diag.Diagnostic carrying
// the offending span; the caller stamps the file name on it.
func Reconstruct(tokens []token.Token) (string, *Captures, error) {
	caps := NewCaptures()
	b := &builder{loc: location{line: 1}, captures: caps}
	if err := b.addTokens(tokens); err != nil {
		return "", nil, err
	}
	return string(b.out), caps, nil
}

// location is the emission cursor. firstIndent is the baseline column
// established exactly once, on the first line advance, and never reset
// within one reconstruction pass.
type location struct {
	line        int
	column      int
	firstIndent int
	haveIndent  bool
}

type builder struct {
	out      []byte
	loc      location
	captures *Captures
}

// addWhitespace moves the cursor to the span's start position. A later
// line emits one newline per line advanced plus the line's indentation
// relative to the baseline; a column left of the baseline cannot be
// expressed in an indentation-sensitive language and fails with the
// offending span. On the same line the gap is padded with spaces, so
// tokens never fuse.
func (b *builder) addWhitespace(sp token.Span) error {
	line, column := sp.Start.Line, sp.Start.Column
	switch {
	case line > b.loc.line:
		for line > b.loc.line {
			b.out = append(b.out, '\n')
			b.loc.line++
		}
		if !b.loc.haveIndent {
			b.loc.firstIndent = column
			b.loc.haveIndent = true
		}
		indent := column - b.loc.firstIndent
		if indent < 0 {
			a := diag.Anchor{First: sp, Last: sp}
			return diag.Embedded("", &a, "invalid indent")
		}
		for i := 0; i < indent; i++ {
			b.out = append(b.out, ' ')
		}
		b.loc.column = column
	case line == b.loc.line:
		for column > b.loc.column {
			b.out = append(b.out, ' ')
			b.loc.column++
		}
	}
	return nil
}

func (b *builder) addTokens(tokens []token.Token) error {
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if err := b.addWhitespace(token.Span{Start: tok.Pos(), End: tok.End()}); err != nil {
			return err
		}
		switch t := tok.(type) {
		case *token.Group:
			if err := b.addWhitespace(t.Open); err != nil {
				return err
			}
			open := t.Delim.Open()
			b.out = append(b.out, open...)
			b.loc.column += len(open)
			if err := b.addTokens(t.Children); err != nil {
				return err
			}
			if err := b.addWhitespace(t.Close); err != nil {
				return err
			}
			cl := t.Delim.Close()
			b.out = append(b.out, cl...)
			b.loc.column += len(cl)

		case *token.Punct:
			switch {
			case t.Ch == '\'' && t.Joint && nextIdent(tokens, i) != nil:
				id := nextIdent(tokens, i)
				i++
				placeholder := CapturePrefix + id.Text
				b.out = append(b.out, placeholder...)
				// The cursor tracks source geometry, not emitted
				// width: 'x occupies one marker column plus the
				// identifier.
				b.loc.column += utf8.RuneCountInString(id.Text) + 1
				b.captures.Add(placeholder, id)
			case t.Ch == '#' && t.Joint && nextPunct(tokens, i) != nil:
				p := nextPunct(tokens, i)
				i++
				if p.Ch == '#' {
					// ## stands in for Python's // operator, which the
					// host tokenizer would eat as a comment.
					b.out = append(b.out, "//"...)
				} else {
					b.out = utf8.AppendRune(b.out, t.Ch)
					b.out = utf8.AppendRune(b.out, p.Ch)
				}
				b.loc.column += 2
			default:
				b.out = utf8.AppendRune(b.out, t.Ch)
				b.loc.column++
			}

		case *token.Ident:
			b.out = append(b.out, t.Text...)
			b.loc.line = t.Span.End.Line
			b.loc.column = t.Span.End.Column

		case *token.Literal:
			// A quoted literal written as `f "…"` drops the one space
			// the host tokenizer forced after the prefix identifier.
			if strings.HasPrefix(t.Text, `"`) && endsWithAlphaSpace(b.out) {
				b.out = b.out[:len(b.out)-1]
			}
			b.out = append(b.out, t.Text...)
			b.loc.line = t.Span.End.Line
			b.loc.column = t.Span.End.Column
		}
	}
	return nil
}

// nextIdent returns the token after index i when it is an identifier.
func nextIdent(tokens []token.Token, i int) *token.Ident {
	if i+1 >= len(tokens) {
		return nil
	}
	id, _ := tokens[i+1].(*token.Ident)
	return id
}

// nextPunct returns the token after index i when it is punctuation.
func nextPunct(tokens []token.Token, i int) *token.Punct {
	if i+1 >= len(tokens) {
		return nil
	}
	p, _ := tokens[i+1].(*token.Punct)
	return p
}

// endsWithAlphaSpace reports whether the emitted text ends in exactly
// one space directly after an ASCII-alphabetic character.
func endsWithAlphaSpace(out []byte) bool {
	n := len(out)
	if n < 2 || out[n-1] != ' ' {
		return false
	}
	c := out[n-2]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
