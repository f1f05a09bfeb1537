// Package token defines the lexical token tree for embedded Python
// blocks: three leaf kinds (identifier, literal, punctuation) and one
// composite kind (bracket-delimited group). Every token carries the
// line/column span it occupied in the host Go file, which is what
// makes line-accurate diagnostics possible downstream.
package token

// Point is a line:column position (1-based line, 0-based column,
// counted in runes from the start of the line).
type Point struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Span is a start-end position range within one file.
type Span struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

// Delim identifies a Group's bracket pair.
type Delim int

const (
	// DelimNone groups tokens without emitting visible brackets.
	// It still participates in whitespace layout.
	DelimNone Delim = iota
	DelimParen
	DelimBracket
	DelimBrace
)

// Open returns the opening bracket text. DelimNone opens with nothing.
func (d Delim) Open() string {
	switch d {
	case DelimParen:
		return "("
	case DelimBracket:
		return "["
	case DelimBrace:
		return "{"
	}
	return ""
}

// Close returns the closing bracket text. DelimNone closes with nothing.
func (d Delim) Close() string {
	switch d {
	case DelimParen:
		return ")"
	case DelimBracket:
		return "]"
	case DelimBrace:
		return "}"
	}
	return ""
}

// Token is one node of the lexical tree.
//
// The tree is strict: children are exclusively owned by their parent
// group, with no sharing and no cycles.
type Token interface {
	// Pos reports where the token starts. A Group starts at its
	// opening delimiter.
	Pos() Point
	// End reports where the token ends. A Group ends at its closing
	// delimiter.
	End() Point
}

// Ident is an identifier or keyword.
type Ident struct {
	Text string
	Span Span
}

// Literal is a string, number, or character literal, stored verbatim
// as it appeared in the host file. A literal may span multiple lines;
// its Span.End reflects that.
type Literal struct {
	Text string
	Span Span
}

// Punct is a single punctuation character. Joint marks a punct glued
// to the following token with no intervening whitespace, which is what
// distinguishes the capture marker `'x` from a stray quote and the
// operator rewrite `##` from two separate marks.
type Punct struct {
	Ch    rune
	Joint bool
	Span  Span
}

// Group is a delimited token sequence. Open and Close are the spans of
// the two delimiter characters themselves.
type Group struct {
	Delim    Delim
	Open     Span
	Close    Span
	Children []Token
}

func (t *Ident) Pos() Point { return t.Span.Start }
func (t *Ident) End() Point { return t.Span.End }

func (t *Literal) Pos() Point { return t.Span.Start }
func (t *Literal) End() Point { return t.Span.End }

func (t *Punct) Pos() Point { return t.Span.Start }
func (t *Punct) End() Point { return t.Span.End }

func (t *Group) Pos() Point { return t.Open.Start }
func (t *Group) End() Point { return t.Close.End }

// Walk visits every span in the tree in document order. A Group
// contributes its opening delimiter span, then its children, then its
// closing delimiter span.
func Walk(tokens []Token, visit func(Span)) {
	for _, tok := range tokens {
		if g, ok := tok.(*Group); ok {
			visit(g.Open)
			Walk(g.Children, visit)
			visit(g.Close)
			continue
		}
		visit(Span{Start: tok.Pos(), End: tok.End()})
	}
}
