// Package extract finds python blocks in Go source files.
//
// A block is a block comment whose first line is the fence header:
//
//	/*python <name>   inline block, generates a wrapper function
//	/*ctpython        compile-time block, runs during generation
//
// Content is everything between the header line and the closing */.
// Files are screened with a multi-pattern prefilter before parsing, so
// directories full of ordinary Go cost one byte scan per file.
package extract

import (
	"fmt"
	"go/ast"
	"go/parser"
	gotoken "go/token"
	"os"
	"strings"

	"github.com/cloudflare/ahocorasick"

	"github.com/pyrite-lang/pyrite/pkg/diag"
	"github.com/pyrite-lang/pyrite/pkg/token"
)

const (
	markerRuntime     = "/*python"
	markerCompileTime = "/*ctpython"
)

// Mode distinguishes when a block's Python runs.
type Mode int

const (
	// ModeRuntime blocks run when the generated program calls them.
	ModeRuntime Mode = iota
	// ModeCompileTime blocks run during generation; their stdout is
	// parsed as Go declarations.
	ModeCompileTime
)

func (m Mode) String() string {
	if m == ModeCompileTime {
		return "ctpython"
	}
	return "python"
}

// Block is one python fence found in a host file. ContentLine and
// ContentColumn locate the first content byte in host coordinates;
// Fence covers the whole comment and anchors diagnostics that cannot
// be tied to specific tokens.
type Block struct {
	Name          string
	Mode          Mode
	File          string
	Content       string
	ContentLine   int
	ContentColumn int
	Fence         token.Span
}

// Scanner extracts blocks from Go sources. The zero value is not
// usable; construct with NewScanner.
type Scanner struct {
	pre *ahocorasick.Matcher
}

// NewScanner builds the scanner and its fence-marker prefilter.
func NewScanner() *Scanner {
	return &Scanner{
		pre: ahocorasick.NewStringMatcher([]string{markerRuntime, markerCompileTime}),
	}
}

// HasBlocks reports whether src contains a fence marker anywhere. A
// true result can be a false positive (the marker may sit inside a
// string literal); Scan settles it precisely.
func (s *Scanner) HasBlocks(src []byte) bool {
	return len(s.pre.Match(src)) > 0
}

// ScanFile reads path and extracts its blocks.
func (s *Scanner) ScanFile(path string) ([]Block, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return s.Scan(path, src)
}

// Scan extracts every block in src. Fence markers inside string
// literals do not count: blocks are recognized on parsed comments, not
// raw text. Malformed fences return a *diag.Diagnostic anchored at the
// fence header.
func (s *Scanner) Scan(path string, src []byte) ([]Block, error) {
	if !s.HasBlocks(src) {
		return nil, nil
	}

	fset := gotoken.NewFileSet()
	f, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	var blocks []Block
	seen := make(map[string]bool)
	for _, grp := range f.Comments {
		for _, c := range grp.List {
			if !strings.HasPrefix(c.Text, "/*") {
				continue
			}
			b, ok, err := s.parseFence(path, fset, c)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			if b.Mode == ModeRuntime {
				if seen[b.Name] {
					return nil, diag.New(path, fenceAnchor(b.Fence),
						fmt.Sprintf("duplicate python block name %q", b.Name))
				}
				seen[b.Name] = true
			}
			blocks = append(blocks, b)
		}
	}
	return blocks, nil
}

// parseFence recognizes one comment as a block. ok is false when the
// comment is not a fence at all.
func (s *Scanner) parseFence(path string, fset *gotoken.FileSet, c *ast.Comment) (Block, bool, error) {
	text := c.Text

	var mode Mode
	var marker string
	switch {
	case strings.HasPrefix(text, markerCompileTime):
		mode, marker = ModeCompileTime, markerCompileTime
	case strings.HasPrefix(text, markerRuntime):
		mode, marker = ModeRuntime, markerRuntime
	default:
		return Block{}, false, nil
	}

	// The marker must end the word: /*pythonic is somebody's comment.
	rest := text[len(marker):]
	if rest != "" && !isFenceBoundary(rest[0]) {
		return Block{}, false, nil
	}

	start := fset.Position(c.Pos())
	end := fset.Position(c.End())
	fence := token.Span{
		Start: token.Point{Line: start.Line, Column: start.Column - 1},
		End:   token.Point{Line: end.Line, Column: end.Column - 1},
	}

	header, content := splitFence(rest)

	b := Block{
		Mode:          mode,
		File:          path,
		Content:       content,
		ContentLine:   start.Line + 1,
		ContentColumn: 0,
		Fence:         fence,
	}

	name := strings.TrimSpace(header)
	switch mode {
	case ModeRuntime:
		if name == "" {
			return Block{}, false, diag.New(path, fenceAnchor(fence),
				"python block requires a name: /*python <name>")
		}
		if !gotoken.IsIdentifier(name) {
			return Block{}, false, diag.New(path, fenceAnchor(fence),
				fmt.Sprintf("python block name %q is not a valid Go identifier", name))
		}
		b.Name = name
	case ModeCompileTime:
		if name != "" {
			return Block{}, false, diag.New(path, fenceAnchor(fence),
				"ctpython blocks take no name")
		}
	}
	return b, true, nil
}

// splitFence divides the text after the marker into the header (rest
// of the fence line) and the content (everything up to the closing
// delimiter).
func splitFence(rest string) (header, content string) {
	body := strings.TrimSuffix(rest, "*/")
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		return body[:i], body[i+1:]
	}
	return body, ""
}

func isFenceBoundary(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n' || b == '*'
}

func fenceAnchor(fence token.Span) *diag.Anchor {
	header := token.Span{
		Start: fence.Start,
		End:   token.Point{Line: fence.Start.Line, Column: fence.Start.Column + 1},
	}
	return &diag.Anchor{First: header, Last: header}
}
