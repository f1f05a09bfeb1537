package diag

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

// styles holds color formatters for human-readable diagnostic output.
type styles struct {
	path    *color.Color
	errTag  *color.Color
	warnTag *color.Color
	message *color.Color
	gutter  *color.Color
	caret   *color.Color
	note    *color.Color
}

// newStyles creates color formatters for diagnostic rendering.
// enabled=false respects --color=never and non-TTY output.
func newStyles(enabled bool) *styles {
	s := &styles{
		path:    color.New(color.Bold),
		errTag:  color.New(color.Bold, color.FgHiRed),
		warnTag: color.New(color.Bold, color.FgHiYellow),
		message: color.New(color.Bold, color.FgHiWhite),
		gutter:  color.New(color.FgHiBlue),
		caret:   color.New(color.Bold, color.FgHiRed),
		note:    color.New(color.FgHiBlue),
	}

	if !enabled {
		s.path.DisableColor()
		s.errTag.DisableColor()
		s.warnTag.DisableColor()
		s.message.DisableColor()
		s.gutter.DisableColor()
		s.caret.DisableColor()
		s.note.DisableColor()
	}

	return s
}

// Renderer writes human-readable diagnostics with source context and a
// caret underline.
type Renderer struct {
	styles *styles
}

// NewRenderer creates a renderer. colorEnabled controls ANSI output.
func NewRenderer(colorEnabled bool) *Renderer {
	return &Renderer{styles: newStyles(colorEnabled)}
}

// Render writes one diagnostic. src is the host file's content, used
// to show the offending line; pass nil to skip source context.
func (r *Renderer) Render(w io.Writer, d *Diagnostic, src []byte) {
	s := r.styles

	tag := s.errTag
	if d.Severity == SeverityWarning {
		tag = s.warnTag
	}

	head := d.File
	if d.Anchor != nil {
		p := d.Anchor.First.Start
		head = fmt.Sprintf("%s:%d:%d", d.File, p.Line, p.Column+1)
	}
	msg := d.Message
	if d.Rule != "" {
		msg = fmt.Sprintf("%s [%s]", msg, d.Rule)
	}
	fmt.Fprintf(w, "%s: %s: %s\n",
		s.path.Sprint(head),
		tag.Sprint(d.Severity.String()),
		s.message.Sprint(msg))

	if d.Anchor != nil && len(src) > 0 {
		r.renderSource(w, d, src)
	}

	for _, n := range d.Notes {
		fmt.Fprintf(w, "  %s %s\n", s.note.Sprint("note:"), n)
	}
}

// renderSource prints the offending source line with a caret underline
// from the anchor's first span to its last. An anchor that continues
// past the displayed line underlines to the end of that line.
func (r *Renderer) renderSource(w io.Writer, d *Diagnostic, src []byte) {
	lineNo := d.Anchor.First.Start.Line
	line, ok := sourceLine(src, lineNo)
	if !ok {
		return
	}
	// Tabs count as one column, same as the lexer; display them as one
	// space so the caret stays aligned.
	line = strings.ReplaceAll(line, "\t", " ")
	width := utf8.RuneCountInString(line)

	start := d.Anchor.First.Start.Column
	if start > width {
		start = width
	}
	end := d.Anchor.Last.End.Column
	if d.Anchor.Last.End.Line != lineNo || end > width {
		end = width
	}
	carets := end - start
	if carets < 1 {
		carets = 1
	}

	gutter := fmt.Sprintf("%5d", lineNo)
	fmt.Fprintf(w, "%s %s %s\n", r.styles.gutter.Sprint(gutter), r.styles.gutter.Sprint("|"), line)
	fmt.Fprintf(w, "%s %s %s%s\n",
		strings.Repeat(" ", len(gutter)),
		r.styles.gutter.Sprint("|"),
		strings.Repeat(" ", start),
		r.styles.caret.Sprint(strings.Repeat("^", carets)))
}

// sourceLine returns the 1-based n'th line of src.
func sourceLine(src []byte, n int) (string, bool) {
	if n < 1 {
		return "", false
	}
	lines := strings.Split(string(src), "\n")
	if n > len(lines) {
		return "", false
	}
	return strings.TrimSuffix(lines[n-1], "\r"), true
}
