// Package diag defines the diagnostic value every pipeline stage
// returns on failure, and the span mapping that anchors embedded
// Python errors back onto host Go source.
package diag

import (
	"fmt"

	"github.com/pyrite-lang/pyrite/pkg/token"
)

// Prefix marks every message that originates from embedded Python.
const Prefix = "python: "

// Severity grades a diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	default:
		return "error"
	}
}

// MarshalText renders the severity name in JSON output.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Anchor is the (first, last) token-span pair that underlines a
// diagnostic in the host file. First is the earliest span on the
// target line in document order, Last the latest.
type Anchor struct {
	First token.Span `json:"first"`
	Last  token.Span `json:"last"`
}

// Diagnostic is the single failure value produced by reconstruction,
// compilation, execution, and linting. A nil Anchor means the failure
// could not be tied to specific tokens; callers then anchor it at the
// enclosing block's fence.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	File     string   `json:"file"`
	Anchor   *Anchor  `json:"anchor,omitempty"`
	Rule     string   `json:"rule,omitempty"`
	Notes    []string `json:"notes,omitempty"`
}

// Error implements the error interface. Columns render 1-based even
// though they are stored 0-based.
func (d *Diagnostic) Error() string {
	if d.Anchor != nil {
		p := d.Anchor.First.Start
		return fmt.Sprintf("%s:%d:%d: %s: %s", d.File, p.Line, p.Column+1, d.Severity, d.Message)
	}
	if d.File != "" {
		return fmt.Sprintf("%s: %s: %s", d.File, d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Severity, d.Message)
}

// New creates an error diagnostic with an optional anchor.
func New(file string, anchor *Anchor, message string) *Diagnostic {
	return &Diagnostic{
		Severity: SeverityError,
		Message:  message,
		File:     file,
		Anchor:   anchor,
	}
}

// Embedded creates an error diagnostic for a failure reported by (or
// about) the embedded Python, prefixing the message so its origin is
// unmistakable in host-side output.
func Embedded(file string, anchor *Anchor, message string) *Diagnostic {
	return New(file, anchor, Prefix+message)
}

// SpansForLine finds the first and last token spans starting on the
// given line, walking the tree in document order. Group delimiters
// contribute their open and close spans individually. ok is false
// when no span starts on that line.
func SpansForLine(tokens []token.Token, line int) (Anchor, bool) {
	var a Anchor
	found := false
	token.Walk(tokens, func(s token.Span) {
		if s.Start.Line != line {
			return
		}
		if !found {
			a.First = s
			found = true
		}
		a.Last = s
	})
	return a, found
}

// FromCompileError anchors a Python compile error at the tokens on its
// reported line. When the line maps to no tokens the diagnostic is
// unanchored and carries the full error text instead of the bare
// message.
func FromCompileError(tokens []token.Token, file string, line int, msg, full string) *Diagnostic {
	if a, ok := SpansForLine(tokens, line); ok {
		return Embedded(file, &a, msg)
	}
	if full == "" {
		full = msg
	}
	return Embedded(file, nil, full)
}

// Frame is one traceback entry as reported by the interpreter,
// outermost frame first.
type Frame struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

// FromTraceback anchors a Python runtime error using the first
// traceback frame that was executing the host file and whose line maps
// to tokens. The filename comparison is exact string equality against
// the path the source was compiled under. Frames from other files
// (imported modules, the interpreter driver) are never eligible. With
// no eligible frame the diagnostic is unanchored.
func FromTraceback(tokens []token.Token, file string, frames []Frame, msg string) *Diagnostic {
	for _, f := range frames {
		if f.File != file {
			continue
		}
		if a, ok := SpansForLine(tokens, f.Line); ok {
			return Embedded(file, &a, msg)
		}
	}
	return Embedded(file, nil, msg)
}
