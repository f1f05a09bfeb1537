// Package rule defines lint rules for embedded Python blocks and
// loads them from YAML, both the built-in set and user files.
package rule

import (
	"fmt"
	"time"

	"github.com/dlclark/regexp2"
)

// Severity values a rule may declare. An empty severity means warning.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Rule is one lint check run against reconstructed block source.
type Rule struct {
	ID               string   // e.g., "py.bare-except"
	Name             string   // human-readable name
	Pattern          string   // regex, compiled in multiline mode
	Severity         string   // "error" or "warning"; empty means warning
	Description      string   // optional
	Keywords         []string // literal fragments gating the pattern via prefilter
	Examples         []string // snippets the pattern must match
	NegativeExamples []string // snippets the pattern must not match
	References       []string // documentation URLs
}

// matchTimeout caps a single pattern evaluation so a pathological
// pattern cannot hang a check run.
const matchTimeout = 5 * time.Second

// Compile builds the rule's matcher. RE2 mode is tried first for its
// no-backtracking guarantee; patterns needing Perl features fall back
// to the default mode with a match timeout.
func (r *Rule) Compile() (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(r.Pattern, regexp2.RE2|regexp2.Multiline)
	if err != nil {
		re, err = regexp2.Compile(r.Pattern, regexp2.Multiline)
		if err != nil {
			return nil, fmt.Errorf("compiling pattern for rule %s: %w", r.ID, err)
		}
	}
	re.MatchTimeout = matchTimeout
	return re, nil
}

// Validate checks rule consistency and required fields.
func Validate(r *Rule) error {
	if r == nil {
		return fmt.Errorf("rule is nil")
	}
	if r.ID == "" {
		return fmt.Errorf("rule ID is required")
	}
	if r.Name == "" {
		return fmt.Errorf("rule %s: name is required", r.ID)
	}
	if r.Pattern == "" {
		return fmt.Errorf("rule %s: pattern is required", r.ID)
	}
	switch r.Severity {
	case "", SeverityError, SeverityWarning:
	default:
		return fmt.Errorf("rule %s: unknown severity %q", r.ID, r.Severity)
	}
	if _, err := r.Compile(); err != nil {
		return err
	}
	return nil
}
