// Package lint checks reconstructed block source against rules and
// anchors findings back onto host file spans.
//
// Because reconstruction pads the source so its line numbers equal
// host line numbers, a match's line in the block source is already the
// host line, and the span mapper can anchor it directly.
package lint

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/pyrite-lang/pyrite/pkg/diag"
	"github.com/pyrite-lang/pyrite/pkg/rule"
	"github.com/pyrite-lang/pyrite/pkg/token"
)

// Engine holds compiled rules ready to run against any number of
// blocks. Construct once per check run.
type Engine struct {
	rules    []*rule.Rule
	compiled map[string]*regexp2.Regexp
	pre      *prefilter
}

// NewEngine compiles every rule up front so pattern errors surface
// before the first block is checked.
func NewEngine(rules []*rule.Rule) (*Engine, error) {
	e := &Engine{
		rules:    rules,
		compiled: make(map[string]*regexp2.Regexp, len(rules)),
		pre:      newPrefilter(rules),
	}
	for _, r := range rules {
		re, err := r.Compile()
		if err != nil {
			return nil, err
		}
		e.compiled[r.ID] = re
	}
	return e, nil
}

// Check runs the rules against one block's reconstructed source.
// tokens are the block's token tree, used to anchor findings; file
// stamps the diagnostics. Findings come back ordered by line, then
// rule ID, with one finding per rule and line.
func (e *Engine) Check(file string, tokens []token.Token, source string) ([]*diag.Diagnostic, error) {
	var out []*diag.Diagnostic
	seen := make(map[string]bool)

	for _, r := range e.pre.filter([]byte(source)) {
		re := e.compiled[r.ID]

		m, err := re.FindStringMatch(source)
		if err != nil {
			return nil, fmt.Errorf("rule %s failed on %s: %w", r.ID, file, err)
		}
		for m != nil {
			line := 1 + strings.Count(source[:m.Index], "\n")
			key := fmt.Sprintf("%s:%d", r.ID, line)
			if !seen[key] {
				seen[key] = true
				out = append(out, finding(r, file, tokens, line))
			}

			m, err = re.FindNextMatch(m)
			if err != nil {
				return nil, fmt.Errorf("rule %s failed on %s: %w", r.ID, file, err)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		li, lj := findingLine(out[i]), findingLine(out[j])
		if li != lj {
			return li < lj
		}
		return out[i].Rule < out[j].Rule
	})
	return out, nil
}

func finding(r *rule.Rule, file string, tokens []token.Token, line int) *diag.Diagnostic {
	d := &diag.Diagnostic{
		Severity: severityOf(r),
		Message:  r.Name,
		File:     file,
		Rule:     r.ID,
	}
	if a, ok := diag.SpansForLine(tokens, line); ok {
		d.Anchor = &a
	}
	if r.Description != "" {
		d.Notes = append(d.Notes, strings.TrimSpace(r.Description))
	}
	return d
}

func severityOf(r *rule.Rule) diag.Severity {
	if r.Severity == rule.SeverityError {
		return diag.SeverityError
	}
	return diag.SeverityWarning
}

func findingLine(d *diag.Diagnostic) int {
	if d.Anchor == nil {
		return 0
	}
	return d.Anchor.First.Start.Line
}
