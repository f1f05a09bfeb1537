// Package sarif encodes check results as SARIF 2.1.0 for code
// scanning consumers.
package sarif

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/pyrite-lang/pyrite/pkg/diag"
	"github.com/pyrite-lang/pyrite/pkg/rule"
)

// SARIF 2.1.0 constants
const (
	SchemaURI = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"
	Version   = "2.1.0"
	ToolName  = "pyrite"
)

// Report is the top-level SARIF report structure
type Report struct {
	Schema  string `json:"$schema"`
	Version string `json:"version"`
	Runs    []Run  `json:"runs"`
}

// Run represents a single invocation of the tool
type Run struct {
	Tool    Tool     `json:"tool"`
	Results []Result `json:"results"`
}

// Tool describes the analysis tool
type Tool struct {
	Driver Driver `json:"driver"`
}

// Driver contains tool metadata
type Driver struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Rules   []Rule `json:"rules,omitempty"`
}

// Rule represents a lint rule
type Rule struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	ShortDescription ShortDescription `json:"shortDescription"`
	HelpURI          string           `json:"helpUri,omitempty"`
}

// ShortDescription contains rule description text
type ShortDescription struct {
	Text string `json:"text"`
}

// Result represents a single diagnostic
type Result struct {
	RuleID    string     `json:"ruleId,omitempty"`
	Level     string     `json:"level"`
	Message   Message    `json:"message"`
	Locations []Location `json:"locations,omitempty"`
}

// Message contains the result message
type Message struct {
	Text string `json:"text"`
}

// Location describes where a result was found
type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

// PhysicalLocation specifies file location
type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           *Region          `json:"region,omitempty"`
}

// ArtifactLocation identifies the file
type ArtifactLocation struct {
	URI string `json:"uri"`
}

// Region specifies the line/column range
type Region struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn"`
	EndLine     int `json:"endLine"`
	EndColumn   int `json:"endColumn"`
}

// NewReport creates a new SARIF report with initialized structure.
// version is the tool version stamped at build time.
func NewReport(version string) *Report {
	return &Report{
		Schema:  SchemaURI,
		Version: Version,
		Runs: []Run{
			{
				Tool: Tool{
					Driver: Driver{
						Name:    ToolName,
						Version: version,
						Rules:   []Rule{},
					},
				},
				Results: []Result{},
			},
		},
	}
}

// AddRule records a lint rule's metadata in the run's driver.
func (r *Report) AddRule(rl *rule.Rule) {
	sarifRule := Rule{
		ID:   rl.ID,
		Name: rl.Name,
		ShortDescription: ShortDescription{
			Text: strings.TrimSpace(rl.Description),
		},
	}

	// Add first reference as helpUri if available
	if len(rl.References) > 0 {
		sarifRule.HelpURI = rl.References[0]
	}

	r.Runs[0].Tool.Driver.Rules = append(r.Runs[0].Tool.Driver.Rules, sarifRule)
}

// AddResult appends one diagnostic. Anchored diagnostics carry a
// region; unanchored ones only name the file.
func (r *Report) AddResult(d *diag.Diagnostic) {
	result := Result{
		RuleID:  d.Rule,
		Level:   level(d.Severity),
		Message: Message{Text: d.Message},
	}

	if d.File != "" {
		loc := Location{
			PhysicalLocation: PhysicalLocation{
				ArtifactLocation: ArtifactLocation{URI: formatFileURI(d.File)},
			},
		}
		if d.Anchor != nil {
			// SARIF columns are 1-based; spans store 0-based columns.
			loc.PhysicalLocation.Region = &Region{
				StartLine:   d.Anchor.First.Start.Line,
				StartColumn: d.Anchor.First.Start.Column + 1,
				EndLine:     d.Anchor.Last.End.Line,
				EndColumn:   d.Anchor.Last.End.Column + 1,
			}
		}
		result.Locations = []Location{loc}
	}

	r.Runs[0].Results = append(r.Runs[0].Results, result)
}

// ToJSON serializes the report to JSON bytes
func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

func level(s diag.Severity) string {
	if s == diag.SeverityError {
		return "error"
	}
	return "warning"
}

// formatFileURI converts a file path to SARIF URI format
// Absolute paths get file:// prefix, relative paths stay as-is
func formatFileURI(path string) string {
	if filepath.IsAbs(path) {
		// Normalize path separators for URI format
		path = filepath.ToSlash(path)
		// Ensure path starts with /
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		return "file://" + path
	}
	// Relative paths stay as-is
	return filepath.ToSlash(path)
}
