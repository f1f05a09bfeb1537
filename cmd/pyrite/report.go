package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pyrite-lang/pyrite"
	"github.com/pyrite-lang/pyrite/pkg/diag"
	"github.com/pyrite-lang/pyrite/pkg/sarif"
)

// renderHuman prints each diagnostic with a source excerpt and caret
// underline.
func renderHuman(w io.Writer, res *pyrite.Result) {
	if len(res.Diagnostics) == 0 {
		return
	}
	r := diag.NewRenderer(colorEnabled())
	for _, d := range res.Diagnostics {
		r.Render(w, d, res.Sources[d.File])
	}
}

// checkReport is the JSON output shape of `check --format json`.
type checkReport struct {
	Files       int                  `json:"files"`
	Blocks      int                  `json:"blocks"`
	Errors      int                  `json:"errors"`
	Warnings    int                  `json:"warnings"`
	Diagnostics []*pyrite.Diagnostic `json:"diagnostics"`
}

func renderJSON(w io.Writer, res *pyrite.Result) error {
	report := checkReport{
		Files:       res.Files,
		Blocks:      res.Blocks,
		Errors:      res.Errors(),
		Warnings:    res.Warnings(),
		Diagnostics: res.Diagnostics,
	}
	if report.Diagnostics == nil {
		report.Diagnostics = []*pyrite.Diagnostic{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func renderSARIF(w io.Writer, res *pyrite.Result, rules []*pyrite.Rule) error {
	v, _ := pyrite.Version()
	report := sarif.NewReport(v)
	for _, r := range rules {
		report.AddRule(r)
	}
	for _, d := range res.Diagnostics {
		report.AddResult(d)
	}

	data, err := report.ToJSON()
	if err != nil {
		return fmt.Errorf("serializing SARIF: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing SARIF output: %w", err)
	}
	return nil
}
