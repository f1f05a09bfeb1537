package rule

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Loader reads rules from YAML files.
type Loader struct {
	fs fs.FS // filesystem the built-in rules load from
}

// NewLoader creates a loader backed by the embedded built-in rules.
func NewLoader() *Loader {
	return &Loader{
		fs: builtinRulesFS,
	}
}

// NewLoaderWithFS creates a loader with a custom filesystem.
func NewLoaderWithFS(fsys fs.FS) *Loader {
	return &Loader{
		fs: fsys,
	}
}

// LoadRule loads a single rule from YAML bytes. It is an error for the
// data to hold zero or several rules.
func (l *Loader) LoadRule(data []byte) (*Rule, error) {
	var yamlFile yamlRulesFile
	if err := yaml.Unmarshal(data, &yamlFile); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(yamlFile.Rules) == 0 {
		return nil, fmt.Errorf("no rules found in YAML")
	}
	if len(yamlFile.Rules) > 1 {
		return nil, fmt.Errorf("expected single rule, found %d", len(yamlFile.Rules))
	}

	r := convertYAMLRule(yamlFile.Rules[0])
	if err := Validate(r); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadRuleFile loads all rules from a YAML file path. This is how
// user-supplied rule files from the config land in a check run.
func (l *Loader) LoadRuleFile(path string) ([]*Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	var yamlFile yamlRulesFile
	if err := yaml.Unmarshal(data, &yamlFile); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	var rules []*Rule
	for _, yr := range yamlFile.Rules {
		r := convertYAMLRule(yr)
		if err := Validate(r); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// LoadBuiltin loads every built-in rule.
func (l *Loader) LoadBuiltin() ([]*Rule, error) {
	var rules []*Rule

	err := fs.WalkDir(l.fs, "rules", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".yml" {
			return nil
		}

		data, err := fs.ReadFile(l.fs, path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		var yamlFile yamlRulesFile
		if err := yaml.Unmarshal(data, &yamlFile); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}

		for _, yr := range yamlFile.Rules {
			r := convertYAMLRule(yr)
			if err := Validate(r); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			rules = append(rules, r)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return rules, nil
}

// convertYAMLRule converts the YAML shape to a Rule, defaulting the
// severity.
func convertYAMLRule(yr yamlRule) *Rule {
	sev := yr.Severity
	if sev == "" {
		sev = SeverityWarning
	}
	return &Rule{
		ID:               yr.ID,
		Name:             yr.Name,
		Pattern:          yr.Pattern,
		Severity:         sev,
		Description:      yr.Description,
		Keywords:         yr.Keywords,
		Examples:         yr.Examples,
		NegativeExamples: yr.NegativeExamples,
		References:       yr.References,
	}
}
