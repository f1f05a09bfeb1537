package rule

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func TestLoadRule_Valid(t *testing.T) {
	loader := NewLoader()

	validYAML := `rules:
  - id: py.example
    name: Example rule
    pattern: '\beval[ \t]*\('
    severity: error
    keywords:
      - "eval"
    description: Dynamic evaluation of strings
    examples:
      - "eval(x)"
    negative_examples:
      - "evaluate(x)"
    references:
      - https://docs.python.org/3/library/functions.html#eval
`

	rule, err := loader.LoadRule([]byte(validYAML))
	if err != nil {
		t.Fatalf("LoadRule failed: %v", err)
	}

	if rule.ID != "py.example" {
		t.Errorf("expected ID py.example, got %s", rule.ID)
	}
	if rule.Name != "Example rule" {
		t.Errorf("expected name 'Example rule', got %s", rule.Name)
	}
	if rule.Severity != SeverityError {
		t.Errorf("expected severity error, got %s", rule.Severity)
	}
	if len(rule.Keywords) != 1 || rule.Keywords[0] != "eval" {
		t.Errorf("unexpected keywords: %v", rule.Keywords)
	}
	if len(rule.Examples) != 1 {
		t.Errorf("expected 1 example, got %d", len(rule.Examples))
	}
	if len(rule.NegativeExamples) != 1 {
		t.Errorf("expected 1 negative example, got %d", len(rule.NegativeExamples))
	}
	if len(rule.References) != 1 {
		t.Errorf("expected 1 reference, got %d", len(rule.References))
	}
}

func TestLoadRule_DefaultSeverity(t *testing.T) {
	loader := NewLoader()

	yaml := `rules:
  - id: py.example
    name: Example rule
    pattern: 'x'
`
	rule, err := loader.LoadRule([]byte(yaml))
	if err != nil {
		t.Fatalf("LoadRule failed: %v", err)
	}
	if rule.Severity != SeverityWarning {
		t.Errorf("expected default severity warning, got %s", rule.Severity)
	}
}

func TestLoadRule_InvalidYAML(t *testing.T) {
	loader := NewLoader()

	_, err := loader.LoadRule([]byte(`this is not valid yaml: [[[`))
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadRule_NoRules(t *testing.T) {
	loader := NewLoader()

	_, err := loader.LoadRule([]byte(`rules: []`))
	if err == nil {
		t.Error("expected error for empty rules")
	}
}

func TestLoadRule_MultipleRules(t *testing.T) {
	loader := NewLoader()

	yaml := `rules:
  - id: py.a
    name: A
    pattern: 'a'
  - id: py.b
    name: B
    pattern: 'b'
`
	_, err := loader.LoadRule([]byte(yaml))
	if err == nil {
		t.Error("expected error for multiple rules")
	}
}

func TestLoadRule_UnknownSeverity(t *testing.T) {
	loader := NewLoader()

	yaml := `rules:
  - id: py.a
    name: A
    pattern: 'a'
    severity: fatal
`
	_, err := loader.LoadRule([]byte(yaml))
	if err == nil {
		t.Error("expected error for unknown severity")
	}
}

func TestLoadRule_BadPattern(t *testing.T) {
	loader := NewLoader()

	yaml := `rules:
  - id: py.a
    name: A
    pattern: '(unclosed'
`
	_, err := loader.LoadRule([]byte(yaml))
	if err == nil {
		t.Error("expected error for uncompilable pattern")
	}
}

func TestLoadRuleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "team.yml")
	yaml := `rules:
  - id: team.no-requests
    name: No requests usage
    pattern: '^import requests'
    keywords:
      - "requests"
  - id: team.no-pickle
    name: No pickle usage
    pattern: '\bpickle\.'
    keywords:
      - "pickle"
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	rules, err := NewLoader().LoadRuleFile(path)
	if err != nil {
		t.Fatalf("LoadRuleFile failed: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if rules[0].ID != "team.no-requests" || rules[1].ID != "team.no-pickle" {
		t.Errorf("unexpected rule IDs: %s, %s", rules[0].ID, rules[1].ID)
	}
}

func TestLoadRuleFile_Missing(t *testing.T) {
	_, err := NewLoader().LoadRuleFile(filepath.Join(t.TempDir(), "absent.yml"))
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadBuiltin(t *testing.T) {
	rules, err := NewLoader().LoadBuiltin()
	if err != nil {
		t.Fatalf("LoadBuiltin failed: %v", err)
	}
	if len(rules) < 5 {
		t.Fatalf("expected at least 5 built-in rules, got %d", len(rules))
	}

	seen := make(map[string]bool)
	for _, r := range rules {
		if seen[r.ID] {
			t.Errorf("duplicate rule ID %s", r.ID)
		}
		seen[r.ID] = true

		if err := Validate(r); err != nil {
			t.Errorf("built-in rule %s invalid: %v", r.ID, err)
		}
		if len(r.Keywords) == 0 {
			t.Errorf("built-in rule %s has no prefilter keywords", r.ID)
		}
		if len(r.Examples) == 0 {
			t.Errorf("built-in rule %s has no examples", r.ID)
		}
	}

	if !seen["py.bare-except"] {
		t.Error("expected py.bare-except among built-in rules")
	}
	if !seen["py.capture-reassign"] {
		t.Error("expected py.capture-reassign among built-in rules")
	}
}

func TestLoadBuiltin_ExamplesMatch(t *testing.T) {
	rules, err := NewLoader().LoadBuiltin()
	if err != nil {
		t.Fatalf("LoadBuiltin failed: %v", err)
	}

	for _, r := range rules {
		re, err := r.Compile()
		if err != nil {
			t.Fatalf("rule %s does not compile: %v", r.ID, err)
		}

		for _, example := range r.Examples {
			m, err := re.FindStringMatch(example)
			if err != nil {
				t.Errorf("rule %s errored on example %q: %v", r.ID, example, err)
				continue
			}
			if m == nil {
				t.Errorf("rule %s does not match its example %q", r.ID, example)
			}
		}

		for _, example := range r.NegativeExamples {
			m, err := re.FindStringMatch(example)
			if err != nil {
				t.Errorf("rule %s errored on negative example %q: %v", r.ID, example, err)
				continue
			}
			if m != nil {
				t.Errorf("rule %s matches its negative example %q", r.ID, example)
			}
		}
	}
}

func TestNewLoaderWithFS(t *testing.T) {
	fsys := fstest.MapFS{
		"rules/custom.yml": &fstest.MapFile{Data: []byte(`rules:
  - id: custom.one
    name: Custom rule
    pattern: 'x'
`)},
	}

	rules, err := NewLoaderWithFS(fsys).LoadBuiltin()
	if err != nil {
		t.Fatalf("LoadBuiltin failed: %v", err)
	}
	if len(rules) != 1 || rules[0].ID != "custom.one" {
		t.Errorf("unexpected rules: %+v", rules)
	}
}
