package rule

// yamlRule maps one YAML rule entry onto Rule.
type yamlRule struct {
	ID               string   `yaml:"id"`
	Name             string   `yaml:"name"`
	Pattern          string   `yaml:"pattern"`
	Severity         string   `yaml:"severity,omitempty"`
	Description      string   `yaml:"description,omitempty"`
	Keywords         []string `yaml:"keywords,omitempty"`
	Examples         []string `yaml:"examples,omitempty"`
	NegativeExamples []string `yaml:"negative_examples,omitempty"`
	References       []string `yaml:"references,omitempty"`
}

// yamlRulesFile is the top-level structure of a rules YAML file: a
// "rules" array.
type yamlRulesFile struct {
	Rules []yamlRule `yaml:"rules"`
}
