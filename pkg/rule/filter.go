package rule

import (
	"fmt"
	"regexp"
	"strings"
)

// FilterConfig specifies include and exclude patterns for rule
// filtering. Patterns are regexes matched against rule IDs.
type FilterConfig struct {
	Include []string // only matching rules included; empty means all
	Exclude []string // matching rules excluded, applied after include
}

// ParsePatterns splits a comma-separated flag value into individual
// patterns, trimming whitespace.
func ParsePatterns(patterns string) []string {
	if patterns == "" {
		return []string{}
	}

	parts := strings.Split(patterns, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Filter applies include and exclude patterns to rules. Include runs
// first, then exclude.
func Filter(rules []*Rule, config FilterConfig) ([]*Rule, error) {
	if len(rules) == 0 {
		return rules, nil
	}

	includeRegexes, err := compilePatterns(config.Include)
	if err != nil {
		return nil, err
	}
	excludeRegexes, err := compilePatterns(config.Exclude)
	if err != nil {
		return nil, err
	}

	filtered := rules
	if len(includeRegexes) > 0 {
		filtered = keepMatching(filtered, includeRegexes, true)
	}
	if len(excludeRegexes) > 0 {
		filtered = keepMatching(filtered, excludeRegexes, false)
	}
	return filtered, nil
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	var regexes []*regexp.Regexp
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
		}
		regexes = append(regexes, re)
	}
	return regexes, nil
}

func keepMatching(rules []*Rule, regexes []*regexp.Regexp, want bool) []*Rule {
	result := make([]*Rule, 0, len(rules))
	for _, r := range rules {
		if matchesAny(r.ID, regexes) == want {
			result = append(result, r)
		}
	}
	return result
}

func matchesAny(ruleID string, regexes []*regexp.Regexp) bool {
	for _, re := range regexes {
		if re.MatchString(ruleID) {
			return true
		}
	}
	return false
}
