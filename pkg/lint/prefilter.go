package lint

import (
	"github.com/cloudflare/ahocorasick"

	"github.com/pyrite-lang/pyrite/pkg/rule"
)

// prefilter screens rules by literal keyword before any pattern runs.
// A rule with keywords is evaluated only when one of them occurs in
// the source; rules without keywords always run.
type prefilter struct {
	matcher        *ahocorasick.Matcher
	keywords       []string
	keywordRules   map[string][]*rule.Rule
	noKeywordRules []*rule.Rule
}

func newPrefilter(rules []*rule.Rule) *prefilter {
	p := &prefilter{
		keywordRules: make(map[string][]*rule.Rule),
	}

	seen := make(map[string]bool)
	for _, r := range rules {
		if len(r.Keywords) == 0 {
			p.noKeywordRules = append(p.noKeywordRules, r)
			continue
		}
		for _, kw := range r.Keywords {
			if !seen[kw] {
				seen[kw] = true
				p.keywords = append(p.keywords, kw)
			}
			p.keywordRules[kw] = append(p.keywordRules[kw], r)
		}
	}

	p.matcher = ahocorasick.NewStringMatcher(p.keywords)
	return p
}

// filter returns the rules worth running against content.
func (p *prefilter) filter(content []byte) []*rule.Rule {
	result := make([]*rule.Rule, 0, len(p.noKeywordRules))
	result = append(result, p.noKeywordRules...)

	if len(p.keywords) == 0 {
		return result
	}

	seenRules := make(map[string]bool)
	for _, hit := range p.matcher.Match(content) {
		kw := p.keywords[hit]
		for _, r := range p.keywordRules[kw] {
			if seenRules[r.ID] {
				continue
			}
			seenRules[r.ID] = true
			result = append(result, r)
		}
	}
	return result
}
