package publish

import (
	"strings"

	"reelcast/types"
)

// tagRules add tags when any keyword appears in a description.
var tagRules = []struct {
	keywords []string
	tags     []string
}{
	{keywords: []string{"教學", "tutorial"}, tags: []string{"教學", "tutorial"}},
	{keywords: []string{"自動化", "automation"}, tags: []string{"自動化", "automation"}},
}

// Tags returns the baseline tags followed by keyword matches from
// description, de-duplicated and capped at limit. Keywords match
// case-sensitively.
func Tags(description string, baseline []string, limit int) []string {
	candidates := append([]string(nil), baseline...)
	for _, rule := range tagRules {
		for _, kw := range rule.keywords {
			if strings.Contains(description, kw) {
				candidates = append(candidates, rule.tags...)
				break
			}
		}
	}

	seen := make(map[string]bool, len(candidates))
	tags := make([]string, 0, len(candidates))
	for _, tag := range candidates {
		if seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
		if len(tags) == limit {
			break
		}
	}
	return tags
}

// Title builds a single-line title from script.
func Title(script string, limit int) string {
	return types.Truncate(strings.Join(strings.Fields(script), " "), limit)
}
