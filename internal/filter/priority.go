package filter

import "regexp"

// DefaultExcludeURLPatterns reject sports/entertainment/lifestyle pages
// before they are ever scored or enqueued.
var DefaultExcludeURLPatterns = []string{
	`/sports?/`,
	`/sport/`,
	`/cricket/`,
	`/football/`,
	`/tennis/`,
	`/basketball/`,
	`/olympics?/`,
	`/entertainment/`,
	`/bollywood/`,
	`/hollywood/`,
	`/celebrity/`,
	`/movie/`,
	`/music/`,
	`/tv/`,
	`/lifestyle/`,
	`/fashion/`,
	`/beauty/`,
	`/travel/`,
	`/food/`,
	`/recipe/`,
	`/horoscope/`,
	`/astrology/`,
}

// DefaultHighPriorityPatterns match business/markets/policy content,
// scored at priority -10 (more urgent).
var DefaultHighPriorityPatterns = []string{
	`/business/`,
	`/markets?/`,
	`/economy/`,
	`/economics/`,
	`/finance/`,
	`/stocks?/`,
	`/companies?/`,
	`/industry/`,
	`/bank(s|ing)/`,
	`/commodities?/`,
	`/ipo/`,
	`/earnings?/`,
	`/results?/`,
	`/policy/`,
	`/regulator/`,
	`/rbi/`,
	`/sebi/`,
	`/government/`,
}

// DefaultLowPriorityPatterns match opinion/analysis content, scored at
// priority +10 (less urgent).
var DefaultLowPriorityPatterns = []string{
	`/opinion/`,
	`/editorial/`,
	`/feature/`,
	`/analysis/`,
	`/interview/`,
}

// PriorityPolicy is a URL-only heuristic returning an integer priority;
// lower is more urgent.
type PriorityPolicy struct {
	excludePatterns []*regexp.Regexp
	highPatterns    []*regexp.Regexp
	lowPatterns     []*regexp.Regexp
}

// NewPriorityPolicy compiles the given pattern lists, case-insensitive
// unless caseSensitive is true. A nil list falls back to the matching
// Default*Patterns.
func NewPriorityPolicy(excludePatterns, highPatterns, lowPatterns []string, caseSensitive bool) *PriorityPolicy {
	if excludePatterns == nil {
		excludePatterns = DefaultExcludeURLPatterns
	}
	if highPatterns == nil {
		highPatterns = DefaultHighPriorityPatterns
	}
	if lowPatterns == nil {
		lowPatterns = DefaultLowPriorityPatterns
	}

	prefix := "(?i)"
	if caseSensitive {
		prefix = ""
	}
	compile := func(patterns []string) []*regexp.Regexp {
		out := make([]*regexp.Regexp, 0, len(patterns))
		for _, p := range patterns {
			out = append(out, regexp.MustCompile(prefix+p))
		}
		return out
	}

	return &PriorityPolicy{
		excludePatterns: compile(excludePatterns),
		highPatterns:    compile(highPatterns),
		lowPatterns:     compile(lowPatterns),
	}
}

// DefaultPriorityPolicy builds a PriorityPolicy over the default
// pattern lists.
func DefaultPriorityPolicy() *PriorityPolicy {
	return NewPriorityPolicy(nil, nil, nil, false)
}

// ShouldExcludeURL reports whether url matches an exclusion pattern and
// must be rejected before enqueue.
func (p *PriorityPolicy) ShouldExcludeURL(url string) bool {
	for _, re := range p.excludePatterns {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}

// GetPriority scores url: -10 for high-priority matches, +10 for
// low-priority matches, 0 otherwise.
func (p *PriorityPolicy) GetPriority(url string) int {
	for _, re := range p.highPatterns {
		if re.MatchString(url) {
			return -10
		}
	}
	for _, re := range p.lowPatterns {
		if re.MatchString(url) {
			return 10
		}
	}
	return 0
}
