package agent

import (
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// DateResolver turns free-form due-date text into an absolute timestamp,
// anchored at "now" and preferring future readings: a bare "Friday" or
// "9am" that would land in the past rolls forward day by day.
type DateResolver struct {
	parser *when.Parser
}

func NewDateResolver() *DateResolver {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &DateResolver{parser: w}
}

func (r *DateResolver) Resolve(text string, now time.Time) (time.Time, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return time.Time{}, false
	}
	result, err := r.parser.Parse(trimmed, now)
	if err != nil || result == nil {
		return time.Time{}, false
	}

	resolved := result.Time
	if mentionsPast(trimmed) {
		return resolved, true
	}
	for i := 0; i < 7 && resolved.Before(now); i++ {
		resolved = resolved.AddDate(0, 0, 1)
	}
	return resolved, true
}

func mentionsPast(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "yesterday") ||
		strings.Contains(lower, "ago") ||
		strings.Contains(lower, "last ")
}
