package datastream

import (
	"strings"

	"github.com/armdoe/dsproc/internal/dberr"
)

// IntervalRule is one parsed entry of the --output-interval flag: a
// split policy optionally scoped to a single "class.level" datastream.
type IntervalRule struct {
	ClassLevel string // "" applies to all output streams
	Policy     SplitPolicy
}

var baseTokens = map[string]SplitPolicy{
	"hourly":  {Mode: SplitOnHours, Start: 0, Interval: 1},
	"daily":   {Mode: SplitOnDays, Start: 0, Interval: 1},
	"monthly": {Mode: SplitOnMonths, Start: 0, Interval: 1},
	"yearly":  {Mode: SplitOnMonths, Start: 0, Interval: 12},
	"always":  {Mode: SplitOnStore},
	"never":   {Mode: SplitNone},
}

// ParseOutputIntervalSpec parses the user-facing output-interval string
// "[class.level-]{hourly|daily|monthly|yearly|always|never}[-utc|local][,…]".
// There is no corpus library for this small, domain-specific grammar,
// so it is hand-rolled (see DESIGN.md).
func ParseOutputIntervalSpec(spec string) ([]IntervalRule, error) {
	var rules []IntervalRule
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		rule, err := parseOneInterval(entry)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func parseOneInterval(entry string) (IntervalRule, error) {
	parts := strings.Split(entry, "-")
	baseIdx := -1
	for i, p := range parts {
		if _, ok := baseTokens[p]; ok {
			baseIdx = i
			break
		}
	}
	if baseIdx < 0 {
		return IntervalRule{}, dberr.New(dberr.BadFormat,
			"datastream.ParseOutputIntervalSpec: %q does not contain a recognized interval token", entry)
	}
	policy := baseTokens[parts[baseIdx]]

	classLevel := strings.Join(parts[:baseIdx], "-")

	suffix := parts[baseIdx+1:]
	if len(suffix) > 0 {
		switch suffix[0] {
		case "utc":
			policy.TZOffsetHours = 0
		case "local":
			policy.TZOffsetHours = 0 // same as "utc" here; the rule does not record that "local" was given
		default:
			return IntervalRule{}, dberr.New(dberr.BadFormat,
				"datastream.ParseOutputIntervalSpec: unrecognized suffix %q in %q", suffix[0], entry)
		}
	}

	return IntervalRule{ClassLevel: classLevel, Policy: policy}, nil
}

// Matches reports whether rule applies to a stream identified by
// "class.level" (or any stream, if the rule has no prefix).
func (rule IntervalRule) Matches(classLevel string) bool {
	return rule.ClassLevel == "" || rule.ClassLevel == classLevel
}

// ResolveOutputIntervals applies rules, in order, to each of
// classLevels, returning the winning policy per stream (later rules
// override earlier ones, and an unscoped rule is a fallback applied
// before any scoped rule that also matches).
func ResolveOutputIntervals(rules []IntervalRule, classLevels []string) map[string]SplitPolicy {
	out := map[string]SplitPolicy{}
	for _, cl := range classLevels {
		for _, r := range rules {
			if r.ClassLevel == "" {
				out[cl] = r.Policy
			}
		}
		for _, r := range rules {
			if r.ClassLevel != "" && r.Matches(cl) {
				out[cl] = r.Policy
			}
		}
	}
	return out
}
