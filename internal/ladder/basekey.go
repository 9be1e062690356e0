// Package ladder detects calendar-ladder arbitrage across markets that share
// an underlying event but resolve at different deadlines.
package ladder

import (
	"regexp"
	"strings"
)

var (
	// Trailing deadline segments: "-by-december-31", "-in-2026", "-before-march".
	deadlineSuffixRe = regexp.MustCompile(`-(?:in|by|before|after|until|through)-[a-z0-9-]+$`)
	isoDateRe        = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	yearRe           = regexp.MustCompile(`(?:^|-)(?:19|20)\d{2}(?:-|$)`)
	dashRunRe        = regexp.MustCompile(`-{2,}`)
)

// BaseKey normalizes a market slug to the underlying-event key by stripping
// deadline tokens. Slugs that normalize to nothing keep their original form
// so they can never collide into one group.
func BaseKey(slug string) string {
	orig := strings.ToLower(strings.TrimSpace(slug))
	s := orig
	s = deadlineSuffixRe.ReplaceAllString(s, "")
	s = isoDateRe.ReplaceAllString(s, "")
	s = yearRe.ReplaceAllString(s, "-")
	s = dashRunRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return orig
	}
	return s
}
