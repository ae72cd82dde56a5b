package timesync

import (
	"strconv"
	"strings"
	"time"
)

// The device's web form offers a fixed set of POSIX TZ rule strings.
// The config file stores the rule verbatim for compatibility; here we
// map the known rules onto the tzdata zones they describe, which gives
// correct DST transitions without a POSIX rule evaluator.
var knownRules = map[string]string{
	"CET-1CEST,M3.5.0,M10.5.0/3":   "Europe/Berlin",
	"GMT0BST,M3.5.0/1,M10.5.0":     "Europe/London",
	"EST5EDT,M3.2.0/2,M11.1.0":     "America/New_York",
	"PST8PDT,M3.2.0,M11.1.0":       "America/Los_Angeles",
	"JST-9":                        "Asia/Tokyo",
	"UTC0":                         "UTC",
	"AEST-10AEDT,M10.1.0,M4.1.0/3": "Australia/Sydney",
	"IST-5:30":                     "Asia/Kolkata",
	"MSK-3":                        "Europe/Moscow",
	"HKT-8":                        "Asia/Hong_Kong",
}

// resolveLocation turns a POSIX TZ rule string into a location.  Rules
// outside the known set are handled as constant offsets when they have
// no DST part; anything else falls back to UTC rather than failing.
func resolveLocation(rule string) *time.Location {
	if name, ok := knownRules[rule]; ok {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	if loc := fixedZone(rule); loc != nil {
		return loc
	}
	return time.UTC
}

// fixedZone parses constant-offset rules of the form "JST-9" or
// "IST-5:30".  POSIX offsets are west-positive, so "JST-9" is UTC+9.
func fixedZone(rule string) *time.Location {
	i := 0
	for i < len(rule) && isAlpha(rule[i]) {
		i++
	}
	if i < 3 || i == len(rule) {
		return nil
	}
	name, rest := rule[:i], rule[i:]

	sign := 1
	switch rest[0] {
	case '+':
		rest = rest[1:]
	case '-':
		sign = -1
		rest = rest[1:]
	}
	hours, minutes := rest, "0"
	if h, m, ok := strings.Cut(rest, ":"); ok {
		hours, minutes = h, m
	}
	h, err := strconv.Atoi(hours)
	if err != nil || h < 0 || h > 24 {
		return nil
	}
	m, err := strconv.Atoi(minutes)
	if err != nil || m < 0 || m > 59 {
		return nil
	}
	return time.FixedZone(name, -sign*(h*3600+m*60))
}

func isAlpha(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z'
}
