package validation

import (
	"regexp"
	"strings"
)

// Budget years are a four-digit year optionally followed by a phase label, e.g. "2026" or "2026-Murni".
var budgetYearRe = regexp.MustCompile(`^\d{4}(?:[-\s][\p{L}\p{N} ._-]+)?$`)

// Hierarchy code segments are alphanumeric without the "." separator.
var codeSegmentRe = regexp.MustCompile(`^[0-9A-Za-z_-]+$`)

func IsValidBudgetYear(year string) bool {
	return budgetYearRe.MatchString(strings.TrimSpace(year))
}

func IsValidCodeSegment(code string) bool {
	return codeSegmentRe.MatchString(strings.TrimSpace(code))
}

func IsValidMonth(month int) bool {
	return month >= 1 && month <= 12
}
