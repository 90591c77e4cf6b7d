package provider

import (
	"strconv"
	"strings"
)

// Year extracts the release year from the candidate's date string.
// Returns 0 when the date is absent or unparseable.
func (c CandidateRelease) Year() uint {
	return ParseYear(c.Date)
}

// ParseYear accepts either a 4-digit prefix of a free-text date
// ("1991-09-24") or a bare numeric year ("1991"). Unparseable input
// yields 0, meaning unknown.
func ParseYear(date string) uint {
	date = strings.TrimSpace(date)
	if len(date) >= 4 {
		if y, err := strconv.Atoi(date[:4]); err == nil && y > 0 {
			return uint(y)
		}
	}
	if y, err := strconv.Atoi(date); err == nil && y > 0 {
		return uint(y)
	}
	return 0
}
