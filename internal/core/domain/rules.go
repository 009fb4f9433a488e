package domain

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

const (
	NameMinLength = 2
	NameMaxLength = 100
)

var (
	namePattern    = regexp.MustCompile(`^[A-Za-z\s'-]+(?:\s\d+)?$`)
	zipCodePattern = regexp.MustCompile(`^[0-9]{5}$`)
)

// IsValidZipCode reports whether s is a 5-digit US zip code.
func IsValidZipCode(s string) bool {
	return zipCodePattern.MatchString(s)
}

// IsValidNamePattern checks only the character rules of a name.
func IsValidNamePattern(s string) bool {
	return namePattern.MatchString(s)
}

// IsValidName checks both the length and the character rules of a name.
func IsValidName(s string) bool {
	n := utf8.RuneCountInString(s)
	return n >= NameMinLength && n <= NameMaxLength && IsValidNamePattern(s)
}

// TimezoneLabel renders an offset in seconds as "UTC+5", "UTC-3", "UTC+0".
// Sub-hour offsets are truncated.
func TimezoneLabel(offsetSeconds int) string {
	sign := "+"
	abs := offsetSeconds
	if offsetSeconds < 0 {
		sign = "-"
		abs = -offsetSeconds
	}
	return fmt.Sprintf("UTC%s%d", sign, abs/3600)
}
