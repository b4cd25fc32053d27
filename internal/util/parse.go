package util

import (
	"regexp"
	"strconv"
	"strings"
)

func SafeAtoi(s string) int {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return i
}

var extractSignedNumberRegex = regexp.MustCompile(`-?\d+`)

func ParseSignedNumericString(s string) string {
	return extractSignedNumberRegex.FindString(s)
}

// ParseCount reads an engagement counter such as "1,234" or "  56 ".
// Anything unparseable or negative counts as zero.
func ParseCount(s string) int {
	n := SafeAtoi(ParseSignedNumericString(strings.ReplaceAll(s, ",", "")))
	return ClampCount(n)
}

// ClampCount floors negative counters at zero.
func ClampCount(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// FirstNonEmpty returns the first argument that is not the empty string.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
