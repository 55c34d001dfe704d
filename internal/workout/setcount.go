package workout

import (
	"strconv"
	"strings"
)

// DefaultSetCount is used when an exercise's set count is missing or malformed.
const DefaultSetCount = 3

// ParseSetCount reads the loosely typed set-count field of an exercise.
// Non-numeric, zero, and negative values fall back to DefaultSetCount.
func ParseSetCount(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return DefaultSetCount
	}
	return n
}
