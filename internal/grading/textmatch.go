package grading

import "strings"

// Equivalent compares a writing response against its expected text:
// surrounding whitespace is trimmed and the comparison is case folded.
// No fuzziness beyond that; partial credit is not a thing here.
func Equivalent(expected, got string) bool {
	return strings.EqualFold(strings.TrimSpace(expected), strings.TrimSpace(got))
}
