package utils

// Truncate shortens s to at most maxLen runes, appending an ellipsis when it
// was cut. Counting runes keeps multi-byte answers intact.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
