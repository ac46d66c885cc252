package utils

// Truncate is a simple string truncate that appends an ellipsis. It counts
// runes so multi-byte text is never split mid-character.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

// Clip cuts s to at most maxLen runes without any marker.
func Clip(s string, maxLen int) string {
	if maxLen < 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen])
}
