package textutil

// Truncate caps s at max runes, replacing the tail with "..." when it has to
// cut. Platform limits (YouTube's 100-character title cap) count characters,
// not bytes, so the cut is rune-aware.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// Clip caps s at max runes without an ellipsis.
func Clip(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
