package chunker

import "strings"

// CountWords counts whitespace-separated words. Budgets are expressed in
// words, which tracks reader token cost closely enough for partitioning.
func CountWords(text string) int {
	if text == "" {
		return 0
	}
	return len(strings.Fields(text))
}
