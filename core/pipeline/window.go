package pipeline

import "strings"

// WindowSplit splits text into windows of size words that overlap by
// overlap words. Text of at most size words is returned unchanged.
func WindowSplit(text string, size int, overlap int) []string {
	words := strings.Fields(text)
	if size <= 0 || len(words) <= size {
		return []string{text}
	}

	var windows []string
	start := 0
	for start < len(words) {
		end := min(start+size, len(words))
		windows = append(windows, strings.Join(words[start:end], " "))

		next := end
		if end < len(words) {
			next = end - overlap
		}
		if next <= start {
			next = end
		}
		start = next
	}

	return windows
}
