package session

import "strings"

const (
	titleMaxChars = 50
	titleMinChars = 20
)

// deriveTitle shortens the first user message into a session title.
// Long messages are cut at the last word boundary within the limit; if
// that would leave too little text, a hard cut is used instead. An
// ellipsis marks any truncation.
func deriveTitle(content string) string {
	title := strings.TrimSpace(content)
	runes := []rune(title)
	if len(runes) <= titleMaxChars {
		return title
	}

	cut := string(runes[:titleMaxChars])
	if i := strings.LastIndex(cut, " "); i >= 0 {
		word := cut[:i]
		if len([]rune(word)) >= titleMinChars {
			return word + "..."
		}
	}
	return cut + "..."
}
