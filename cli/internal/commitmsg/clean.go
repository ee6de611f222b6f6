package commitmsg

import (
	"regexp"
	"strings"
)

var (
	thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)
	thinkTag   = regexp.MustCompile(`</?think>`)
)

// Clean removes reasoning segments from a model reply: every
// <think>...</think> block, then any orphan <think> or </think> marker, then
// surrounding whitespace. Clean(Clean(s)) == Clean(s).
func Clean(text string) string {
	for {
		next := strings.TrimSpace(thinkTag.ReplaceAllString(thinkBlock.ReplaceAllString(text, ""), ""))
		if next == text {
			return next
		}
		text = next
	}
}
