package sanitizer

import (
	"strings"
	"unicode"
)

const MaxReasonLength = 500

func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

// NormalizeReason collapses whitespace and cuts the text to MaxReasonLength
// runes. A reason that is empty after trimming becomes nil.
func NormalizeReason(reason *string) *string {
	if reason == nil {
		return nil
	}
	s := TrimAndNormalize(*reason)
	if s == "" {
		return nil
	}
	if runes := []rune(s); len(runes) > MaxReasonLength {
		s = strings.TrimSpace(string(runes[:MaxReasonLength]))
	}
	return &s
}
