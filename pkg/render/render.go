// Package render applies the one content normalization shared by the
// approval preview and the published channel message: a trailing
// call-to-action URL embedded in the body is moved onto its own final line,
// so the approver sees exactly what will be posted.
package render

import (
	"strings"
	"unicode"
)

// Normalize moves a trailing whitespace-delimited http(s) URL in text onto
// its own final line. Applying it twice yields the same output as applying
// it once. Text without a trailing URL is returned unchanged.
func Normalize(text string) string {
	body, url := splitTrailingURL(text)
	if url == "" {
		return text
	}
	if body == "" {
		return url
	}
	return body + "\n" + url
}

func splitTrailingURL(text string) (string, string) {
	trimmed := strings.TrimRightFunc(text, unicode.IsSpace)
	idx := strings.LastIndexFunc(trimmed, unicode.IsSpace)
	last := trimmed[idx+1:]
	if !strings.HasPrefix(last, "http://") && !strings.HasPrefix(last, "https://") {
		return "", ""
	}
	if idx < 0 {
		return "", last
	}
	return strings.TrimRightFunc(trimmed[:idx], unicode.IsSpace), last
}
