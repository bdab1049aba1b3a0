package anthropic

import "strings"

// CleanJSON reduces a model reply to its outermost JSON object: a leading
// code fence (with any language tag) and the closing fence are removed,
// then prose before the first '{' and after the last '}' is dropped.
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if body, ok := strings.CutPrefix(text, "```"); ok {
		if _, rest, found := strings.Cut(body, "\n"); found {
			body = rest
		}
		if i := strings.LastIndex(body, "```"); i >= 0 {
			body = body[:i]
		}
		text = body
	}

	if start, end := strings.IndexByte(text, '{'), strings.LastIndexByte(text, '}'); start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}
