package genai

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Patterns for pulling JSON out of model responses.
var (
	fencedJSONPattern    = regexp.MustCompile("```json\\s*([\\s\\S]*?)\\s*```")
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSONArray returns the first well-formed array in a response, fenced or inline,
// with trailing commas removed. Bracketed prose such as "[draft]" is skipped. It returns ""
// when there is none.
func ExtractJSONArray(content string) string {
	for i := 0; i < len(content); i++ {
		if content[i] != '[' {
			continue
		}
		span, ok := balancedSpan(content, i)
		if !ok {
			continue
		}
		if cleaned := cleanJSON(span); gjson.Valid(cleaned) {
			return cleaned
		}
	}
	return ""
}

// balancedSpan returns content[start:] up to the bracket closing the one at start. Brackets
// inside JSON strings are ignored.
func balancedSpan(content string, start int) (string, bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(content); i++ {
		c := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return content[start : i+1], true
			}
			if depth < 0 {
				return "", false
			}
		}
	}
	return "", false
}

// FencedJSON returns the body of the first ```json block and whether one exists.
func FencedJSON(content string) (string, bool) {
	m := fencedJSONPattern.FindStringSubmatch(content)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}

// StripFencedJSON removes every ```json block and trims the remainder.
func StripFencedJSON(content string) string {
	return strings.TrimSpace(fencedJSONPattern.ReplaceAllString(content, ""))
}

// cleanJSON removes trailing commas models like to leave before } or ].
func cleanJSON(raw string) string {
	return trailingCommaPattern.ReplaceAllString(raw, "$1")
}
