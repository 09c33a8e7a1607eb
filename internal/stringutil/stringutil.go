// Package stringutil provides text helpers shared by the engine and tools.
package stringutil

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	numberRe   = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\b`)
	artifactRe = regexp.MustCompile("```artifact\\s*\\n[\\s\\S]*?```")
	varRe      = regexp.MustCompile(`\{var:(\w+)\}`)
)

// LastNumber extracts the last decimal number appearing in text.
// The second return value is false when text contains no number.
func LastNumber(text string) (float64, bool) {
	matches := numberRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return 0, false
	}
	n, err := strconv.ParseFloat(matches[len(matches)-1][1], 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ElideArtifacts replaces ```artifact fenced blocks with a short placeholder
// so large binary payloads never reach a language model.
func ElideArtifacts(text string) string {
	return artifactRe.ReplaceAllString(text, "[artifact removed]")
}

// SubstituteVariables replaces {var:NAME} tokens with values from vars.
// Tokens whose name is not present are left unchanged.
func SubstituteVariables(text string, vars map[string]string) string {
	return varRe.ReplaceAllStringFunc(text, func(tok string) string {
		name := varRe.FindStringSubmatch(tok)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return tok
	})
}

// SplitWindows splits text into fixed-size character windows with overlap.
// Texts no longer than size yield exactly one window.
func SplitWindows(text string, size, overlap int) []string {
	if size <= 0 {
		size = 1
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}
	var windows []string
	for start := 0; start < len(runes); start += size - overlap {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		windows = append(windows, string(runes[start:end]))
	}
	return windows
}

// Truncate shortens text to at most n characters.
func Truncate(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}

// Head returns the first n characters of text.
func Head(text string, n int) string {
	return Truncate(text, n)
}

// CamelToSnake converts lowerCamelCase to snake_case, preserving any
// leading underscores. Keys already in snake_case pass through unchanged.
func CamelToSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SnakeToCamel converts snake_case to lowerCamelCase, preserving any
// leading underscores.
func SnakeToCamel(s string) string {
	prefix := ""
	for strings.HasPrefix(s, "_") {
		prefix += "_"
		s = s[1:]
	}
	parts := strings.Split(s, "_")
	var b strings.Builder
	b.WriteString(prefix)
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 {
			b.WriteString(p)
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}
