package tool

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TextTransformerTool transforms text without an LLM: regex replace and
// extract, split, join, template, case change, count, strip HTML.
type TextTransformerTool struct{}

func init() {
	Register(&TextTransformerTool{})
}

func (*TextTransformerTool) Name() string { return "text_transformer" }

func (t *TextTransformerTool) Execute(_ context.Context, input string, config map[string]any) (string, error) {
	operation := cfgString(config, "operation", "trim")
	pattern := cfgString(config, "pattern", "")
	replacement := cfgString(config, "replacement", "")
	separator := cfgString(config, "separator", "\n")
	template := cfgString(config, "template", "")
	maxLength := cfgInt(config, "max_length", 0)

	switch operation {
	case "regex_replace":
		return regexReplace(input, pattern, replacement), nil
	case "regex_extract":
		return regexExtract(input, pattern), nil
	case "split":
		return splitText(input, separator), nil
	case "join":
		return joinLines(input, separator), nil
	case "template":
		return applyTemplate(input, template), nil
	case "upper":
		return strings.ToUpper(input), nil
	case "lower":
		return strings.ToLower(input), nil
	case "title":
		return cases.Title(language.Und).String(input), nil
	case "trim":
		return strings.TrimSpace(input), nil
	case "truncate":
		limit := maxLength
		if limit == 0 {
			limit = 500
		}
		if len(input) <= limit {
			return input, nil
		}
		return input[:limit] + fmt.Sprintf("... (%d total chars)", len(input)), nil
	case "count":
		return countText(input), nil
	case "remove_html":
		return removeHTML(input), nil
	case "reverse_lines":
		lines := strings.Split(input, "\n")
		for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
			lines[i], lines[j] = lines[j], lines[i]
		}
		return strings.Join(lines, "\n"), nil
	case "unique_lines":
		return uniqueLines(input), nil
	case "sort_lines":
		lines := strings.Split(input, "\n")
		sort.SliceStable(lines, func(i, j int) bool {
			return strings.TrimSpace(lines[i]) < strings.TrimSpace(lines[j])
		})
		return strings.Join(lines, "\n"), nil
	case "number_lines":
		lines := strings.Split(input, "\n")
		for i, line := range lines {
			lines[i] = fmt.Sprintf("%d. %s", i+1, line)
		}
		return strings.Join(lines, "\n"), nil
	}
	return fmt.Sprintf("[text_transformer] Unknown operation: %s", operation), nil
}

func regexReplace(text, pattern, replacement string) string {
	if pattern == "" {
		return "[text_transformer] No regex pattern provided."
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Sprintf("[text_transformer] Regex error: %v", err)
	}
	return re.ReplaceAllString(text, replacement)
}

func regexExtract(text, pattern string) string {
	if pattern == "" {
		return "[text_transformer] No regex pattern provided."
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Sprintf("[text_transformer] Regex error: %v", err)
	}
	matches := re.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return fmt.Sprintf("[text_transformer] No matches for pattern: %s", pattern)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d match(es):\n\n", len(matches))
	for i, m := range matches {
		if i >= 200 {
			fmt.Fprintf(&b, "\n... (%d more)", len(matches)-200)
			break
		}
		if len(m) > 2 {
			fmt.Fprintf(&b, "%d. %s\n", i+1, strings.Join(m[1:], " | "))
		} else if len(m) == 2 {
			fmt.Fprintf(&b, "%d. %s\n", i+1, m[1])
		} else {
			fmt.Fprintf(&b, "%d. %s\n", i+1, m[0])
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func unescapeSeparator(sep string) string {
	sep = strings.ReplaceAll(sep, `\n`, "\n")
	return strings.ReplaceAll(sep, `\t`, "\t")
}

func splitText(text, separator string) string {
	parts := strings.Split(text, unescapeSeparator(separator))
	var b strings.Builder
	fmt.Fprintf(&b, "Split into %d parts:\n\n", len(parts))
	for i, part := range parts {
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimSpace(part))
	}
	return strings.TrimRight(b.String(), "\n")
}

func joinLines(text, separator string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return strings.Join(lines, unescapeSeparator(separator))
}

func applyTemplate(text, template string) string {
	if template == "" {
		return "[text_transformer] No template provided."
	}
	result := strings.ReplaceAll(template, "{input}", text)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if i >= 50 {
			break
		}
		result = strings.ReplaceAll(result, fmt.Sprintf("{line_%d}", i+1), strings.TrimSpace(line))
	}
	result = strings.ReplaceAll(result, "{word_count}", fmt.Sprintf("%d", len(strings.Fields(text))))
	result = strings.ReplaceAll(result, "{char_count}", fmt.Sprintf("%d", len(text)))
	result = strings.ReplaceAll(result, "{line_count}", fmt.Sprintf("%d", len(lines)))
	return result
}

var sentenceRe = regexp.MustCompile(`[.!?]+`)

func countText(text string) string {
	words := len(strings.Fields(text))
	chars := len(text)
	noSpace := strings.NewReplacer(" ", "", "\n", "", "\t", "").Replace(text)
	lines := len(strings.Split(text, "\n"))
	sentences := len(sentenceRe.Split(text, -1))
	return fmt.Sprintf(
		"**Characters:** %d (%d without spaces)\n**Words:** %d\n**Lines:** %d\n**Sentences:** ~%d",
		chars, len(noSpace), words, lines, sentences)
}

var wsRe = regexp.MustCompile(`\s+`)

func removeHTML(text string) string {
	clean := htmlTagRe.ReplaceAllString(text, "")
	clean = strings.NewReplacer(
		"&amp;", "&", "&lt;", "<", "&gt;", ">",
		"&quot;", `"`, "&#39;", "'", "&nbsp;", " ",
	).Replace(clean)
	return strings.TrimSpace(wsRe.ReplaceAllString(clean, " "))
}

func uniqueLines(text string) string {
	seen := map[string]bool{}
	var unique []string
	for _, line := range strings.Split(text, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped != "" && !seen[stripped] {
			seen[stripped] = true
			unique = append(unique, line)
		}
	}
	return strings.Join(unique, "\n")
}
