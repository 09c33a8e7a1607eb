package tool

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
)

const jsonMaxOutput = 10_000

// JSONParserTool parses and transforms JSON: extract fields, filter
// arrays, flatten, convert to CSV, validate.
type JSONParserTool struct{}

func init() {
	Register(&JSONParserTool{})
}

func (*JSONParserTool) Name() string { return "json_parser" }

func (t *JSONParserTool) Execute(ctx context.Context, input string, config map[string]any) (string, error) {
	operation := cfgString(config, "operation", "extract")
	path := cfgString(config, "path", "")
	filterField := cfgString(config, "filter_field", "")
	filterValue := cfgString(config, "filter_value", "")

	text := strings.TrimSpace(input)

	if operation == "validate" {
		return validateJSON(text), nil
	}

	var data any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return fmt.Sprintf("[json_parser] Invalid JSON: %v", err), nil
	}

	switch operation {
	case "extract":
		return extractJSONPath(ctx, data, path), nil
	case "keys":
		return jsonKeys(data), nil
	case "filter":
		return filterJSONArray(data, filterField, filterValue), nil
	case "flatten":
		return flattenJSON(data), nil
	case "to_csv":
		return jsonToCSV(data), nil
	case "pretty":
		out, _ := json.MarshalIndent(data, "", "  ")
		return truncateJSON(string(out)), nil
	case "minify":
		out, _ := json.Marshal(data)
		return string(out), nil
	case "count":
		switch v := data.(type) {
		case []any:
			return fmt.Sprintf("Array with %d elements", len(v)), nil
		case map[string]any:
			return fmt.Sprintf("Object with %d keys", len(v)), nil
		default:
			return fmt.Sprintf("Value of type %T", data), nil
		}
	}
	return fmt.Sprintf("[json_parser] Unknown operation: %s", operation), nil
}

func validateJSON(text string) string {
	var data any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return fmt.Sprintf("Invalid JSON: %v", err)
	}
	switch v := data.(type) {
	case []any:
		return fmt.Sprintf("Valid JSON: array with %d elements", len(v))
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			if len(keys) >= 10 {
				break
			}
			keys = append(keys, k)
		}
		return fmt.Sprintf("Valid JSON: object with %d keys (%s)", len(v), strings.Join(keys, ", "))
	default:
		s := fmt.Sprintf("%v", v)
		if len(s) > 200 {
			s = s[:200]
		}
		return fmt.Sprintf("Valid JSON: %T = %s", v, s)
	}
}

// extractJSONPath resolves a dot-notation path like "data.items[0].name"
// by compiling it as a jq query.
func extractJSONPath(ctx context.Context, data any, path string) string {
	if path == "" {
		return "[json_parser] No path provided. Use dot notation: data.items[0].name"
	}
	expr := path
	if !strings.HasPrefix(expr, ".") {
		expr = "." + expr
	}
	query, err := gojq.Parse(expr)
	if err != nil {
		return fmt.Sprintf("[json_parser] Path '%s' not found: %v", path, err)
	}
	iter := query.RunWithContext(ctx, data)
	v, ok := iter.Next()
	if !ok || v == nil {
		return fmt.Sprintf("[json_parser] Path '%s' not found", path)
	}
	if err, isErr := v.(error); isErr {
		return fmt.Sprintf("[json_parser] Path '%s' not found: %v", path, err)
	}
	switch v.(type) {
	case map[string]any, []any:
		out, _ := json.MarshalIndent(v, "", "  ")
		return truncateJSON(string(out))
	default:
		return fmt.Sprintf("%v", v)
	}
}

func jsonKeys(data any) string {
	switch v := data.(type) {
	case map[string]any:
		var b strings.Builder
		fmt.Fprintf(&b, "Object keys (%d):\n\n", len(v))
		for k, val := range v {
			fmt.Fprintf(&b, "- **%s** (%T)\n", k, val)
		}
		return strings.TrimRight(b.String(), "\n")
	case []any:
		if len(v) > 0 {
			if first, ok := v[0].(map[string]any); ok {
				var b strings.Builder
				fmt.Fprintf(&b, "Array of objects. First element keys (%d):\n", len(first))
				for k := range first {
					fmt.Fprintf(&b, "- **%s**\n", k)
				}
				return strings.TrimRight(b.String(), "\n")
			}
		}
		return fmt.Sprintf("Array with %d elements (not objects)", len(v))
	}
	return fmt.Sprintf("Not an object or array: %T", data)
}

func filterJSONArray(data any, field, value string) string {
	arr, ok := data.([]any)
	if !ok {
		return "[json_parser] Filter requires a JSON array as input."
	}
	if field == "" {
		return "[json_parser] No filter_field provided."
	}

	var results []any
	for _, item := range arr {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		itemVal := fmt.Sprintf("%v", obj[field])
		if strings.Contains(strings.ToLower(itemVal), strings.ToLower(value)) {
			results = append(results, obj)
		}
	}

	if len(results) == 0 {
		return fmt.Sprintf("[json_parser] No items match %s containing '%s'", field, value)
	}

	out, _ := json.MarshalIndent(results, "", "  ")
	body := string(out)
	if len(body) > jsonMaxOutput {
		body = body[:jsonMaxOutput] + fmt.Sprintf("\n... (truncated, %d matches total)", len(results))
	}
	return fmt.Sprintf("Filtered: %d of %d items match %s='%s'\n\n%s", len(results), len(arr), field, value, body)
}

func flattenJSON(data any) string {
	flat := make(map[string]any)
	var keys []string
	flattenInto(data, "", flat, &keys)
	if len(flat) == 0 {
		return "[json_parser] Nothing to flatten."
	}
	var b strings.Builder
	b.WriteString("| Key | Value |\n| --- | --- |\n")
	for i, k := range keys {
		if i >= 200 {
			fmt.Fprintf(&b, "\n... (%d more)", len(keys)-200)
			break
		}
		v := fmt.Sprintf("%v", flat[k])
		if len(v) > 100 {
			v = v[:100]
		}
		fmt.Fprintf(&b, "| %s | %s |\n", k, v)
	}
	return strings.TrimRight(b.String(), "\n")
}

func flattenInto(data any, prefix string, flat map[string]any, keys *[]string) {
	switch v := data.(type) {
	case map[string]any:
		for k, val := range v {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flattenInto(val, key, flat, keys)
		}
	case []any:
		for i, val := range v {
			if i >= 50 {
				break
			}
			flattenInto(val, fmt.Sprintf("%s[%d]", prefix, i), flat, keys)
		}
	default:
		flat[prefix] = v
		*keys = append(*keys, prefix)
	}
}

func jsonToCSV(data any) string {
	arr, ok := data.([]any)
	if !ok {
		return "[json_parser] to_csv requires a JSON array of objects."
	}
	if len(arr) == 0 {
		return "[json_parser] Array items must be objects."
	}
	if _, ok := arr[0].(map[string]any); !ok {
		return "[json_parser] Array items must be objects."
	}

	var allKeys []string
	seen := map[string]bool{}
	for _, item := range arr {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		for k := range obj {
			if !seen[k] {
				allKeys = append(allKeys, k)
				seen[k] = true
			}
		}
	}

	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write(allKeys)
	for i, item := range arr {
		if i >= 500 {
			break
		}
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		row := make([]string, len(allKeys))
		for j, k := range allKeys {
			if v, present := obj[k]; present && v != nil {
				row[j] = fmt.Sprintf("%v", v)
			}
		}
		_ = w.Write(row)
	}
	w.Flush()

	result := b.String()
	if len(arr) > 500 {
		result += fmt.Sprintf("\n... (%d more rows)", len(arr)-500)
	}
	return result
}

func truncateJSON(s string) string {
	if len(s) > jsonMaxOutput {
		return s[:jsonMaxOutput] + "\n... (truncated)"
	}
	return s
}
