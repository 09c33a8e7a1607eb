package tool

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// FileManagerTool manages local files: create folders, write/read files,
// copy, move, delete, list directories.
type FileManagerTool struct{}

func init() {
	Register(&FileManagerTool{})
}

func (*FileManagerTool) Name() string { return "file_manager" }

func (t *FileManagerTool) Execute(_ context.Context, input string, config map[string]any) (string, error) {
	operation := cfgString(config, "operation", "list")
	baseDir := cfgString(config, "base_dir", "")
	confirm := cfgBool(config, "confirm", false)
	destination := cfgString(config, "destination", "")
	contentSource := cfgString(config, "content_source", "input")

	target := strings.TrimSpace(input)

	// Sandbox enforcement: resolve paths against base_dir when configured.
	if baseDir != "" {
		base, err := filepath.Abs(baseDir)
		if err != nil {
			return fmt.Sprintf("[file_manager] Invalid base dir: %v", err), nil
		}
		if target != "" {
			resolved := filepath.Clean(filepath.Join(base, target))
			if !strings.HasPrefix(resolved, base) {
				return fmt.Sprintf("[file_manager] Path traversal blocked: %s is outside base dir %s", target, baseDir), nil
			}
			target = resolved
		}
		if destination != "" {
			resolved := filepath.Clean(filepath.Join(base, destination))
			if !strings.HasPrefix(resolved, base) {
				return fmt.Sprintf("[file_manager] Path traversal blocked: destination is outside base dir %s", baseDir), nil
			}
			destination = resolved
		}
	}

	switch operation {
	case "list":
		if target == "" {
			target = "."
		}
		return listDir(target), nil
	case "create_folder":
		folder := destination
		if folder == "" && looksLikePath(target) {
			folder = target
		}
		if folder == "" {
			folder = "./output/" + autoSlug(input)
		}
		return createFolder(folder), nil
	case "write_file":
		content := ""
		if contentSource == "input" {
			content = input
		}
		path := destination
		if path == "" && looksLikePath(target) {
			path = target
		}
		if path == "" {
			path = "./output/" + autoSlug(input) + ".md"
		}
		return writeFile(path, content), nil
	case "read_file":
		return readFile(target), nil
	case "copy":
		return copyPath(target, destination), nil
	case "move":
		return movePath(target, destination), nil
	case "delete":
		return deletePath(target, confirm), nil
	case "info":
		return pathInfo(target), nil
	}
	return fmt.Sprintf("[file_manager] Unknown operation: %s", operation), nil
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// autoSlug derives a short folder/file name from free text.
func autoSlug(text string) string {
	words := strings.Fields(strings.ToLower(text))
	if len(words) > 5 {
		words = words[:5]
	}
	slug := slugRe.ReplaceAllString(strings.Join(words, "-"), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = time.Now().UTC().Format("20060102-150405")
	}
	if len(slug) > 60 {
		slug = slug[:60]
	}
	return slug
}

func looksLikePath(s string) bool {
	if s == "" || strings.ContainsAny(s, "\n") || len(s) > 300 {
		return false
	}
	return strings.ContainsAny(s, "/\\") || !strings.Contains(s, " ")
}

func listDir(path string) string {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("[file_manager] Directory not found: %s", path)
		}
		return fmt.Sprintf("[file_manager] Not a directory: %s", path)
	}
	if len(entries) == 0 {
		return fmt.Sprintf("Directory `%s` is empty.", path)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})

	abs, _ := filepath.Abs(path)
	var b strings.Builder
	fmt.Fprintf(&b, "Contents of `%s` (%d items)\n\n", abs, len(entries))
	b.WriteString("| Type | Name | Size | Modified |\n| --- | --- | --- | --- |\n")
	for i, entry := range entries {
		if i >= 200 {
			fmt.Fprintf(&b, "\n... (%d more entries)", len(entries)-200)
			break
		}
		info, err := entry.Info()
		if err != nil {
			fmt.Fprintf(&b, "| ? | %s | - | - |\n", entry.Name())
			continue
		}
		etype, size := "FILE", formatSize(info.Size())
		if entry.IsDir() {
			etype, size = "DIR", "-"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			etype, entry.Name(), size, info.ModTime().UTC().Format("2006-01-02 15:04"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func createFolder(path string) string {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Sprintf("[file_manager] Failed to create folder: %v", err)
	}
	abs, _ := filepath.Abs(path)
	return fmt.Sprintf("Folder created: %s", abs)
}

func writeFile(path, content string) string {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Sprintf("[file_manager] Failed to create parent folder: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Sprintf("[file_manager] Failed to write file: %v", err)
	}
	abs, _ := filepath.Abs(path)
	return fmt.Sprintf("File written: %s (%d bytes)", abs, len(content))
}

const fileManagerMaxRead = 50_000

func readFile(path string) string {
	if path == "" {
		return "[file_manager] No file path provided."
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Sprintf("[file_manager] Failed to read file: %v", err)
	}
	text := string(body)
	if len(text) > fileManagerMaxRead {
		text = text[:fileManagerMaxRead] + fmt.Sprintf("\n\n... (truncated, %d total bytes)", len(body))
	}
	return text
}

func copyPath(src, dst string) string {
	if src == "" || dst == "" {
		return "[file_manager] Copy requires a source (input) and a destination."
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Sprintf("[file_manager] Copy failed: %v", err)
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Sprintf("[file_manager] Copy failed: %v", err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Sprintf("[file_manager] Copy failed: %v", err)
	}
	defer func() { _ = out.Close() }()

	n, err := io.Copy(out, in)
	if err != nil {
		return fmt.Sprintf("[file_manager] Copy failed: %v", err)
	}
	return fmt.Sprintf("Copied %s → %s (%d bytes)", src, dst, n)
}

func movePath(src, dst string) string {
	if src == "" || dst == "" {
		return "[file_manager] Move requires a source (input) and a destination."
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Sprintf("[file_manager] Move failed: %v", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Sprintf("[file_manager] Move failed: %v", err)
	}
	return fmt.Sprintf("Moved %s → %s", src, dst)
}

func deletePath(path string, confirm bool) string {
	if path == "" {
		return "[file_manager] No path provided."
	}
	if !confirm {
		return fmt.Sprintf("[file_manager] Delete requires confirm=true in node config (target: %s)", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Sprintf("[file_manager] Delete failed: %v", err)
	}
	if info.IsDir() {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Sprintf("[file_manager] Delete failed: %v", err)
		}
		return fmt.Sprintf("Deleted folder: %s", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Sprintf("[file_manager] Delete failed: %v", err)
	}
	return fmt.Sprintf("Deleted file: %s", path)
}

func pathInfo(path string) string {
	if path == "" {
		return "[file_manager] No path provided."
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Sprintf("[file_manager] Not found: %s", path)
	}
	abs, _ := filepath.Abs(path)
	kind := "file"
	if info.IsDir() {
		kind = "directory"
	}
	return fmt.Sprintf(
		"**Path:** %s\n**Type:** %s\n**Size:** %s\n**Modified:** %s",
		abs, kind, formatSize(info.Size()),
		info.ModTime().UTC().Format(time.RFC3339))
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}
