package tool

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// FileSearchTool searches the local filesystem by file name or content
// and returns names, paths, sizes and modification dates.
type FileSearchTool struct{}

func init() {
	Register(&FileSearchTool{})
}

func (*FileSearchTool) Name() string { return "file_search" }

type foundFile struct {
	name     string
	path     string
	size     int64
	modified time.Time
}

func (t *FileSearchTool) Execute(ctx context.Context, input string, config map[string]any) (string, error) {
	source := cfgString(config, "source", "local")
	mode := cfgString(config, "mode", "filename")
	maxResults := cfgInt(config, "max_results", 20)
	rootsStr := cfgString(config, "roots", "")
	extensions := cfgString(config, "extensions", "")

	if source != "local" {
		return fmt.Sprintf("Unknown source: %s. Available: local", source), nil
	}

	var roots []string
	if rootsStr == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Sprintf("File search error (local): %v", err), nil
		}
		roots = []string{home}
	} else {
		for _, r := range strings.Split(rootsStr, ",") {
			if r = strings.TrimSpace(r); r != "" {
				roots = append(roots, r)
			}
		}
	}

	query := strings.TrimSpace(input)
	var results []foundFile
	var err error
	if mode == "content" {
		results, err = searchContent(ctx, query, roots, extensions, maxResults)
	} else {
		results, err = searchFilenames(ctx, query, roots, extensions, maxResults)
	}
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return fmt.Sprintf("File search error (local): %v", err), nil
	}

	return formatFileResults("Local", query, results), nil
}

func matchesExtensions(name, extensions string) bool {
	if extensions == "" {
		return true
	}
	for _, ext := range strings.Split(extensions, ",") {
		ext = strings.TrimSpace(strings.TrimPrefix(ext, "."))
		if ext == "" {
			continue
		}
		ok, err := doublestar.Match("*."+ext, strings.ToLower(name))
		if err == nil && ok {
			return true
		}
	}
	return false
}

func searchFilenames(ctx context.Context, query string, roots []string, extensions string, maxResults int) ([]foundFile, error) {
	q := strings.ToLower(query)
	var results []foundFile

	for _, root := range roots {
		if len(results) >= maxResults {
			break
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if len(results) >= maxResults {
				return fs.SkipAll
			}
			if d.IsDir() || !strings.Contains(strings.ToLower(d.Name()), q) {
				return nil
			}
			if !matchesExtensions(d.Name(), extensions) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			results = append(results, foundFile{
				name:     d.Name(),
				path:     path,
				size:     info.Size(),
				modified: info.ModTime().UTC(),
			})
			return nil
		})
		if err != nil && ctx.Err() != nil {
			return nil, err
		}
	}
	return results, nil
}

const contentSearchMaxFileSize = 1 << 20

func searchContent(ctx context.Context, query string, roots []string, extensions string, maxResults int) ([]foundFile, error) {
	if extensions == "" {
		extensions = "txt,md,csv,json,log,go,py,js,ts,html"
	}
	q := strings.ToLower(query)
	var results []foundFile

	for _, root := range roots {
		if len(results) >= maxResults {
			break
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if len(results) >= maxResults {
				return fs.SkipAll
			}
			if d.IsDir() || !matchesExtensions(d.Name(), extensions) {
				return nil
			}
			info, err := d.Info()
			if err != nil || info.Size() > contentSearchMaxFileSize {
				return nil
			}
			body, err := os.ReadFile(path)
			if err != nil {
				return nil
			}
			if !strings.Contains(strings.ToLower(string(body)), q) {
				return nil
			}
			results = append(results, foundFile{
				name:     d.Name(),
				path:     path,
				size:     info.Size(),
				modified: info.ModTime().UTC(),
			})
			return nil
		})
		if err != nil && ctx.Err() != nil {
			return nil, err
		}
	}
	return results, nil
}

func formatFileResults(source, query string, results []foundFile) string {
	if len(results) == 0 {
		return fmt.Sprintf("%s search: no files found for '%s'", source, query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s search results for '%s' (%d found):\n\n", source, query, len(results))
	for i, r := range results {
		fmt.Fprintf(&b, "%d. **%s**\n", i+1, r.name)
		fmt.Fprintf(&b, "   Path: %s\n", r.path)
		fmt.Fprintf(&b, "   Size: %d bytes, modified %s\n\n", r.size, r.modified.Format(time.RFC3339))
	}
	return strings.TrimRight(b.String(), "\n")
}
