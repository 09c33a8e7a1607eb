package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "abc123_report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	store := &DirStore{Root: dir}

	got, err := store.ResolveFilePath(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, path, got)

	got, err = store.ResolveFilePath(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = store.ResolveFilePath(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := OpenSQL(filepath.Join(t.TempDir(), "files.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Add(ctx, "f1", "/uploads/f1.txt", "notes.txt"))

	got, err := store.ResolveFilePath(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/f1.txt", got)

	got, err = store.ResolveFilePath(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, got)

	// Re-adding the same id replaces the path.
	require.NoError(t, store.Add(ctx, "f1", "/uploads/f1-v2.txt", "notes.txt"))
	got, err = store.ResolveFilePath(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/f1-v2.txt", got)
}
