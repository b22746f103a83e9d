// Package testutil provides shared helpers for pipeline tests: filesystem
// assertions against the types.FS abstraction and canned store fixtures.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/depotkit/depotkit/pkg/types"
)

// WriteFile writes content to path on fsys, creating parent directories.
func WriteFile(t *testing.T, fsys types.FS, path, content string) {
	t.Helper()
	require.NoError(t, fsys.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, fsys.WriteFile(path, []byte(content), 0644))
}

// ReadFile reads path from fsys, failing the test on error.
func ReadFile(t *testing.T, fsys types.FS, path string) string {
	t.Helper()
	data, err := fsys.ReadFile(path)
	require.NoError(t, err, "reading %s", path)
	return string(data)
}

// FileExists reports whether path exists on fsys.
func FileExists(fsys types.FS, path string) bool {
	_, err := fsys.Stat(path)
	return err == nil
}

// AssertFileExists fails the test unless path exists on fsys.
func AssertFileExists(t *testing.T, fsys types.FS, path string) {
	t.Helper()
	require.True(t, FileExists(fsys, path), "expected %s to exist", path)
}

// AssertNoFile fails the test if path exists on fsys.
func AssertNoFile(t *testing.T, fsys types.FS, path string) {
	t.Helper()
	require.False(t, FileExists(fsys, path), "expected %s to not exist", path)
}
