// Package testutils contains helpers shared by sensor tests.
package testutils

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"go.viam.com/test"
)

// TempDir creates a temporary directory that is removed when the test ends.
func TempDir(t *testing.T, pattern string) string {
	t.Helper()
	dir, err := os.MkdirTemp("", pattern)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}

// ListFiles returns the base names of the files in dir, sorted.
func ListFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	test.That(t, err, test.ShouldBeNil)
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, filepath.Base(e.Name()))
		}
	}
	sort.Strings(names)
	return names
}
