// Package testutil provides shared test helpers for building org trees.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/orgstate/internal/storage"
)

// Files maps slash-separated relative paths to file content.
type Files map[string]string

// TestTree creates a temporary org root populated with files and returns it
// together with a storage.Provider over it.
func TestTree(t *testing.T, files Files) (string, storage.Provider) {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		WriteFile(t, root, rel, content)
	}
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// WriteFile writes content to rel under root, creating parent directories.
func WriteFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// ReadFile returns the content of rel under root.
func ReadFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// Doc builds a document with the given front-block lines and body.
func Doc(body string, front ...string) string {
	out := "---\n"
	for _, l := range front {
		out += l + "\n"
	}
	return out + "---\n" + body
}
