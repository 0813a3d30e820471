package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/starford/orgstate/internal/apperr"
)

func newFS(t *testing.T) *FS {
	t.Helper()
	s, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return s
}

func mustWrite(t *testing.T, s *FS, p, content string) {
	t.Helper()
	if err := s.Write(p, []byte(content)); err != nil {
		t.Fatalf("Write %s: %v", p, err)
	}
}

func readString(t *testing.T, s *FS, p string) string {
	t.Helper()
	data, err := s.Read(p)
	if err != nil {
		t.Fatalf("Read %s: %v", p, err)
	}
	return string(data)
}

func noTempFiles(t *testing.T, s *FS) {
	t.Helper()
	err := filepath.WalkDir(s.Root(), func(p string, d fs.DirEntry, err error) error {
		if err == nil && strings.HasPrefix(d.Name(), tmpPrefix) {
			t.Errorf("leftover temp file %s", p)
		}
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestWrite_ReplacesAndCreatesDirs(t *testing.T) {
	s := newFS(t)
	mustWrite(t, s, "tags/go.md", "v1")
	mustWrite(t, s, "tags/go.md", "v2")
	if got := readString(t, s, "tags/go.md"); got != "v2" {
		t.Errorf("content = %q", got)
	}
	noTempFiles(t, s)
}

func TestRead_MissingIsNotExist(t *testing.T) {
	s := newFS(t)
	if _, err := s.Read("tasks/none.md"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want fs.ErrNotExist", err)
	}
}

func TestCreate_RefusesExisting(t *testing.T) {
	s := newFS(t)
	if err := s.Create("reminders/call.md", []byte("first")); err != nil {
		t.Fatal(err)
	}
	err := s.Create("reminders/call.md", []byte("second"))
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
	if got := readString(t, s, "reminders/call.md"); got != "first" {
		t.Errorf("existing file overwritten: %q", got)
	}
	noTempFiles(t, s)
}

func TestMove(t *testing.T) {
	s := newFS(t)
	mustWrite(t, s, "reminders/call.md", "pending")
	if err := s.Move("reminders/call.md", "reminders/completed/call.md", []byte("done")); err != nil {
		t.Fatal(err)
	}
	if got := readString(t, s, "reminders/completed/call.md"); got != "done" {
		t.Errorf("moved content = %q", got)
	}
	if _, err := s.Read("reminders/call.md"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("source still present: %v", err)
	}
}

func TestMove_DestinationTaken(t *testing.T) {
	s := newFS(t)
	mustWrite(t, s, "reminders/call.md", "pending")
	mustWrite(t, s, "reminders/completed/call.md", "older")
	err := s.Move("reminders/call.md", "reminders/completed/call.md", []byte("done"))
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
	if got := readString(t, s, "reminders/call.md"); got != "pending" {
		t.Errorf("source changed: %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := newFS(t)
	mustWrite(t, s, "tags/old.md", "x")
	if err := s.Delete("tags/old.md"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("tags/old.md"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestList_SortedByPath(t *testing.T) {
	s := newFS(t)
	mustWrite(t, s, "tags/zeta.md", "z")
	mustWrite(t, s, "tags/nested/alpha.md", "a")
	mustWrite(t, s, "tags/notes.txt", "skip")
	mustWrite(t, s, "other/x.md", "x")

	items, err := s.List("tags", ".md")
	if err != nil {
		t.Fatal(err)
	}
	var paths []string
	for _, it := range items {
		paths = append(paths, it.Path)
	}
	if want := []string{"tags/nested/alpha.md", "tags/zeta.md"}; !slices.Equal(paths, want) {
		t.Errorf("paths = %v, want %v", paths, want)
	}
	if items[1].Size != 1 {
		t.Errorf("size = %d", items[1].Size)
	}
}

func TestList_MissingDir(t *testing.T) {
	s := newFS(t)
	items, err := s.List("tags", ".md")
	if err != nil || len(items) != 0 {
		t.Errorf("items = %v, err = %v", items, err)
	}
}

func TestPathsOutsideRootRejected(t *testing.T) {
	s := newFS(t)
	for _, p := range []string{"../outside.md", "tasks/../../escape.md", "/etc/passwd"} {
		if _, err := s.Read(p); err == nil {
			t.Errorf("Read(%q) succeeded", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("Write(%q) succeeded", p)
		}
		if err := s.Create(p, []byte("x")); err == nil {
			t.Errorf("Create(%q) succeeded", p)
		}
	}
}

func TestNewFS_MissingRoot(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, apperr.ErrMissingRoot) {
		t.Errorf("err = %v, want ErrMissingRoot", err)
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	p := filepath.Join(t.TempDir(), "file.md")
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFS(p); err == nil {
		t.Error("expected error when root is a file")
	}
}
