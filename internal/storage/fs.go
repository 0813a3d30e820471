package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/starford/orgstate/internal/apperr"
)

const tmpPrefix = ".orgstate-tmp-"

// FS implements Provider on the local file system.
type FS struct {
	root string // absolute
}

// NewFS opens root. A missing directory yields apperr.ErrMissingRoot.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("storage: %s: %w", abs, apperr.ErrMissingRoot)
	case err != nil:
		return nil, fmt.Errorf("storage: stat root: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

func (f *FS) Root() string { return f.root }

// resolve maps a relative path to an absolute one under the root.
func (f *FS) resolve(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	local := filepath.FromSlash(rel)
	if filepath.IsAbs(local) || !filepath.IsLocal(local) {
		return "", fmt.Errorf("storage: %q: path outside root", rel)
	}
	return filepath.Join(f.root, local), nil
}

// List returns the files under dir with extension ext. A missing dir yields
// an empty list.
func (f *FS) List(dir, ext string) ([]FileInfo, error) {
	base, err := f.resolve(dir)
	if err != nil {
		return nil, err
	}
	var out []FileInfo
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == base && errors.Is(walkErr, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return walkErr
		}
		name := d.Name()
		if d.IsDir() || filepath.Ext(name) != ext || strings.HasPrefix(name, tmpPrefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(f.root, p)
		if err != nil {
			return err
		}
		out = append(out, FileInfo{Path: filepath.ToSlash(rel), Size: info.Size(), ModifiedAt: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", dir, err)
	}
	slices.SortFunc(out, func(a, b FileInfo) int { return strings.Compare(a.Path, b.Path) })
	return out, nil
}

func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

func (f *FS) Write(path string, content []byte) error {
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	return f.commit(abs, content, os.Rename)
}

func (f *FS) Create(path string, content []byte) error {
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	// A hard link never replaces an existing name.
	err = f.commit(abs, content, func(tmp, dst string) error {
		if err := os.Link(tmp, dst); err != nil {
			return err
		}
		return os.Remove(tmp)
	})
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("storage: create %s: %w", path, apperr.ErrAlreadyExists)
	}
	return err
}

func (f *FS) Move(from, to string, content []byte) error {
	if err := f.Create(to, content); err != nil {
		return err
	}
	if err := f.Delete(from); err != nil {
		return fmt.Errorf("storage: move %s: %w", from, err)
	}
	return nil
}

func (f *FS) Delete(path string) error {
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	return nil
}

// commit stages content in a synced temp file next to abs and hands it to
// place. The temp file is removed if anything fails.
func (f *FS) commit(abs string, content []byte, place func(tmp, dst string) error) (err error) {
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err = place(tmp.Name(), abs); err != nil {
		return fmt.Errorf("storage: commit %s: %w", filepath.Base(abs), err)
	}
	return nil
}
