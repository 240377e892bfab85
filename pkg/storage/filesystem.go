// Package storage keeps uploaded certificate images and export archives on
// local disk and signs short-lived links to them.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrInvalidPath is returned for names escaping the storage root.
	ErrInvalidPath = errors.New("storage: invalid path")
	// ErrTooLarge is returned by Put when the stream exceeds its limit.
	ErrTooLarge = errors.New("storage: file too large")
)

// partSuffix marks files still being written. Readers never see them.
const partSuffix = ".part"

// LocalStorage stores files below one root directory. Writes land in a
// sibling .part file first and are renamed into place, so a name is either
// absent or complete.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates root if needed.
func NewLocalStorage(root string) (*LocalStorage, error) {
	if root == "" {
		return nil, errors.New("storage root required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStorage{root: abs}, nil
}

// Staged is a file being written. Commit publishes it under its final name;
// Discard drops it. Calling Discard after Commit is a no-op, so it can be
// deferred.
type Staged struct {
	*os.File
	final string
	done  bool
}

// Commit closes the staged file and renames it into place.
func (f *Staged) Commit() error {
	if f.done {
		return nil
	}
	f.done = true
	if err := f.File.Close(); err != nil {
		_ = os.Remove(f.Name())
		return fmt.Errorf("close %s: %w", filepath.Base(f.final), err)
	}
	if err := os.Rename(f.Name(), f.final); err != nil {
		_ = os.Remove(f.Name())
		return fmt.Errorf("publish %s: %w", filepath.Base(f.final), err)
	}
	return nil
}

// Discard removes the staged file.
func (f *Staged) Discard() {
	if f.done {
		return
	}
	f.done = true
	_ = f.File.Close()
	_ = os.Remove(f.Name())
}

// Stage opens a temporary file that becomes name on Commit.
func (s *LocalStorage) Stage(name string) (*Staged, error) {
	final, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(final)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("prepare %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(final)+".*"+partSuffix)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", name, err)
	}
	return &Staged{File: tmp, final: final}, nil
}

// Put streams r into name. With limit > 0 anything longer fails with
// ErrTooLarge and nothing is stored.
func (s *LocalStorage) Put(name string, r io.Reader, limit int64) (int64, error) {
	f, err := s.Stage(name)
	if err != nil {
		return 0, err
	}
	defer f.Discard()

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, err := io.Copy(f, src)
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", name, err)
	}
	if limit > 0 && n > limit {
		return 0, fmt.Errorf("%s: %w (limit %d bytes)", name, ErrTooLarge, limit)
	}
	return n, f.Commit()
}

// Exists reports whether name is a stored regular file.
func (s *LocalStorage) Exists(name string) bool {
	path, err := s.resolve(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Path returns the absolute location of name, or "" when name is invalid.
func (s *LocalStorage) Path(name string) string {
	path, err := s.resolve(name)
	if err != nil {
		return ""
	}
	return path
}

// Delete removes name. Missing files are not an error.
func (s *LocalStorage) Delete(name string) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// Sweep deletes files whose base name starts with prefix and that were last
// modified more than ttl ago, plus abandoned .part files of any name. It
// returns the removed names relative to the root.
func (s *LocalStorage) Sweep(prefix string, ttl time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-ttl)
	var removed []string
	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		base := d.Name()
		if !strings.HasPrefix(base, prefix) && !strings.HasSuffix(base, partSuffix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if rel, err := filepath.Rel(s.root, path); err == nil {
			path = rel
		}
		removed = append(removed, filepath.ToSlash(path))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sweep %s: %w", s.root, err)
	}
	return removed, nil
}

func (s *LocalStorage) resolve(name string) (string, error) {
	if name == "" || filepath.IsAbs(name) || strings.HasSuffix(name, partSuffix) {
		return "", ErrInvalidPath
	}
	path := filepath.Join(s.root, filepath.FromSlash(name))
	if !strings.HasPrefix(path, s.root+string(os.PathSeparator)) {
		return "", ErrInvalidPath
	}
	return path, nil
}
