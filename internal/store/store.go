// Package store persists the client's local files: the config, the TUI state and the
// drafts journal. Everything lives in one directory, ~/.sova by default.
package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

type Store struct {
	Dir string
}

// Open returns a Store rooted at dir, or at ConfigDir when dir is empty.
func Open(dir string) (Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		d, err := ConfigDir()
		if err != nil {
			return Store{}, err
		}
		dir = d
	}
	return Store{Dir: filepath.Clean(dir)}, nil
}

func (s Store) Ensure() error {
	if strings.TrimSpace(s.Dir) == "" {
		return errors.New("store: missing directory")
	}
	return os.MkdirAll(s.Dir, 0o755)
}

func (s Store) path(name string) string {
	return filepath.Join(s.Dir, name)
}

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, perm)
	return os.Rename(tmp, path)
}
