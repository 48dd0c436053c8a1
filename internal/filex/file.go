// Package filex holds the filesystem primitives used for anything that may
// contain source material: private directories and atomic, owner-only files.
package filex

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
)

const (
	// PermPrivateDir is used for every directory holding submissions, keys or spool files.
	PermPrivateDir os.FileMode = 0o700
	// PermPrivateFile is used for every file holding submissions, keys or spool data.
	PermPrivateFile os.FileMode = 0o600
)

var (
	ErrInvalidName = errors.New("invalid file name")
	ErrNotDir      = errors.New("not a directory")
)

// EnsurePrivateDir creates dir (and parents) with 0700 permissions. An
// existing directory that is group/world accessible is tightened.
func EnsurePrivateDir(dir string) error {
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dir, PermPrivateDir); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDir, dir)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o077 != 0 {
		if err := os.Chmod(dir, PermPrivateDir); err != nil {
			return fmt.Errorf("chmod %s: %w", dir, err)
		}
	}
	return nil
}

// EnsureSubDir creates base/name as a private directory and returns its path.
func EnsureSubDir(base, name string) (string, error) {
	if err := CheckName(name); err != nil {
		return "", err
	}
	dir := filepath.Join(base, name)
	if err := EnsurePrivateDir(dir); err != nil {
		return "", err
	}
	return dir, nil
}

// CheckName rejects anything that is not a single path element.
func CheckName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// AtomicFile writes to a hidden temporary file in the target directory and
// renames it into place on Commit, so readers never observe partial content.
type AtomicFile struct {
	f       *os.File
	tmp     string
	path    string
	written int64
	done    bool
}

// CreateAtomic starts an atomic write of dir/name with owner-only permissions.
func CreateAtomic(dir, name string) (*AtomicFile, error) {
	if err := CheckName(name); err != nil {
		return nil, err
	}
	tmp := filepath.Join(dir, ".tmp-"+uuid.NewString())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, PermPrivateFile)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &AtomicFile{f: f, tmp: tmp, path: filepath.Join(dir, name)}, nil
}

func (a *AtomicFile) Write(p []byte) (int, error) {
	n, err := a.f.Write(p)
	a.written += int64(n)
	return n, err
}

// Path is the final location of the file.
func (a *AtomicFile) Path() string { return a.path }

// Commit syncs, closes and renames the file into place, returning the number
// of bytes written.
func (a *AtomicFile) Commit() (int64, error) {
	if a.done {
		return 0, errors.New("atomic file already finished")
	}
	a.done = true

	if err := a.f.Sync(); err != nil {
		a.f.Close()
		os.Remove(a.tmp)
		return 0, fmt.Errorf("sync: %w", err)
	}
	if err := a.f.Close(); err != nil {
		os.Remove(a.tmp)
		return 0, fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(a.tmp, a.path); err != nil {
		os.Remove(a.tmp)
		return 0, fmt.Errorf("rename: %w", err)
	}
	return a.written, nil
}

// Abort discards the temporary file. It is safe to call after Commit.
func (a *AtomicFile) Abort() {
	if a.done {
		return
	}
	a.done = true
	a.f.Close()
	os.Remove(a.tmp)
}

// WriteFileAtomic writes data to dir/name through an AtomicFile.
func WriteFileAtomic(dir, name string, data []byte) error {
	a, err := CreateAtomic(dir, name)
	if err != nil {
		return err
	}
	if _, err := a.Write(data); err != nil {
		a.Abort()
		return err
	}
	_, err = a.Commit()
	return err
}
