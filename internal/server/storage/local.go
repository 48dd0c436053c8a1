package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/deaddrop/internal/common"
	"github.com/dmitrijs2005/deaddrop/internal/filex"
)

// chtimes is a seam for tests.
var chtimes = setTimes

// Local stores artifacts under root/<dir>/<name> with owner-only permissions.
type Local struct {
	root string
}

func NewLocal(root string) (*Local, error) {
	if err := filex.EnsurePrivateDir(root); err != nil {
		return nil, err
	}
	return &Local{root: root}, nil
}

func (l *Local) Create(ctx context.Context, dir, name string) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub, err := filex.EnsureSubDir(l.root, dir)
	if err != nil {
		return nil, err
	}
	return filex.CreateAtomic(sub, name)
}

func (l *Local) Open(ctx context.Context, dir, name string) (io.ReadCloser, error) {
	p, err := l.path(dir, name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, common.ErrorNotFound
	}
	return f, err
}

func (l *Local) Normalize(ctx context.Context, dir string) error {
	if err := filex.CheckName(dir); err != nil {
		return err
	}
	full := filepath.Join(l.root, dir)
	entries, err := os.ReadDir(full)
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}

	var errs []error
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if err := chtimes(filepath.Join(full, e.Name()), NormalizedTime); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (l *Local) Remove(ctx context.Context, dir, name string) error {
	p, err := l.path(dir, name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (l *Local) RemoveAll(ctx context.Context, dir string) error {
	if err := filex.CheckName(dir); err != nil {
		return err
	}
	return os.RemoveAll(filepath.Join(l.root, dir))
}

func (l *Local) path(dir, name string) (string, error) {
	if err := filex.CheckName(dir); err != nil {
		return "", err
	}
	if err := filex.CheckName(name); err != nil {
		return "", err
	}
	return filepath.Join(l.root, dir, name), nil
}
