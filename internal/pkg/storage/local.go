package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// LocalOptions configures the filesystem backend.
type LocalOptions struct {
	// Root is the directory buckets are created under.
	Root string
	// Fs overrides the filesystem, e.g. afero.NewMemMapFs in tests.
	Fs afero.Fs
}

// LocalAdapter implements Storage on a directory tree: <root>/<bucket>/<key>.
type LocalAdapter struct {
	fs afero.Fs
}

// NewLocal constructs a filesystem adapter rooted at opts.Root.
func NewLocal(opts LocalOptions) (*LocalAdapter, error) {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	if opts.Root != "" {
		if err := fs.MkdirAll(opts.Root, 0o750); err != nil {
			return nil, err
		}
		fs = afero.NewBasePathFs(fs, opts.Root)
	}

	return &LocalAdapter{fs: fs}, nil
}

func objectPath(bucket, key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if key == "" || strings.Contains(key, "..") || clean == "/" {
		return "", errors.New("storage: invalid object key")
	}
	return filepath.Join("/", bucket, clean), nil
}

// PutObject writes r to a temp file then renames it into place.
func (l *LocalAdapter) PutObject(_ context.Context, bucket, key string, r io.Reader, _ PutOptions) error {
	name, err := objectPath(bucket, key)
	if err != nil {
		return err
	}

	if err := l.fs.MkdirAll(filepath.Dir(name), 0o750); err != nil {
		return err
	}

	tmp := name + ".tmp"
	f, err := l.fs.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = l.fs.Remove(tmp)
		return err
	}

	if err := f.Close(); err != nil {
		_ = l.fs.Remove(tmp)
		return err
	}

	return l.fs.Rename(tmp, name)
}

func (l *LocalAdapter) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	name, err := objectPath(bucket, key)
	if err != nil {
		return nil, err
	}

	f, err := l.fs.Open(name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	return f, err
}

func (l *LocalAdapter) DeleteObject(_ context.Context, bucket, key string) error {
	name, err := objectPath(bucket, key)
	if err != nil {
		return err
	}

	if err := l.fs.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (l *LocalAdapter) Close() error { return nil }
