// Package secret stores OTP secrets per identity.
package secret

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/shandysiswandi/facegate/internal/identity/entity"
	"github.com/spf13/afero"
)

// File keeps secrets in a flat file, one "identity=secret" per line. Order
// is not preserved across writes; the mapping is.
type File struct {
	fs   afero.Fs
	path string

	mu sync.Mutex
}

// NewFile uses the OS filesystem when fsys is nil.
func NewFile(fsys afero.Fs, path string) *File {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &File{fs: fsys, path: path}
}

func (f *File) GetSecret(ctx context.Context, id entity.Identity) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.read()
	if err != nil {
		return "", false, err
	}

	s, ok := all[id]
	return s, ok, nil
}

func (f *File) PutSecret(ctx context.Context, id entity.Identity, secret string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(string(id), "=\r\n") || strings.ContainsAny(secret, "\r\n") {
		return fmt.Errorf("secret: identity %q cannot be stored in a line file", id)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.read()
	if err != nil {
		return err
	}
	all[id] = secret

	return f.write(all)
}

// DeleteSecret is a no-op for unknown identities.
func (f *File) DeleteSecret(ctx context.Context, id entity.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := all[id]; !ok {
		return nil
	}
	delete(all, id)

	return f.write(all)
}

func (f *File) ListSecrets(ctx context.Context) ([]entity.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.read()
	if err != nil {
		return nil, err
	}

	ids := lo.Keys(all)
	slices.Sort(ids)
	return ids, nil
}

func (f *File) read() (map[entity.Identity]string, error) {
	data, err := afero.ReadFile(f.fs, f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[entity.Identity]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("secret: read %s: %w", f.path, err)
	}

	return Parse(data), nil
}

func (f *File) write(all map[entity.Identity]string) error {
	if err := f.fs.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("secret: mkdir: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := afero.WriteFile(f.fs, tmp, Format(all), 0o600); err != nil {
		return fmt.Errorf("secret: write: %w", err)
	}
	if err := f.fs.Rename(tmp, f.path); err != nil {
		_ = f.fs.Remove(tmp)
		return fmt.Errorf("secret: rename: %w", err)
	}

	return nil
}

// Parse reads "identity=secret" lines. Blank and malformed lines are
// skipped; a repeated identity keeps its last secret.
func Parse(data []byte) map[entity.Identity]string {
	out := map[entity.Identity]string{}

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		id, secret, ok := strings.Cut(line, "=")
		if !ok || id == "" {
			continue
		}
		out[entity.Identity(id)] = secret
	}

	return out
}

// Format writes one line per identity, sorted so rewrites are stable.
func Format(all map[entity.Identity]string) []byte {
	ids := lo.Keys(all)
	slices.Sort(ids)

	var buf bytes.Buffer
	for _, id := range ids {
		buf.WriteString(string(id))
		buf.WriteByte('=')
		buf.WriteString(all[id])
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

