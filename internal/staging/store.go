// Package staging keeps uploaded bytes on disk for the lifetime of one
// request.
package staging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

const fileSuffix = ".upload"

// ErrTooLarge is returned by Stage when the source exceeds the limit.
var ErrTooLarge = errors.New("upload exceeds size limit")

// Store owns the staging directory.
type Store struct {
	dir string
}

// NewStore creates dir if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("staging directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

// Stage copies r into a new randomly named file. At most limit bytes are
// accepted; anything larger removes the partial file and returns ErrTooLarge.
func (s *Store) Stage(r io.Reader, limit int64) (*File, error) {
	path := filepath.Join(s.dir, uuid.NewString()+fileSuffix)
	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create staged file: %w", err)
	}

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, copyErr := io.Copy(out, src)
	closeErr := out.Close()
	switch {
	case copyErr != nil:
		_ = os.Remove(path)
		return nil, fmt.Errorf("write staged file: %w", copyErr)
	case closeErr != nil:
		_ = os.Remove(path)
		return nil, fmt.Errorf("close staged file: %w", closeErr)
	case limit > 0 && n > limit:
		_ = os.Remove(path)
		return nil, ErrTooLarge
	}
	return &File{path: path, size: n}, nil
}

// File is a staged upload. Release removes it exactly once.
type File struct {
	path string
	size int64

	once       sync.Once
	released   bool
	releaseErr error
	mu         sync.Mutex
}

func (f *File) Path() string { return f.path }
func (f *File) Size() int64  { return f.size }

// Release deletes the file. Later calls return the first result.
func (f *File) Release() error {
	f.once.Do(func() {
		err := os.Remove(f.path)
		if errors.Is(err, os.ErrNotExist) {
			err = nil
		}
		f.mu.Lock()
		f.released = true
		f.releaseErr = err
		f.mu.Unlock()
	})
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.releaseErr
}

// Released reports whether Release has run.
func (f *File) Released() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}
