package media

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	units "github.com/docker/go-units"
	"github.com/google/uuid"
)

// StoredFile describes a saved upload.
type StoredFile struct {
	Name string // name under the upload directory
	Path string
	Size int64
}

// Storage keeps uploads in a single flat directory.
type Storage struct {
	dir     string
	maxSize int64
	now     func() time.Time
}

// NewStorage creates dir if needed. maxSize <= 0 disables the size limit.
func NewStorage(dir string, maxSize int64) (*Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("media: upload directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("media: create upload dir: %w", err)
	}
	return &Storage{dir: dir, maxSize: maxSize, now: time.Now}, nil
}

// Dir returns the upload directory.
func (s *Storage) Dir() string { return s.dir }

// MaxSize returns the per-file limit in bytes.
func (s *Storage) MaxSize() int64 { return s.maxSize }

// Save validates name and writes r under a unique name of the form
// <YYYYmmdd_HHMMSS>_<id>_<secure-name>.
func (s *Storage) Save(name string, r io.Reader) (StoredFile, error) {
	if err := ValidateFilename(name); err != nil {
		return StoredFile{}, err
	}
	stored := fmt.Sprintf("%s_%s_%s",
		s.now().Format("20060102_150405"),
		strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		SecureFilename(name))

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return StoredFile{}, fmt.Errorf("media: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after the rename

	src := r
	if s.maxSize > 0 {
		src = io.LimitReader(r, s.maxSize+1)
	}
	n, err := io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return StoredFile{}, fmt.Errorf("media: write upload: %w", err)
	}
	if s.maxSize > 0 && n > s.maxSize {
		return StoredFile{}, fmt.Errorf("%w: limit is %s", ErrTooLarge, units.BytesSize(float64(s.maxSize)))
	}

	path := filepath.Join(s.dir, stored)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return StoredFile{}, fmt.Errorf("media: store upload: %w", err)
	}
	log.Printf("[media] stored %s (%s)", stored, units.BytesSize(float64(n)))
	return StoredFile{Name: stored, Path: path, Size: n}, nil
}

// Open looks up a stored upload by name. The name is sanitized first, so
// path components never escape the upload directory.
func (s *Storage) Open(name string) (*os.File, os.FileInfo, error) {
	secure := SecureFilename(name)
	if secure == "" {
		return nil, nil, ErrNotFound
	}
	f, err := os.Open(filepath.Join(s.dir, secure))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("media: open %s: %w", secure, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("media: stat %s: %w", secure, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, ErrNotFound
	}
	return f, info, nil
}
