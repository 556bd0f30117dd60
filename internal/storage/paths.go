// Package storage manages the local directory that holds uploaded PDFs.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DefaultUploadSubdir is where uploads land relative to the base directory
var DefaultUploadSubdir = filepath.Join("uploaded_files", "pdfs")

// ErrIO is returned when the upload directory or an uploaded file cannot be written
var ErrIO = errors.New("storage io error")

// Paths resolves the upload directory
type Paths struct {
	dir string
}

// NewPaths ensures <baseDir>/<subdir> exists and returns a handle to it.
// An empty baseDir means the current working directory.
func NewPaths(baseDir, subdir string) (*Paths, error) {
	if subdir == "" {
		subdir = DefaultUploadSubdir
	}
	if baseDir == "" {
		baseDir = "."
	}

	dir, err := filepath.Abs(filepath.Join(baseDir, subdir))
	if err != nil {
		return nil, fmt.Errorf("%w: resolving upload directory: %v", ErrIO, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating upload directory %s: %v", ErrIO, dir, err)
	}

	return &Paths{dir: dir}, nil
}

// Dir returns the absolute upload directory
func (p *Paths) Dir() string {
	return p.dir
}

// PathFor returns where an upload called name is stored
func (p *Paths) PathFor(name string) (string, error) {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "" || base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("%w: invalid file name %q", ErrIO, name)
	}
	return filepath.Join(p.dir, base), nil
}

// Save writes r verbatim to the upload directory under name, replacing any
// previous upload with the same name. It returns the stored path and the
// SHA-256 of the written bytes.
func (p *Paths) Save(name string, r io.Reader) (string, string, error) {
	path, err := p.PathFor(name)
	if err != nil {
		return "", "", err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", "", fmt.Errorf("%w: opening %s: %v", ErrIO, path, err)
	}

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(f, h), r); err != nil {
		f.Close()
		return "", "", fmt.Errorf("%w: writing %s: %v", ErrIO, path, err)
	}
	if err := f.Close(); err != nil {
		return "", "", fmt.Errorf("%w: closing %s: %v", ErrIO, path, err)
	}

	return path, hex.EncodeToString(h.Sum(nil)), nil
}
