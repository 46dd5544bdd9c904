// Package upload stores profile images on local disk under generated names.
package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/sakif/social-graph/internal/apperror"
)

// sniffLen is how many bytes http.DetectContentType looks at.
const sniffLen = 512

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Store writes uploads into a single directory. Files are named
// <uuid><ext>, where the extension follows the sniffed content type.
type Store struct {
	dir      string
	maxBytes int64
}

// NewStore creates dir if needed.
func NewStore(dir string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("upload: creating %s: %w", dir, err)
	}
	return &Store{dir: dir, maxBytes: maxBytes}, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Save copies r to a new file and returns its path relative to the working
// directory, which is what the user document stores. Non-image content and
// files over the size limit are rejected with a validation error on "image".
func (s *Store) Save(r io.Reader) (string, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("upload: reading: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return "", apperror.ValidationFailed("image", "image file is empty")
	}

	ext, ok := extensions[http.DetectContentType(head)]
	if !ok {
		return "", apperror.ValidationFailed("image", "image must be a JPEG, PNG, GIF or WebP file")
	}

	path := filepath.Join(s.dir, uuid.NewString()+ext)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("upload: creating file: %w", err)
	}

	// One extra byte past the limit tells an oversize file apart from an exact fit.
	body := io.LimitReader(io.MultiReader(bytes.NewReader(head), r), s.maxBytes+1)
	written, err := io.Copy(f, body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("upload: writing %s: %w", path, err)
	}
	if written > s.maxBytes {
		os.Remove(path)
		return "", apperror.ValidationFailed("image",
			fmt.Sprintf("image must be %d bytes or smaller", s.maxBytes))
	}

	return filepath.ToSlash(path), nil
}

// Remove deletes a stored file. Paths outside the store directory are ignored.
func (s *Store) Remove(path string) error {
	if path == "" {
		return nil
	}
	clean := filepath.Clean(filepath.FromSlash(path))
	if filepath.Dir(clean) != filepath.Clean(s.dir) {
		return nil
	}
	if err := os.Remove(clean); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("upload: removing %s: %w", path, err)
	}
	return nil
}
