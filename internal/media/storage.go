// Package media handles local media files: storing uploads and downloaded
// attachments under unique names, serving and deleting them, and sanitizing
// source URLs.
package media

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidName is returned for file names that could escape the upload
// directory.
var ErrInvalidName = errors.New("invalid media file name")

// Storage writes and removes media files inside one upload directory.
type Storage struct {
	dir string
}

// NewStorage is part of the media package API.
func NewStorage(dir string) *Storage {
	return &Storage{dir: dir}
}

// Dir returns the upload directory path.
func (s *Storage) Dir() string {
	return s.dir
}

// SaveStream copies r into the upload directory under a freshly generated
// unique name and returns that name. The directory is created when absent;
// an existing file under the generated name is overwritten.
func (s *Storage) SaveStream(r io.Reader, contentType string) (string, error) {
	err := os.MkdirAll(s.dir, 0o755)
	if err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}

	name := uuid.NewString() + ExtensionForType(contentType)

	target, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("create media file: %w", err)
	}

	_, copyErr := io.Copy(target, r)

	closeErr := target.Close()

	if copyErr != nil {
		return "", fmt.Errorf("write media file: %w", copyErr)
	}

	if closeErr != nil {
		return "", fmt.Errorf("close media file: %w", closeErr)
	}

	return name, nil
}

// Delete removes a stored file by name. A missing file is not an error.
func (s *Storage) Delete(name string) error {
	err := validateName(name)
	if err != nil {
		return err
	}

	err = os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete media file %s: %w", name, err)
	}

	return nil
}

// Open opens a stored file by name for serving.
func (s *Storage) Open(name string) (*os.File, error) {
	err := validateName(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("open media file %s: %w", name, err)
	}

	return f, nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidName
	}

	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return ErrInvalidName
	}

	return nil
}

// ExtensionForType maps a content type onto a file extension.
func ExtensionForType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return imageExtension(contentType)
	case strings.HasPrefix(contentType, "video/"):
		return ".mp4"
	default:
		return ".bin"
	}
}

func imageExtension(contentType string) string {
	switch {
	case strings.Contains(contentType, "jpeg"), strings.Contains(contentType, "jpg"):
		return ".jpg"
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "gif"):
		return ".gif"
	default:
		return ".jpg"
	}
}
