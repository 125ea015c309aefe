// Package storage is the contract the catalogue needs from the remote asset store.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

// ErrNotFound is returned when a path does not exist in the store.
var ErrNotFound = errors.New("asset not found")

type Entry struct {
	Path        string    `json:"path"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	IsDir       bool      `json:"isDir"`
	ModifiedAt  time.Time `json:"modifiedAt"`
}

// AssetStore is safe for concurrent use.
type AssetStore interface {
	Store(ctx context.Context, p string, r io.Reader) error
	Fetch(ctx context.Context, p string) (io.ReadCloser, error)
	List(ctx context.Context, folder string) ([]Entry, error)
	Delete(ctx context.Context, p string) error
	DeleteFolder(ctx context.Context, folder string) error
}

var imageExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".svg":  "image/svg+xml",
}

// IsImage prefers the reported content type and falls back to the extension.
func (e Entry) IsImage() bool {
	if e.IsDir {
		return false
	}
	if strings.HasPrefix(strings.ToLower(e.ContentType), "image/") {
		return true
	}
	return IsImagePath(e.Name)
}

// IsImagePath reports whether p has an image file extension.
func IsImagePath(p string) bool {
	_, ok := imageExtensions[strings.ToLower(path.Ext(p))]
	return ok
}

// Clean normalises a store path and rejects traversal outside the root.
func Clean(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" {
		return "", errors.New("empty path")
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", errors.New("path escapes asset root")
		}
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+p), "/")
	if cleaned == "" {
		return "", errors.New("empty path")
	}
	return cleaned, nil
}

// BaseName reduces a client-supplied file name to its last segment and
// rejects names that would address a folder instead of a file.
func BaseName(name string) (string, error) {
	base := path.Base(strings.TrimSpace(strings.ReplaceAll(name, "\\", "/")))
	switch base {
	case "", ".", "..", "/":
		return "", errors.New("invalid file name")
	}
	return base, nil
}

// Join builds the path of file name inside folder.
func Join(folder, name string) (string, error) {
	base, err := BaseName(name)
	if err != nil {
		return "", err
	}
	return path.Join(folder, base), nil
}
