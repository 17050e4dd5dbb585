package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a file or directory does not exist
	ErrNotFound = errors.New("file not found")

	// ErrInvalidURI is returned for storage URIs that cannot be parsed
	ErrInvalidURI = errors.New("invalid storage URI")

	// ErrNotMounted is returned when a path is not covered by any mount
	ErrNotMounted = errors.New("not mounted")

	// ErrAlreadyMounted is returned when mounting onto a mount point in use
	ErrAlreadyMounted = errors.New("directory already mounted")
)

// FileInfo describes a listing entry. Directory paths end with "/".
type FileInfo struct {
	Path    string    `json:"path"`
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modificationTime"`
	IsDir   bool      `json:"isDir"`
}

// Storage defines the interface for file storage operations.
// Paths are slash separated and relative to the backend root.
type Storage interface {
	List(ctx context.Context, dir string) ([]FileInfo, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Upload(ctx context.Context, name string, contentType string, data io.Reader) (int64, error)
	Delete(ctx context.Context, name string) error
}

// LocalStorage implements Storage interface for local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local storage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// BasePath returns the directory backing the storage
func (s *LocalStorage) BasePath() string {
	return s.basePath
}

// fullPath maps a relative name into basePath; ".." cannot escape the root
func (s *LocalStorage) fullPath(name string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(path.Clean("/"+name)))
}

// List lists the entries directly under dir
func (s *LocalStorage) List(ctx context.Context, dir string) ([]FileInfo, error) {
	full := s.fullPath(dir)

	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", dir, err)
	}

	rel := cleanRelative(dir)
	if !info.IsDir() {
		return []FileInfo{{
			Path:    rel,
			Name:    path.Base(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}}, nil
	}

	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		entryInfo, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}
		fi := FileInfo{
			Path:    path.Join(rel, entry.Name()),
			Name:    entry.Name(),
			ModTime: entryInfo.ModTime(),
		}
		if entry.IsDir() {
			fi.IsDir = true
			fi.Path += "/"
			fi.Name += "/"
		} else {
			fi.Size = entryInfo.Size()
		}
		files = append(files, fi)
	}

	sortFiles(files)
	return files, nil
}

// Open opens a file from local storage
func (s *LocalStorage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	file, err := os.Open(s.fullPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Upload writes data to name, creating parent directories
func (s *LocalStorage) Upload(ctx context.Context, name string, contentType string, data io.Reader) (int64, error) {
	fullPath := s.fullPath(name)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	size, err := io.Copy(file, data)
	if err != nil {
		os.Remove(fullPath) // Cleanup on error
		return 0, fmt.Errorf("failed to write file: %w", err)
	}

	return size, nil
}

// Delete deletes a file from local storage
func (s *LocalStorage) Delete(ctx context.Context, name string) error {
	if err := os.Remove(s.fullPath(name)); err != nil {
		if os.IsNotExist(err) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

func sortFiles(files []FileInfo) {
	sort.Slice(files, func(i, j int) bool {
		return strings.TrimSuffix(files[i].Path, "/") < strings.TrimSuffix(files[j].Path, "/")
	})
}
