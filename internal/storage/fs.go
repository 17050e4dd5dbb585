package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// MountRoot is the directory all mount points live under
const MountRoot = "/mnt/"

// MountInfo describes an active mount
type MountInfo struct {
	MountPoint string `json:"mountPoint"`
	Source     string `json:"source"`
}

type mount struct {
	info    MountInfo
	backend Storage
	// root is the source path inside the backend
	root string
}

// FileSystem resolves storage URIs and mounted paths to backends.
// It keeps a mount table mapping /mnt/... paths onto storage locations.
type FileSystem struct {
	factory BackendFactory
	logger  *zap.Logger

	mu     sync.RWMutex
	mounts map[string]*mount
}

// NewFileSystem creates a file system that opens backends through factory
func NewFileSystem(factory BackendFactory, logger *zap.Logger) *FileSystem {
	return &FileSystem{
		factory: factory,
		logger:  logger,
		mounts:  make(map[string]*mount),
	}
}

// Mount attaches source at mountPoint. extraConfigs carries credentials such as
// fs.azure.account.key.<account>.blob.core.windows.net.
func (fs *FileSystem) Mount(ctx context.Context, source, mountPoint string, extraConfigs map[string]string) error {
	mp, err := cleanMountPoint(mountPoint)
	if err != nil {
		return err
	}

	loc, err := ParseURI(source)
	if err != nil {
		return err
	}

	fs.mu.RLock()
	_, exists := fs.mounts[mp]
	fs.mu.RUnlock()
	if exists {
		return fmt.Errorf("%w: %s", ErrAlreadyMounted, mp)
	}

	backend, err := fs.factory.Backend(ctx, loc, extraConfigs)
	if err != nil {
		return fmt.Errorf("failed to mount %s: %w", mp, err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, exists := fs.mounts[mp]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyMounted, mp)
	}
	fs.mounts[mp] = &mount{
		info:    MountInfo{MountPoint: mp, Source: loc.String()},
		backend: backend,
		root:    loc.Path,
	}

	fs.logger.Info("Mounted storage",
		zap.String("mount_point", mp),
		zap.String("source", loc.String()),
	)
	return nil
}

// Unmount detaches the mount at mountPoint
func (fs *FileSystem) Unmount(mountPoint string) error {
	mp, err := cleanMountPoint(mountPoint)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.mounts[mp]; !ok {
		return fmt.Errorf("%w: %s", ErrNotMounted, mp)
	}
	delete(fs.mounts, mp)

	fs.logger.Info("Unmounted storage", zap.String("mount_point", mp))
	return nil
}

// IsMounted reports whether mountPoint is in the mount table
func (fs *FileSystem) IsMounted(mountPoint string) bool {
	mp, err := cleanMountPoint(mountPoint)
	if err != nil {
		return false
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	_, ok := fs.mounts[mp]
	return ok
}

// Mounts returns the active mounts ordered by mount point
func (fs *FileSystem) Mounts() []MountInfo {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	infos := make([]MountInfo, 0, len(fs.mounts))
	for _, m := range fs.mounts {
		infos = append(infos, m.info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].MountPoint < infos[j].MountPoint
	})
	return infos
}

// Ls lists a URI or mounted path. Entry paths are returned in the same form as p.
func (fs *FileSystem) Ls(ctx context.Context, p string) ([]FileInfo, error) {
	target, err := fs.resolve(ctx, p)
	if err != nil {
		return nil, err
	}

	files, err := target.backend.List(ctx, target.rel)
	if err != nil {
		return nil, err
	}
	for i := range files {
		files[i].Path = target.display(files[i].Path)
	}
	return files, nil
}

// Open opens a file addressed by URI or mounted path
func (fs *FileSystem) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	target, err := fs.resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	return target.backend.Open(ctx, target.rel)
}

// Put writes data to a file addressed by URI or mounted path
func (fs *FileSystem) Put(ctx context.Context, p, contentType string, data io.Reader) (int64, error) {
	target, err := fs.resolve(ctx, p)
	if err != nil {
		return 0, err
	}
	return target.backend.Upload(ctx, target.rel, contentType, data)
}

// Rm removes a file addressed by URI or mounted path
func (fs *FileSystem) Rm(ctx context.Context, p string) error {
	target, err := fs.resolve(ctx, p)
	if err != nil {
		return err
	}
	return target.backend.Delete(ctx, target.rel)
}

type resolved struct {
	backend Storage
	rel     string
	display func(rel string) string
}

func (fs *FileSystem) resolve(ctx context.Context, p string) (*resolved, error) {
	if strings.Contains(p, "://") {
		loc, err := ParseURI(p)
		if err != nil {
			return nil, err
		}
		backend, err := fs.factory.Backend(ctx, loc, nil)
		if err != nil {
			return nil, err
		}
		return &resolved{
			backend: backend,
			rel:     loc.Path,
			display: func(rel string) string {
				s := loc.WithPath(rel).String()
				if strings.HasSuffix(rel, "/") {
					s += "/"
				}
				return s
			},
		}, nil
	}

	if !strings.HasPrefix(p, "/") {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURI, p)
	}
	clean := path.Clean(p)

	fs.mu.RLock()
	var best *mount
	for mp, m := range fs.mounts {
		if clean == mp || strings.HasPrefix(clean, mp+"/") {
			if best == nil || len(mp) > len(best.info.MountPoint) {
				best = m
			}
		}
	}
	fs.mu.RUnlock()

	if best == nil {
		return nil, fmt.Errorf("%w: no mount covers %s", ErrNotMounted, p)
	}

	mp := best.info.MountPoint
	root := best.root
	sub := strings.TrimPrefix(strings.TrimPrefix(clean, mp), "/")
	return &resolved{
		backend: best.backend,
		rel:     path.Join(root, sub),
		display: func(rel string) string {
			inner := strings.TrimPrefix(rel, root)
			inner = strings.TrimPrefix(inner, "/")
			if inner == "" {
				return mp
			}
			return mp + "/" + inner
		},
	}, nil
}

func cleanMountPoint(mountPoint string) (string, error) {
	if !strings.HasPrefix(mountPoint, "/") {
		return "", fmt.Errorf("invalid mount point %q: must be an absolute path", mountPoint)
	}
	mp := path.Clean(mountPoint)
	if !strings.HasPrefix(mp+"/", MountRoot) || mp+"/" == MountRoot {
		return "", fmt.Errorf("invalid mount point %q: must be under %s", mountPoint, MountRoot)
	}
	return mp, nil
}
