package storage_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fsdh/datahub-samples/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testWasbs = "wasbs://datahub@fsdhstorage.blob.core.windows.net/"
	testAbfss = "abfss://datahub@fsdhstorage.dfs.core.windows.net/"
)

// newTestFileSystem serves every account from directories under a temp dir
// and seeds the datahub container of fsdhstorage
func newTestFileSystem(t *testing.T) (*storage.FileSystem, string) {
	t.Helper()
	base := t.TempDir()

	container := filepath.Join(base, "fsdhstorage", "datahub")
	require.NoError(t, os.MkdirAll(filepath.Join(container, "raw"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(container, "fsdh-sample.csv"), []byte("a,b\n1,2\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(container, "raw", "part-0.csv"), []byte("x\n"), 0644))

	return storage.NewFileSystem(&storage.LocalFactory{BasePath: base}, zap.NewNop()), base
}

func TestFileSystem_LsURI(t *testing.T) {
	fs, _ := newTestFileSystem(t)

	files, err := fs.Ls(context.Background(), testAbfss)
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, "abfss://datahub@fsdhstorage.dfs.core.windows.net/fsdh-sample.csv", files[0].Path)
	assert.Equal(t, "fsdh-sample.csv", files[0].Name)
	assert.Equal(t, int64(8), files[0].Size)
	assert.Equal(t, "abfss://datahub@fsdhstorage.dfs.core.windows.net/raw/", files[1].Path)
	assert.True(t, files[1].IsDir)
}

func TestFileSystem_MountLifecycle(t *testing.T) {
	ctx := context.Background()
	fs, _ := newTestFileSystem(t)

	assert.False(t, fs.IsMounted("/mnt/fsdh"))
	require.NoError(t, fs.Mount(ctx, testWasbs, "/mnt/fsdh", nil))
	assert.True(t, fs.IsMounted("/mnt/fsdh/"))

	assert.Equal(t, []storage.MountInfo{{
		MountPoint: "/mnt/fsdh",
		Source:     "wasbs://datahub@fsdhstorage.blob.core.windows.net",
	}}, fs.Mounts())

	err := fs.Mount(ctx, testWasbs, "/mnt/fsdh", nil)
	assert.ErrorIs(t, err, storage.ErrAlreadyMounted)

	files, err := fs.Ls(ctx, "/mnt/fsdh")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "/mnt/fsdh/fsdh-sample.csv", files[0].Path)
	assert.Equal(t, "/mnt/fsdh/raw/", files[1].Path)

	nested, err := fs.Ls(ctx, "/mnt/fsdh/raw")
	require.NoError(t, err)
	require.Len(t, nested, 1)
	assert.Equal(t, "/mnt/fsdh/raw/part-0.csv", nested[0].Path)

	rc, err := fs.Open(ctx, "/mnt/fsdh/fsdh-sample.csv")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))

	require.NoError(t, fs.Unmount("/mnt/fsdh"))
	assert.Empty(t, fs.Mounts())
	assert.ErrorIs(t, fs.Unmount("/mnt/fsdh"), storage.ErrNotMounted)

	_, err = fs.Ls(ctx, "/mnt/fsdh")
	assert.ErrorIs(t, err, storage.ErrNotMounted)
}

func TestFileSystem_MountSubdirectory(t *testing.T) {
	ctx := context.Background()
	fs, _ := newTestFileSystem(t)

	require.NoError(t, fs.Mount(ctx, testWasbs, "/mnt/fsdh", nil))
	require.NoError(t, fs.Mount(ctx, testWasbs+"raw", "/mnt/fsdh/raw", nil))

	files, err := fs.Ls(ctx, "/mnt/fsdh/raw")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "/mnt/fsdh/raw/part-0.csv", files[0].Path)

	mounts := fs.Mounts()
	require.Len(t, mounts, 2)
	assert.Equal(t, "/mnt/fsdh", mounts[0].MountPoint)
	assert.Equal(t, "/mnt/fsdh/raw", mounts[1].MountPoint)
}

func TestFileSystem_InvalidMountPoints(t *testing.T) {
	ctx := context.Background()
	fs, _ := newTestFileSystem(t)

	for _, mp := range []string{"fsdh", "/data/fsdh", "/mnt", "/mnt/", "/mnt/../etc"} {
		t.Run(mp, func(t *testing.T) {
			assert.Error(t, fs.Mount(ctx, testWasbs, mp, nil))
		})
	}

	assert.ErrorIs(t, fs.Mount(ctx, "s3://bucket/", "/mnt/s3", nil), storage.ErrInvalidURI)
}

func TestFileSystem_PutAndRm(t *testing.T) {
	ctx := context.Background()
	fs, base := newTestFileSystem(t)
	require.NoError(t, fs.Mount(ctx, testWasbs, "/mnt/fsdh", nil))

	n, err := fs.Put(ctx, "/mnt/fsdh/out/result.csv", "text/csv", strings.NewReader("ok\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	data, err := os.ReadFile(filepath.Join(base, "fsdhstorage", "datahub", "out", "result.csv"))
	require.NoError(t, err)
	assert.Equal(t, "ok\n", string(data))

	require.NoError(t, fs.Rm(ctx, testAbfss+"out/result.csv"))
	_, err = fs.Open(ctx, "/mnt/fsdh/out/result.csv")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFileSystem_RelativePathRejected(t *testing.T) {
	fs, _ := newTestFileSystem(t)

	_, err := fs.Ls(context.Background(), "fsdh-sample.csv")
	assert.ErrorIs(t, err, storage.ErrInvalidURI)
}
