package storage_test

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/fsdh/datahub-samples/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var blobModTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

// blobService is an in-memory blob endpoint serving one container
type blobService struct {
	mu        sync.Mutex
	container string
	blobs     map[string][]byte
	types     map[string]string
	requests  []string
}

func newBlobService(container string, blobs map[string]string) *blobService {
	s := &blobService{container: container, blobs: map[string][]byte{}, types: map[string]string{}}
	for name, data := range blobs {
		s.blobs[name] = []byte(data)
	}
	return s
}

func (s *blobService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := r.URL.Query()
	s.requests = append(s.requests, r.Method+" "+q.Get("comp"))

	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	if parts[0] != s.container {
		storageError(w, http.StatusNotFound, "ContainerNotFound")
		return
	}

	if len(parts) == 1 {
		if r.Method == http.MethodGet && q.Get("comp") == "list" {
			s.list(w, q.Get("prefix"), q.Get("delimiter"))
			return
		}
		storageError(w, http.StatusBadRequest, "InvalidQueryParameterValue")
		return
	}

	name := parts[1]
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		data, ok := s.blobs[name]
		if !ok {
			storageError(w, http.StatusNotFound, "BlobNotFound")
			return
		}
		w.Header().Set("Last-Modified", blobModTime.Format(http.TimeFormat))
		w.Header().Set("x-ms-blob-type", "BlockBlob")
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		_, _ = w.Write(data)
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		s.blobs[name] = data
		s.types[name] = r.Header.Get("x-ms-blob-content-type")
		w.WriteHeader(http.StatusCreated)
	case http.MethodDelete:
		if _, ok := s.blobs[name]; !ok {
			storageError(w, http.StatusNotFound, "BlobNotFound")
			return
		}
		delete(s.blobs, name)
		w.WriteHeader(http.StatusAccepted)
	default:
		storageError(w, http.StatusMethodNotAllowed, "UnsupportedHttpVerb")
	}
}

type listResult struct {
	XMLName       xml.Name     `xml:"EnumerationResults"`
	ContainerName string       `xml:"ContainerName,attr"`
	Prefix        string       `xml:"Prefix"`
	Delimiter     string       `xml:"Delimiter"`
	Prefixes      []listPrefix `xml:"Blobs>BlobPrefix"`
	Blobs         []listBlob   `xml:"Blobs>Blob"`
	NextMarker    string       `xml:"NextMarker"`
}

type listPrefix struct {
	Name string `xml:"Name"`
}

type listBlob struct {
	Name          string `xml:"Name"`
	LastModified  string `xml:"Properties>Last-Modified"`
	ContentLength int    `xml:"Properties>Content-Length"`
	BlobType      string `xml:"Properties>BlobType"`
}

func (s *blobService) list(w http.ResponseWriter, prefix, delimiter string) {
	names := make([]string, 0, len(s.blobs))
	for name := range s.blobs {
		names = append(names, name)
	}
	sort.Strings(names)

	res := listResult{ContainerName: s.container, Prefix: prefix, Delimiter: delimiter}
	seen := map[string]bool{}
	for _, name := range names {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		if i := strings.Index(rest, delimiter); delimiter != "" && i >= 0 {
			dir := prefix + rest[:i+1]
			if !seen[dir] {
				seen[dir] = true
				res.Prefixes = append(res.Prefixes, listPrefix{Name: dir})
			}
			continue
		}
		res.Blobs = append(res.Blobs, listBlob{
			Name:          name,
			LastModified:  blobModTime.Format(http.TimeFormat),
			ContentLength: len(s.blobs[name]),
			BlobType:      "BlockBlob",
		})
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, xml.Header)
	_ = xml.NewEncoder(w).Encode(res)
}

func storageError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("x-ms-error-code", code)
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, xml.Header+"<Error><Code>"+code+"</Code><Message>"+code+"</Message></Error>")
}

func setupAzureBlobStorage(t *testing.T, container string, blobs map[string]string) (*storage.AzureBlobStorage, *blobService) {
	t.Helper()
	svc := newBlobService("datahub", blobs)
	server := httptest.NewServer(svc)
	t.Cleanup(server.Close)

	client, err := azblob.NewClientWithNoCredential(server.URL+"/", &azblob.ClientOptions{
		ClientOptions: policy.ClientOptions{Retry: policy.RetryOptions{MaxRetries: -1}},
	})
	require.NoError(t, err)
	return storage.NewAzureBlobStorage(client, container, zap.NewNop()), svc
}

var sampleBlobs = map[string]string{
	"fsdh-sample.csv":   "a,b\n1,2\n",
	"raw/part-0.csv":    "x\n",
	"raw/2024/part.csv": "y\n",
	"raw/2024/more.csv": "z\n",
}

// ============================================================================
// AzureBlobStorage against an in-memory blob endpoint
// ============================================================================

func TestAzureBlobStorage_ListHierarchy(t *testing.T) {
	s, _ := setupAzureBlobStorage(t, "datahub", sampleBlobs)

	tests := []struct {
		name string
		dir  string
		want []storage.FileInfo
	}{
		{
			name: "container root",
			dir:  "",
			want: []storage.FileInfo{
				{Path: "fsdh-sample.csv", Name: "fsdh-sample.csv", Size: 8, ModTime: blobModTime},
				{Path: "raw/", Name: "raw/", IsDir: true},
			},
		},
		{
			name: "virtual directory",
			dir:  "/raw/",
			want: []storage.FileInfo{
				{Path: "raw/2024/", Name: "2024/", IsDir: true},
				{Path: "raw/part-0.csv", Name: "part-0.csv", Size: 2, ModTime: blobModTime},
			},
		},
		{
			name: "nested directory",
			dir:  "raw/2024",
			want: []storage.FileInfo{
				{Path: "raw/2024/more.csv", Name: "more.csv", Size: 2, ModTime: blobModTime},
				{Path: "raw/2024/part.csv", Name: "part.csv", Size: 2, ModTime: blobModTime},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := s.List(context.Background(), tt.dir)
			require.NoError(t, err)
			require.Len(t, files, len(tt.want))
			for i := range tt.want {
				assert.Equal(t, tt.want[i].Path, files[i].Path)
				assert.Equal(t, tt.want[i].Name, files[i].Name)
				assert.Equal(t, tt.want[i].IsDir, files[i].IsDir)
				assert.Equal(t, tt.want[i].Size, files[i].Size)
				assert.True(t, tt.want[i].ModTime.Equal(files[i].ModTime), files[i].Path)
			}
		})
	}
}

func TestAzureBlobStorage_ListSingleBlob(t *testing.T) {
	s, svc := setupAzureBlobStorage(t, "datahub", sampleBlobs)

	files, err := s.List(context.Background(), "raw/part-0.csv")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "raw/part-0.csv", files[0].Path)
	assert.Equal(t, "part-0.csv", files[0].Name)
	assert.False(t, files[0].IsDir)
	assert.True(t, blobModTime.Equal(files[0].ModTime))
	assert.Contains(t, svc.requests, "HEAD ")
}

func TestAzureBlobStorage_NotFound(t *testing.T) {
	ctx := context.Background()

	t.Run("missing blob on list", func(t *testing.T) {
		s, _ := setupAzureBlobStorage(t, "datahub", sampleBlobs)
		_, err := s.List(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("missing blob on open", func(t *testing.T) {
		s, _ := setupAzureBlobStorage(t, "datahub", sampleBlobs)
		_, err := s.Open(ctx, "nope.csv")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("missing container", func(t *testing.T) {
		s, _ := setupAzureBlobStorage(t, "other", sampleBlobs)
		_, err := s.List(ctx, "")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		_, err = s.Open(ctx, "fsdh-sample.csv")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestAzureBlobStorage_Open(t *testing.T) {
	s, _ := setupAzureBlobStorage(t, "datahub", sampleBlobs)

	rc, err := s.Open(context.Background(), "/fsdh-sample.csv")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))
}

func TestAzureBlobStorage_UploadAndDelete(t *testing.T) {
	ctx := context.Background()
	s, svc := setupAzureBlobStorage(t, "datahub", nil)

	n, err := s.Upload(ctx, "out/../bodies.csv", "text/csv", bytes.NewBufferString("name\nEarth\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)
	assert.Equal(t, "name\nEarth\n", string(svc.blobs["bodies.csv"]))
	assert.Equal(t, "text/csv", svc.types["bodies.csv"])

	require.NoError(t, s.Delete(ctx, "bodies.csv"))
	assert.NotContains(t, svc.blobs, "bodies.csv")

	assert.NoError(t, s.Delete(ctx, "bodies.csv"), "deleting a missing blob is not an error")
}
