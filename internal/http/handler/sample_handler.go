package handler

import (
	"net/http"
	"strings"

	"github.com/fsdh/datahub-samples/internal/domain"
	"github.com/fsdh/datahub-samples/internal/frame"
	"github.com/fsdh/datahub-samples/internal/jdbc"
	"github.com/fsdh/datahub-samples/internal/repository"
	"github.com/fsdh/datahub-samples/internal/storage"
	"go.uber.org/zap"
)

// TableLoader builds a reader for the sample table
type TableLoader interface {
	NewTableReader() (*jdbc.Reader, error)
}

// CelestialBodyHandler serves the sample table
type CelestialBodyHandler struct {
	repo   *repository.CelestialBodyRepository
	loader TableLoader
	logger *zap.Logger
}

// NewCelestialBodyHandler creates a handler over the sample table
func NewCelestialBodyHandler(repo *repository.CelestialBodyRepository, loader TableLoader, logger *zap.Logger) *CelestialBodyHandler {
	return &CelestialBodyHandler{repo: repo, loader: loader, logger: logger}
}

// FrameResponse is a frame rendered as JSON. Columns keeps the column order.
type FrameResponse struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Count   int              `json:"count"`
}

func newFrameResponse(f *frame.Frame) FrameResponse {
	return FrameResponse{
		Columns: f.ColumnNames(),
		Rows:    f.Records(),
		Count:   f.Len(),
	}
}

// List returns every row of the sample table
// GET /api/v1/celestial-bodies
func (h *CelestialBodyHandler) List(w http.ResponseWriter, r *http.Request) {
	bodies, err := h.repo.SelectAll(r.Context())
	if err != nil {
		h.logger.Error("failed to select celestial bodies", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to read celestial bodies")
		return
	}
	if bodies == nil {
		bodies = []domain.CelestialBody{}
	}
	respondJSON(w, http.StatusOK, bodies)
}

// Load reads the table through the read-only JDBC reader
// GET /api/v1/celestial-bodies/jdbc
func (h *CelestialBodyHandler) Load(w http.ResponseWriter, r *http.Request) {
	reader, err := h.loader.NewTableReader()
	if err != nil {
		respondWithError(w, statusForError(err), err.Error())
		return
	}
	f, err := reader.Load(r.Context())
	if err != nil {
		h.logger.Error("failed to load celestial bodies", zap.Error(err))
		respondWithError(w, statusForError(err), "Failed to load celestial bodies")
		return
	}
	respondJSON(w, http.StatusOK, newFrameResponse(f))
}

// StorageHandler browses storage locations and mounts. URIs are served only
// when they fall within one of the roots; mounted paths are always served.
type StorageHandler struct {
	fs       *storage.FileSystem
	roots    []storage.Location
	showRows int
	logger   *zap.Logger
}

// NewStorageHandler creates a storage handler. showRows is the default preview size.
func NewStorageHandler(fs *storage.FileSystem, roots []storage.Location, showRows int, logger *zap.Logger) *StorageHandler {
	return &StorageHandler{fs: fs, roots: roots, showRows: showRows, logger: logger}
}

// allowed reports whether a client supplied path may be served, writing the
// error response when it may not
func (h *StorageHandler) allowed(w http.ResponseWriter, p string) bool {
	if p == "" {
		respondWithError(w, http.StatusBadRequest, "path is required")
		return false
	}
	if !strings.Contains(p, "://") {
		return true
	}

	loc, err := storage.ParseURI(p)
	if err != nil {
		respondWithError(w, statusForError(err), err.Error())
		return false
	}
	for _, root := range h.roots {
		if loc.Within(root) {
			return true
		}
	}
	h.logger.Warn("rejected storage path outside configured roots", zap.String("path", p))
	respondWithError(w, http.StatusForbidden, "path is outside the configured storage locations")
	return false
}

// List lists a URI or mounted path
// GET /api/v1/storage/ls?path=
func (h *StorageHandler) List(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")
	if !h.allowed(w, p) {
		return
	}

	files, err := h.fs.Ls(r.Context(), p)
	if err != nil {
		h.logger.Warn("failed to list storage path", zap.String("path", p), zap.Error(err))
		respondWithError(w, statusForError(err), err.Error())
		return
	}
	if files == nil {
		files = []storage.FileInfo{}
	}
	respondJSON(w, http.StatusOK, files)
}

// Mounts lists the active mounts
// GET /api/v1/storage/mounts
func (h *StorageHandler) Mounts(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.fs.Mounts())
}

// Preview reads a CSV file with a header row and returns its first rows
// GET /api/v1/storage/preview?path=&rows=
func (h *StorageHandler) Preview(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")
	if !h.allowed(w, p) {
		return
	}
	rows, err := parseIntQuery(r, "rows", h.showRows)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	rc, err := h.fs.Open(r.Context(), p)
	if err != nil {
		respondWithError(w, statusForError(err), err.Error())
		return
	}
	defer rc.Close()

	f, err := frame.ReadCSV(rc, frame.CSVOptions{Header: true})
	if err != nil {
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, newFrameResponse(f.Head(rows)))
}
