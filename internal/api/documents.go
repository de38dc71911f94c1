package api

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/starford/inkmath/internal/storage"
)

const maxUploadBytes = 50 << 20

// DocumentHandler loads JIIX documents into the session and keeps uploaded
// files in the drop directory.
type DocumentHandler struct {
	ed    Editor
	store storage.Provider
}

// NewDocumentHandler creates a handler. store may be nil, in which case
// uploads are loaded but not kept.
func NewDocumentHandler(ed Editor, store storage.Provider) *DocumentHandler {
	return &DocumentHandler{ed: ed, store: store}
}

// safeName accepts a plain document file name.
func safeName(name string) (string, bool) {
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || !storage.IsDocument(cleaned) {
		return "", false
	}
	return cleaned, true
}

// Upload handles POST /api/documents. The body is either a raw JIIX
// document (application/json) or multipart/form-data with a "file" field.
//
//	@Summary		Load a JIIX document as the current tree
//	@Tags			documents
//	@Accept			json,mpfd
//	@Produce		json
//	@Param			file	formData	file	false	"JIIX document"
//	@Success		200		{object}	TreeResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents [post]
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
			return
		}
		tree, err := h.ed.Load(r.Context(), data, "api")
		if err != nil {
			writeError(w, "load document", err)
			return
		}
		writeJSON(w, http.StatusOK, tree)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	name, ok := safeName(header.Filename)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid filename: "+header.Filename))
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	tree, err := h.ed.Load(r.Context(), data, name)
	if err != nil {
		writeError(w, "load document", err)
		return
	}
	if h.store != nil {
		if err := h.store.Write(name, data); err != nil {
			writeError(w, "store document", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, tree)
}

// List handles GET /api/documents.
//
//	@Summary		List stored JIIX documents
//	@Tags			documents
//	@Produce		json
//	@Success		200	{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *DocumentHandler) List(w http.ResponseWriter, _ *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusOK, DocumentListResponse{Documents: nil})
		return
	}
	docs, err := h.store.List("")
	if err != nil {
		writeError(w, "list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: docs})
}
