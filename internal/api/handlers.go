package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/inkmath/internal/geom"
	"github.com/starford/inkmath/internal/journal"
	"github.com/starford/inkmath/internal/models"
)

const maxBodyBytes = 10 << 20

// Editor is the session surface the API drives.
type Editor interface {
	Name() string
	AddStroke(ctx context.Context, points []geom.StrokePoint) (*models.Tree, error)
	Erase(ctx context.Context, eraser []geom.Point) (*models.Tree, error)
	EraseIDs(ctx context.Context, ids []string) (*models.Tree, error)
	Load(ctx context.Context, data []byte, source string) (*models.Tree, error)
	Snapshot() *models.Tree
	Blocks() []models.BlockSummary
}

// RoundLister reads journaled rounds.
type RoundLister interface {
	ListRounds(ctx context.Context, session string, limit int) ([]journal.Round, error)
}

// Handler holds the tree route handlers.
type Handler struct {
	ed     Editor
	rounds RoundLister
}

// NewHandler creates a Handler. rounds may be nil.
func NewHandler(ed Editor, rounds RoundLister) *Handler {
	return &Handler{ed: ed, rounds: rounds}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// AddStroke handles POST /api/strokes.
//
//	@Summary		Add a pen stroke and recognise the canvas
//	@Tags			tree
//	@Accept			json
//	@Produce		json
//	@Param			body	body		StrokeRequest	true	"Stroke"
//	@Success		200		{object}	TreeResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/strokes [post]
func (h *Handler) AddStroke(w http.ResponseWriter, r *http.Request) {
	var req StrokeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	tree, err := h.ed.AddStroke(r.Context(), req.Points)
	if err != nil {
		writeError(w, "add stroke", err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

// Erase handles POST /api/erase.
//
//	@Summary		Erase every block the eraser polyline crosses
//	@Tags			tree
//	@Accept			json
//	@Produce		json
//	@Param			body	body		EraseRequest	true	"Eraser path"
//	@Success		200		{object}	TreeResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/erase [post]
func (h *Handler) Erase(w http.ResponseWriter, r *http.Request) {
	var req EraseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Points) < 2 {
		writeJSON(w, http.StatusBadRequest, errorBody("eraser needs at least two points"))
		return
	}
	tree, err := h.ed.Erase(r.Context(), req.Points)
	if err != nil {
		writeError(w, "erase", err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

// DeleteBlock handles DELETE /api/blocks/{id}.
//
//	@Summary		Delete one block by id
//	@Tags			blocks
//	@Produce		json
//	@Param			id	path		string	true	"Block id"
//	@Success		200	{object}	TreeResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/blocks/{id} [delete]
func (h *Handler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	tree, err := h.ed.EraseIDs(r.Context(), []string{chi.URLParam(r, "id")})
	if err != nil {
		writeError(w, "delete block", err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

// DeleteBlocks handles POST /api/blocks/delete.
//
//	@Summary		Delete several blocks in one edit
//	@Tags			blocks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		DeleteBlocksRequest	true	"Block ids"
//	@Success		200		{object}	TreeResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/blocks/delete [post]
func (h *Handler) DeleteBlocks(w http.ResponseWriter, r *http.Request) {
	var req DeleteBlocksRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("ids are required"))
		return
	}
	tree, err := h.ed.EraseIDs(r.Context(), req.IDs)
	if err != nil {
		writeError(w, "delete blocks", err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

// GetTree handles GET /api/tree.
//
//	@Summary		Get the current expression tree
//	@Tags			tree
//	@Produce		json
//	@Success		200	{object}	TreeResponse
//	@Security		BearerAuth
//	@Router			/tree [get]
func (h *Handler) GetTree(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.ed.Snapshot())
}

// ListBlocks handles GET /api/blocks.
//
//	@Summary		List the tree in pre-order
//	@Tags			blocks
//	@Produce		json
//	@Success		200	{object}	BlockListResponse
//	@Security		BearerAuth
//	@Router			/blocks [get]
func (h *Handler) ListBlocks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, BlockListResponse{Blocks: h.ed.Blocks()})
}

// ListRounds handles GET /api/rounds.
//
//	@Summary		List journaled recognition rounds
//	@Tags			journal
//	@Produce		json
//	@Param			limit	query		int	false	"Page size"
//	@Success		200		{object}	RoundListResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/rounds [get]
func (h *Handler) ListRounds(w http.ResponseWriter, r *http.Request) {
	if h.rounds == nil {
		writeJSON(w, http.StatusNotFound, errorBody("journal disabled"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rounds, err := h.rounds.ListRounds(r.Context(), h.ed.Name(), limit)
	if err != nil {
		writeError(w, "list rounds", err)
		return
	}
	out := RoundListResponse{Rounds: make([]RoundSummary, len(rounds))}
	for i, rd := range rounds {
		out.Rounds[i] = RoundSummary{
			ID:        rd.ID,
			Seq:       rd.Seq,
			Checksum:  rd.Checksum,
			Size:      len(rd.JIIX),
			CreatedAt: rd.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, out)
}
