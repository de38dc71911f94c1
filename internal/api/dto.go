package api

import (
	"time"

	"github.com/starford/inkmath/internal/geom"
	"github.com/starford/inkmath/internal/models"
)

// StrokeRequest is one pen stroke in canvas pixels.
type StrokeRequest struct {
	Points []geom.StrokePoint `json:"points" validate:"required"`
}

// EraseRequest is an eraser polyline in canvas pixels.
type EraseRequest struct {
	Points []geom.Point `json:"points" validate:"required"`
}

// DeleteBlocksRequest names blocks to delete.
type DeleteBlocksRequest struct {
	IDs []string `json:"ids" example:"MainBlock/1" validate:"required"`
}

// TreeResponse is the current tree (aliased from the models layer).
type TreeResponse = models.Tree

// BlockListResponse is the pre-order listing of the tree.
type BlockListResponse struct {
	Blocks []models.BlockSummary `json:"blocks" validate:"required"`
}

// DocumentListResponse lists stored JIIX documents.
type DocumentListResponse struct {
	Documents []models.DocumentMetadata `json:"documents" validate:"required"`
}

// RoundSummary is a journaled recognition round without its payload.
type RoundSummary struct {
	ID        int64     `json:"id" example:"12" validate:"required"`
	Seq       uint64    `json:"seq" example:"3" validate:"required"`
	Checksum  string    `json:"checksum" validate:"required"`
	Size      int       `json:"size" example:"2048" validate:"required"`
	CreatedAt time.Time `json:"created_at" validate:"required"`
}

// RoundListResponse lists journaled rounds, newest first.
type RoundListResponse struct {
	Rounds []RoundSummary `json:"rounds" validate:"required"`
}
