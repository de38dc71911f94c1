// Package models defines the JSON view types of the expression tree served
// to API and MCP consumers.
package models

import (
	"time"

	"github.com/starford/inkmath/internal/block"
	"github.com/starford/inkmath/internal/geom"
)

// Node is one block of the expression tree.
type Node struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"`
	Label    string    `json:"label,omitempty"`
	Box      geom.Rect `json:"bounding_box"`
	Strokes  int       `json:"strokes"`
	Children []Node    `json:"children,omitempty"`
}

// Tree is a snapshot of a session's current interpretation.
type Tree struct {
	Session    string    `json:"session"`
	Seq        uint64    `json:"seq"`
	Generation uint64    `json:"generation"`
	Root       *Node     `json:"root,omitempty"`
	Pending    int       `json:"pending"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// BlockSummary is a flat listing entry.
type BlockSummary struct {
	ID     string    `json:"id"`
	Kind   string    `json:"kind"`
	Label  string    `json:"label,omitempty"`
	Box    geom.Rect `json:"bounding_box"`
	Depth  int       `json:"depth"`
	Parent string    `json:"parent,omitempty"`
}

// DocumentMetadata describes a stored JIIX document.
type DocumentMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewNode converts a block subtree into its view.
func NewNode(b block.Block) Node {
	c := b.Common()
	n := Node{
		ID:      c.ID,
		Kind:    b.Kind().String(),
		Label:   block.Label(b),
		Box:     c.Box,
		Strokes: len(c.Strokes),
	}
	for _, child := range b.Children() {
		n.Children = append(n.Children, NewNode(child))
	}
	return n
}

// Flatten lists the tree in pre-order.
func Flatten(root block.Block) []BlockSummary {
	var out []BlockSummary
	var walk func(b block.Block, depth int, parent string)
	walk = func(b block.Block, depth int, parent string) {
		c := b.Common()
		out = append(out, BlockSummary{
			ID:     c.ID,
			Kind:   b.Kind().String(),
			Label:  block.Label(b),
			Box:    c.Box,
			Depth:  depth,
			Parent: parent,
		})
		for _, child := range b.Children() {
			walk(child, depth+1, c.ID)
		}
	}
	walk(root, 0, "")
	return out
}
