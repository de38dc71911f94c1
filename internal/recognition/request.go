// Package recognition talks to the remote handwriting recognition service.
package recognition

import "github.com/starford/inkmath/internal/geom"

// Request is the batch recognition body.
type Request struct {
	Configuration Configuration `json:"configuration"`
	ContentType   string        `json:"contentType"`
	StrokeGroups  []StrokeGroup `json:"strokeGroups"`
	Width         int           `json:"width"`
	Height        int           `json:"height"`
}

// Configuration selects the export format.
type Configuration struct {
	Export Export `json:"export"`
}

// Export configures the JIIX export.
type Export struct {
	JIIX JIIXOptions `json:"jiix"`
}

// JIIXOptions toggles optional parts of the JIIX document.
type JIIXOptions struct {
	BoundingBox bool `json:"bounding-box"`
	Strokes     bool `json:"strokes"`
	Style       bool `json:"style"`
}

// StrokeGroup is a set of strokes recognised together.
type StrokeGroup struct {
	Strokes []Stroke `json:"strokes"`
}

// Stroke is one stroke as parallel coordinate arrays.
type Stroke struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
	T []float64 `json:"t"`
	P []float64 `json:"p"`
}

// NewRequest builds a math recognition request for strokes drawn on a
// width x height canvas. Empty strokes are skipped.
func NewRequest(strokes []*geom.Stroke, width, height int) *Request {
	group := StrokeGroup{Strokes: make([]Stroke, 0, len(strokes))}
	for _, s := range strokes {
		if len(s.Points) == 0 {
			continue
		}
		out := Stroke{
			X: make([]float64, len(s.Points)),
			Y: make([]float64, len(s.Points)),
			T: make([]float64, len(s.Points)),
			P: make([]float64, len(s.Points)),
		}
		for i, v := range s.Points {
			out.X[i], out.Y[i], out.T[i], out.P[i] = v.X, v.Y, v.T, v.P
		}
		group.Strokes = append(group.Strokes, out)
	}
	return &Request{
		Configuration: Configuration{Export: Export{JIIX: JIIXOptions{BoundingBox: true, Strokes: true}}},
		ContentType:   "Math",
		StrokeGroups:  []StrokeGroup{group},
		Width:         width,
		Height:        height,
	}
}
