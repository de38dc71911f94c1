// Package session owns the single stored interpretation of the canvas: the
// current expression tree, the strokes still waiting for recognition and the
// numbered recognition rounds that replace the tree.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/starford/inkmath/internal/apperr"
	"github.com/starford/inkmath/internal/block"
	"github.com/starford/inkmath/internal/geom"
	"github.com/starford/inkmath/internal/jiix"
	"github.com/starford/inkmath/internal/models"
	"github.com/starford/inkmath/internal/recognition"
)

// Event kinds passed to the Publisher.
const (
	EventRecognized = "tree.recognized"
	EventErased     = "tree.erased"
	EventLoaded     = "tree.loaded"
)

// Journal persists accepted rounds and local edits.
type Journal interface {
	AppendRound(ctx context.Context, session string, seq uint64, data []byte) error
	AppendEdit(ctx context.Context, session, kind, detail string) error
}

// Publisher is notified after every tree change.
type Publisher func(kind string, tree *models.Tree)

type pendingStroke struct {
	id     uint64
	stroke *geom.Stroke
}

// round is an issued recognition request.
type round struct {
	seq        uint64
	generation uint64
	pending    []uint64
}

// Session serialises every mutation of the tree behind one mutex. Network
// calls to the recogniser happen outside the lock.
type Session struct {
	rec recognition.Recognizer

	name                string
	journal             Journal
	publish             Publisher
	logger              *slog.Logger
	now                 func() time.Time
	width, height       int
	recognizeAfterErase bool
	scribbleErase       bool
	scribbleHold        float64

	mu         sync.Mutex
	root       block.Block
	pending    []pendingStroke
	nextStroke uint64
	latest     round
	generation uint64
	updatedAt  time.Time
}

// New creates a session with an empty tree.
func New(rec recognition.Recognizer, opts ...Option) *Session {
	s := &Session{
		rec:                 rec,
		name:                "default",
		logger:              slog.Default(),
		now:                 time.Now,
		width:               1280,
		height:              720,
		recognizeAfterErase: true,
		root:                block.NewDocument(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.updatedAt = s.now()
	return s
}

// Name returns the session name.
func (s *Session) Name() string { return s.name }

// AddStroke records a new stroke and runs a recognition round over the whole
// canvas. A stroke recognised as a scribble erases instead.
func (s *Session) AddStroke(ctx context.Context, points []geom.StrokePoint) (*models.Tree, error) {
	if len(points) == 0 {
		return nil, apperr.ErrEmptyStroke
	}
	if s.scribbleErase && IsScribble(points, s.scribbleHold) {
		s.logger.Debug("session: scribble treated as eraser", slog.Int("points", len(points)))
		return s.Erase(ctx, eraserPath(points))
	}

	s.mu.Lock()
	s.nextStroke++
	s.pending = append(s.pending, pendingStroke{id: s.nextStroke, stroke: geom.NewStroke(slices.Clone(points)...)})
	pendingStrokes.Set(float64(len(s.pending)))
	r, strokes := s.issueLocked()
	s.mu.Unlock()

	return s.recognize(ctx, r, strokes)
}

// issueLocked starts a new round carrying every pending stroke and every
// stroke of the live tree.
func (s *Session) issueLocked() (round, []*geom.Stroke) {
	r := round{seq: s.latest.seq + 1, generation: s.generation}
	var strokes []*geom.Stroke
	for _, p := range s.pending {
		r.pending = append(r.pending, p.id)
		strokes = append(strokes, p.stroke.Clone())
	}
	for b := range block.DFS(s.root) {
		for _, st := range b.Common().Strokes {
			strokes = append(strokes, st.Clone())
		}
	}
	s.latest = r
	return r, strokes
}

func (s *Session) recognize(ctx context.Context, r round, strokes []*geom.Stroke) (*models.Tree, error) {
	data, err := s.rec.Recognize(ctx, strokes, s.width, s.height)
	if err != nil {
		roundsTotal.WithLabelValues("error").Inc()
		s.logger.Error("session: recognition failed",
			slog.Uint64("seq", r.seq),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("session: recognize: %w", err)
	}
	return s.apply(ctx, r, data)
}

// Apply installs a recognition response for round seq. The response is
// discarded with apperr.ErrStaleResponse unless seq is the newest issued round
// and the tree has not been edited since it was issued.
func (s *Session) Apply(ctx context.Context, seq uint64, data []byte) (*models.Tree, error) {
	s.mu.Lock()
	r := s.latest
	s.mu.Unlock()
	if r.seq != seq {
		roundsTotal.WithLabelValues("stale").Inc()
		return nil, apperr.ErrStaleResponse
	}
	return s.apply(ctx, r, data)
}

func (s *Session) apply(ctx context.Context, r round, data []byte) (*models.Tree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.seq != s.latest.seq || r.generation != s.generation {
		roundsTotal.WithLabelValues("stale").Inc()
		s.logger.Info("session: stale response discarded",
			slog.Uint64("seq", r.seq),
			slog.Uint64("latest", s.latest.seq))
		return nil, apperr.ErrStaleResponse
	}

	root, err := block.ParseDocument(data)
	if err != nil {
		roundsTotal.WithLabelValues("parse_error").Inc()
		s.logParseError(err)
		return nil, fmt.Errorf("session: apply round %d: %w", r.seq, err)
	}

	s.root = root
	s.pending = slices.DeleteFunc(s.pending, func(p pendingStroke) bool {
		return slices.Contains(r.pending, p.id)
	})
	pendingStrokes.Set(float64(len(s.pending)))
	s.updatedAt = s.now()
	roundsTotal.WithLabelValues("applied").Inc()

	s.recordRound(ctx, r.seq, data)
	return s.changedLocked(EventRecognized), nil
}

// Erase deletes every block whose strokes the eraser polyline crosses.
func (s *Session) Erase(ctx context.Context, eraser []geom.Point) (*models.Tree, error) {
	s.mu.Lock()
	hits := block.HitTest(s.root, eraser)
	if len(hits) == 0 {
		defer s.mu.Unlock()
		return s.snapshotLocked(), nil
	}
	return s.deleteAndUnlock(ctx, hits, true)
}

// EraseIDs deletes the blocks with the given ids. An unknown id fails the
// whole call with apperr.ErrNotFound.
func (s *Session) EraseIDs(ctx context.Context, ids []string) (*models.Tree, error) {
	s.mu.Lock()
	targets, err := s.findLocked(ids)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	return s.deleteAndUnlock(ctx, targets, true)
}

func (s *Session) findLocked(ids []string) ([]block.Block, error) {
	targets := make([]block.Block, 0, len(ids))
	for _, id := range ids {
		b := block.Find(s.root, id)
		if b == nil {
			return nil, fmt.Errorf("session: block %q: %w", id, apperr.ErrNotFound)
		}
		targets = append(targets, b)
	}
	return targets, nil
}

// deleteAndUnlock runs the deletion with s.mu held, releases it and then
// optionally re-recognises the remaining ink.
func (s *Session) deleteAndUnlock(ctx context.Context, targets []block.Block, record bool) (*models.Tree, error) {
	ids := make([]string, len(targets))
	for i, t := range targets {
		ids[i] = t.Common().ID
	}

	s.root = block.Delete(s.root, targets)
	if _, ok := s.root.(*block.Deleted); ok {
		s.root = block.NewDocument()
	}
	s.generation++
	s.updatedAt = s.now()
	editsTotal.WithLabelValues("erase").Inc()
	s.logger.Debug("session: blocks erased", slog.Any("ids", ids))

	if record {
		detail, _ := json.Marshal(ids)
		s.recordEdit(ctx, "erase", string(detail))
	}
	tree := s.changedLocked(EventErased)

	if !record || !s.recognizeAfterErase || !s.hasInkLocked() {
		s.mu.Unlock()
		return tree, nil
	}
	r, strokes := s.issueLocked()
	s.mu.Unlock()
	return s.recognize(ctx, r, strokes)
}

func (s *Session) hasInkLocked() bool {
	if len(s.pending) > 0 {
		return true
	}
	for b := range block.DFS(s.root) {
		if len(b.Common().Strokes) > 0 {
			return true
		}
	}
	return false
}

// Load replaces the tree with a JIIX document from outside a recognition
// round, such as a dropped file. In-flight rounds become stale.
func (s *Session) Load(ctx context.Context, data []byte, source string) (*models.Tree, error) {
	root, err := block.ParseDocument(data)
	if err != nil {
		s.logParseError(err)
		return nil, fmt.Errorf("session: load %s: %w", source, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = root
	s.generation++
	s.updatedAt = s.now()
	editsTotal.WithLabelValues("load").Inc()
	s.logger.Info("session: document loaded", slog.String("source", source))

	s.recordRound(ctx, s.latest.seq, data)
	return s.changedLocked(EventLoaded), nil
}

// Snapshot returns a view of the current tree.
func (s *Session) Snapshot() *models.Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Blocks lists the current tree in pre-order.
func (s *Session) Blocks() []models.BlockSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.Flatten(s.root)
}

// Verify checks the structural invariants of the current tree.
func (s *Session) Verify() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return block.Verify(s.root)
}

func (s *Session) snapshotLocked() *models.Tree {
	root := models.NewNode(s.root)
	return &models.Tree{
		Session:    s.name,
		Seq:        s.latest.seq,
		Generation: s.generation,
		Root:       &root,
		Pending:    len(s.pending),
		UpdatedAt:  s.updatedAt,
	}
}

func (s *Session) changedLocked(kind string) *models.Tree {
	tree := s.snapshotLocked()
	if s.publish != nil {
		s.publish(kind, tree)
	}
	return tree
}

func (s *Session) logParseError(err error) {
	var pe *jiix.ParseError
	if errors.As(err, &pe) {
		s.logger.Error("session: recognition result rejected",
			slog.String("error", pe.Message),
			slog.String("json", pe.Fragment()))
		return
	}
	s.logger.Error("session: recognition result rejected", slog.String("error", err.Error()))
}

func (s *Session) recordRound(ctx context.Context, seq uint64, data []byte) {
	if s.journal == nil {
		return
	}
	if err := s.journal.AppendRound(ctx, s.name, seq, data); err != nil && !errors.Is(err, apperr.ErrAlreadyExists) {
		s.logger.Warn("session: journal round failed", slog.String("error", err.Error()))
	}
}

func (s *Session) recordEdit(ctx context.Context, kind, detail string) {
	if s.journal == nil {
		return
	}
	if err := s.journal.AppendEdit(ctx, s.name, kind, detail); err != nil {
		s.logger.Warn("session: journal edit failed", slog.String("error", err.Error()))
	}
}
