package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/inkmath/internal/apperr"
	"github.com/starford/inkmath/internal/block"
	"github.com/starford/inkmath/internal/journal"
)

// History reads back what a Journal recorded.
type History interface {
	LatestRound(ctx context.Context, session string) (*journal.Round, error)
	ListEdits(ctx context.Context, session string, round int64) ([]journal.Edit, error)
}

// Restore rebuilds the tree from the latest journaled round and replays the
// erases recorded after it. Nothing is written back to the journal.
func (s *Session) Restore(ctx context.Context, h History) error {
	r, err := h.LatestRound(ctx, s.name)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("session: restore: %w", err)
	}
	root, err := block.ParseDocument(r.JIIX)
	if err != nil {
		s.logParseError(err)
		return fmt.Errorf("session: restore round %d: %w", r.ID, err)
	}
	edits, err := h.ListEdits(ctx, s.name, r.ID)
	if err != nil {
		return fmt.Errorf("session: restore: %w", err)
	}

	s.mu.Lock()
	s.root = root
	s.generation++
	s.updatedAt = r.CreatedAt
	s.mu.Unlock()

	for _, e := range edits {
		if e.Kind != "erase" {
			continue
		}
		var ids []string
		if err := json.Unmarshal([]byte(e.Detail), &ids); err != nil {
			s.logger.Warn("session: skip malformed edit", slog.Int64("edit", e.ID), slog.String("error", err.Error()))
			continue
		}
		s.mu.Lock()
		var targets []block.Block
		for _, id := range ids {
			if b := block.Find(s.root, id); b != nil {
				targets = append(targets, b)
			}
		}
		if len(targets) == 0 {
			s.mu.Unlock()
			continue
		}
		if _, err := s.deleteAndUnlock(ctx, targets, false); err != nil {
			return err
		}
	}
	s.logger.Info("session: restored from journal",
		slog.Int64("round", r.ID),
		slog.Int("edits", len(edits)))
	return nil
}
