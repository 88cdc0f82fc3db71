// Package reorder moves cards between and within columns while keeping every
// (project, status) group densely numbered 1..n.
package reorder

import (
	"context"
	"fmt"

	"github.com/chxlky/boardsync/internal/models"
	"github.com/chxlky/boardsync/internal/store"
	"go.uber.org/zap"
)

type Engine struct {
	store *store.Store
}

func NewEngine(s *store.Store) *Engine {
	return &Engine{store: s}
}

// Reorder validates and applies a batch of moves, returning the project's
// cards in display order. projectID may be empty, in which case the project
// is taken from the first move's card.
//
// Validation happens before any write. A failed batch leaves nothing behind.
// Batches on the same project are serialised by a lock on the project row,
// and the version check, plan and writes all see the same snapshot.
func (e *Engine) Reorder(ctx context.Context, ownerID, projectID string, moves []Move) ([]models.Card, error) {
	if err := validate(moves); err != nil {
		return nil, err
	}

	ids := make([]string, len(moves))
	for i, m := range moves {
		ids[i] = m.CardID
	}

	var writes int
	err := e.store.Transaction(ctx, func(tx *store.Store) error {
		cards, err := tx.CardsByIDs(ctx, ids)
		if err != nil {
			return err
		}
		if len(cards) != len(ids) {
			return ErrNotFound
		}
		if projectID == "" {
			for _, c := range cards {
				if c.ID == moves[0].CardID {
					projectID = c.ProjectID
				}
			}
		}
		for _, c := range cards {
			if c.ProjectID != projectID {
				return ErrCrossProjectMove
			}
		}

		project, err := tx.LockProject(ctx, projectID)
		if err != nil {
			return err
		}
		if project.UserID != ownerID {
			return ErrForbidden
		}

		// Re-read under the lock; versions and slots may have moved since.
		all, err := tx.CardsByProject(ctx, projectID)
		if err != nil {
			return err
		}
		current := make(map[string]models.Card, len(all))
		for _, c := range all {
			current[c.ID] = c
		}
		for _, m := range moves {
			c, ok := current[m.CardID]
			if !ok {
				return ErrNotFound
			}
			if m.ExpectedVersion != nil && !m.ExpectedVersion.Equal(c.UpdatedAt) {
				return ErrVersionConflict
			}
		}

		placements := Plan(all, moves)
		if err := tx.ApplyPlacements(ctx, placements); err != nil {
			zap.L().Warn("Reorder apply failed", zap.String("projectID", projectID), zap.Error(err))
			return fmt.Errorf("%w: %w", ErrReorderFailed, err)
		}
		writes = len(placements)
		return nil
	})
	if err != nil {
		return nil, err
	}
	zap.L().Debug("Reordered project",
		zap.String("projectID", projectID),
		zap.Int("moves", len(moves)),
		zap.Int("writes", writes))

	return e.store.CardsByProject(ctx, projectID)
}

func validate(moves []Move) error {
	if len(moves) == 0 {
		return fmt.Errorf("%w: no moves", ErrInvalidMove)
	}
	seen := make(map[string]bool, len(moves))
	for _, m := range moves {
		switch {
		case m.CardID == "":
			return fmt.Errorf("%w: missing card id", ErrInvalidMove)
		case seen[m.CardID]:
			return fmt.Errorf("%w: card %s moved twice", ErrInvalidMove, m.CardID)
		case !m.Status.Valid():
			return fmt.Errorf("%w: unknown status %q", ErrInvalidMove, m.Status)
		case m.Position < 1:
			return fmt.Errorf("%w: position must be positive", ErrInvalidMove)
		}
		seen[m.CardID] = true
	}
	return nil
}
