// Package board manages the lifecycle of projects and cards. Every write that
// adds, removes or relocates a card goes through reorder.Plan so each column
// stays numbered 1..n.
package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chxlky/boardsync/internal/models"
	"github.com/chxlky/boardsync/internal/reorder"
	"github.com/chxlky/boardsync/internal/store"
	"go.uber.org/zap"
)

var (
	ErrNotFound     = store.ErrNotFound
	ErrInvalidInput = errors.New("invalid input")
)

// DueDates removes the calendar side of cards and projects that go away.
type DueDates interface {
	ClearDueDate(ctx context.Context, ownerID, cardID string) error
	ClearProject(ctx context.Context, ownerID, projectID string) error
}

type Service struct {
	store    *store.Store
	dueDates DueDates
}

// NewService builds the board service. dueDates may be nil.
func NewService(s *store.Store, dueDates DueDates) *Service {
	return &Service{store: s, dueDates: dueDates}
}

func (s *Service) CreateProject(ctx context.Context, ownerID, name string) (models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Project{}, fmt.Errorf("%w: project name is required", ErrInvalidInput)
	}
	p, err := s.store.CreateProject(ctx, ownerID, name)
	if err != nil {
		return models.Project{}, err
	}
	zap.L().Info("Created project", zap.String("projectID", p.ID), zap.String("ownerID", ownerID))
	return p, nil
}

func (s *Service) ListProjects(ctx context.Context, ownerID string) ([]models.Project, error) {
	return s.store.ListProjects(ctx, ownerID)
}

// DeleteProject removes the project with all its cards and due dates.
func (s *Service) DeleteProject(ctx context.Context, ownerID, projectID string) error {
	if _, err := s.store.OwnedProject(ctx, ownerID, projectID); err != nil {
		return err
	}
	if s.dueDates != nil {
		if err := s.dueDates.ClearProject(ctx, ownerID, projectID); err != nil {
			zap.L().Warn("Error clearing project due dates", zap.String("projectID", projectID), zap.Error(err))
		}
	}
	if err := s.store.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	zap.L().Info("Deleted project", zap.String("projectID", projectID))
	return nil
}

// ListCards returns the project's cards in display order.
func (s *Service) ListCards(ctx context.Context, ownerID, projectID string) ([]models.Card, error) {
	if _, err := s.store.OwnedProject(ctx, ownerID, projectID); err != nil {
		return nil, err
	}
	return s.store.CardsByProject(ctx, projectID)
}

type NewCard struct {
	ProjectID string
	Title     string
	// Status defaults to TODO.
	Status models.Status
	// Position defaults to the end of the column and is clamped to it.
	Position *int
}

func (s *Service) CreateCard(ctx context.Context, ownerID string, in NewCard) (models.Card, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return models.Card{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if in.Status == "" {
		in.Status = models.StatusTodo
	}
	if !in.Status.Valid() {
		return models.Card{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, in.Status)
	}
	if in.Position != nil && *in.Position < 1 {
		return models.Card{}, fmt.Errorf("%w: position must be positive", ErrInvalidInput)
	}

	var card models.Card
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		if err := lockOwned(ctx, tx, ownerID, in.ProjectID); err != nil {
			return err
		}
		n, err := tx.ColumnLength(ctx, in.ProjectID, in.Status)
		if err != nil {
			return err
		}
		card = models.Card{ProjectID: in.ProjectID, Title: in.Title, Status: in.Status, Position: n + 1}
		if err := tx.CreateCard(ctx, &card); err != nil {
			return err
		}
		if in.Position == nil || *in.Position > n {
			return nil
		}
		return relocate(ctx, tx, in.ProjectID, reorder.Move{CardID: card.ID, Status: in.Status, Position: *in.Position})
	})
	if err != nil {
		return models.Card{}, err
	}
	zap.L().Info("Created card", zap.String("cardID", card.ID), zap.String("projectID", card.ProjectID))
	return s.store.GetCard(ctx, card.ID)
}

// CardUpdate changes a card. Nil fields are left alone. A Status without a
// Position appends the card to the target column.
type CardUpdate struct {
	Title           *string
	Status          *models.Status
	Position        *int
	ExpectedVersion *time.Time
}

func (s *Service) UpdateCard(ctx context.Context, ownerID, cardID string, in CardUpdate) (models.Card, error) {
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return models.Card{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
		}
		in.Title = &title
	}
	if in.Status != nil && !in.Status.Valid() {
		return models.Card{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *in.Status)
	}
	if in.Position != nil && *in.Position < 1 {
		return models.Card{}, fmt.Errorf("%w: position must be positive", ErrInvalidInput)
	}

	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		card, err := tx.OwnedCard(ctx, ownerID, cardID)
		if err != nil {
			return err
		}
		if err := lockOwned(ctx, tx, ownerID, card.ProjectID); err != nil {
			return err
		}
		if card, err = tx.GetCard(ctx, cardID); err != nil {
			return err
		}
		if in.ExpectedVersion != nil && !in.ExpectedVersion.Equal(card.UpdatedAt) {
			return reorder.ErrVersionConflict
		}

		if in.Title != nil && *in.Title != card.Title {
			if err := tx.UpdateCardTitle(ctx, card.ID, *in.Title); err != nil {
				return err
			}
		}
		if in.Status == nil && in.Position == nil {
			return nil
		}

		move := reorder.Move{CardID: card.ID, Status: card.Status, Position: card.Position}
		if in.Status != nil && *in.Status != card.Status {
			move.Status = *in.Status
			n, err := tx.ColumnLength(ctx, card.ProjectID, move.Status)
			if err != nil {
				return err
			}
			move.Position = n + 1
		}
		if in.Position != nil {
			move.Position = *in.Position
		}
		return relocate(ctx, tx, card.ProjectID, move)
	})
	if err != nil {
		return models.Card{}, err
	}
	return s.store.GetCard(ctx, cardID)
}

// ArchiveCard moves the card to the end of the ARCHIVED column.
func (s *Service) ArchiveCard(ctx context.Context, ownerID, cardID string) (models.Card, error) {
	archived := models.StatusArchived
	return s.UpdateCard(ctx, ownerID, cardID, CardUpdate{Status: &archived})
}

// DeleteCard removes the card and its due date, then closes the gap it left.
func (s *Service) DeleteCard(ctx context.Context, ownerID, cardID string) error {
	card, err := s.store.OwnedCard(ctx, ownerID, cardID)
	if err != nil {
		return err
	}
	if s.dueDates != nil {
		if err := s.dueDates.ClearDueDate(ctx, ownerID, cardID); err != nil {
			zap.L().Warn("Error clearing card due date", zap.String("cardID", cardID), zap.Error(err))
		}
	}

	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		if err := lockOwned(ctx, tx, ownerID, card.ProjectID); err != nil {
			return err
		}
		if err := tx.DeleteEventByCard(ctx, card.ID); err != nil {
			return err
		}
		if err := tx.DeleteCard(ctx, card.ID); err != nil {
			return err
		}
		return relocate(ctx, tx, card.ProjectID)
	})
	if err != nil {
		return err
	}
	zap.L().Info("Deleted card", zap.String("cardID", cardID), zap.String("projectID", card.ProjectID))
	return nil
}

// lockOwned takes the project's row lock, reporting foreign projects as missing.
func lockOwned(ctx context.Context, tx *store.Store, ownerID, projectID string) error {
	p, err := tx.LockProject(ctx, projectID)
	if err != nil {
		return err
	}
	if p.UserID != ownerID {
		return ErrNotFound
	}
	return nil
}

// relocate applies moves (or just compacts, with none) within tx.
func relocate(ctx context.Context, tx *store.Store, projectID string, moves ...reorder.Move) error {
	all, err := tx.CardsByProject(ctx, projectID)
	if err != nil {
		return err
	}
	if err := tx.ApplyPlacements(ctx, reorder.Plan(all, moves)); err != nil {
		return fmt.Errorf("%w: %w", reorder.ErrReorderFailed, err)
	}
	return nil
}
