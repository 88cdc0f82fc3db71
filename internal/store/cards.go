package store

import (
	"context"
	"fmt"

	"github.com/chxlky/boardsync/internal/models"
	"gorm.io/gorm"
)

// Placement is a card's target slot.
type Placement struct {
	CardID   string
	Status   models.Status
	Position int
}

// CardsByProject returns every card of the project in display order.
func (s *Store) CardsByProject(ctx context.Context, projectID string) ([]models.Card, error) {
	var out []models.Card
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order(models.StatusOrder).
		Order("position").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("cards by project: %w", err)
	}
	return out, nil
}

func (s *Store) CardsByIDs(ctx context.Context, ids []string) ([]models.Card, error) {
	var out []models.Card
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("cards by ids: %w", err)
	}
	return out, nil
}

func (s *Store) GetCard(ctx context.Context, id string) (models.Card, error) {
	var c models.Card
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return models.Card{}, notFound(err)
	}
	return c, nil
}

// OwnedCard loads a card together with its project, hiding cards of other
// owners behind ErrNotFound.
func (s *Store) OwnedCard(ctx context.Context, ownerID, id string) (models.Card, error) {
	var c models.Card
	err := s.db.WithContext(ctx).
		Joins("JOIN projects ON projects.id = cards.project_id").
		Where("cards.id = ? AND projects.user_id = ?", id, ownerID).
		Preload("Project").
		First(&c).Error
	if err != nil {
		return models.Card{}, notFound(err)
	}
	return c, nil
}

// ColumnLength counts the cards in one (project, status) group.
func (s *Store) ColumnLength(ctx context.Context, projectID string, status models.Status) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Card{}).
		Where("project_id = ? AND status = ?", projectID, status).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("column length: %w", err)
	}
	return int(n), nil
}

func (s *Store) CreateCard(ctx context.Context, c *models.Card) error {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create card: %w", ErrSlotTaken)
		}
		return fmt.Errorf("create card: %w", err)
	}
	return nil
}

func (s *Store) UpdateCardTitle(ctx context.Context, id, title string) error {
	res := s.db.WithContext(ctx).Model(&models.Card{}).Where("id = ?", id).Update("title", title)
	if res.Error != nil {
		return fmt.Errorf("update card title: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteCard(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Card{})
	if res.Error != nil {
		return fmt.Errorf("delete card: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyPlacements writes the given slots in one transaction. Every card is
// first parked at a negative position unique within its target status, then
// moved to its final slot, so no intermediate state collides with the unique
// index. Nested calls run in a savepoint of the caller's transaction.
func (s *Store) ApplyPlacements(ctx context.Context, placements []Placement) error {
	if len(placements) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		parked := make(map[models.Status]int)
		for _, p := range placements {
			parked[p.Status]++
			if err := setSlot(tx, p.CardID, p.Status, -parked[p.Status]); err != nil {
				return fmt.Errorf("park card %s: %w", p.CardID, err)
			}
		}
		for _, p := range placements {
			if err := setSlot(tx, p.CardID, p.Status, p.Position); err != nil {
				return fmt.Errorf("place card %s: %w", p.CardID, err)
			}
		}
		return nil
	})
}

func setSlot(tx *gorm.DB, id string, status models.Status, position int) error {
	res := tx.Model(&models.Card{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "position": position})
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return fmt.Errorf("%w: %v", ErrSlotTaken, res.Error)
		}
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrNotFound
	}
	return nil
}
