package store

import (
	"context"
	"fmt"

	"github.com/chxlky/boardsync/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *Store) CreateProject(ctx context.Context, ownerID, name string) (models.Project, error) {
	p := models.Project{UserID: ownerID, Name: name}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return models.Project{}, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

func (s *Store) ListProjects(ctx context.Context, ownerID string) ([]models.Project, error) {
	var out []models.Project
	if err := s.db.WithContext(ctx).Where("user_id = ?", ownerID).Order("created_at, id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return out, nil
}

func (s *Store) GetProject(ctx context.Context, id string) (models.Project, error) {
	var p models.Project
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return models.Project{}, notFound(err)
	}
	return p, nil
}

// LockProject reads the project with SELECT ... FOR UPDATE so that writers
// touching its cards queue behind each other until the surrounding
// transaction ends. sqlite has no row locks; there the single connection
// already serialises transactions.
func (s *Store) LockProject(ctx context.Context, id string) (models.Project, error) {
	var p models.Project
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&p).Error
	if err != nil {
		return models.Project{}, notFound(err)
	}
	return p, nil
}

// OwnedProject returns ErrNotFound both for missing projects and for projects
// owned by someone else.
func (s *Store) OwnedProject(ctx context.Context, ownerID, id string) (models.Project, error) {
	var p models.Project
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).First(&p).Error; err != nil {
		return models.Project{}, notFound(err)
	}
	return p, nil
}

// DeleteProject removes the project's calendar events and cards before the
// project itself.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cardIDs := tx.Model(&models.Card{}).Select("id").Where("project_id = ?", id)
		if err := tx.Where("card_id IN (?)", cardIDs).Delete(&models.CalendarEvent{}).Error; err != nil {
			return fmt.Errorf("delete project events: %w", err)
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.Card{}).Error; err != nil {
			return fmt.Errorf("delete project cards: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&models.Project{})
		if res.Error != nil {
			return fmt.Errorf("delete project: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
