package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/chxlky/boardsync/internal/models"
)

func (s *Store) IntegrationByUser(ctx context.Context, userID string) (models.CalendarIntegration, error) {
	var i models.CalendarIntegration
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&i).Error; err != nil {
		return models.CalendarIntegration{}, notFound(err)
	}
	return i, nil
}

// UpsertIntegration creates the user's integration or replaces its settings.
// The returned flag reports whether a new row was created.
func (s *Store) UpsertIntegration(ctx context.Context, in models.CalendarIntegration) (models.CalendarIntegration, bool, error) {
	existing, err := s.IntegrationByUser(ctx, in.UserID)
	switch {
	case errors.Is(err, ErrNotFound):
		if err := s.db.WithContext(ctx).Create(&in).Error; err != nil {
			return models.CalendarIntegration{}, false, fmt.Errorf("create integration: %w", err)
		}
		return in, true, nil
	case err != nil:
		return models.CalendarIntegration{}, false, err
	}

	existing.Provider = in.Provider
	existing.AccountEmail = in.AccountEmail
	existing.DefaultCalendarID = in.DefaultCalendarID
	existing.Timezone = in.Timezone
	existing.Status = models.SyncSynced
	if err := s.db.WithContext(ctx).Omit("User").Save(&existing).Error; err != nil {
		return models.CalendarIntegration{}, false, fmt.Errorf("update integration: %w", err)
	}
	return existing, false, nil
}

func (s *Store) SetIntegrationStatus(ctx context.Context, userID string, status models.SyncStatus) (models.CalendarIntegration, error) {
	res := s.db.WithContext(ctx).Model(&models.CalendarIntegration{}).Where("user_id = ?", userID).Update("status", status)
	if res.Error != nil {
		return models.CalendarIntegration{}, fmt.Errorf("set integration status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.CalendarIntegration{}, ErrNotFound
	}
	return s.IntegrationByUser(ctx, userID)
}

func (s *Store) DeleteIntegration(ctx context.Context, userID string) error {
	res := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CalendarIntegration{})
	if res.Error != nil {
		return fmt.Errorf("delete integration: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
