package store

import (
	"context"
	"fmt"

	"github.com/chxlky/boardsync/internal/models"
)

// CountByStatus totals the owner's cards per column. Every column is present.
func (s *Store) CountByStatus(ctx context.Context, ownerID string) (map[models.Status]int64, error) {
	var rows []struct {
		Status models.Status
		N      int64
	}
	err := s.db.WithContext(ctx).Model(&models.Card{}).
		Select("cards.status AS status, COUNT(*) AS n").
		Joins("JOIN projects ON projects.id = cards.project_id").
		Where("projects.user_id = ?", ownerID).
		Group("cards.status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}

	out := make(map[models.Status]int64, len(models.Statuses))
	for _, st := range models.Statuses {
		out[st] = 0
	}
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}
