package store

import (
	"context"
	"fmt"
	"time"

	"github.com/chxlky/boardsync/internal/models"
)

func (s *Store) EventByCard(ctx context.Context, cardID string) (models.CalendarEvent, error) {
	var e models.CalendarEvent
	if err := s.db.WithContext(ctx).Where("card_id = ?", cardID).First(&e).Error; err != nil {
		return models.CalendarEvent{}, notFound(err)
	}
	return e, nil
}

// SaveEvent inserts a new event or overwrites an existing one.
func (s *Store) SaveEvent(ctx context.Context, e *models.CalendarEvent) error {
	if err := s.db.WithContext(ctx).Omit("Card").Save(e).Error; err != nil {
		return fmt.Errorf("save event: %w", err)
	}
	return nil
}

// SyncOutcome is what one propagation attempt leaves on an event row.
type SyncOutcome struct {
	Status    models.SyncStatus
	RemoteID  string
	SyncedAt  *time.Time
	LastError string
}

func (s *Store) RecordSync(ctx context.Context, eventID string, o SyncOutcome) error {
	fields := map[string]any{
		"status":     o.Status,
		"last_error": o.LastError,
	}
	if o.RemoteID != "" {
		fields["remote_id"] = o.RemoteID
	}
	if o.SyncedAt != nil {
		fields["last_synced_at"] = *o.SyncedAt
	}
	res := s.db.WithContext(ctx).Model(&models.CalendarEvent{}).Where("id = ?", eventID).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("record sync: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteEventByCard(ctx context.Context, cardID string) error {
	if err := s.db.WithContext(ctx).Where("card_id = ?", cardID).Delete(&models.CalendarEvent{}).Error; err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// EventFilter narrows an event listing. Zero values do not filter.
type EventFilter struct {
	OwnerID      string
	From, To     time.Time // start_utc in [From, To)
	ProjectID    string
	CardStatus   models.Status
	SyncStatuses []models.SyncStatus
	// Connected keeps only events whose owner has a calendar integration.
	Connected bool
	Limit     int
}

// Events lists events joined to their card (and the card's project), ordered
// by start.
func (s *Store) Events(ctx context.Context, f EventFilter) ([]models.CalendarEvent, error) {
	q := s.db.WithContext(ctx).Model(&models.CalendarEvent{}).
		Joins("JOIN cards ON cards.id = calendar_events.card_id").
		Joins("JOIN projects ON projects.id = cards.project_id")
	if f.OwnerID != "" {
		q = q.Where("projects.user_id = ?", f.OwnerID)
	}
	if !f.From.IsZero() {
		q = q.Where("calendar_events.start_utc >= ?", f.From.UTC())
	}
	if !f.To.IsZero() {
		q = q.Where("calendar_events.start_utc < ?", f.To.UTC())
	}
	if f.ProjectID != "" {
		q = q.Where("cards.project_id = ?", f.ProjectID)
	}
	if f.CardStatus != "" {
		q = q.Where("cards.status = ?", f.CardStatus)
	}
	if len(f.SyncStatuses) > 0 {
		q = q.Where("calendar_events.status IN ?", f.SyncStatuses)
	}
	if f.Connected {
		q = q.Joins("JOIN calendar_integrations ON calendar_integrations.user_id = projects.user_id")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var out []models.CalendarEvent
	if err := q.Preload("Card.Project").Order("calendar_events.start_utc, calendar_events.id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return out, nil
}

// CountOverdue counts the owner's events whose end lies before now.
func (s *Store) CountOverdue(ctx context.Context, ownerID string, now time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.CalendarEvent{}).
		Joins("JOIN cards ON cards.id = calendar_events.card_id").
		Joins("JOIN projects ON projects.id = cards.project_id").
		Where("projects.user_id = ? AND calendar_events.end_utc < ?", ownerID, now.UTC()).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count overdue: %w", err)
	}
	return n, nil
}
