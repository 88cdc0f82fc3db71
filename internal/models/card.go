package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Status string

const (
	StatusTodo     Status = "TODO"
	StatusDoing    Status = "DOING"
	StatusDone     Status = "DONE"
	StatusArchived Status = "ARCHIVED"
)

// Statuses lists the columns in display order.
var Statuses = []Status{StatusTodo, StatusDoing, StatusDone, StatusArchived}

func (s Status) Valid() bool {
	return s.Rank() >= 0
}

// Rank is the column's index in display order, or -1 for an unknown status.
func (s Status) Rank() int {
	for i, st := range Statuses {
		if st == s {
			return i
		}
	}
	return -1
}

// StatusOrder is an ORDER BY fragment matching Statuses.
const StatusOrder = "CASE status WHEN 'TODO' THEN 0 WHEN 'DOING' THEN 1 WHEN 'DONE' THEN 2 ELSE 3 END"

type Card struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	ProjectID string    `gorm:"size:36;not null;uniqueIndex:idx_card_slot,priority:1" json:"projectId"`
	Title     string    `gorm:"size:300;not null" json:"title"`
	Status    Status    `gorm:"size:16;not null;uniqueIndex:idx_card_slot,priority:2" json:"status"`
	Position  int       `gorm:"not null;uniqueIndex:idx_card_slot,priority:3" json:"position"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"` // optimistic concurrency version
	Project   *Project  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (c *Card) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
