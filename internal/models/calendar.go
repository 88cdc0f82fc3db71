package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SyncStatus string

const (
	SyncSynced  SyncStatus = "Synced"
	SyncPending SyncStatus = "Pending"
	SyncError   SyncStatus = "Error"
)

type Provider string

const (
	ProviderGoogle  Provider = "GOOGLE"
	ProviderOutlook Provider = "OUTLOOK"
)

// CalendarEvent is the due-date of a card. Start and End are absolute instants
// stored in UTC.
type CalendarEvent struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	CardID         string     `gorm:"size:36;not null;uniqueIndex" json:"cardId"`
	StartUTC       time.Time  `gorm:"not null;index" json:"startUtc"`
	EndUTC         time.Time  `gorm:"not null;index" json:"endUtc"`
	AllDay         bool       `gorm:"not null;default:false" json:"allDay"`
	Status         SyncStatus `gorm:"size:16;not null;index" json:"status"`
	RemoteID       string     `json:"remoteId,omitempty"`
	IdempotencyKey string     `gorm:"size:64" json:"idempotencyKey"`
	LastSyncedAt   *time.Time `json:"lastSyncedAt,omitempty"`
	LastError      string     `json:"lastError,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	Card           *Card      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (e *CalendarEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

type CalendarIntegration struct {
	ID                string     `gorm:"primaryKey;size:36" json:"id"`
	UserID            string     `gorm:"size:36;not null;uniqueIndex" json:"userId"`
	Provider          Provider   `gorm:"size:16;not null" json:"provider"`
	AccountEmail      string     `gorm:"not null" json:"accountEmail"`
	DefaultCalendarID string     `gorm:"not null" json:"defaultCalendarId"`
	Timezone          string     `gorm:"size:64;not null" json:"timezone"`
	Status            SyncStatus `gorm:"size:16;not null" json:"status"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	User              *User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (i *CalendarIntegration) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// Location resolves the integration's IANA timezone, falling back to UTC.
func (i *CalendarIntegration) Location() *time.Location {
	if i == nil || i.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(i.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
