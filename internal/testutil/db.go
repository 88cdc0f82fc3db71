// Package testutil opens throwaway databases for package tests.
package testutil

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/chxlky/boardsync/database"
	"github.com/chxlky/boardsync/internal/config"
	"github.com/chxlky/boardsync/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Clock hands out strictly increasing timestamps, one second apart, so that
// every write produces a distinct card version.
type Clock struct {
	mu  sync.Mutex
	cur time.Time
}

func NewClock() *Clock {
	return &Clock{cur: time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

// OpenDB returns a migrated sqlite database living in t.TempDir().
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	cfg := config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "test.db")}
	db, err := database.Open(cfg, NewClock().Now)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func SeedUser(t *testing.T, db *gorm.DB, email string) models.User {
	t.Helper()
	u := models.User{Email: email, Name: email}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func SeedProject(t *testing.T, db *gorm.DB, userID, name string) models.Project {
	t.Helper()
	p := models.Project{UserID: userID, Name: name}
	require.NoError(t, db.Create(&p).Error)
	return p
}

// SeedCards creates cards in the given status at positions 1..len(titles).
func SeedCards(t *testing.T, db *gorm.DB, projectID string, status models.Status, titles ...string) []models.Card {
	t.Helper()
	out := make([]models.Card, 0, len(titles))
	for i, title := range titles {
		c := models.Card{ProjectID: projectID, Title: title, Status: status, Position: i + 1}
		require.NoError(t, db.Create(&c).Error)
		out = append(out, c)
	}
	return out
}

func SeedIntegration(t *testing.T, db *gorm.DB, userID, tz string) models.CalendarIntegration {
	t.Helper()
	i := models.CalendarIntegration{
		UserID:            userID,
		Provider:          models.ProviderGoogle,
		AccountEmail:      "x@y.com",
		DefaultCalendarID: "primary",
		Timezone:          tz,
		Status:            models.SyncSynced,
	}
	require.NoError(t, db.Create(&i).Error)
	return i
}
