package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/chxlky/boardsync/internal/models"
	"github.com/chxlky/boardsync/internal/store"
	"github.com/gin-gonic/gin"
)

const (
	upcomingWindow = 7 * 24 * time.Hour
	upcomingLimit  = 20
)

type upcomingEvent struct {
	Title      string            `json:"title"`
	StartUTC   time.Time         `json:"startUtc"`
	AllDay     bool              `json:"allDay"`
	ProjectID  string            `json:"projectId"`
	SyncStatus models.SyncStatus `json:"syncStatus"`
}

type dashboardMetrics struct {
	Totals   map[models.Status]int64 `json:"totals"`
	Overdue  int64                   `json:"overdue"`
	Upcoming []upcomingEvent         `json:"upcoming"`
}

// DashboardMetricsHandler reports card totals per column, overdue due dates
// and, for users with a calendar connected, the next week's events.
func (h *Handler) DashboardMetricsHandler(c *gin.Context) {
	ctx := c.Request.Context()
	user := currentUser(c)
	now := h.now()

	totals, err := h.Store.CountByStatus(ctx, user.ID)
	if err != nil {
		failWith(c, err)
		return
	}
	overdue, err := h.Store.CountOverdue(ctx, user.ID, now)
	if err != nil {
		failWith(c, err)
		return
	}

	upcoming := []upcomingEvent{}
	_, err = h.Store.IntegrationByUser(ctx, user.ID)
	switch {
	case err == nil:
		events, err := h.Store.Events(ctx, store.EventFilter{
			OwnerID: user.ID,
			From:    now,
			To:      now.Add(upcomingWindow),
			Limit:   upcomingLimit,
		})
		if err != nil {
			failWith(c, err)
			return
		}
		for _, ev := range events {
			item := upcomingEvent{StartUTC: ev.StartUTC.UTC(), AllDay: ev.AllDay, SyncStatus: ev.Status}
			if ev.Card != nil {
				item.Title = ev.Card.Title
				item.ProjectID = ev.Card.ProjectID
			}
			upcoming = append(upcoming, item)
		}
	case !errors.Is(err, store.ErrNotFound):
		failWith(c, err)
		return
	}

	respond(c, http.StatusOK, dashboardMetrics{Totals: totals, Overdue: overdue, Upcoming: upcoming})
}
