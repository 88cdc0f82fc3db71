package api

import (
	"errors"
	"net/http"

	"github.com/chxlky/boardsync/internal/calsync"
	"github.com/chxlky/boardsync/internal/models"
	"github.com/chxlky/boardsync/internal/store"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type connectRequest struct {
	Provider          models.Provider `json:"provider" binding:"required,oneof=GOOGLE OUTLOOK"`
	AccountEmail      string          `json:"accountEmail" binding:"required,email"`
	DefaultCalendarID string          `json:"defaultCalendarId" binding:"required"`
	Timezone          string          `json:"timezone" binding:"required,timezone"`
}

func (h *Handler) GetIntegrationHandler(c *gin.Context) {
	integ, err := h.Store.IntegrationByUser(c.Request.Context(), currentUser(c).ID)
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "Not connected")
		return
	}
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, http.StatusOK, integ)
}

func (h *Handler) ConnectCalendarHandler(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, bindError(err))
		return
	}

	user := currentUser(c)
	integ, created, err := h.Store.UpsertIntegration(c.Request.Context(), models.CalendarIntegration{
		UserID:            user.ID,
		Provider:          req.Provider,
		AccountEmail:      req.AccountEmail,
		DefaultCalendarID: req.DefaultCalendarID,
		Timezone:          req.Timezone,
		Status:            models.SyncSynced,
	})
	if err != nil {
		failWith(c, err)
		return
	}
	zap.L().Info("Calendar connected", zap.String("userID", user.ID), zap.String("provider", string(integ.Provider)))

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respond(c, status, integ)
}

// RefreshCalendarHandler marks the integration healthy again and retries the
// user's unsynced events.
func (h *Handler) RefreshCalendarHandler(c *gin.Context) {
	ctx := c.Request.Context()
	user := currentUser(c)

	integ, err := h.Store.SetIntegrationStatus(ctx, user.ID, models.SyncSynced)
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "Not connected")
		return
	}
	if err != nil {
		failWith(c, err)
		return
	}

	n, err := h.Sync.RefreshUser(ctx, user.ID)
	if err != nil {
		failWith(c, err)
		return
	}
	zap.L().Info("Calendar refreshed", zap.String("userID", user.ID), zap.Int("events", n))
	respond(c, http.StatusOK, integ)
}

func (h *Handler) DisconnectCalendarHandler(c *gin.Context) {
	user := currentUser(c)
	err := h.Store.DeleteIntegration(c.Request.Context(), user.ID)
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "Not connected")
		return
	}
	if err != nil {
		failWith(c, err)
		return
	}
	zap.L().Info("Calendar disconnected", zap.String("userID", user.ID))
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListEventsHandler(c *gin.Context) {
	var q calsync.EventQuery
	var err error
	if s := c.Query("from"); s != "" {
		if q.From, err = calsync.ParseInstant(s); err != nil {
			failWith(c, err)
			return
		}
	}
	if s := c.Query("to"); s != "" {
		if q.To, err = calsync.ParseInstant(s); err != nil {
			failWith(c, err)
			return
		}
	}
	q.ProjectID = c.Query("boardId")
	if s := c.Query("status"); s != "" {
		q.Status = models.Status(s)
		if !q.Status.Valid() {
			fail(c, http.StatusBadRequest, "unknown status "+s)
			return
		}
	}

	events, err := h.Sync.ListEvents(c.Request.Context(), currentUser(c).ID, q)
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, http.StatusOK, events)
}
