package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chxlky/boardsync/internal/board"
	"github.com/chxlky/boardsync/internal/calsync"
	"github.com/chxlky/boardsync/internal/models"
	"github.com/chxlky/boardsync/internal/reorder"
	"github.com/chxlky/boardsync/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const userKey = "user"

type Handler struct {
	Store   *store.Store
	Board   *board.Service
	Reorder *reorder.Engine
	Sync    *calsync.Engine
	// UserHeader names the trusted header carrying the caller's user id.
	UserHeader string
	Now        func() time.Time
}

// Register mounts every route on g, which is expected to be the /api group.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("/health", h.HealthCheckHandler)

	authed := g.Group("", h.Identity())
	{
		authed.GET("/projects", h.ListProjectsHandler)
		authed.POST("/projects", h.CreateProjectHandler)
		authed.DELETE("/projects/:id", h.DeleteProjectHandler)

		authed.GET("/cards", h.ListCardsHandler)
		authed.POST("/cards", h.CreateCardHandler)
		authed.PATCH("/cards/reorder", h.ReorderCardsHandler)
		authed.PUT("/cards/:id", h.UpdateCardHandler)
		authed.PATCH("/cards/:id/archive", h.ArchiveCardHandler)
		authed.DELETE("/cards/:id", h.DeleteCardHandler)
		authed.PUT("/cards/:id/due", h.SetDueDateHandler)
		authed.DELETE("/cards/:id/due", h.ClearDueDateHandler)

		authed.GET("/integrations/calendar", h.GetIntegrationHandler)
		authed.POST("/integrations/calendar/connect", h.ConnectCalendarHandler)
		authed.POST("/integrations/calendar/refresh", h.RefreshCalendarHandler)
		authed.DELETE("/integrations/calendar/disconnect", h.DisconnectCalendarHandler)
		authed.GET("/integrations/calendar/events", h.ListEventsHandler)

		authed.GET("/dashboard/metrics", h.DashboardMetricsHandler)
	}
}

func (h *Handler) HealthCheckHandler(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{"status": "ok"})
}

// Identity resolves the caller from the user header. Requests without a known
// user are rejected with 401.
func (h *Handler) Identity() gin.HandlerFunc {
	header := h.UserHeader
	if header == "" {
		header = "X-User-ID"
	}
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(header))
		if id == "" {
			fail(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		user, err := h.Store.GetUser(c.Request.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			fail(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if err != nil {
			failWith(c, err)
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) models.User {
	return c.MustGet(userKey).(models.User)
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}

// bindError names the first field that failed its binding tag.
func bindError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Sprintf("Invalid %s: failed %q check", verrs[0].Field(), verrs[0].Tag())
	}
	return "Invalid JSON payload"
}

// failWith maps a domain error onto its HTTP status.
func failWith(c *gin.Context, err error) {
	status := errorStatus(err)
	msg := err.Error()
	switch status {
	case http.StatusNotFound:
		msg = "Not found"
	case http.StatusInternalServerError:
		zap.L().Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		msg = "Internal server error"
	}
	fail(c, status, msg)
}

func errorStatus(err error) int {
	switch {
	// checked first: apply failures may wrap ErrNotFound
	case errors.Is(err, reorder.ErrReorderFailed):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, reorder.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, reorder.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, reorder.ErrInvalidMove),
		errors.Is(err, reorder.ErrCrossProjectMove),
		errors.Is(err, board.ErrInvalidInput),
		errors.Is(err, calsync.ErrInvalidWindow):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
