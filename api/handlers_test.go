package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/chxlky/boardsync/integrations"
	"github.com/chxlky/boardsync/internal/board"
	"github.com/chxlky/boardsync/internal/calsync"
	"github.com/chxlky/boardsync/internal/config"
	"github.com/chxlky/boardsync/internal/models"
	"github.com/chxlky/boardsync/internal/reorder"
	"github.com/chxlky/boardsync/internal/store"
	"github.com/chxlky/boardsync/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testEnv struct {
	t      *testing.T
	db     *gorm.DB
	store  *store.Store
	mem    *integrations.MemoryStore
	router *gin.Engine
	user   models.User
}

var testNow = time.Date(2025, 9, 19, 12, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.OpenDB(t)
	s := store.New(db)
	mem := integrations.NewMemoryStore()
	reg, err := integrations.NewRegistryFromConfig(config.CalendarConfig{Driver: "memory"}, mem)
	require.NoError(t, err)

	syncer := calsync.NewEngine(s, reg, calsync.Options{
		Sleep: func(context.Context, time.Duration) error { return nil },
	})
	h := &Handler{
		Store:      s,
		Board:      board.NewService(s, syncer),
		Reorder:    reorder.NewEngine(s),
		Sync:       syncer,
		UserHeader: "X-User-ID",
		Now:        func() time.Time { return testNow },
	}
	r := gin.New()
	h.Register(r.Group("/api"))

	return &testEnv{t: t, db: db, store: s, mem: mem, router: r, user: testutil.SeedUser(t, db, "owner@x.dev")}
}

func (e *testEnv) do(method, path string, body any) (int, envelope) {
	return e.doAs(e.user.ID, method, path, body)
}

func (e *testEnv) doAs(userID, method, path string, body any) (int, envelope) {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(e.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func (e *testEnv) project(name string) models.Project {
	e.t.Helper()
	code, env := e.do(http.MethodPost, "/api/projects", gin.H{"name": name})
	require.Equal(e.t, http.StatusCreated, code, env.Error)
	return decode[models.Project](e.t, env)
}

func (e *testEnv) card(projectID, title string, status models.Status) models.Card {
	e.t.Helper()
	code, env := e.do(http.MethodPost, "/api/cards", gin.H{"projectId": projectID, "title": title, "status": status})
	require.Equal(e.t, http.StatusCreated, code, env.Error)
	return decode[models.Card](e.t, env)
}

func (e *testEnv) connect(tz string) {
	e.t.Helper()
	code, env := e.do(http.MethodPost, "/api/integrations/calendar/connect", gin.H{
		"provider": "GOOGLE", "accountEmail": "x@y.com", "defaultCalendarId": "primary", "timezone": tz,
	})
	require.Equal(e.t, http.StatusCreated, code, env.Error)
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	code, env := e.doAs("", http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
}

func TestIdentity(t *testing.T) {
	e := newTestEnv(t)

	code, env := e.doAs("", http.MethodGet, "/api/projects", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)

	code, _ = e.doAs("nobody", http.MethodGet, "/api/projects", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestProjects(t *testing.T) {
	e := newTestEnv(t)
	p := e.project("Roadmap")

	code, env := e.do(http.MethodGet, "/api/projects", nil)
	require.Equal(t, http.StatusOK, code)
	projects := decode[[]models.Project](t, env)
	require.Len(t, projects, 1)
	assert.Equal(t, "Roadmap", projects[0].Name)

	code, _ = e.do(http.MethodPost, "/api/projects", gin.H{"name": ""})
	assert.Equal(t, http.StatusBadRequest, code)

	stranger := testutil.SeedUser(t, e.db, "stranger@x.dev")
	code, _ = e.doAs(stranger.ID, http.MethodDelete, "/api/projects/"+p.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = e.do(http.MethodDelete, "/api/projects/"+p.ID, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestCards_Lifecycle(t *testing.T) {
	e := newTestEnv(t)
	p := e.project("P")
	a := e.card(p.ID, "A", models.StatusTodo)
	b := e.card(p.ID, "B", models.StatusTodo)
	e.card(p.ID, "C", models.StatusTodo)

	code, env := e.do(http.MethodPut, "/api/cards/"+a.ID, gin.H{"title": "A2", "status": "DOING"})
	require.Equal(t, http.StatusOK, code, env.Error)
	updated := decode[models.Card](t, env)
	assert.Equal(t, "A2", updated.Title)
	assert.Equal(t, models.StatusDoing, updated.Status)
	assert.Equal(t, 1, updated.Position)

	code, env = e.do(http.MethodPatch, "/api/cards/"+b.ID+"/archive", nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, models.StatusArchived, decode[models.Card](t, env).Status)

	code, _ = e.do(http.MethodDelete, "/api/cards/"+a.ID, nil)
	require.Equal(t, http.StatusOK, code)

	code, env = e.do(http.MethodGet, "/api/cards?projectId="+p.ID, nil)
	require.Equal(t, http.StatusOK, code)
	cards := decode[[]models.Card](t, env)
	require.Len(t, cards, 2)
	assert.Equal(t, "C", cards[0].Title)
	assert.Equal(t, 1, cards[0].Position)
	assert.Equal(t, "B", cards[1].Title)

	code, _ = e.do(http.MethodGet, "/api/cards", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestReorder(t *testing.T) {
	e := newTestEnv(t)
	p := e.project("P")
	a := e.card(p.ID, "A", models.StatusTodo)
	e.card(p.ID, "B", models.StatusTodo)
	c := e.card(p.ID, "C", models.StatusTodo)

	code, env := e.do(http.MethodPatch, "/api/cards/reorder", gin.H{"moves": []gin.H{
		{"id": a.ID, "status": "DOING", "position": 1},
		{"id": c.ID, "status": "TODO", "position": 1},
	}})
	require.Equal(t, http.StatusOK, code, env.Error)
	cards := decode[[]models.Card](t, env)
	require.Len(t, cards, 3)
	assert.Equal(t, []string{"C", "B", "A"}, []string{cards[0].Title, cards[1].Title, cards[2].Title})
	assert.Equal(t, models.StatusDoing, cards[2].Status)

}

func TestReorder_ErrorMapping(t *testing.T) {
	e := newTestEnv(t)
	p := e.project("P")
	q := e.project("Q")
	a := e.card(p.ID, "A", models.StatusTodo)
	x := e.card(q.ID, "X", models.StatusTodo)
	stranger := testutil.SeedUser(t, e.db, "stranger@x.dev")

	tests := []struct {
		name string
		user string
		body gin.H
		want int
	}{
		{"empty batch", e.user.ID, gin.H{"moves": []gin.H{}}, http.StatusBadRequest},
		{"bad status", e.user.ID, gin.H{"moves": []gin.H{{"id": a.ID, "status": "LATER", "position": 1}}}, http.StatusBadRequest},
		{"unknown card", e.user.ID, gin.H{"moves": []gin.H{{"id": "missing", "status": "TODO", "position": 1}}}, http.StatusNotFound},
		{"mixed projects", e.user.ID, gin.H{"moves": []gin.H{
			{"id": a.ID, "status": "TODO", "position": 1},
			{"id": x.ID, "status": "TODO", "position": 1},
		}}, http.StatusBadRequest},
		{"not owner", stranger.ID, gin.H{"moves": []gin.H{{"id": a.ID, "status": "DONE", "position": 1}}}, http.StatusForbidden},
		{"stale version", e.user.ID, gin.H{"moves": []gin.H{
			{"id": a.ID, "status": "DONE", "position": 1, "version": "2000-01-01T00:00:00Z"},
		}}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := e.doAs(tt.user, http.MethodPatch, "/api/cards/reorder", tt.body)
			assert.Equal(t, tt.want, code, env.Error)
			assert.False(t, env.Success)
		})
	}

	code, env := e.do(http.MethodGet, "/api/cards?projectId="+p.ID, nil)
	require.Equal(t, http.StatusOK, code)
	cards := decode[[]models.Card](t, env)
	require.Len(t, cards, 1)
	assert.Equal(t, models.StatusTodo, cards[0].Status)
}

func TestDueDate_WithoutIntegration(t *testing.T) {
	e := newTestEnv(t)
	p := e.project("P")
	a := e.card(p.ID, "A", models.StatusTodo)

	code, env := e.do(http.MethodPut, "/api/cards/"+a.ID+"/due", gin.H{"start": "2025-09-20T15:00:00Z"})
	require.Equal(t, http.StatusOK, code, env.Error)
	ev := decode[models.CalendarEvent](t, env)
	assert.Equal(t, models.SyncSynced, ev.Status)
	assert.Empty(t, e.mem.Events("x@y.com"))

	code, _ = e.do(http.MethodPut, "/api/cards/"+a.ID+"/due", gin.H{"start": "whenever"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(http.MethodPut, "/api/cards/"+a.ID+"/due", gin.H{"start": "2025-09-20T15:00:00Z", "end": "2025-09-20T14:00:00Z"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(http.MethodPut, "/api/cards/missing/due", gin.H{"start": "2025-09-20T15:00:00Z"})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDueDate_SyncsAndLists(t *testing.T) {
	e := newTestEnv(t)
	e.connect("America/New_York")
	p := e.project("P")
	a := e.card(p.ID, "A", models.StatusTodo)

	code, env := e.do(http.MethodPut, "/api/cards/"+a.ID+"/due", gin.H{"start": "2025-09-20T15:30:00Z", "allDay": true})
	require.Equal(t, http.StatusOK, code, env.Error)
	ev := decode[models.CalendarEvent](t, env)
	assert.Equal(t, models.SyncSynced, ev.Status)
	assert.NotEmpty(t, ev.RemoteID)
	assert.True(t, ev.AllDay)

	remote := e.mem.Events("x@y.com")
	require.Len(t, remote, 1)
	assert.Equal(t, "A", remote[0].Title)

	code, env = e.do(http.MethodGet, "/api/integrations/calendar/events?boardId="+p.ID, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	views := decode[[]calsync.EventView](t, env)
	require.Len(t, views, 1)
	assert.Equal(t, "2025-09-19T20:00:00-04:00", views[0].Start)
	assert.Equal(t, "2025-09-20T20:00:00-04:00", views[0].End)
	assert.Equal(t, p.ID, views[0].BoardID)

	code, _ = e.do(http.MethodGet, "/api/integrations/calendar/events?status=LATER", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(http.MethodDelete, "/api/cards/"+a.ID+"/due", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, e.mem.Events("x@y.com"))
}

func TestIntegrationLifecycle(t *testing.T) {
	e := newTestEnv(t)

	code, _ := e.do(http.MethodGet, "/api/integrations/calendar", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = e.do(http.MethodPost, "/api/integrations/calendar/connect", gin.H{
		"provider": "YAHOO", "accountEmail": "x@y.com", "defaultCalendarId": "primary", "timezone": "UTC",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = e.do(http.MethodPost, "/api/integrations/calendar/connect", gin.H{
		"provider": "GOOGLE", "accountEmail": "x@y.com", "defaultCalendarId": "primary", "timezone": "Mars/Olympus",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	code, env := e.do(http.MethodPost, "/api/integrations/calendar/connect", gin.H{
		"provider": "GOOGLE", "accountEmail": "not-an-email", "defaultCalendarId": "primary", "timezone": "UTC",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Error, "AccountEmail")
	code, _ = e.do(http.MethodPost, "/api/integrations/calendar/connect", gin.H{
		"provider": "GOOGLE", "accountEmail": "x@y.com", "defaultCalendarId": "primary", "timezone": "Local",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	e.connect("UTC")
	code, env = e.do(http.MethodPost, "/api/integrations/calendar/connect", gin.H{
		"provider": "GOOGLE", "accountEmail": "x@y.com", "defaultCalendarId": "work", "timezone": "Europe/Berlin",
	})
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, "Europe/Berlin", decode[models.CalendarIntegration](t, env).Timezone)

	code, env = e.do(http.MethodPost, "/api/integrations/calendar/refresh", nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, models.SyncSynced, decode[models.CalendarIntegration](t, env).Status)

	code, _ = e.do(http.MethodDelete, "/api/integrations/calendar/disconnect", nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = e.do(http.MethodDelete, "/api/integrations/calendar/disconnect", nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = e.do(http.MethodPost, "/api/integrations/calendar/refresh", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDashboardMetrics(t *testing.T) {
	e := newTestEnv(t)
	p := e.project("P")
	a := e.card(p.ID, "A", models.StatusTodo)
	b := e.card(p.ID, "B", models.StatusDone)

	code, _ := e.do(http.MethodPut, "/api/cards/"+a.ID+"/due", gin.H{"start": "2025-09-20T15:00:00Z"})
	require.Equal(t, http.StatusOK, code)
	code, _ = e.do(http.MethodPut, "/api/cards/"+b.ID+"/due", gin.H{"start": "2025-09-01T09:00:00Z"})
	require.Equal(t, http.StatusOK, code)

	code, env := e.do(http.MethodGet, "/api/dashboard/metrics", nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	m := decode[dashboardMetrics](t, env)
	assert.Equal(t, int64(1), m.Totals[models.StatusTodo])
	assert.Equal(t, int64(1), m.Totals[models.StatusDone])
	assert.Equal(t, int64(0), m.Totals[models.StatusArchived])
	assert.Equal(t, int64(1), m.Overdue)
	assert.Empty(t, m.Upcoming)

	e.connect("UTC")
	code, env = e.do(http.MethodGet, "/api/dashboard/metrics", nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	m = decode[dashboardMetrics](t, env)
	require.Len(t, m.Upcoming, 1)
	assert.Equal(t, "A", m.Upcoming[0].Title)
	assert.Equal(t, p.ID, m.Upcoming[0].ProjectID)
}
