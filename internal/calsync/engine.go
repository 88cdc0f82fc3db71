// Package calsync mirrors card due dates onto the user's external calendar.
//
// The local CalendarEvent row is always written first. Propagation runs in the
// caller's request and its outcome is recorded on the row as Synced, Pending
// or Error; it never fails the due-date write itself.
package calsync

import (
	"context"
	"errors"
	"time"

	"github.com/chxlky/boardsync/integrations"
	"github.com/chxlky/boardsync/internal/models"
	"github.com/chxlky/boardsync/internal/store"
	"go.uber.org/zap"
)

var ErrNotFound = store.ErrNotFound

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

const (
	DefaultMaxRetries = 3
	// MaxRetriesLimit caps MaxRetries since the delay doubles on every retry.
	MaxRetriesLimit = 10
)

type Options struct {
	// MaxRetries is the number of extra attempts after a transient failure.
	// Nil means DefaultMaxRetries and zero disables retrying.
	MaxRetries *int
	// BaseDelay is the wait before the first retry; it doubles each time.
	BaseDelay time.Duration
	Sleep     func(ctx context.Context, d time.Duration) error
	Now       func() time.Time
}

type Engine struct {
	store      *store.Store
	adapters   *integrations.Registry
	maxRetries int
	baseDelay  time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time
}

func NewEngine(s *store.Store, adapters *integrations.Registry, opts Options) *Engine {
	e := &Engine{
		store:      s,
		adapters:   adapters,
		maxRetries: DefaultMaxRetries,
		baseDelay:  opts.BaseDelay,
		sleep:      opts.Sleep,
		now:        opts.Now,
	}
	if opts.MaxRetries != nil {
		e.maxRetries = min(max(*opts.MaxRetries, 0), MaxRetriesLimit)
	}
	if e.baseDelay <= 0 {
		e.baseDelay = 250 * time.Millisecond
	}
	if e.sleep == nil {
		e.sleep = sleepContext
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }
	}
	return e
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Delay is the wait before retry number n (1-based).
func (e *Engine) Delay(n int) time.Duration {
	return e.baseDelay << (n - 1)
}

type outcome struct {
	status   models.SyncStatus
	remoteID string
	message  string
	attempts int
}

func (e *Engine) call(ctx context.Context, a integrations.CalendarAdapter, action Action, in integrations.EventInput) (integrations.Result, error) {
	switch action {
	case ActionCreate:
		return a.Create(ctx, in)
	case ActionUpdate:
		return a.Update(ctx, in)
	default:
		return a.Delete(ctx, integrations.EventRef{
			RemoteID:       in.RemoteID,
			AccountEmail:   in.AccountEmail,
			CalendarID:     in.CalendarID,
			IdempotencyKey: in.IdempotencyKey,
		})
	}
}

// attempt runs one logical operation, retrying transient failures up to
// maxRetries times with exponential delay.
func (e *Engine) attempt(ctx context.Context, a integrations.CalendarAdapter, action Action, in integrations.EventInput) outcome {
	for n := 1; ; n++ {
		res, err := e.call(ctx, a, action, in)
		switch {
		case err == nil:
			switch res.Status {
			case models.SyncSynced, models.SyncPending, models.SyncError:
				return outcome{status: res.Status, remoteID: res.RemoteID, message: res.Message, attempts: n}
			default:
				return outcome{status: models.SyncError, message: "adapter returned no status", attempts: n}
			}

		case errors.Is(err, integrations.ErrUnauthorized):
			// Stale credentials: wait for the user to reconnect.
			return outcome{status: models.SyncPending, message: err.Error(), attempts: n}

		case errors.Is(err, integrations.ErrTransient):
			if n > e.maxRetries {
				return outcome{status: models.SyncError, message: err.Error(), attempts: n}
			}
			delay := e.Delay(n)
			zap.L().Warn("Calendar call failed, retrying",
				zap.String("action", string(action)),
				zap.Int("attempt", n),
				zap.Duration("delay", delay),
				zap.Error(err))
			if serr := e.sleep(ctx, delay); serr != nil {
				return outcome{status: models.SyncPending, message: serr.Error(), attempts: n}
			}

		default:
			return outcome{status: models.SyncError, message: err.Error(), attempts: n}
		}
	}
}

// propagate pushes ev to the remote calendar and records the outcome on the
// event row, updating ev in place.
func (e *Engine) propagate(ctx context.Context, action Action, ev *models.CalendarEvent, title string, integ models.CalendarIntegration) {
	var out outcome
	adapter, ok := e.adapters.Adapter(integ.Provider)
	if !ok {
		out = outcome{status: models.SyncError, message: "no calendar adapter for provider " + string(integ.Provider)}
	} else {
		out = e.attempt(ctx, adapter, action, integrations.EventInput{
			RemoteID:       ev.RemoteID,
			AccountEmail:   integ.AccountEmail,
			CalendarID:     integ.DefaultCalendarID,
			Title:          title,
			Start:          ev.StartUTC,
			End:            ev.EndUTC,
			AllDay:         ev.AllDay,
			IdempotencyKey: ev.IdempotencyKey,
		})
	}

	ev.Status = out.status
	ev.LastError = out.message
	if out.remoteID != "" {
		ev.RemoteID = out.remoteID
	}
	rec := store.SyncOutcome{Status: out.status, RemoteID: out.remoteID, LastError: out.message}
	if out.status == models.SyncSynced {
		at := e.now()
		ev.LastSyncedAt = &at
		rec.SyncedAt = &at
	}

	// The outcome is recorded even if the caller has gone away.
	if err := e.store.RecordSync(context.WithoutCancel(ctx), ev.ID, rec); err != nil {
		zap.L().Error("Error recording sync outcome", zap.String("eventID", ev.ID), zap.Error(err))
	}
	zap.L().Info("Calendar sync finished",
		zap.String("action", string(action)),
		zap.String("cardID", ev.CardID),
		zap.String("status", string(out.status)),
		zap.Int("attempts", out.attempts))
}

// DueDateInput is a due date as the caller sent it. End is optional.
type DueDateInput struct {
	Start          time.Time
	End            *time.Time
	AllDay         bool
	IdempotencyKey string
}

// SetDueDate stores the card's due date and, when the owner has a calendar
// integration, propagates it. Sync failures are reported through the
// returned event's Status, not as an error.
func (e *Engine) SetDueDate(ctx context.Context, ownerID, cardID string, in DueDateInput) (models.CalendarEvent, error) {
	card, err := e.store.OwnedCard(ctx, ownerID, cardID)
	if err != nil {
		return models.CalendarEvent{}, err
	}
	win, err := Normalize(in.Start, in.End, in.AllDay)
	if err != nil {
		return models.CalendarEvent{}, err
	}
	key := in.IdempotencyKey
	if key == "" {
		key = IdempotencyKey(card.ID, win.Start)
	}

	integ, err := e.store.IntegrationByUser(ctx, ownerID)
	connected := err == nil
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return models.CalendarEvent{}, err
	}

	action := ActionUpdate
	ev, err := e.store.EventByCard(ctx, card.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		ev = models.CalendarEvent{CardID: card.ID}
		action = ActionCreate
	case err != nil:
		return models.CalendarEvent{}, err
	}

	ev.StartUTC = win.Start
	ev.EndUTC = win.End
	ev.AllDay = win.AllDay
	ev.IdempotencyKey = key
	ev.LastError = ""
	ev.Status = models.SyncSynced
	if connected {
		ev.Status = models.SyncPending
	}
	if err := e.store.SaveEvent(ctx, &ev); err != nil {
		return models.CalendarEvent{}, err
	}
	if !connected {
		return ev, nil
	}

	if action == ActionUpdate && ev.RemoteID == "" {
		action = ActionCreate
	}
	e.propagate(ctx, action, &ev, card.Title, integ)
	return ev, nil
}

// ClearDueDate removes the card's due date locally and, best effort, remotely.
func (e *Engine) ClearDueDate(ctx context.Context, ownerID, cardID string) error {
	card, err := e.store.OwnedCard(ctx, ownerID, cardID)
	if err != nil {
		return err
	}
	ev, err := e.store.EventByCard(ctx, card.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	e.removeRemote(ctx, ownerID, ev)
	return e.store.DeleteEventByCard(ctx, card.ID)
}

// ClearProject removes the remote events of a project that is about to be
// deleted. Local rows go with the project.
func (e *Engine) ClearProject(ctx context.Context, ownerID, projectID string) error {
	events, err := e.store.Events(ctx, store.EventFilter{OwnerID: ownerID, ProjectID: projectID})
	if err != nil {
		return err
	}
	for _, ev := range events {
		e.removeRemote(ctx, ownerID, ev)
	}
	return nil
}

func (e *Engine) removeRemote(ctx context.Context, ownerID string, ev models.CalendarEvent) {
	if ev.RemoteID == "" {
		return
	}
	integ, err := e.store.IntegrationByUser(ctx, ownerID)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		zap.L().Warn("Remote calendar event not deleted",
			zap.String("cardID", ev.CardID),
			zap.String("remoteID", ev.RemoteID),
			zap.Error(err))
		return
	}
	adapter, ok := e.adapters.Adapter(integ.Provider)
	if !ok {
		return
	}

	out := e.attempt(ctx, adapter, ActionDelete, integrations.EventInput{
		RemoteID:       ev.RemoteID,
		AccountEmail:   integ.AccountEmail,
		CalendarID:     integ.DefaultCalendarID,
		IdempotencyKey: ev.IdempotencyKey,
	})
	if out.status != models.SyncSynced {
		zap.L().Warn("Remote calendar event not deleted",
			zap.String("cardID", ev.CardID),
			zap.String("remoteID", ev.RemoteID),
			zap.String("status", string(out.status)),
			zap.String("error", out.message))
	}
}

// RefreshUser re-propagates the owner's Pending and Error events and returns
// how many were attempted.
func (e *Engine) RefreshUser(ctx context.Context, ownerID string) (int, error) {
	integ, err := e.store.IntegrationByUser(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	events, err := e.store.Events(ctx, store.EventFilter{
		OwnerID:      ownerID,
		SyncStatuses: []models.SyncStatus{models.SyncPending, models.SyncError},
	})
	if err != nil {
		return 0, err
	}
	for i := range events {
		e.retry(ctx, &events[i], integ)
	}
	return len(events), nil
}

// RefreshAll re-propagates up to limit unsynced events across all users who
// still have an integration. Events of disconnected users never take up the
// limit.
func (e *Engine) RefreshAll(ctx context.Context, limit int) (int, error) {
	events, err := e.store.Events(ctx, store.EventFilter{
		SyncStatuses: []models.SyncStatus{models.SyncPending, models.SyncError},
		Connected:    true,
		Limit:        limit,
	})
	if err != nil {
		return 0, err
	}

	integs := make(map[string]*models.CalendarIntegration)
	n := 0
	for i := range events {
		ev := &events[i]
		if ev.Card == nil || ev.Card.Project == nil {
			continue
		}
		owner := ev.Card.Project.UserID
		integ, seen := integs[owner]
		if !seen {
			found, err := e.store.IntegrationByUser(ctx, owner)
			switch {
			case err == nil:
				integ = &found
			case !errors.Is(err, store.ErrNotFound):
				zap.L().Warn("Error loading integration", zap.String("userID", owner), zap.Error(err))
			}
			integs[owner] = integ
		}
		if integ == nil {
			continue
		}
		e.retry(ctx, ev, *integ)
		n++
	}
	return n, nil
}

func (e *Engine) retry(ctx context.Context, ev *models.CalendarEvent, integ models.CalendarIntegration) {
	action := ActionUpdate
	if ev.RemoteID == "" {
		action = ActionCreate
	}
	title := ""
	if ev.Card != nil {
		title = ev.Card.Title
	}
	e.propagate(ctx, action, ev, title, integ)
}

// EventQuery filters ListEvents. Zero values do not filter.
type EventQuery struct {
	From      time.Time
	To        time.Time
	ProjectID string
	Status    models.Status
}

// EventView is an event as shown to its owner, in the owner's timezone.
type EventView struct {
	EventID    string            `json:"eventId"`
	CardID     string            `json:"cardId"`
	Title      string            `json:"title"`
	Status     models.Status     `json:"status"`
	BoardID    string            `json:"boardId"`
	Start      string            `json:"start"`
	End        string            `json:"end"`
	AllDay     bool              `json:"allDay"`
	SyncStatus models.SyncStatus `json:"syncStatus"`
}

func (e *Engine) ListEvents(ctx context.Context, ownerID string, q EventQuery) ([]EventView, error) {
	var integ *models.CalendarIntegration
	if found, err := e.store.IntegrationByUser(ctx, ownerID); err == nil {
		integ = &found
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	loc := integ.Location()

	events, err := e.store.Events(ctx, store.EventFilter{
		OwnerID:    ownerID,
		From:       q.From,
		To:         q.To,
		ProjectID:  q.ProjectID,
		CardStatus: q.Status,
	})
	if err != nil {
		return nil, err
	}

	out := make([]EventView, 0, len(events))
	for _, ev := range events {
		v := EventView{
			EventID:    ev.ID,
			CardID:     ev.CardID,
			Start:      FormatInstant(ev.StartUTC, loc),
			End:        FormatInstant(ev.EndUTC, loc),
			AllDay:     ev.AllDay,
			SyncStatus: ev.Status,
		}
		if ev.Card != nil {
			v.Title = ev.Card.Title
			v.Status = ev.Card.Status
			v.BoardID = ev.Card.ProjectID
		}
		out = append(out, v)
	}
	return out, nil
}
