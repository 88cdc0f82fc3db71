package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/chxlky/boardsync/internal/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleCalendar talks to Google Calendar as a service account, impersonating
// each integration's account through domain-wide delegation.
type GoogleCalendar struct {
	newService func(ctx context.Context, account string) (*calendar.Service, error)

	mu       sync.Mutex
	services map[string]*calendar.Service
}

func NewGoogleCalendar(serviceAccount map[string]any) (*GoogleCalendar, error) {
	jsonBytes, err := json.Marshal(serviceAccount)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal service account settings to JSON: %w", err)
	}

	// parse once up front so a bad key fails at startup
	if _, err := google.JWTConfigFromJSON(jsonBytes, calendar.CalendarScope); err != nil {
		return nil, fmt.Errorf("unable to parse service account credentials from JSON: %w", err)
	}

	return &GoogleCalendar{
		services: make(map[string]*calendar.Service),
		newService: func(ctx context.Context, account string) (*calendar.Service, error) {
			config, err := google.JWTConfigFromJSON(jsonBytes, calendar.CalendarScope)
			if err != nil {
				return nil, err
			}
			config.Subject = account

			// The token source outlives the request that first needs it.
			client := config.Client(context.Background())
			return calendar.NewService(ctx, option.WithHTTPClient(client))
		},
	}, nil
}

func (c *GoogleCalendar) service(ctx context.Context, account string) (*calendar.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if srv, ok := c.services[account]; ok {
		return srv, nil
	}
	srv, err := c.newService(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Calendar client: %w", err)
	}
	c.services[account] = srv
	return srv, nil
}

func toGoogleEvent(in EventInput) *calendar.Event {
	event := &calendar.Event{
		Summary:     in.Title,
		Description: "Card due date",
	}
	if in.AllDay {
		event.Start = &calendar.EventDateTime{Date: in.Start.UTC().Format("2006-01-02")}
		event.End = &calendar.EventDateTime{Date: in.End.UTC().Format("2006-01-02")}
	} else {
		event.Start = &calendar.EventDateTime{DateTime: in.Start.UTC().Format(time.RFC3339), TimeZone: "UTC"}
		event.End = &calendar.EventDateTime{DateTime: in.End.UTC().Format(time.RFC3339), TimeZone: "UTC"}
	}
	return event
}

// Create inserts the event under an id derived from the idempotency key. A
// 409 means the id is taken: an earlier attempt created it, possibly with an
// older window, or the event was deleted and Google keeps the id reserved.
// Either way the event is overwritten with the current window and restored.
func (c *GoogleCalendar) Create(ctx context.Context, in EventInput) (Result, error) {
	srv, err := c.service(ctx, in.AccountEmail)
	if err != nil {
		return classify(err)
	}

	event := toGoogleEvent(in)
	event.Id = RemoteEventID(in.IdempotencyKey)

	created, err := srv.Events.Insert(in.CalendarID, event).Context(ctx).Do()
	if err != nil {
		if googleCode(err) == http.StatusConflict {
			zap.L().Info("Event already exists in Google Calendar, updating it", zap.String("eventID", event.Id))
			event.Status = "confirmed"
			updated, err := srv.Events.Update(in.CalendarID, event.Id, event).Context(ctx).Do()
			if err != nil {
				return classify(err)
			}
			return Result{Status: models.SyncSynced, RemoteID: updated.Id}, nil
		}
		return classify(err)
	}
	return Result{Status: models.SyncSynced, RemoteID: created.Id}, nil
}

func (c *GoogleCalendar) Update(ctx context.Context, in EventInput) (Result, error) {
	if in.RemoteID == "" {
		return Result{Status: models.SyncError, Message: "missing id"}, nil
	}
	srv, err := c.service(ctx, in.AccountEmail)
	if err != nil {
		return classify(err)
	}

	updated, err := srv.Events.Update(in.CalendarID, in.RemoteID, toGoogleEvent(in)).Context(ctx).Do()
	if err != nil {
		if code := googleCode(err); code == http.StatusNotFound || code == http.StatusGone {
			return Result{Status: models.SyncPending, Message: "event not found"}, nil
		}
		return classify(err)
	}
	return Result{Status: models.SyncSynced, RemoteID: updated.Id}, nil
}

func (c *GoogleCalendar) Delete(ctx context.Context, ref EventRef) (Result, error) {
	srv, err := c.service(ctx, ref.AccountEmail)
	if err != nil {
		return classify(err)
	}

	err = srv.Events.Delete(ref.CalendarID, ref.RemoteID).Context(ctx).Do()
	if err != nil {
		// It's possible the event was already deleted
		if code := googleCode(err); code == http.StatusNotFound || code == http.StatusGone {
			zap.L().Info("Event not found in Google Calendar. Already deleted.", zap.String("eventID", ref.RemoteID))
			return Result{Status: models.SyncSynced}, nil
		}
		return classify(err)
	}
	return Result{Status: models.SyncSynced}, nil
}

func googleCode(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}

// classify sorts a failed call into a transport fault (returned as an error
// wrapping ErrTransient or ErrUnauthorized) or a business failure (returned as
// an Error result).
func classify(err error) (Result, error) {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized:
			return Result{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		case gerr.Code == http.StatusTooManyRequests, gerr.Code >= 500:
			return Result{}, fmt.Errorf("%w: %v", ErrTransient, err)
		case gerr.Code == http.StatusForbidden && rateLimited(gerr):
			return Result{}, fmt.Errorf("%w: %v", ErrTransient, err)
		default:
			return Result{Status: models.SyncError, Message: gerr.Message}, nil
		}
	}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return Result{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return Result{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return Result{}, err
}

func rateLimited(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
			return true
		}
	}
	return false
}
