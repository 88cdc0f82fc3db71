package integrations

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chxlky/boardsync/internal/models"
	"github.com/google/uuid"
)

// Transport faults returned by adapters. Anything else an adapter returns as
// an error is treated as fatal for the attempt.
var (
	ErrTransient    = errors.New("calendar: transient failure")
	ErrUnauthorized = errors.New("calendar: unauthorized")
)

// EventInput describes a due-date event on the remote calendar.
type EventInput struct {
	RemoteID       string // set for updates
	AccountEmail   string
	CalendarID     string
	Title          string
	Start          time.Time
	End            time.Time
	AllDay         bool
	IdempotencyKey string
}

type EventRef struct {
	RemoteID       string
	AccountEmail   string
	CalendarID     string
	IdempotencyKey string
}

// Result is the outcome of a call the remote side answered. Business failures
// come back as Status Error with a Message rather than as a Go error.
type Result struct {
	Status   models.SyncStatus
	RemoteID string
	Message  string
}

// CalendarAdapter is implemented once per remote provider. Implementations
// must treat IdempotencyKey so that repeating a call creates nothing new.
type CalendarAdapter interface {
	Create(ctx context.Context, in EventInput) (Result, error)
	Update(ctx context.Context, in EventInput) (Result, error)
	Delete(ctx context.Context, ref EventRef) (Result, error)
}

// RemoteEventID derives a stable remote id from an idempotency key. The 32
// lowercase hex characters are valid Google Calendar event ids.
func RemoteEventID(key string) string {
	return strings.ReplaceAll(uuid.NewSHA1(uuid.NameSpaceURL, []byte("boardsync:"+key)).String(), "-", "")
}

// Registry maps providers to the adapter configured for them.
type Registry struct {
	adapters map[models.Provider]CalendarAdapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[models.Provider]CalendarAdapter)}
}

func (r *Registry) Register(p models.Provider, a CalendarAdapter) {
	r.adapters[p] = a
}

func (r *Registry) Adapter(p models.Provider) (CalendarAdapter, bool) {
	a, ok := r.adapters[p]
	return a, ok
}
