package calsync

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidWindow = errors.New("invalid due date")

// Window is a normalized due date: absolute UTC instants.
type Window struct {
	Start  time.Time
	End    time.Time
	AllDay bool
}

var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseInstant accepts RFC3339 or a bare local-looking timestamp, which is
// read as UTC.
func ParseInstant(s string) (time.Time, error) {
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: cannot parse %q", ErrInvalidWindow, s)
}

// Normalize resolves a due date. end defaults to start plus one hour. An
// all-day window covers the UTC calendar day of start, whatever the time of
// day or end supplied.
func Normalize(start time.Time, end *time.Time, allDay bool) (Window, error) {
	start = start.UTC().Truncate(time.Microsecond)
	if allDay {
		day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
		return Window{Start: day, End: day.Add(24 * time.Hour), AllDay: true}, nil
	}

	stop := start.Add(time.Hour)
	if end != nil {
		stop = end.UTC().Truncate(time.Microsecond)
	}
	if stop.Before(start) {
		return Window{}, fmt.Errorf("%w: end before start", ErrInvalidWindow)
	}
	return Window{Start: start, End: stop}, nil
}

var keyNamespace = uuid.MustParse("8f6c1d52-3a4b-4c1e-9a7d-5b2e0f13c6a9")

// IdempotencyKey is the default key for a card's due date: stable for the
// same card and start instant.
func IdempotencyKey(cardID string, start time.Time) string {
	return uuid.NewSHA1(keyNamespace, []byte(cardID+"|"+start.UTC().Format(time.RFC3339Nano))).String()
}

const offsetLayout = "2006-01-02T15:04:05-07:00"

// FormatInstant renders t in loc with an explicit numeric offset, computed
// for that instant so daylight-saving changes are respected.
func FormatInstant(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(offsetLayout)
}
