// Package calendar talks to the remote calendar provider and exports events
// as iCalendar.
package calendar

import (
	"context"
	"errors"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

// LocalIDProperty is the private extended property that tags a remote event
// with the id of the local event it was created from.
const LocalIDProperty = "localEventId"

// Client is the set of provider operations the sync routine relies on.
// Events use the Google Calendar v3 representation.
type Client interface {
	ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*calendar.Event, error)
	GetEvent(ctx context.Context, calendarID, eventID string) (*calendar.Event, error)
	// InsertEvent creates event and returns it as stored, including the
	// provider-assigned id.
	InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error)
	// PatchEvent changes only the fields set on event, leaving the rest of
	// the remote resource as it is.
	PatchEvent(ctx context.Context, calendarID, eventID string, event *calendar.Event) (*calendar.Event, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

// IsUnauthorized reports whether err is the provider rejecting the access
// token (HTTP 401).
func IsUnauthorized(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusUnauthorized
}

// IsNotFound reports whether err is the provider answering 404 or 410.
func IsNotFound(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone
}
