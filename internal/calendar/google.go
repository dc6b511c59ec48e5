package calendar

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Valid values for the sendUpdates parameter of mutating calls.
const (
	SendUpdatesNone         = "none"
	SendUpdatesAll          = "all"
	SendUpdatesExternalOnly = "externalOnly"
)

// GoogleSettings tunes the calls made by a GoogleClient.
type GoogleSettings struct {
	// SendUpdates controls whether attendees are notified of changes.
	// Empty means SendUpdatesNone.
	SendUpdates string
	// APIKey, when set, is sent with every request for quota attribution.
	APIKey string
}

// GoogleClient is a wrapper around the Google Calendar API service.
type GoogleClient struct {
	service     *calendar.Service
	sendUpdates string
	callOpts    []googleapi.CallOption
}

var _ Client = (*GoogleClient)(nil)

// NewGoogleClient creates a Google Calendar client. The HTTP client carrying
// credentials is passed in opts, typically via option.WithHTTPClient.
func NewGoogleClient(ctx context.Context, settings GoogleSettings, opts ...option.ClientOption) (*GoogleClient, error) {
	sendUpdates := settings.SendUpdates
	switch sendUpdates {
	case "":
		sendUpdates = SendUpdatesNone
	case SendUpdatesNone, SendUpdatesAll, SendUpdatesExternalOnly:
	default:
		return nil, fmt.Errorf("invalid sendUpdates value %q", sendUpdates)
	}

	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	c := &GoogleClient{service: service, sendUpdates: sendUpdates}
	if settings.APIKey != "" {
		c.callOpts = append(c.callOpts, googleapi.QueryParameter("key", settings.APIKey))
	}
	return c, nil
}

// ListEvents retrieves events from a calendar within the specified time window.
// Recurring events are expanded into single instances and every result page
// is fetched.
func (c *GoogleClient) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*calendar.Event, error) {
	var events []*calendar.Event
	pageToken := ""
	for {
		call := c.service.Events.List(calendarID).
			TimeMin(timeMin.Format(time.RFC3339)).
			TimeMax(timeMax.Format(time.RFC3339)).
			SingleEvents(true). // Expand recurring events
			OrderBy("startTime").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		page, err := call.Do(c.callOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to list events: %w", err)
		}
		events = append(events, page.Items...)

		if page.NextPageToken == "" {
			return events, nil
		}
		pageToken = page.NextPageToken
	}
}

// GetEvent retrieves a single event by ID.
func (c *GoogleClient) GetEvent(ctx context.Context, calendarID, eventID string) (*calendar.Event, error) {
	event, err := c.service.Events.Get(calendarID, eventID).Context(ctx).Do(c.callOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

// InsertEvent inserts a new event into a calendar.
func (c *GoogleClient) InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error) {
	created, err := c.service.Events.Insert(calendarID, event).
		SendUpdates(c.sendUpdates).
		Context(ctx).
		Do(c.callOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}

	return created, nil
}

// PatchEvent updates the fields set on event in an existing calendar event.
func (c *GoogleClient) PatchEvent(ctx context.Context, calendarID, eventID string, event *calendar.Event) (*calendar.Event, error) {
	updated, err := c.service.Events.Patch(calendarID, eventID, event).
		SendUpdates(c.sendUpdates).
		Context(ctx).
		Do(c.callOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	return updated, nil
}

// DeleteEvent deletes an event from a calendar.
func (c *GoogleClient) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	err := c.service.Events.Delete(calendarID, eventID).
		SendUpdates(c.sendUpdates).
		Context(ctx).
		Do(c.callOpts...)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	return nil
}
