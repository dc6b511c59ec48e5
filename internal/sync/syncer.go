// Package sync reconciles local event records against a remote calendar.
//
// The local side is authoritative: every local event is pushed, either as a
// new remote event or as an update of the one it is linked to. Remote-only
// events are never deleted or imported.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"

	calclient "github.com/beekhof/crm-records/internal/calendar"
	"github.com/beekhof/crm-records/internal/records"
	"github.com/beekhof/crm-records/internal/retry"
)

// DefaultLookaheadMonths is the size of the sync window.
const DefaultLookaheadMonths = 1

// ErrSessionExpired is returned when the provider keeps rejecting the
// session after a token refresh. The user has to sign in again.
var ErrSessionExpired = errors.New("calendar session expired: sign in again")

// SyncError reports a remote call that failed during a sync.
type SyncError struct {
	Op      string // list, create, update or link
	EventID string // local event id, empty for list
	Err     error
}

func (e *SyncError) Error() string {
	if e.EventID == "" {
		return fmt.Sprintf("sync %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("sync %s event %s: %v", e.Op, e.EventID, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Linker records the remote id of a freshly created remote event on the
// local record. records.EventService implements it.
type Linker interface {
	LinkRemote(ctx context.Context, id, remoteID string) error
}

// Refresher recovers from a rejected access token. auth.Authorizer
// implements it.
type Refresher interface {
	// Refresh obtains a new access token.
	Refresh(ctx context.Context) error
	// Expire drops the session once a refresh did not help.
	Expire()
}

// Result counts the remote mutations performed by a sync.
type Result struct {
	Created int
	Updated int
}

// Syncer handles the synchronization of local events to one remote calendar.
type Syncer struct {
	client     calclient.Client
	calendarID string
	linker     Linker
	refresher  Refresher
	lookahead  int
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithLinker persists remote ids of created events.
func WithLinker(l Linker) Option {
	return func(s *Syncer) { s.linker = l }
}

// WithRefresher enables the refresh-and-retry-once recovery on 401.
func WithRefresher(r Refresher) Option {
	return func(s *Syncer) { s.refresher = r }
}

// WithLookaheadMonths sets the window size. Values below 1 are ignored.
func WithLookaheadMonths(months int) Option {
	return func(s *Syncer) {
		if months > 0 {
			s.lookahead = months
		}
	}
}

// WithClock overrides the start of the sync window.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) { s.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Syncer) { s.logger = logger }
}

// NewSyncer creates a new Syncer pushing to calendarID through client.
func NewSyncer(client calclient.Client, calendarID string, opts ...Option) *Syncer {
	s := &Syncer{
		client:     client,
		calendarID: calendarID,
		lookahead:  DefaultLookaheadMonths,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Window returns the remote time range considered by Sync.
func (s *Syncer) Window() (time.Time, time.Time) {
	now := s.now()
	return now, now.AddDate(0, s.lookahead, 0)
}

// Sync performs the main synchronization logic. It stops at the first
// failure; the returned Result counts what was done up to that point.
func (s *Syncer) Sync(ctx context.Context, local []records.Event) (*Result, error) {
	result := &Result{}
	timeMin, timeMax := s.Window()
	s.logger.Info("starting sync", "calendar", s.calendarID, "local", len(local),
		"from", timeMin.Format(time.RFC3339), "to", timeMax.Format(time.RFC3339))

	var remote []*calendar.Event
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		remote, err = s.client.ListEvents(ctx, s.calendarID, timeMin, timeMax)
		return err
	})
	if err != nil {
		return result, &SyncError{Op: "list", Err: err}
	}

	remoteByID := make(map[string]*calendar.Event, len(remote))
	for _, event := range remote {
		remoteByID[event.Id] = event
	}

	// Locals linked to a listed remote event, keyed by remote id. When
	// several locals share an id the last one wins.
	linked := make(map[string]records.Event)
	var linkedOrder []string
	var toCreate []records.Event
	for _, event := range local {
		remoteID := event.GoogleCalendarEventID
		if remoteID == "" || remoteByID[remoteID] == nil {
			toCreate = append(toCreate, event)
			continue
		}
		if _, seen := linked[remoteID]; !seen {
			linkedOrder = append(linkedOrder, remoteID)
		} else {
			s.logger.Warn("several local events linked to one remote event", "remoteId", remoteID, "kept", event.ID)
		}
		linked[remoteID] = event
	}

	for _, event := range toCreate {
		if err := s.create(ctx, event); err != nil {
			return result, err
		}
		result.Created++
	}

	for _, remoteID := range linkedOrder {
		if err := s.update(ctx, remoteID, linked[remoteID]); err != nil {
			return result, err
		}
		result.Updated++
	}

	s.logger.Info("sync complete", "created", result.Created, "updated", result.Updated)
	return result, nil
}

func (s *Syncer) create(ctx context.Context, event records.Event) error {
	var created *calendar.Event
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.client.InsertEvent(ctx, s.calendarID, RemoteEvent(event))
		return err
	})
	if err != nil {
		return &SyncError{Op: "create", EventID: event.ID, Err: err}
	}
	s.logger.Debug("created remote event", "id", event.ID, "remoteId", created.Id, "title", event.Title)

	if s.linker == nil || event.ID == "" {
		return nil
	}
	if err := s.linker.LinkRemote(ctx, event.ID, created.Id); err != nil {
		return &SyncError{Op: "link", EventID: event.ID, Err: err}
	}
	return nil
}

func (s *Syncer) update(ctx context.Context, remoteID string, event records.Event) error {
	err := s.call(ctx, func(ctx context.Context) error {
		remote := RemoteEvent(event)
		// Cleared notes and attendees must reach the remote copy too.
		remote.ForceSendFields = []string{"Description", "Attendees"}
		_, err := s.client.PatchEvent(ctx, s.calendarID, remoteID, remote)
		return err
	})
	if err != nil {
		return &SyncError{Op: "update", EventID: event.ID, Err: err}
	}
	s.logger.Debug("updated remote event", "id", event.ID, "remoteId", remoteID, "title", event.Title)
	return nil
}

// call runs op, refreshing the token and retrying once if the provider
// answers 401. A second rejection expires the session.
func (s *Syncer) call(ctx context.Context, op func(ctx context.Context) error) error {
	policy := retry.Policy{
		MaxRetries: 1,
		Retryable:  calclient.IsUnauthorized,
	}
	if s.refresher != nil {
		policy.Prepare = func(ctx context.Context, cause error) error {
			s.logger.Info("calendar rejected token, refreshing", "error", cause)
			return s.refresher.Refresh(ctx)
		}
	}

	err := policy.Do(ctx, op)
	if err == nil {
		return nil
	}

	var exhausted *retry.ExhaustedError
	var prepare *retry.PrepareError
	if errors.As(err, &exhausted) || errors.As(err, &prepare) {
		if s.refresher != nil {
			s.refresher.Expire()
		}
		return fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	return err
}

// RemoteEvent builds the remote representation of a local event. Times are
// sent in UTC and the local id is kept in a private extended property.
func RemoteEvent(event records.Event) *calendar.Event {
	remote := &calendar.Event{
		Summary:     event.Title,
		Description: event.Notes,
		Start: &calendar.EventDateTime{
			DateTime: event.Start.UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
		End: &calendar.EventDateTime{
			DateTime: event.End.UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
	}

	for _, email := range event.Attendees {
		email = strings.TrimSpace(email)
		if email == "" {
			continue
		}
		remote.Attendees = append(remote.Attendees, &calendar.EventAttendee{Email: email})
	}

	if event.ID != "" {
		remote.ExtendedProperties = &calendar.EventExtendedProperties{
			Private: map[string]string{calclient.LocalIDProperty: event.ID},
		}
	}
	return remote
}

// LocalEvent is the inverse of RemoteEvent. All-day times map to midnight
// UTC. The local id is recovered from the private extended property when
// present; the remote id is not kept.
func LocalEvent(remote *calendar.Event) (records.Event, error) {
	start, err := eventTime(remote.Start)
	if err != nil {
		return records.Event{}, fmt.Errorf("event %q start: %w", remote.Summary, err)
	}
	end, err := eventTime(remote.End)
	if err != nil {
		return records.Event{}, fmt.Errorf("event %q end: %w", remote.Summary, err)
	}

	event := records.Event{
		Title: remote.Summary,
		Notes: remote.Description,
		Start: start,
		End:   end,
	}
	for _, attendee := range remote.Attendees {
		if attendee != nil && attendee.Email != "" {
			event.Attendees = append(event.Attendees, attendee.Email)
		}
	}
	if remote.ExtendedProperties != nil {
		event.ID = remote.ExtendedProperties.Private[calclient.LocalIDProperty]
	}
	return event, nil
}

func eventTime(t *calendar.EventDateTime) (time.Time, error) {
	switch {
	case t == nil:
		return time.Time{}, errors.New("missing time")
	case t.DateTime != "":
		return time.Parse(time.RFC3339, t.DateTime)
	case t.Date != "":
		return time.Parse("2006-01-02", t.Date)
	}
	return time.Time{}, errors.New("missing time")
}
