package records

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/beekhof/crm-records/internal/store"
)

// Event is a calendar event record, optionally tied to a client and to an
// event in the remote calendar. Attendees are the email addresses invited
// when the event is pushed to the remote calendar. GoogleCalendarEventID is a
// weak reference: the remote side owns that event's lifecycle.
type Event struct {
	ID                    string    `json:"id"`
	UserID                string    `json:"userId"`
	ClientID              string    `json:"clientId,omitempty"`
	Start                 time.Time `json:"start"`
	End                   time.Time `json:"end"`
	Title                 string    `json:"title"`
	Type                  string    `json:"type,omitempty"`
	Status                string    `json:"status,omitempty"`
	Notes                 string    `json:"notes,omitempty"`
	Attendees             []string  `json:"attendees,omitempty"`
	GoogleCalendarEventID string    `json:"googleCalendarEventId,omitempty"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

func (e Event) validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return invalid("event title is required")
	}
	if e.Start.IsZero() || e.End.IsZero() {
		return invalid("event start and end are required")
	}
	if e.End.Before(e.Start) {
		return invalid("event ends before it starts")
	}
	return nil
}

func (e Event) document() store.Document {
	doc := store.Document{
		"userId":    e.UserID,
		"start":     e.Start,
		"end":       e.End,
		"title":     e.Title,
		"type":      e.Type,
		"status":    e.Status,
		"notes":     e.Notes,
		"createdAt": e.CreatedAt,
		"updatedAt": e.UpdatedAt,
	}
	// Optional references are omitted rather than stored empty so that
	// "field is set" checks keep their meaning.
	if e.ClientID != "" {
		doc["clientId"] = e.ClientID
	}
	if e.GoogleCalendarEventID != "" {
		doc["googleCalendarEventId"] = e.GoogleCalendarEventID
	}
	if len(e.Attendees) > 0 {
		doc["attendees"] = append([]string(nil), e.Attendees...)
	}
	return doc
}

func eventFromDocument(id string, doc store.Document) Event {
	return Event{
		ID:                    id,
		UserID:                str(doc, "userId"),
		ClientID:              str(doc, "clientId"),
		Start:                 timestamp(doc, "start"),
		End:                   timestamp(doc, "end"),
		Title:                 str(doc, "title"),
		Type:                  str(doc, "type"),
		Status:                str(doc, "status"),
		Notes:                 str(doc, "notes"),
		Attendees:             stringList(doc, "attendees"),
		GoogleCalendarEventID: str(doc, "googleCalendarEventId"),
		CreatedAt:             timestamp(doc, "createdAt"),
		UpdatedAt:             timestamp(doc, "updatedAt"),
	}
}

// EventPatch lists the fields to change in an Update. Nil fields are left
// untouched.
type EventPatch struct {
	ClientID  *string    `json:"clientId,omitempty"`
	Start     *time.Time `json:"start,omitempty"`
	End       *time.Time `json:"end,omitempty"`
	Title     *string    `json:"title,omitempty"`
	Type      *string    `json:"type,omitempty"`
	Status    *string    `json:"status,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
	Attendees *[]string  `json:"attendees,omitempty"`
}

func (p EventPatch) validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return invalid("event title cannot be cleared")
	}
	if p.Start != nil && p.End != nil && p.End.Before(*p.Start) {
		return invalid("event ends before it starts")
	}
	return nil
}

func (p EventPatch) fields() store.Document {
	fields := store.Document{}
	setString(fields, "clientId", p.ClientID)
	setString(fields, "title", p.Title)
	setString(fields, "type", p.Type)
	setString(fields, "status", p.Status)
	setString(fields, "notes", p.Notes)
	if p.Start != nil {
		fields["start"] = *p.Start
	}
	if p.End != nil {
		fields["end"] = *p.End
	}
	if p.Attendees != nil {
		fields["attendees"] = append([]string(nil), (*p.Attendees)...)
	}
	return fields
}

// EventService reads and writes calendar event records.
type EventService struct {
	store  store.Store
	now    func() time.Time
	logger *slog.Logger
}

// NewEventService creates an EventService over s.
func NewEventService(s store.Store, opts ...Option) *EventService {
	o := newOptions(opts)
	return &EventService{store: s, now: o.now, logger: o.logger}
}

// Get returns the event with the given id, or ErrNotFound.
func (s *EventService) Get(ctx context.Context, id string) (*Event, error) {
	doc, err := s.store.Get(ctx, store.Events, id)
	if err != nil {
		return nil, s.fail("get", id, err)
	}
	e := eventFromDocument(id, doc)
	return &e, nil
}

// ListByUser returns the user's events starting at or after from and ending
// at or before to. A zero from or to leaves that side open.
func (s *EventService) ListByUser(ctx context.Context, userID string, from, to time.Time) ([]Event, error) {
	filters := []store.Filter{store.Where("userId", store.Equal, userID)}
	if !from.IsZero() {
		filters = append(filters, store.Where("start", store.GreaterEqual, from))
	}
	events, err := s.query(ctx, "list", filters...)
	if err != nil {
		return nil, err
	}
	if to.IsZero() {
		return events, nil
	}

	// The store allows a range on one field only; the end bound is applied here.
	filtered := events[:0]
	for _, e := range events {
		if !e.End.After(to) {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

// ListByClient returns every event referencing the client.
func (s *EventService) ListByClient(ctx context.Context, clientID string) ([]Event, error) {
	return s.query(ctx, "list", store.Where("clientId", store.Equal, clientID))
}

// Add stores a new event and returns its id.
func (s *EventService) Add(ctx context.Context, e Event) (string, error) {
	if err := e.validate(); err != nil {
		return "", err
	}
	now := s.now()
	e.CreatedAt = now
	e.UpdatedAt = now

	id, err := s.store.Add(ctx, store.Events, e.document())
	if err != nil {
		return "", s.fail("create", "", err)
	}
	s.logger.Debug("created event", "id", id, "title", e.Title)
	return id, nil
}

// Update merges the patch into an existing event and refreshes updatedAt.
func (s *EventService) Update(ctx context.Context, id string, patch EventPatch) error {
	if err := patch.validate(); err != nil {
		return err
	}
	if (patch.Start == nil) != (patch.End == nil) {
		if err := s.checkBounds(ctx, id, patch); err != nil {
			return err
		}
	}
	fields := patch.fields()
	fields["updatedAt"] = s.now()

	if err := s.store.Update(ctx, store.Events, id, fields); err != nil {
		return s.fail("update", id, err)
	}
	return nil
}

// checkBounds validates a patch moving one end of an event against the
// stored other end.
func (s *EventService) checkBounds(ctx context.Context, id string, patch EventPatch) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	start, end := existing.Start, existing.End
	if patch.Start != nil {
		start = *patch.Start
	}
	if patch.End != nil {
		end = *patch.End
	}
	if end.Before(start) {
		return invalid("event ends before it starts")
	}
	return nil
}

// Delete removes an event. Deleting a missing event is not an error.
func (s *EventService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, store.Events, id); err != nil {
		return s.fail("delete", id, err)
	}
	return nil
}

// LinkRemote records the id of the remote calendar event created for the
// local event.
func (s *EventService) LinkRemote(ctx context.Context, id, remoteID string) error {
	fields := store.Document{
		"googleCalendarEventId": remoteID,
		"updatedAt":             s.now(),
	}
	if err := s.store.Update(ctx, store.Events, id, fields); err != nil {
		return s.fail("link", id, err)
	}
	return nil
}

func (s *EventService) query(ctx context.Context, op string, filters ...store.Filter) ([]Event, error) {
	found, err := s.store.Query(ctx, store.Events, filters...)
	if err != nil {
		return nil, s.fail(op, "", err)
	}
	events := make([]Event, 0, len(found))
	for _, r := range found {
		events = append(events, eventFromDocument(r.ID, r.Data))
	}
	return events, nil
}

func (s *EventService) fail(op, id string, err error) error {
	return logFailure(s.logger, op, store.Events, id, err)
}
