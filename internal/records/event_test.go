package records

import (
	"context"
	"testing"
	"time"

	"github.com/beekhof/crm-records/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEventService(t *testing.T) *EventService {
	t.Helper()
	return NewEventService(store.NewMemStore(nil, nil), WithClock(fixedClock))
}

func TestEventService_AddGet(t *testing.T) {
	ctx := context.Background()
	svc := newEventService(t)

	start := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	id, err := svc.Add(ctx, Event{
		UserID:    "u1",
		ClientID:  "c1",
		Title:     "Quarterly review",
		Start:     start,
		End:       start.Add(time.Hour),
		Type:      "meeting",
		Attendees: []string{"jane@acme.test"},
	})
	require.NoError(t, err)

	got, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Quarterly review", got.Title)
	assert.Equal(t, "c1", got.ClientID)
	assert.True(t, got.Start.Equal(start))
	assert.Equal(t, []string{"jane@acme.test"}, got.Attendees)
	assert.Empty(t, got.GoogleCalendarEventID)
	assert.True(t, got.CreatedAt.Equal(fixedNow))
}

func TestEventService_Validation(t *testing.T) {
	ctx := context.Background()
	svc := newEventService(t)
	start := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

	_, err := svc.Add(ctx, Event{Start: start, End: start.Add(time.Hour)})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = svc.Add(ctx, Event{Title: "Backwards", Start: start, End: start.Add(-time.Hour)})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = svc.Add(ctx, Event{Title: "No times"})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestEventService_ListByUserAppliesWindow(t *testing.T) {
	ctx := context.Background()
	svc := newEventService(t)
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	add := func(user, title string, start time.Time, d time.Duration) {
		t.Helper()
		_, err := svc.Add(ctx, Event{UserID: user, Title: title, Start: start, End: start.Add(d)})
		require.NoError(t, err)
	}
	add("u1", "before", day.Add(-2*time.Hour), time.Hour)
	add("u1", "inside", day.Add(9*time.Hour), time.Hour)
	add("u1", "overruns", day.Add(23*time.Hour), 2*time.Hour)
	add("u2", "other user", day.Add(10*time.Hour), time.Hour)

	events, err := svc.ListByUser(ctx, "u1", day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "inside", events[0].Title)

	open, err := svc.ListByUser(ctx, "u1", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, open, 3)
}

func TestEventService_ListByClient(t *testing.T) {
	ctx := context.Background()
	svc := newEventService(t)
	start := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	for _, clientID := range []string{"c1", "c2", "c1", ""} {
		_, err := svc.Add(ctx, Event{UserID: "u1", ClientID: clientID, Title: "call", Start: start, End: start.Add(time.Hour)})
		require.NoError(t, err)
	}

	events, err := svc.ListByClient(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestEventService_LinkRemote(t *testing.T) {
	ctx := context.Background()
	svc := newEventService(t)
	start := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	id, err := svc.Add(ctx, Event{UserID: "u1", Title: "call", Start: start, End: start.Add(time.Hour)})
	require.NoError(t, err)

	require.NoError(t, svc.LinkRemote(ctx, id, "remote-123"))

	got, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "remote-123", got.GoogleCalendarEventID)

	assert.ErrorIs(t, svc.LinkRemote(ctx, "missing", "remote-456"), ErrNotFound)
}

func TestEventService_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	svc := newEventService(t)
	start := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	id, err := svc.Add(ctx, Event{UserID: "u1", Title: "call", Start: start, End: start.Add(time.Hour)})
	require.NoError(t, err)

	title := "follow-up call"
	attendees := []string{"a@x.test", "b@x.test"}
	require.NoError(t, svc.Update(ctx, id, EventPatch{Title: &title, Attendees: &attendees}))

	got, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "follow-up call", got.Title)
	assert.Equal(t, attendees, got.Attendees)

	require.NoError(t, svc.Delete(ctx, id))
	_, err = svc.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEventService_UpdateRejectsOneSidedInversion(t *testing.T) {
	ctx := context.Background()
	svc := newEventService(t)
	start := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)

	id, err := svc.Add(ctx, Event{UserID: "u1", Title: "call", Start: start, End: start.Add(time.Hour)})
	require.NoError(t, err)

	earlyEnd := start.Add(-time.Hour)
	assert.ErrorIs(t, svc.Update(ctx, id, EventPatch{End: &earlyEnd}), ErrInvalid)

	lateStart := start.Add(2 * time.Hour)
	assert.ErrorIs(t, svc.Update(ctx, id, EventPatch{Start: &lateStart}), ErrInvalid)

	got, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.Start.Equal(start))
	assert.True(t, got.End.Equal(start.Add(time.Hour)))

	laterEnd := start.Add(3 * time.Hour)
	require.NoError(t, svc.Update(ctx, id, EventPatch{End: &laterEnd}))
	require.NoError(t, svc.Update(ctx, id, EventPatch{Start: &lateStart}))

	missing := start
	assert.ErrorIs(t, svc.Update(ctx, "missing", EventPatch{Start: &missing}), ErrNotFound)
}
