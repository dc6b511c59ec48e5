package calendar

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
)

func TestWriteICS(t *testing.T) {
	start := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	stamp := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	meeting := timedEvent("Quarterly review", start)
	meeting.Id = "remote-1"
	meeting.Description = "Bring the numbers"
	meeting.Attendees = []*calendar.EventAttendee{{Email: "Jane@Acme.test"}}
	meeting.ExtendedProperties = &calendar.EventExtendedProperties{
		Private: map[string]string{LocalIDProperty: "local-1"},
	}

	holiday := &calendar.Event{
		Summary: "Offsite",
		Start:   &calendar.EventDateTime{Date: "2025-06-12"},
		End:     &calendar.EventDateTime{Date: "2025-06-13"},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{LocalIDProperty: "local-2"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteICS(&buf, []*calendar.Event{meeting, holiday}, stamp))
	assert.True(t, strings.HasPrefix(buf.String(), "BEGIN:VCALENDAR"))

	cal, err := ical.NewDecoder(&buf).Decode()
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 2)

	uid, err := events[0].Props.Text(ical.PropUID)
	require.NoError(t, err)
	assert.Equal(t, "remote-1", uid)

	summary, err := events[0].Props.Text(ical.PropSummary)
	require.NoError(t, err)
	assert.Equal(t, "Quarterly review", summary)

	dtstart, err := events[0].DateTimeStart(time.UTC)
	require.NoError(t, err)
	assert.True(t, dtstart.Equal(start))

	attendee := events[0].Props.Get(ical.PropAttendee)
	require.NotNil(t, attendee)
	assert.Equal(t, "mailto:jane@acme.test", attendee.Value)

	uid, err = events[1].Props.Text(ical.PropUID)
	require.NoError(t, err)
	assert.Equal(t, "local-2", uid, "unsynced events fall back to the local id")
}

func TestWriteICS_RequiresID(t *testing.T) {
	var buf bytes.Buffer
	err := WriteICS(&buf, []*calendar.Event{{Summary: "anonymous"}}, time.Now())
	assert.Error(t, err)
}

func TestWriteICS_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteICS(&buf, nil, time.Now()))
	assert.Contains(t, buf.String(), "PRODID:"+ProductID)
}

func TestReadICS_RoundTrip(t *testing.T) {
	start := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	meeting := timedEvent("Quarterly review, part 2", start)
	meeting.Id = "remote-1"
	meeting.Attendees = []*calendar.EventAttendee{{Email: "jane@acme.test"}}
	meeting.ExtendedProperties = &calendar.EventExtendedProperties{
		Private: map[string]string{LocalIDProperty: "local-1"},
	}
	holiday := &calendar.Event{
		Id:      "remote-2",
		Summary: "Offsite",
		Start:   &calendar.EventDateTime{Date: "2025-06-12"},
		End:     &calendar.EventDateTime{Date: "2025-06-14"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteICS(&buf, []*calendar.Event{meeting, holiday}, start))

	events, err := ReadICS(&buf)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "remote-1", events[0].Id)
	assert.Equal(t, "Quarterly review, part 2", events[0].Summary)
	assert.Equal(t, meeting.Start.DateTime, events[0].Start.DateTime)
	assert.Equal(t, meeting.End.DateTime, events[0].End.DateTime)
	require.Len(t, events[0].Attendees, 1)
	assert.Equal(t, "jane@acme.test", events[0].Attendees[0].Email)
	assert.Equal(t, "local-1", events[0].ExtendedProperties.Private[LocalIDProperty])

	assert.Equal(t, "2025-06-12", events[1].Start.Date)
	assert.Equal(t, "2025-06-14", events[1].End.Date)
	assert.Nil(t, events[1].ExtendedProperties)
}

func TestReadICS_DefaultsMissingEnd(t *testing.T) {
	const input = "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:-//Test//EN\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:all-day\r\n" +
		"DTSTAMP:20250601T000000Z\r\n" +
		"DTSTART;VALUE=DATE:20250612\r\n" +
		"SUMMARY:Holiday\r\n" +
		"END:VEVENT\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:instant\r\n" +
		"DTSTAMP:20250601T000000Z\r\n" +
		"DTSTART:20250610T090000Z\r\n" +
		"SUMMARY:Deadline\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	events, err := ReadICS(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "2025-06-13", events[0].End.Date)
	assert.Equal(t, "2025-06-10T09:00:00Z", events[1].End.DateTime)
}

func TestReadICS_Invalid(t *testing.T) {
	_, err := ReadICS(strings.NewReader("not a calendar"))
	assert.Error(t, err)
}
