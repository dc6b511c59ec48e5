package calendar

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"google.golang.org/api/calendar/v3"
)

// ProductID identifies exported calendars.
const ProductID = "-//CRM Records//EN"

// WriteICS encodes events as a single VCALENDAR stream. stamp is used for
// DTSTAMP on every component.
func WriteICS(w io.Writer, events []*calendar.Event, stamp time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)

	for _, event := range events {
		vevent, err := eventToICal(event, stamp)
		if err != nil {
			return err
		}
		cal.Children = append(cal.Children, vevent)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode iCalendar: %w", err)
	}
	return nil
}

// eventToICal converts a Google Calendar Event to a VEVENT component.
func eventToICal(event *calendar.Event, stamp time.Time) (*ical.Component, error) {
	vevent := ical.NewComponent(ical.CompEvent)

	uid := event.Id
	if uid == "" && event.ExtendedProperties != nil {
		uid = event.ExtendedProperties.Private[LocalIDProperty]
	}
	if uid == "" {
		return nil, fmt.Errorf("event %q has no id", event.Summary)
	}
	vevent.Props.SetText(ical.PropUID, uid)
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())

	if event.Summary != "" {
		vevent.Props.SetText(ical.PropSummary, event.Summary)
	}
	if event.Description != "" {
		vevent.Props.SetText(ical.PropDescription, event.Description)
	}
	if event.Location != "" {
		vevent.Props.SetText(ical.PropLocation, event.Location)
	}

	if err := setEventTime(vevent, ical.PropDateTimeStart, event.Start); err != nil {
		return nil, fmt.Errorf("event %s: %w", uid, err)
	}
	if err := setEventTime(vevent, ical.PropDateTimeEnd, event.End); err != nil {
		return nil, fmt.Errorf("event %s: %w", uid, err)
	}

	for _, attendee := range event.Attendees {
		if attendee == nil || attendee.Email == "" {
			continue
		}
		prop := ical.NewProp(ical.PropAttendee)
		prop.Value = "mailto:" + strings.ToLower(attendee.Email)
		vevent.Props.Add(prop)
	}

	if event.ExtendedProperties != nil {
		if localID := event.ExtendedProperties.Private[LocalIDProperty]; localID != "" {
			vevent.Props.SetText("X-LOCAL-EVENT-ID", localID)
		}
	}

	return vevent, nil
}

func setEventTime(vevent *ical.Component, name string, t *calendar.EventDateTime) error {
	switch {
	case t == nil:
		return nil
	case t.Date != "":
		// All-day event
		date, err := time.Parse("2006-01-02", t.Date)
		if err != nil {
			return fmt.Errorf("invalid %s date %q: %w", name, t.Date, err)
		}
		prop := ical.NewProp(name)
		prop.SetDate(date)
		vevent.Props.Set(prop)
	case t.DateTime != "":
		dt, err := time.Parse(time.RFC3339, t.DateTime)
		if err != nil {
			return fmt.Errorf("invalid %s time %q: %w", name, t.DateTime, err)
		}
		vevent.Props.SetDateTime(name, dt.UTC())
	}
	return nil
}

// ReadICS decodes every VEVENT of an iCalendar stream. Recurrence rules are
// not expanded; each VEVENT yields one event.
func ReadICS(r io.Reader) ([]*calendar.Event, error) {
	dec := ical.NewDecoder(r)
	var events []*calendar.Event
	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode iCalendar: %w", err)
		}

		for _, comp := range cal.Children {
			if comp.Name != ical.CompEvent {
				continue
			}
			event, err := icalToEvent(comp)
			if err != nil {
				return nil, err
			}
			events = append(events, event)
		}
	}
}

// icalToEvent converts a VEVENT component to Google Calendar Event format.
func icalToEvent(vevent *ical.Component) (*calendar.Event, error) {
	event := &calendar.Event{
		Id:          propText(vevent, ical.PropUID),
		Summary:     propText(vevent, ical.PropSummary),
		Description: propText(vevent, ical.PropDescription),
		Location:    propText(vevent, ical.PropLocation),
	}

	dtstart := vevent.Props.Get(ical.PropDateTimeStart)
	if dtstart == nil {
		return nil, fmt.Errorf("event %q has no DTSTART", event.Id)
	}
	start, err := dtstart.DateTime(time.UTC)
	if err != nil {
		return nil, fmt.Errorf("event %q: invalid DTSTART: %w", event.Id, err)
	}
	allDay := dtstart.Params.Get(ical.ParamValue) == string(ical.ValueDate)
	event.Start = eventDateTime(start, allDay)

	// Without DTEND an all-day event lasts one day and a timed event has no
	// duration.
	end := start
	if allDay {
		end = start.AddDate(0, 0, 1)
	}
	if dtend := vevent.Props.Get(ical.PropDateTimeEnd); dtend != nil {
		if end, err = dtend.DateTime(time.UTC); err != nil {
			return nil, fmt.Errorf("event %q: invalid DTEND: %w", event.Id, err)
		}
	}
	event.End = eventDateTime(end, allDay)

	for _, prop := range vevent.Props.Values(ical.PropAttendee) {
		email := prop.Value
		if len(email) > len("mailto:") && strings.EqualFold(email[:len("mailto:")], "mailto:") {
			email = email[len("mailto:"):]
		}
		if email != "" {
			event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: email})
		}
	}

	if localID := propText(vevent, "X-LOCAL-EVENT-ID"); localID != "" {
		event.ExtendedProperties = &calendar.EventExtendedProperties{
			Private: map[string]string{LocalIDProperty: localID},
		}
	}

	return event, nil
}

func eventDateTime(t time.Time, allDay bool) *calendar.EventDateTime {
	if allDay {
		return &calendar.EventDateTime{Date: t.Format("2006-01-02")}
	}
	return &calendar.EventDateTime{DateTime: t.UTC().Format(time.RFC3339)}
}

func propText(comp *ical.Component, name string) string {
	prop := comp.Props.Get(name)
	if prop == nil {
		return ""
	}
	if text, err := prop.Text(); err == nil {
		return text
	}
	return prop.Value
}
