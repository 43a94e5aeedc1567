// Package ics imports iCalendar feeds into the active week and exports the
// week as a weekly-recurring calendar.
package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "studycal/internal/log"
)

var (
	ErrEmptyBody = errors.New("empty ICS body")
	ErrMalformed = errors.New("malformed ICS payload")
)

// ParsedEvent is one VEVENT, before recurrence expansion.
type ParsedEvent struct {
	Source Source

	UID string
	Seq int

	Summary     string
	Description string
	Location    string
	Organizer   string
	Attendees   []string
	Color       string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID, when this VEVENT overrides one instance
	IsOverride bool
}

// ParseICS parses an ICS payload. A VEVENT that cannot be read is logged and
// skipped; only a payload that is not iCalendar at all fails.
func ParseICS(src Source, body []byte) ([]ParsedEvent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyBody
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(src, comp)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "id", src.ID, "err", perr)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "id", src.ID, "event_count", len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent) (ParsedEvent, error) {
	out := ParsedEvent{Source: src}

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if seqProp := ve.GetProperty(ical.ComponentPropertySequence); seqProp != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(seqProp.Value)); err == nil {
			out.Seq = n
		}
	}

	out.Summary = propValue(ve, ical.ComponentPropertySummary)
	out.Description = propValue(ve, ical.ComponentPropertyDescription)
	out.Location = propValue(ve, ical.ComponentPropertyLocation)
	out.Color = propValue(ve, ical.ComponentPropertyColor)

	if p := ve.GetProperty(ical.ComponentPropertyOrganizer); p != nil {
		out.Organizer = displayName(p)
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyAttendee) {
		if name := displayName(p); name != "" {
			out.Attendees = append(out.Attendees, name)
		}
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	// VALUE=DATE or a bare YYYYMMDD marks an all-day event.
	if vs := dtStart.ICalParameters["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		out.AllDay = true
	}
	if !strings.Contains(dtStart.Value, "T") {
		out.AllDay = true
	}

	var err error
	if out.AllDay {
		out.Start, err = ve.GetAllDayStartAt()
		if err != nil {
			return out, err
		}
		out.End, err = ve.GetAllDayEndAt()
		if err != nil {
			out.End = out.Start.AddDate(0, 0, 1)
		}
	} else {
		out.Start, err = ve.GetStartAt()
		if err != nil {
			return out, err
		}
		out.End, err = ve.GetEndAt()
		if err != nil {
			// No DTEND and no DURATION: a zero-length instant.
			out.End = out.Start
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, out.Start.Location()); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if ridProp := ve.GetProperty(ical.ComponentPropertyRecurrenceId); ridProp != nil {
		if t, err := parseICSTime(ridProp.Value, out.Start.Location()); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

func propValue(ve *ical.VEvent, p ical.ComponentProperty) string {
	if prop := ve.GetProperty(p); prop != nil {
		return prop.Value
	}
	return ""
}

// displayName prefers the CN parameter over the mailto address.
func displayName(p *ical.IANAProperty) string {
	if cn := p.ICalParameters["CN"]; len(cn) > 0 && strings.TrimSpace(cn[0]) != "" {
		return strings.TrimSpace(cn[0])
	}
	return strings.TrimPrefix(strings.TrimSpace(p.Value), "mailto:")
}

// parseICSTime parses the bare DATE / DATE-TIME forms used by EXDATE and
// RECURRENCE-ID. Floating values are read in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if loc == nil {
		loc = time.UTC
	}
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}
