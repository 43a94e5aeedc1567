package ics

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"studycal/internal/model"
)

// ExportOptions tune Export.
type ExportOptions struct {
	// Name is written as X-WR-CALNAME.
	Name string
	// Domain qualifies UIDs and placeholder addresses.
	Domain string
	// Weeks limits the weekly recurrence (COUNT). Zero repeats forever.
	Weeks int
	// Now stamps DTSTAMP. Zero means time.Now.
	Now time.Time
}

var rruleDays = [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// Export renders events as a calendar in which each event repeats weekly
// from its date in the week starting at weekStart. Times are written with
// the TZID of weekStart's location so BYDAY matches the local weekday.
func Export(events []model.CalendarEvent, weekStart time.Time, opts ExportOptions) (string, error) {
	if opts.Domain == "" {
		opts.Domain = "studycal.local"
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	cal := ical.NewCalendarFor("studycal")
	cal.SetMethod(ical.MethodPublish)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	loc := weekStart.Location()
	if loc != time.UTC {
		cal.SetXWRTimezone(loc.String())
	}

	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			return "", fmt.Errorf("event %d: %w", ev.ID, err)
		}
		date := weekStart.AddDate(0, 0, (int(model.WeekdayOf(ev.Day))-int(weekStart.Weekday())+7)%7)
		start := ev.StartTime.On(date)
		end := ev.EndTime.On(date)

		rule := rrule.ROption{
			Freq:      rrule.WEEKLY,
			Count:     opts.Weeks,
			Byweekday: []rrule.Weekday{rruleDays[start.Weekday()]},
		}

		vev := cal.AddEvent(fmt.Sprintf("studycal-%d@%s", ev.ID, opts.Domain))
		vev.SetDtStampTime(opts.Now)
		setTime(vev, ical.ComponentPropertyDtStart, start)
		setTime(vev, ical.ComponentPropertyDtEnd, end)
		vev.AddRrule(rule.RRuleString())
		vev.SetSummary(ev.Title)
		if ev.Description != "" {
			vev.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			vev.SetLocation(ev.Location)
		}
		vev.SetColor(string(ev.Color.Normalize()))
		if ev.Organizer != "" {
			vev.SetOrganizer(address(ev.Organizer, opts.Domain), ical.WithCN(ev.Organizer))
		}
		for _, a := range ev.Attendees {
			vev.AddAttendee(address(a, opts.Domain), ical.WithCN(a))
		}
	}
	return cal.Serialize(), nil
}

func setTime(vev *ical.VEvent, prop ical.ComponentProperty, t time.Time) {
	if t.Location() == time.UTC {
		vev.SetProperty(prop, t.Format("20060102T150405Z"))
		return
	}
	vev.SetProperty(prop, t.Format("20060102T150405"), ical.WithTZID(t.Location().String()))
}

// address returns name when it already looks like an email address, and a
// placeholder mailbox otherwise; the readable name travels in CN.
func address(name, domain string) string {
	if strings.Contains(name, "@") && !strings.ContainsAny(name, " \t") {
		return name
	}
	return "noreply@" + domain
}
