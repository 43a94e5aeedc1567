package ics

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "studycal/internal/log"
	"studycal/internal/model"
)

const defaultMaxOccurrencesPerEvent = 500

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation is the zone occurrences are converted to. Nil means UTC.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd bound the window; an occurrence is kept when it
	// overlaps [RangeStart, RangeEnd).
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single RRULE. Zero means the default.
	MaxOccurrencesPerEvent int
}

// Occurrence is one concrete instance of a ParsedEvent.
type Occurrence struct {
	UID   string
	Event ParsedEvent
	Start time.Time
	End   time.Time
}

// ExpandResult holds occurrences sorted by start, plus UIDs that hit the cap.
type ExpandResult struct {
	Occurrences     []Occurrence
	TruncatedEvents []string
}

// ExpandOccurrences expands single and RRULE events into occurrences inside
// the configured window, applying EXDATE and RECURRENCE-ID overrides.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.UTC
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		} else {
			baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
		}
	}

	for uid, baseEvents := range baseByUID {
		ov := overridesByUID[uid]
		truncated := false
		for _, ev := range baseEvents {
			occ, hitCap := expandEvent(ev, ov, cfg)
			truncated = truncated || hitCap
			result.Occurrences = append(result.Occurrences, occ...)
		}
		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Warn("expand: occurrences truncated", "uid", uid, "cap", cfg.MaxOccurrencesPerEvent)
		}
	}

	sort.SliceStable(result.Occurrences, func(i, j int) bool {
		a, b := result.Occurrences[i], result.Occurrences[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.UID < b.UID
	})
	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]Occurrence, bool) {
	if ev.RawRRule == "" {
		return expandSingleEvent(ev, cfg), false
	}
	return expandRecurringEvent(ev, overrides, cfg)
}

func expandSingleEvent(ev ParsedEvent, cfg ExpandConfig) []Occurrence {
	if !overlaps(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
		return nil
	}
	return []Occurrence{makeOccurrence(ev, ev.Start, ev.End, cfg.DisplayLocation)}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]Occurrence, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the lower bound by the event length so an instance that started
	// before the window but runs into it is still found.
	dur := ev.End.Sub(ev.Start)
	from := cfg.RangeStart.Add(-dur).In(ev.Start.Location())
	to := cfg.RangeEnd.In(ev.Start.Location())
	starts := set.Between(from, to, true)

	hitCap := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	out := make([]Occurrence, 0, len(starts))
	for _, s := range starts {
		occEv, start, end := ev, s, s.Add(dur)
		if o, ok := findOverride(overrides, s); ok {
			occEv, start, end = o, o.Start, o.End
		}
		if !overlaps(start, end, cfg.RangeStart, cfg.RangeEnd) {
			continue
		}
		out = append(out, makeOccurrence(occEv, start, end, cfg.DisplayLocation))
	}
	return out, hitCap
}

// findOverride returns the override whose RECURRENCE-ID equals start.
func findOverride(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func makeOccurrence(ev ParsedEvent, start, end time.Time, loc *time.Location) Occurrence {
	return Occurrence{UID: ev.UID, Event: ev, Start: start.In(loc), End: end.In(loc)}
}

// overlaps treats both ranges as half-open. A zero-length event overlaps
// when its instant lies inside [bStart, bEnd).
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if !aEnd.After(aStart) {
		return !aStart.Before(bStart) && aStart.Before(bEnd)
	}
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// SkippedOccurrence explains why an occurrence did not become an event.
type SkippedOccurrence struct {
	UID    string
	Start  time.Time
	Reason string
}

// WeekEvents converts occurrences into grid events for the week starting at
// weekStart (a midnight in the display location). All-day and multi-day
// occurrences have no place on the time grid and are reported as skipped.
// An occurrence ending exactly at the next midnight is trimmed to 23:59.
func WeekEvents(occs []Occurrence, weekStart time.Time) ([]model.CalendarEvent, []SkippedOccurrence) {
	weekEnd := weekStart.AddDate(0, 0, 7)
	events := make([]model.CalendarEvent, 0, len(occs))
	var skipped []SkippedOccurrence

	skip := func(o Occurrence, reason string) {
		skipped = append(skipped, SkippedOccurrence{UID: o.UID, Start: o.Start, Reason: reason})
	}

	for _, o := range occs {
		if o.Event.AllDay {
			skip(o, "all-day")
			continue
		}
		start := o.Start.In(weekStart.Location())
		end := o.End.In(weekStart.Location())
		if start.Before(weekStart) || !start.Before(weekEnd) {
			skip(o, "outside week")
			continue
		}

		startMin := wallMinutes(start)
		endMin := wallMinutes(end)
		switch {
		case sameDate(start, end):
		case sameDate(start.AddDate(0, 0, 1), end) && endMin == 0:
			endMin = model.MinutesPerDay - 1
		default:
			skip(o, "crosses midnight")
			continue
		}

		ev := model.CalendarEvent{
			Title:       o.Event.Summary,
			StartTime:   model.TimeOfDay(startMin),
			EndTime:     model.TimeOfDay(endMin),
			Day:         model.DayOf(start.Weekday()),
			Color:       model.Color(strings.ToLower(o.Event.Color)).Normalize(),
			Description: o.Event.Description,
			Location:    o.Event.Location,
			Organizer:   o.Event.Organizer,
			Attendees:   append([]string{}, o.Event.Attendees...),
		}
		if ev.Title == "" {
			ev.Title = "(untitled)"
		}
		if err := ev.Validate(); err != nil {
			skip(o, err.Error())
			continue
		}
		events = append(events, ev)
	}
	return events, skipped
}

// wallMinutes is the local clock reading of t in minutes since midnight.
// Elapsed time from midnight differs from it on daylight-saving days.
func wallMinutes(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
