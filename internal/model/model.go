// Package model holds the calendar event type and the time-of-day, weekday
// and color values it is built from.
package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay is the exclusive upper bound of a TimeOfDay.
const MinutesPerDay = 24 * 60

var (
	// ErrInvalidTime is returned when a time-of-day string cannot be parsed
	// or falls outside [00:00, 23:59].
	ErrInvalidTime = errors.New("invalid time of day")
	// ErrInvalidRange is returned when an event's start is not strictly
	// before its end.
	ErrInvalidRange = errors.New("start time must be before end time")
	// ErrInvalidDay is returned for a day index outside 1..7.
	ErrInvalidDay = errors.New("day index out of range")
)

// TimeOfDay is a wall-clock time with minute resolution, stored as minutes
// since midnight. It marshals as "HH:MM".
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from an hour and minute.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses "HH:MM" (or "H:MM") in 24-hour form.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || len(mm) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return NewTimeOfDay(h, m), nil
}

// MustParseTimeOfDay is ParseTimeOfDay for literals; it panics on error.
func MustParseTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int { return int(t) }

// Valid reports whether t lies in [0, MinutesPerDay).
func (t TimeOfDay) Valid() bool { return t >= 0 && t < MinutesPerDay }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d minutes", ErrInvalidTime, int(t))
	}
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// On returns the instant of t on the given date, in the date's location.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, mo, d := date.Date()
	return time.Date(y, mo, d, t.Hour(), t.Minute(), 0, 0, date.Location())
}

// CalendarEvent is a single block on the weekly grid.
type CalendarEvent struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	StartTime   TimeOfDay `json:"startTime"`
	EndTime     TimeOfDay `json:"endTime"`
	Day         int       `json:"day"`
	Color       Color     `json:"color"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Organizer   string    `json:"organizer"`
	Attendees   []string  `json:"attendees"`
}

// Duration returns the event length in minutes.
func (e CalendarEvent) Duration() int {
	return int(e.EndTime - e.StartTime)
}

// Validate checks the time and day invariants.
func (e CalendarEvent) Validate() error {
	if !e.StartTime.Valid() || !e.EndTime.Valid() {
		return ErrInvalidTime
	}
	if e.StartTime >= e.EndTime {
		return ErrInvalidRange
	}
	if !ValidDay(e.Day) {
		return ErrInvalidDay
	}
	return nil
}

// Clone returns a copy that shares no slices with e.
func (e CalendarEvent) Clone() CalendarEvent {
	out := e
	if e.Attendees != nil {
		out.Attendees = append([]string(nil), e.Attendees...)
	}
	return out
}
