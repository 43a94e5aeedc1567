package importer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"studycal/internal/model"
)

var ErrBadClock = errors.New("unrecognized clock time")

// ParseClock accepts 12-hour times ("9:30 AM", "12:00pm", "7 PM") and plain
// 24-hour times ("07:30", "16:30").
func ParseClock(s string) (model.TimeOfDay, error) {
	raw := strings.TrimSpace(s)
	upper := strings.ToUpper(raw)

	period := ""
	switch {
	case strings.HasSuffix(upper, "AM"):
		period = "AM"
	case strings.HasSuffix(upper, "PM"):
		period = "PM"
	}
	if period == "" {
		t, err := model.ParseTimeOfDay(raw)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
		}
		return t, nil
	}

	clock := strings.TrimSpace(upper[:len(upper)-2])
	hh, mm, hasMinutes := strings.Cut(clock, ":")
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 1 || hour > 12 {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	minute := 0
	if hasMinutes {
		minute, err = strconv.Atoi(mm)
		if err != nil || len(mm) != 2 || minute < 0 || minute > 59 {
			return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
		}
	}

	switch {
	case period == "PM" && hour != 12:
		hour += 12
	case period == "AM" && hour == 12:
		hour = 0
	}
	return model.NewTimeOfDay(hour, minute), nil
}

// ParseRange parses "<start> - <end>" where each side is accepted by
// ParseClock.
func ParseRange(s string) (model.TimeOfDay, model.TimeOfDay, error) {
	a, b, ok := strings.Cut(s, " - ")
	if !ok {
		a, b, ok = strings.Cut(s, "-")
	}
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	start, err := ParseClock(a)
	if err != nil {
		return 0, 0, err
	}
	end, err := ParseClock(b)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}
