package model

import (
	"strings"
	"time"
)

// Day indexes address the columns of the active week. Sunday is 1.
const (
	Sunday = iota + 1
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

// ValidDay reports whether d is a day index (1..7).
func ValidDay(d int) bool { return d >= Sunday && d <= Saturday }

// DayOf returns the day index of a weekday.
func DayOf(wd time.Weekday) int { return int(wd) + 1 }

// WeekdayOf is the inverse of DayOf.
func WeekdayOf(day int) time.Weekday { return time.Weekday(day - 1) }

var dayAbbrevs = map[string]int{
	"sun": Sunday, "mon": Monday, "tue": Tuesday, "wed": Wednesday,
	"thu": Thursday, "fri": Friday, "sat": Saturday,
}

// DayFromAbbrev maps "Mon", "tue", ... to a day index.
func DayFromAbbrev(s string) (int, bool) {
	d, ok := dayAbbrevs[strings.ToLower(strings.TrimSpace(s))]
	return d, ok
}

// DayFromName maps a full English weekday name to a day index.
func DayFromName(s string) (int, bool) {
	s = strings.TrimSpace(s)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if strings.EqualFold(wd.String(), s) {
			return DayOf(wd), true
		}
	}
	return 0, false
}

// DayLabel returns the three-letter upper-case column label ("SUN").
func DayLabel(day int) string {
	return strings.ToUpper(WeekdayOf(day).String()[:3])
}
