// Package importer turns class-schedule lines and generated study plans into
// calendar events. A malformed entry is skipped and reported; it never stops
// the rest of the import.
package importer

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	appLog "studycal/internal/log"
	"studycal/internal/model"
)

const (
	// ClassOrganizer is set on every imported class meeting.
	ClassOrganizer = "University"
	// FieldSeparator splits class lines and time ranges.
	FieldSeparator = " - "
)

var (
	ErrMalformedLine = errors.New("malformed class line")
	ErrUnknownDay    = errors.New("unknown day")
)

// LineError records one skipped entry.
type LineError struct {
	Line string
	Err  error
}

func (e LineError) Error() string { return fmt.Sprintf("%q: %v", e.Line, e.Err) }
func (e LineError) Unwrap() error { return e.Err }

// ClassMeeting is one parsed class line.
type ClassMeeting struct {
	Day      int
	Start    model.TimeOfDay
	End      model.TimeOfDay
	Course   string
	Location string
}

// ParseClassLine parses "<DayAbbrev> <start> - <end> - <course> - <location>",
// for example "Mon 9:30 AM - 10:45 AM - CS 3080 - Hayes Hall 117". Course
// and location are optional.
func ParseClassLine(line string) (ClassMeeting, error) {
	parts := strings.Split(strings.TrimSpace(line), FieldSeparator)
	if len(parts) < 2 {
		return ClassMeeting{}, ErrMalformedLine
	}

	dayAbbr, startText, ok := strings.Cut(strings.TrimSpace(parts[0]), " ")
	if !ok {
		return ClassMeeting{}, ErrMalformedLine
	}
	day, ok := model.DayFromAbbrev(dayAbbr)
	if !ok {
		return ClassMeeting{}, fmt.Errorf("%w: %q", ErrUnknownDay, dayAbbr)
	}
	start, err := ParseClock(startText)
	if err != nil {
		return ClassMeeting{}, err
	}
	end, err := ParseClock(parts[1])
	if err != nil {
		return ClassMeeting{}, err
	}
	if start >= end {
		return ClassMeeting{}, model.ErrInvalidRange
	}

	m := ClassMeeting{Day: day, Start: start, End: end, Course: "Class", Location: "TBD"}
	if len(parts) >= 3 && strings.TrimSpace(parts[2]) != "" {
		m.Course = strings.TrimSpace(parts[2])
	}
	if len(parts) >= 4 && strings.TrimSpace(parts[3]) != "" {
		m.Location = strings.TrimSpace(parts[3])
	}
	return m, nil
}

// CourseOf returns the course field of a class line, or "" when absent.
func CourseOf(line string) string {
	parts := strings.Split(line, FieldSeparator)
	if len(parts) < 3 {
		return ""
	}
	return strings.TrimSpace(parts[2])
}

// ClassEvents converts class lines into events. sourceName (usually the
// uploaded file name) is recorded in the description. Blank lines are
// ignored silently.
func ClassEvents(lines []string, sourceName string) ([]model.CalendarEvent, []LineError) {
	desc := "Class"
	if sourceName != "" {
		desc = "Class from " + sourceName
	}

	events := make([]model.CalendarEvent, 0, len(lines))
	var skipped []LineError
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		m, err := ParseClassLine(line)
		if err != nil {
			appLog.Warn("skipping class line", "line", line, "err", err)
			skipped = append(skipped, LineError{Line: line, Err: err})
			continue
		}
		events = append(events, model.CalendarEvent{
			Title:       m.Course,
			StartTime:   m.Start,
			EndTime:     m.End,
			Day:         m.Day,
			Color:       model.ClassColors[len(events)%len(model.ClassColors)],
			Description: desc,
			Location:    m.Location,
			Organizer:   ClassOrganizer,
			Attendees:   []string{},
		})
	}
	return events, skipped
}

// StudyPlan maps a weekday name to "<start> - <end>" slots and their task
// labels, as returned by the schedule generator.
type StudyPlan map[string]map[string]string

// StudyEvents converts the non-empty entries of plan into events. An entry
// whose label names one of classCourses is a class echoed back by the
// generator and is dropped. Unknown weekday names fall back to Monday.
func StudyEvents(plan StudyPlan, classCourses []string) ([]model.CalendarEvent, []LineError) {
	events := make([]model.CalendarEvent, 0)
	var skipped []LineError

	for _, dayName := range sortedDays(plan) {
		day, ok := model.DayFromName(dayName)
		if !ok {
			appLog.Warn("unknown weekday in study plan; using Monday", "day", dayName)
			day = model.Monday
		}

		slots := plan[dayName]
		for _, slot := range sortedSlots(slots) {
			task := strings.TrimSpace(slots[slot])
			if task == "" || task == "-" || isClass(task, classCourses) {
				continue
			}
			start, end, err := ParseRange(slot)
			if err == nil && start >= end {
				err = model.ErrInvalidRange
			}
			if err != nil {
				entry := dayName + " " + slot
				appLog.Warn("skipping study slot", "slot", entry, "err", err)
				skipped = append(skipped, LineError{Line: entry, Err: err})
				continue
			}
			events = append(events, model.CalendarEvent{
				Title:       task,
				StartTime:   start,
				EndTime:     end,
				Day:         day,
				Color:       model.StudyColors[len(events)%len(model.StudyColors)],
				Description: "AI Study Session",
				Location:    "Study",
				Organizer:   "You",
				Attendees:   []string{},
			})
		}
	}
	return events, skipped
}

func isClass(task string, courses []string) bool {
	for _, c := range courses {
		if c != "" && strings.Contains(task, c) {
			return true
		}
	}
	return false
}

// sortedDays orders known weekday names Sunday first, then unknown names
// alphabetically, so imports are deterministic.
func sortedDays(plan StudyPlan) []string {
	names := make([]string, 0, len(plan))
	for name := range plan {
		names = append(names, name)
	}
	rank := func(name string) int {
		if d, ok := model.DayFromName(name); ok {
			return d
		}
		return model.Saturday + 1
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := rank(names[i]), rank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})
	return names
}

// sortedSlots orders slots by parsed start time; unparseable slots go last.
func sortedSlots(slots map[string]string) []string {
	keys := make([]string, 0, len(slots))
	for k := range slots {
		keys = append(keys, k)
	}
	start := func(k string) int {
		s, _, err := ParseRange(k)
		if err != nil {
			return model.MinutesPerDay
		}
		return int(s)
	}
	sort.Slice(keys, func(i, j int) bool {
		si, sj := start(keys[i]), start(keys[j])
		if si != sj {
			return si < sj
		}
		return keys[i] < keys[j]
	})
	return keys
}
