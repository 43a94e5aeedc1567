package ics

import (
	"time"

	appLog "studycal/internal/log"
	"studycal/internal/model"
)

// ImportResult is what an ICS payload contributes to one week.
type ImportResult struct {
	Events    []model.CalendarEvent `json:"-"`
	Skipped   []SkippedOccurrence   `json:"skipped"`
	Truncated []string              `json:"truncated,omitempty"`
}

// ImportWeek parses body and returns the timed occurrences that start in
// the week beginning at weekStart, as grid events without ids.
func ImportWeek(src Source, body []byte, weekStart time.Time) (ImportResult, error) {
	parsed, err := ParseICS(src, body)
	if err != nil {
		return ImportResult{}, err
	}

	expanded, err := ExpandOccurrences(parsed, ExpandConfig{
		DisplayLocation: weekStart.Location(),
		RangeStart:      weekStart,
		RangeEnd:        weekStart.AddDate(0, 0, 7),
	})
	if err != nil {
		return ImportResult{}, err
	}

	events, skipped := WeekEvents(expanded.Occurrences, weekStart)
	appLog.Info("ics import",
		"id", src.ID,
		"url", redactURL(src.URL),
		"vevents", len(parsed),
		"events", len(events),
		"skipped", len(skipped),
	)
	return ImportResult{Events: events, Skipped: skipped, Truncated: expanded.TruncatedEvents}, nil
}
