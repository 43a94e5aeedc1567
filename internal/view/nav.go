package view

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the calendar view being shown.
type Kind string

const (
	KindDay   Kind = "day"
	KindWeek  Kind = "week"
	KindMonth Kind = "month"
)

// ParseKind validates a view name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindDay, KindWeek, KindMonth:
		return k, nil
	}
	return "", fmt.Errorf("unknown view %q", s)
}

// Nav is the process-wide selection state: which view is open and which
// date is selected. The selected date also fixes the active week, whose
// seven dates the events' day indexes refer to.
type Nav struct {
	View      Kind         `json:"view"`
	Selected  time.Time    `json:"selected"`
	WeekStart time.Weekday `json:"weekStart"`
}

// NewNav opens the week view on today.
func NewNav(today time.Time, weekStart time.Weekday) Nav {
	return Nav{View: KindWeek, Selected: dateOf(today), WeekStart: weekStart}
}

// WithView switches the view. The selection is kept.
func (n Nav) WithView(k Kind) Nav {
	n.View = k
	return n
}

// Select changes the selected date.
func (n Nav) Select(date time.Time) Nav {
	n.Selected = dateOf(date)
	return n
}

// OpenDay selects a date and switches to the day view, as clicking a month
// cell does.
func (n Nav) OpenDay(date time.Time) Nav {
	return n.Select(date).WithView(KindDay)
}

// Step moves the selection by delta units of the current view.
func (n Nav) Step(delta int) Nav {
	switch n.View {
	case KindDay:
		n.Selected = n.Selected.AddDate(0, 0, delta)
	case KindMonth:
		n.Selected = addMonthsClamped(n.Selected, delta)
	default:
		n.Selected = n.Selected.AddDate(0, 0, 7*delta)
	}
	return n
}

// WeekDates returns the seven contiguous dates of the active week.
func (n Nav) WeekDates() []time.Time {
	shift := (int(n.Selected.Weekday()) - int(n.WeekStart) + 7) % 7
	first := n.Selected.AddDate(0, 0, -shift)
	out := make([]time.Time, 7)
	for i := range out {
		out[i] = first.AddDate(0, 0, i)
	}
	return out
}

// InActiveWeek reports whether date falls inside the active week.
func (n Nav) InActiveWeek(date time.Time) bool {
	d := dateOf(date)
	week := n.WeekDates()
	return !d.Before(week[0]) && !d.After(week[6])
}

// DateOfDay returns the date in the active week for a day index.
func (n Nav) DateOfDay(day int) time.Time {
	for _, d := range n.WeekDates() {
		if int(d.Weekday())+1 == day {
			return d
		}
	}
	return n.Selected
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// addMonthsClamped keeps the day of month where possible (Jan 31 + 1 -> Feb 28).
func addMonthsClamped(t time.Time, delta int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(delta), 1, 0, 0, 0, 0, t.Location())
	day := t.Day()
	if n := daysIn(first.Year(), first.Month(), t.Location()); day > n {
		day = n
	}
	return first.AddDate(0, 0, day-1)
}
