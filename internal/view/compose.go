// Package view derives day, week and month layouts from the event store,
// the navigation state and the active gesture. It never mutates events.
package view

import (
	"fmt"
	"time"

	"studycal/internal/geometry"
	"studycal/internal/gesture"
	"studycal/internal/model"
)

// MonthCellLimit is how many events a month cell lists before "+N more".
const MonthCellLimit = 3

// MinMonthRows is the fewest week rows a month grid has. With the weekday
// header the grid is always six or seven rows tall.
const MinMonthRows = 5

// Source is the read side of the event store.
type Source interface {
	ByDay(day int) []model.CalendarEvent
}

// Block is one event placed in a day column.
type Block struct {
	Event     model.CalendarEvent `json:"event"`
	Style     geometry.Style      `json:"style"`
	TimeRange string              `json:"timeRange"`
	// Dimmed marks the block being dragged; it stays in place, faded.
	Dimmed   bool `json:"dimmed,omitempty"`
	Resizing bool `json:"resizing,omitempty"`
}

// PreviewBlock is the uncommitted drop position shown during a drag.
type PreviewBlock struct {
	Title     string         `json:"title"`
	TimeRange string         `json:"timeRange"`
	Style     geometry.Style `json:"style"`
}

// DayColumn is a single droppable day column.
type DayColumn struct {
	Day         int           `json:"day"`
	Date        string        `json:"date"`
	Label       string        `json:"label"`
	DateNumber  int           `json:"dateNumber"`
	Selected    bool          `json:"selected"`
	Highlighted bool          `json:"highlighted"`
	Blocks      []Block       `json:"blocks"`
	Preview     *PreviewBlock `json:"preview,omitempty"`
}

// HourRow is a labelled hour line.
type HourRow struct {
	Hour  int     `json:"hour"`
	Label string  `json:"label"`
	Top   float64 `json:"top"`
}

type DayLayout struct {
	Title  string    `json:"title"`
	Hours  []HourRow `json:"hours"`
	Height float64   `json:"height"`
	Column DayColumn `json:"column"`
}

type WeekLayout struct {
	Title   string      `json:"title"`
	Hours   []HourRow   `json:"hours"`
	Height  float64     `json:"height"`
	Columns []DayColumn `json:"columns"`
}

// MonthCell is one square of the month grid. Blank cells pad the first and
// last rows.
type MonthCell struct {
	Blank     bool                  `json:"blank"`
	Date      string                `json:"date,omitempty"`
	DayNumber int                   `json:"dayNumber,omitempty"`
	Selected  bool                  `json:"selected,omitempty"`
	Events    []model.CalendarEvent `json:"events,omitempty"`
	Overflow  int                   `json:"overflow,omitempty"`
}

type MonthLayout struct {
	Title   string        `json:"title"`
	Headers []string      `json:"headers"`
	Rows    [][]MonthCell `json:"rows"`
}

// Layout is the composed view. Exactly one of Day, Week, Month is set.
type Layout struct {
	View  Kind         `json:"view"`
	Nav   Nav          `json:"nav"`
	Day   *DayLayout   `json:"day,omitempty"`
	Week  *WeekLayout  `json:"week,omitempty"`
	Month *MonthLayout `json:"month,omitempty"`
}

// Composer builds layouts on a fixed grid scale.
type Composer struct {
	grid geometry.Grid
}

func NewComposer(grid geometry.Grid) Composer {
	return Composer{grid: grid}
}

// Compose renders the view selected in nav.
func (c Composer) Compose(src Source, nav Nav, g gesture.Snapshot) Layout {
	out := Layout{View: nav.View, Nav: nav}
	switch nav.View {
	case KindDay:
		d := c.Day(src, nav, g)
		out.Day = &d
	case KindMonth:
		m := c.Month(src, nav)
		out.Month = &m
	default:
		out.View = KindWeek
		w := c.Week(src, nav, g)
		out.Week = &w
	}
	return out
}

// Day renders the selected date as a single column.
func (c Composer) Day(src Source, nav Nav, g gesture.Snapshot) DayLayout {
	return DayLayout{
		Title:  nav.Selected.Format("Monday, January 2"),
		Hours:  c.hours(),
		Height: c.grid.DayHeight(),
		Column: c.column(src, nav, nav.Selected, g),
	}
}

// Week renders the seven columns of the active week.
func (c Composer) Week(src Source, nav Nav, g gesture.Snapshot) WeekLayout {
	dates := nav.WeekDates()
	cols := make([]DayColumn, 0, len(dates))
	for _, d := range dates {
		cols = append(cols, c.column(src, nav, d, g))
	}
	return WeekLayout{
		Title:   nav.Selected.Format("January 2006"),
		Hours:   c.hours(),
		Height:  c.grid.DayHeight(),
		Columns: cols,
	}
}

// Month renders the month of the selected date. Events show only on dates
// of the active week, since day indexes are relative to it.
func (c Composer) Month(src Source, nav Nav) MonthLayout {
	sel := nav.Selected
	loc := sel.Location()
	first := time.Date(sel.Year(), sel.Month(), 1, 0, 0, 0, 0, loc)
	offset := (int(first.Weekday()) - int(nav.WeekStart) + 7) % 7
	n := daysIn(sel.Year(), sel.Month(), loc)

	// Whole weeks, and never fewer than MinMonthRows of them.
	total := offset + n
	if rem := total % 7; rem != 0 {
		total += 7 - rem
	}
	total = max(total, MinMonthRows*7)

	cells := make([]MonthCell, 0, total)
	for i := 0; i < total; i++ {
		dayNum := i - offset + 1
		if dayNum < 1 || dayNum > n {
			cells = append(cells, MonthCell{Blank: true})
			continue
		}
		date := first.AddDate(0, 0, dayNum-1)
		cell := MonthCell{
			Date:      date.Format(time.DateOnly),
			DayNumber: dayNum,
			Selected:  date.Equal(sel),
		}
		if nav.InActiveWeek(date) {
			evs := src.ByDay(model.DayOf(date.Weekday()))
			if len(evs) > MonthCellLimit {
				cell.Overflow = len(evs) - MonthCellLimit
				evs = evs[:MonthCellLimit]
			}
			cell.Events = evs
		}
		cells = append(cells, cell)
	}

	rows := make([][]MonthCell, 0, total/7)
	for i := 0; i < total; i += 7 {
		rows = append(rows, cells[i:i+7])
	}

	headers := make([]string, 7)
	for i := range headers {
		headers[i] = model.DayLabel(model.DayOf(time.Weekday((int(nav.WeekStart) + i) % 7)))
	}

	return MonthLayout{
		Title:   sel.Format("January 2006"),
		Headers: headers,
		Rows:    rows,
	}
}

func (c Composer) column(src Source, nav Nav, date time.Time, g gesture.Snapshot) DayColumn {
	day := model.DayOf(date.Weekday())
	col := DayColumn{
		Day:         day,
		Date:        date.Format(time.DateOnly),
		Label:       model.DayLabel(day),
		DateNumber:  date.Day(),
		Selected:    date.Equal(nav.Selected),
		Highlighted: g.Phase == gesture.PhaseDragging && g.HoveredDay == day,
		Blocks:      make([]Block, 0),
	}

	for _, ev := range src.ByDay(day) {
		col.Blocks = append(col.Blocks, Block{
			Event:     ev,
			Style:     c.grid.Style(ev.StartTime, ev.EndTime),
			TimeRange: TimeRange(ev.StartTime, ev.EndTime),
			Dimmed:    g.Phase == gesture.PhaseDragging && g.EventID == ev.ID,
			Resizing:  g.Phase == gesture.PhaseResizing && g.EventID == ev.ID,
		})
	}

	if g.Phase == gesture.PhaseDragging && g.Preview != nil && g.Preview.Day == day {
		col.Preview = &PreviewBlock{
			Title:     g.Title,
			TimeRange: TimeRange(g.Preview.StartTime, g.Preview.EndTime),
			Style:     c.grid.Style(g.Preview.StartTime, g.Preview.EndTime),
		}
	}
	return col
}

func (c Composer) hours() []HourRow {
	out := make([]HourRow, 24)
	for h := range out {
		out[h] = HourRow{
			Hour:  h,
			Label: HourLabel(h),
			Top:   c.grid.Offset(model.NewTimeOfDay(h, 0)),
		}
	}
	return out
}

// HourLabel formats an hour as "12 AM", "1 AM", ..., "12 PM", "1 PM".
func HourLabel(h int) string {
	switch {
	case h == 0:
		return "12 AM"
	case h < 12:
		return fmt.Sprintf("%d AM", h)
	case h == 12:
		return "12 PM"
	default:
		return fmt.Sprintf("%d PM", h-12)
	}
}

// TimeRange formats "09:00 - 10:00".
func TimeRange(start, end model.TimeOfDay) string {
	return start.String() + " - " + end.String()
}
