package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studycal/internal/geometry"
	"studycal/internal/gesture"
	"studycal/internal/model"
	"studycal/internal/store"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seed(t *testing.T, evs ...model.CalendarEvent) *store.Store {
	t.Helper()
	s := store.New()
	_, err := s.BulkImport(evs)
	require.NoError(t, err)
	return s
}

func ev(title, start, end string, day int) model.CalendarEvent {
	return model.CalendarEvent{
		Title:     title,
		StartTime: model.MustParseTimeOfDay(start),
		EndTime:   model.MustParseTimeOfDay(end),
		Day:       day,
	}
}

// March 5, 2025 is a Wednesday; its Sunday-first week is March 2..8.
var march5 = date(2025, time.March, 5)

func TestWeekLayout(t *testing.T) {
	s := seed(t,
		ev("Algorithms", "09:00", "10:00", model.Monday),
		ev("Reading", "13:30", "15:00", model.Wednesday),
	)
	c := NewComposer(geometry.NewGrid(80, 15))
	nav := NewNav(march5, time.Sunday)

	w := c.Week(s, nav, gesture.Snapshot{})
	require.Len(t, w.Columns, 7)
	assert.Equal(t, "March 2025", w.Title)
	assert.Len(t, w.Hours, 24)
	assert.Equal(t, 1920.0, w.Height)

	labels := []string{}
	for _, col := range w.Columns {
		labels = append(labels, col.Label)
	}
	assert.Equal(t, []string{"SUN", "MON", "TUE", "WED", "THU", "FRI", "SAT"}, labels)
	assert.Equal(t, 2, w.Columns[0].DateNumber)
	assert.Equal(t, "2025-03-08", w.Columns[6].Date)

	assert.True(t, w.Columns[3].Selected)
	assert.False(t, w.Columns[1].Selected)

	mon := w.Columns[1]
	require.Len(t, mon.Blocks, 1)
	assert.Equal(t, geometry.Style{Top: 720, Height: 80}, mon.Blocks[0].Style)
	assert.Equal(t, "09:00 - 10:00", mon.Blocks[0].TimeRange)

	wed := w.Columns[3]
	require.Len(t, wed.Blocks, 1)
	assert.Equal(t, geometry.Style{Top: 1080, Height: 120}, wed.Blocks[0].Style)
}

func TestWeekLayoutMondayStart(t *testing.T) {
	c := NewComposer(geometry.NewGrid(80, 15))
	nav := NewNav(date(2025, time.March, 2), time.Monday) // a Sunday

	w := c.Week(store.New(), nav, gesture.Snapshot{})
	assert.Equal(t, "MON", w.Columns[0].Label)
	assert.Equal(t, "2025-02-24", w.Columns[0].Date)
	assert.Equal(t, "SUN", w.Columns[6].Label)
	assert.True(t, w.Columns[6].Selected)
}

func TestDragOverlay(t *testing.T) {
	s := seed(t, ev("Algorithms", "09:00", "10:00", model.Monday))
	c := NewComposer(geometry.NewGrid(80, 15))
	nav := NewNav(march5, time.Sunday)

	snap := gesture.Snapshot{
		Phase:      gesture.PhaseDragging,
		EventID:    1,
		HoveredDay: model.Tuesday,
		Title:      "Algorithms",
		Preview: &gesture.Placement{
			Day:       model.Tuesday,
			StartTime: model.MustParseTimeOfDay("11:15"),
			EndTime:   model.MustParseTimeOfDay("12:15"),
		},
	}
	w := c.Week(s, nav, snap)

	mon, tue := w.Columns[1], w.Columns[2]
	assert.True(t, mon.Blocks[0].Dimmed)
	assert.False(t, mon.Highlighted)
	assert.Nil(t, mon.Preview)

	assert.True(t, tue.Highlighted)
	require.NotNil(t, tue.Preview)
	assert.Equal(t, "Algorithms", tue.Preview.Title)
	assert.Equal(t, "11:15 - 12:15", tue.Preview.TimeRange)
	assert.Equal(t, geometry.Style{Top: 900, Height: 80}, tue.Preview.Style)
}

func TestResizeOverlay(t *testing.T) {
	s := seed(t, ev("Algorithms", "09:00", "10:00", model.Monday))
	c := NewComposer(geometry.NewGrid(80, 15))
	edge := gesture.EdgeBottom
	d := c.Day(s, NewNav(date(2025, time.March, 3), time.Sunday), gesture.Snapshot{Phase: gesture.PhaseResizing, EventID: 1, Edge: &edge})

	require.Len(t, d.Column.Blocks, 1)
	assert.True(t, d.Column.Blocks[0].Resizing)
	assert.False(t, d.Column.Blocks[0].Dimmed)
	assert.Equal(t, "Monday, March 3", d.Title)
}

func TestDayLayoutFiltersSelectedDay(t *testing.T) {
	s := seed(t,
		ev("Mon class", "09:00", "10:00", model.Monday),
		ev("Wed class", "09:00", "10:00", model.Wednesday),
		ev("Wed study", "16:00", "17:00", model.Wednesday),
	)
	c := NewComposer(geometry.NewGrid(80, 15))
	d := c.Day(s, NewNav(march5, time.Sunday).WithView(KindDay), gesture.Snapshot{})

	assert.Equal(t, model.Wednesday, d.Column.Day)
	require.Len(t, d.Column.Blocks, 2)
	assert.Equal(t, "Wed class", d.Column.Blocks[0].Event.Title)
	assert.Equal(t, "Wed study", d.Column.Blocks[1].Event.Title)
	assert.Len(t, d.Hours, 24)
	assert.Equal(t, "12 AM", d.Hours[0].Label)
}

func TestMonthLayout(t *testing.T) {
	var evs []model.CalendarEvent
	for i := 0; i < 5; i++ {
		evs = append(evs, ev("Mon", "08:00", "09:00", model.Monday))
	}
	evs = append(evs, ev("Fri", "08:00", "09:00", model.Friday))
	s := seed(t, evs...)
	c := NewComposer(geometry.NewGrid(80, 15))

	m := c.Month(s, NewNav(march5, time.Sunday))
	assert.Equal(t, "March 2025", m.Title)
	assert.Equal(t, []string{"SUN", "MON", "TUE", "WED", "THU", "FRI", "SAT"}, m.Headers)
	require.Len(t, m.Rows, 6)

	// March 1, 2025 is a Saturday: six leading blanks.
	for i := 0; i < 6; i++ {
		assert.True(t, m.Rows[0][i].Blank)
	}
	assert.Equal(t, 1, m.Rows[0][6].DayNumber)

	mar3 := m.Rows[1][1]
	assert.Equal(t, 3, mar3.DayNumber)
	assert.Len(t, mar3.Events, MonthCellLimit)
	assert.Equal(t, 2, mar3.Overflow)

	mar7 := m.Rows[1][5]
	assert.Equal(t, 7, mar7.DayNumber)
	assert.Len(t, mar7.Events, 1)
	assert.Zero(t, mar7.Overflow)

	// March 10 is a Monday outside the active week.
	mar10 := m.Rows[2][1]
	assert.Equal(t, 10, mar10.DayNumber)
	assert.Empty(t, mar10.Events)

	assert.True(t, m.Rows[1][3].Selected)

	// Trailing blanks pad the final row.
	last := m.Rows[5]
	assert.Equal(t, 31, last[1].DayNumber)
	assert.True(t, last[6].Blank)
}

func TestMonthLayoutMondayStart(t *testing.T) {
	c := NewComposer(geometry.NewGrid(80, 15))
	m := c.Month(store.New(), NewNav(march5, time.Monday))

	assert.Equal(t, "MON", m.Headers[0])
	for i := 0; i < 5; i++ {
		assert.True(t, m.Rows[0][i].Blank)
	}
	assert.Equal(t, 1, m.Rows[0][5].DayNumber)

}

func TestMonthLayoutPadsShortFebruary(t *testing.T) {
	c := NewComposer(geometry.NewGrid(80, 15))

	// February 2026 starts on a Sunday and its 28 days fill exactly four rows.
	m := c.Month(store.New(), NewNav(date(2026, time.February, 10), time.Sunday))
	require.Len(t, m.Rows, MinMonthRows)
	assert.Equal(t, 1, m.Rows[0][0].DayNumber)
	assert.Equal(t, 28, m.Rows[3][6].DayNumber)
	for _, cell := range m.Rows[4] {
		assert.True(t, cell.Blank)
	}
	// Headers plus weeks: six rows.
	assert.Equal(t, 6, len(m.Rows)+1)

	// Shifting the week start pushes it to five rows with no padding row.
	m = c.Month(store.New(), NewNav(date(2026, time.February, 10), time.Monday))
	require.Len(t, m.Rows, 5)
	assert.Equal(t, 1, m.Rows[0][6].DayNumber)
	assert.Equal(t, 28, m.Rows[4][5].DayNumber)
}

func TestComposeDoesNotMutateStore(t *testing.T) {
	s := seed(t,
		ev("A", "09:00", "10:00", model.Monday),
		ev("B", "11:00", "12:00", model.Tuesday),
	)
	before := s.All()
	c := NewComposer(geometry.NewGrid(80, 15))
	nav := NewNav(march5, time.Sunday)

	for _, k := range []Kind{KindDay, KindWeek, KindMonth, KindWeek} {
		l := c.Compose(s, nav.WithView(k), gesture.Snapshot{})
		assert.Equal(t, k, l.View)
	}
	assert.Equal(t, before, s.All())
}

func TestNav(t *testing.T) {
	nav := NewNav(time.Date(2025, time.January, 31, 15, 4, 0, 0, time.UTC), time.Sunday)
	assert.Equal(t, KindWeek, nav.View)
	assert.Equal(t, date(2025, time.January, 31), nav.Selected)

	assert.Equal(t, date(2025, time.February, 7), nav.Step(1).Selected)
	assert.Equal(t, date(2025, time.January, 30), nav.WithView(KindDay).Step(-1).Selected)
	assert.Equal(t, date(2025, time.February, 28), nav.WithView(KindMonth).Step(1).Selected)
	assert.Equal(t, date(2024, time.December, 31), nav.WithView(KindMonth).Step(-1).Selected)

	opened := nav.WithView(KindMonth).OpenDay(date(2025, time.January, 14))
	assert.Equal(t, KindDay, opened.View)
	assert.Equal(t, date(2025, time.January, 14), opened.Selected)

	// Jan 31, 2025 is a Friday; its week runs Jan 26..Feb 1.
	assert.True(t, nav.InActiveWeek(date(2025, time.February, 1)))
	assert.False(t, nav.InActiveWeek(date(2025, time.February, 2)))
	assert.Equal(t, date(2025, time.January, 27), nav.DateOfDay(model.Monday))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("Month")
	require.NoError(t, err)
	assert.Equal(t, KindMonth, k)
	_, err = ParseKind("year")
	assert.Error(t, err)
}

func TestHourLabel(t *testing.T) {
	assert.Equal(t, "12 AM", HourLabel(0))
	assert.Equal(t, "9 AM", HourLabel(9))
	assert.Equal(t, "12 PM", HourLabel(12))
	assert.Equal(t, "11 PM", HourLabel(23))
}
