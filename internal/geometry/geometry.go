// Package geometry maps wall-clock times to vertical pixel offsets inside a
// day column and snaps free-form positions to the time grid.
//
// Every function here is pure; pointer-move handlers call them at high
// frequency.
package geometry

import (
	"math"

	"studycal/internal/model"
)

const (
	// DefaultGranularity is the snap interval in minutes.
	DefaultGranularity = 15
	// DefaultPixelsPerHour is the height of one hour row.
	DefaultPixelsPerHour = 80.0
)

// Style is the vertical placement of an event block within its column.
type Style struct {
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
}

// TimeToOffset returns the pixel offset of t from the top of a day column.
func TimeToOffset(t model.TimeOfDay, pixelsPerHour float64) float64 {
	return (float64(t.Hour()) + float64(t.Minute())/60) * pixelsPerHour
}

// OffsetToMinutes is the unclamped inverse of TimeToOffset. The result may be
// negative or exceed a day; callers that must reject out-of-range positions
// use this instead of OffsetToTime.
func OffsetToMinutes(offsetPixels, pixelsPerHour float64) float64 {
	if pixelsPerHour <= 0 {
		return 0
	}
	return offsetPixels / pixelsPerHour * 60
}

// OffsetToTime maps a pixel offset back to a time of day, rounded to the
// nearest minute and clamped to [00:00, 23:59].
func OffsetToTime(offsetPixels, pixelsPerHour float64) model.TimeOfDay {
	m := math.Round(OffsetToMinutes(offsetPixels, pixelsPerHour))
	return clamp(int(m))
}

// Snap rounds minutes to the nearest multiple of granularityMinutes. Exact
// half-intervals round up (toward +inf), so Snap(7.5, 15) == 15 and
// Snap(-7.5, 15) == 0. A non-positive granularity selects the default.
//
// Inputs more than one interval outside the day (including NaN and the
// infinities) snap to a value just outside it, never into [0, MinutesPerDay).
func Snap(minutes float64, granularityMinutes int) int {
	if granularityMinutes <= 0 {
		granularityMinutes = DefaultGranularity
	}
	g := float64(granularityMinutes)
	switch {
	case math.IsNaN(minutes), minutes < -g:
		minutes = -g
	case minutes > model.MinutesPerDay+g:
		minutes = model.MinutesPerDay + g
	}
	return int(math.Floor(minutes/g+0.5)) * granularityMinutes
}

// StyleFor places an event spanning [start, end) in a column. Height is
// strictly positive whenever start < end.
func StyleFor(start, end model.TimeOfDay, pixelsPerHour float64) Style {
	top := TimeToOffset(start, pixelsPerHour)
	return Style{
		Top:    top,
		Height: TimeToOffset(end, pixelsPerHour) - top,
	}
}

// InDay reports whether minutes lies in [0, MinutesPerDay).
func InDay(minutes int) bool {
	return minutes >= 0 && minutes < model.MinutesPerDay
}

func clamp(m int) model.TimeOfDay {
	if m < 0 {
		return 0
	}
	if m >= model.MinutesPerDay {
		return model.MinutesPerDay - 1
	}
	return model.TimeOfDay(m)
}

// Grid bundles the scale and snap interval used by one calendar surface.
type Grid struct {
	PixelsPerHour float64
	Granularity   int
}

// NewGrid returns a Grid, substituting defaults for non-positive values.
func NewGrid(pixelsPerHour float64, granularity int) Grid {
	if pixelsPerHour <= 0 {
		pixelsPerHour = DefaultPixelsPerHour
	}
	if granularity <= 0 {
		granularity = DefaultGranularity
	}
	return Grid{PixelsPerHour: pixelsPerHour, Granularity: granularity}
}

func (g Grid) Offset(t model.TimeOfDay) float64 { return TimeToOffset(t, g.PixelsPerHour) }

func (g Grid) Style(start, end model.TimeOfDay) Style {
	return StyleFor(start, end, g.PixelsPerHour)
}

// SnappedMinutes converts a pixel offset to snapped minutes since midnight
// without clamping.
func (g Grid) SnappedMinutes(offsetPixels float64) int {
	return Snap(OffsetToMinutes(offsetPixels, g.PixelsPerHour), g.Granularity)
}

// DayHeight is the pixel height of a full 24-hour column.
func (g Grid) DayHeight() float64 { return 24 * g.PixelsPerHour }
