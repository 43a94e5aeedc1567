package model

// Color is a symbolic presentation tag.
type Color string

const (
	ColorCyan   Color = "cyan"
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorPurple Color = "purple"
	ColorOrange Color = "orange"
	ColorPink   Color = "pink"
	ColorIndigo Color = "indigo"
	ColorTeal   Color = "teal"
	ColorRed    Color = "red"
	ColorYellow Color = "yellow"
)

// Palette lists every known color in display order.
var Palette = []Color{
	ColorCyan, ColorBlue, ColorGreen, ColorPurple, ColorOrange,
	ColorPink, ColorIndigo, ColorTeal, ColorRed, ColorYellow,
}

// StudyColors rotate over AI-generated study sessions.
var StudyColors = []Color{
	ColorCyan, ColorBlue, ColorGreen, ColorPurple,
	ColorOrange, ColorPink, ColorIndigo, ColorTeal,
}

// ClassColors rotate over imported class meetings.
var ClassColors = []Color{ColorBlue, ColorIndigo, ColorPurple}

// Known reports whether c is part of the palette.
func (c Color) Known() bool {
	for _, p := range Palette {
		if p == c {
			return true
		}
	}
	return false
}

// Normalize maps unknown or empty colors to cyan.
func (c Color) Normalize() Color {
	if c.Known() {
		return c
	}
	return ColorCyan
}
