// Package gesture implements the pointer state machines that move and resize
// calendar events.
//
// A Controller owns exactly one State: Idle, a *DragSession or a
// *ResizeSession. Starting one kind of session terminates the other, so at
// most one session can hold mutation rights over an event. Column geometry is
// passed in with every pointer event; nothing here reads UI state.
package gesture

import (
	"errors"
	"fmt"
	"strings"

	"studycal/internal/model"
)

var (
	ErrNotDragging  = errors.New("no drag in progress")
	ErrNotResizing  = errors.New("no resize in progress")
	ErrInvalidEdge  = errors.New("invalid resize edge")
	ErrInvalidPoint = errors.New("invalid pointer geometry")
)

// Point is a pointer position in viewport pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is a bounding box in viewport pixels.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Column is the measured geometry of one day column at the time of a pointer
// event. ScrollTop is the column container's vertical scroll position.
type Column struct {
	Day       int     `json:"day"`
	Bounds    Rect    `json:"bounds"`
	ScrollTop float64 `json:"scrollTop"`
}

// localY converts a viewport y into a pixel offset from the column's 00:00.
func (c Column) localY(p Point) float64 {
	return p.Y - c.Bounds.Top + c.ScrollTop
}

// Edge selects which boundary a resize moves.
type Edge int

const (
	EdgeTop Edge = iota + 1
	EdgeBottom
)

func (e Edge) String() string {
	switch e {
	case EdgeTop:
		return "top"
	case EdgeBottom:
		return "bottom"
	default:
		return "unknown"
	}
}

// ParseEdge accepts "top"/"start" and "bottom"/"end".
func ParseEdge(s string) (Edge, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "top", "start":
		return EdgeTop, nil
	case "bottom", "end":
		return EdgeBottom, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidEdge, s)
}

func (e Edge) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

func (e *Edge) UnmarshalText(b []byte) error {
	v, err := ParseEdge(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// Phase names the controller state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDragging
	PhaseResizing
)

func (p Phase) String() string {
	switch p {
	case PhaseDragging:
		return "dragging"
	case PhaseResizing:
		return "resizing"
	default:
		return "idle"
	}
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// State is the controller's tagged variant.
type State interface {
	Phase() Phase
}

// Idle is the state between gestures.
type Idle struct{}

func (Idle) Phase() Phase { return PhaseIdle }

// Placement is a candidate position for an event.
type Placement struct {
	Day       int             `json:"day"`
	StartTime model.TimeOfDay `json:"startTime"`
	EndTime   model.TimeOfDay `json:"endTime"`
}

// DragSession tracks the relocation of one event. Preview is nil until a
// valid candidate has been computed, and again after the pointer leaves all
// columns.
type DragSession struct {
	Event      model.CalendarEvent
	GrabOffset Point
	Preview    *Placement
	HoveredDay int
}

func (*DragSession) Phase() Phase { return PhaseDragging }

// duration is taken from the event as it was when the drag began.
func (d *DragSession) duration() int { return d.Event.Duration() }

// ResizeSession tracks a live boundary edit. Event mirrors the store after
// every committed move.
type ResizeSession struct {
	Event model.CalendarEvent
	Edge  Edge
	Moves int
}

func (*ResizeSession) Phase() Phase { return PhaseResizing }

// Result classifies how a gesture step ended.
type Result int

const (
	ResultNone Result = iota
	ResultCommitted
	ResultCancelled
)

func (r Result) String() string {
	switch r {
	case ResultCommitted:
		return "committed"
	case ResultCancelled:
		return "cancelled"
	default:
		return "none"
	}
}

func (r Result) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// Outcome reports the end of a session. Event is the committed event when
// Result is ResultCommitted.
type Outcome struct {
	Phase  Phase                `json:"phase"`
	Result Result               `json:"result"`
	Event  *model.CalendarEvent `json:"event,omitempty"`
}

// Snapshot is a read-only view of the controller used for rendering.
type Snapshot struct {
	Phase      Phase      `json:"phase"`
	EventID    int64      `json:"eventId,omitempty"`
	HoveredDay int        `json:"hoveredDay,omitempty"`
	Preview    *Placement `json:"preview,omitempty"`
	Edge       *Edge      `json:"edge,omitempty"`
	Title      string     `json:"title,omitempty"`
}
