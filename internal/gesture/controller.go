package gesture

import (
	"fmt"

	"studycal/internal/geometry"
	appLog "studycal/internal/log"
	"studycal/internal/model"
	"studycal/internal/store"
)

// EventStore is the slice of the event store the controller mutates.
type EventStore interface {
	Get(id int64) (model.CalendarEvent, bool)
	Update(id int64, p store.Patch) (model.CalendarEvent, error)
}

// Controller drives drag and resize gestures against an EventStore.
type Controller struct {
	store EventStore
	grid  geometry.Grid
	state State
}

func NewController(s EventStore, grid geometry.Grid) *Controller {
	return &Controller{store: s, grid: grid, state: Idle{}}
}

// State returns the current state value.
func (c *Controller) State() State { return c.state }

func (c *Controller) Grid() geometry.Grid { return c.grid }

// Snapshot describes the active session, if any.
func (c *Controller) Snapshot() Snapshot {
	switch s := c.state.(type) {
	case *DragSession:
		snap := Snapshot{
			Phase:      PhaseDragging,
			EventID:    s.Event.ID,
			HoveredDay: s.HoveredDay,
			Title:      s.Event.Title,
		}
		if s.Preview != nil {
			p := *s.Preview
			snap.Preview = &p
		}
		return snap
	case *ResizeSession:
		edge := s.Edge
		return Snapshot{
			Phase:   PhaseResizing,
			EventID: s.Event.ID,
			Edge:    &edge,
			Title:   s.Event.Title,
		}
	default:
		return Snapshot{Phase: PhaseIdle}
	}
}

// terminate ends whatever session is active. A drag is cancelled; a resize
// has already committed its moves and simply ends.
func (c *Controller) terminate() Outcome {
	switch s := c.state.(type) {
	case *DragSession:
		c.state = Idle{}
		appLog.Debug("drag cancelled", "event_id", s.Event.ID)
		return Outcome{Phase: PhaseDragging, Result: ResultCancelled}
	case *ResizeSession:
		c.state = Idle{}
		ev := s.Event
		res := ResultCancelled
		if s.Moves > 0 {
			res = ResultCommitted
		}
		appLog.Debug("resize ended", "event_id", ev.ID, "edge", s.Edge, "moves", s.Moves)
		return Outcome{Phase: PhaseResizing, Result: res, Event: &ev}
	default:
		return Outcome{Phase: PhaseIdle, Result: ResultNone}
	}
}

// PointerUp is the global release handler. It ends any session no matter
// where the pointer was released: an undropped drag is cancelled without
// touching the store, and a resize keeps what it has already committed.
func (c *Controller) PointerUp() Outcome {
	return c.terminate()
}

// BeginDrag enters the dragging state for the event under the pointer.
// block is the event block's bounding box when the pointer went down.
func (c *Controller) BeginDrag(id int64, pointer Point, block Rect) (*DragSession, error) {
	ev, ok := c.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("begin drag: %w: %d", store.ErrNotFound, id)
	}
	c.terminate()

	s := &DragSession{
		Event: ev,
		GrabOffset: Point{
			X: pointer.X - block.Left,
			Y: pointer.Y - block.Top,
		},
	}
	c.state = s
	appLog.Debug("drag started", "event_id", id, "grab_y", s.GrabOffset.Y)
	return s, nil
}

// DragOver recomputes the preview for the pointer hovering over col. The
// original duration is preserved. A candidate that would start or end
// outside the day is dropped and the previous preview is kept; the second
// return value reports whether the preview was updated.
func (c *Controller) DragOver(col Column, pointer Point) (*Placement, bool, error) {
	s, ok := c.state.(*DragSession)
	if !ok {
		return nil, false, ErrNotDragging
	}
	if !model.ValidDay(col.Day) {
		return s.Preview, false, fmt.Errorf("%w: day %d", ErrInvalidPoint, col.Day)
	}
	s.HoveredDay = col.Day

	start := c.grid.SnappedMinutes(col.localY(pointer) - s.GrabOffset.Y)
	end := start + s.duration()
	if !geometry.InDay(start) || !geometry.InDay(end) {
		return s.Preview, false, nil
	}

	s.Preview = &Placement{
		Day:       col.Day,
		StartTime: model.TimeOfDay(start),
		EndTime:   model.TimeOfDay(end),
	}
	return s.Preview, true, nil
}

// DragLeave is called when the pointer leaves every drop target. The preview
// is discarded so that a release outside a column cannot commit.
func (c *Controller) DragLeave() error {
	s, ok := c.state.(*DragSession)
	if !ok {
		return ErrNotDragging
	}
	s.HoveredDay = 0
	s.Preview = nil
	return nil
}

// Drop finishes a drag over a column. With a valid preview the event's day,
// start and end are written in one update; otherwise the drag is cancelled.
// Either way the controller returns to Idle.
func (c *Controller) Drop() (Outcome, error) {
	s, ok := c.state.(*DragSession)
	if !ok {
		return Outcome{Phase: c.state.Phase(), Result: ResultNone}, ErrNotDragging
	}
	c.state = Idle{}

	if s.Preview == nil {
		appLog.Debug("drop without preview; cancelled", "event_id", s.Event.ID)
		return Outcome{Phase: PhaseDragging, Result: ResultCancelled}, nil
	}

	p := *s.Preview
	ev, err := c.store.Update(s.Event.ID, store.Patch{
		Day:       &p.Day,
		StartTime: &p.StartTime,
		EndTime:   &p.EndTime,
	})
	if err != nil {
		return Outcome{Phase: PhaseDragging, Result: ResultCancelled}, fmt.Errorf("commit drop: %w", err)
	}
	appLog.Debug("drop committed", "event_id", ev.ID, "day", ev.Day, "start", ev.StartTime, "end", ev.EndTime)
	return Outcome{Phase: PhaseDragging, Result: ResultCommitted, Event: &ev}, nil
}

// BeginResize enters the resizing state for one edge of an event.
func (c *Controller) BeginResize(id int64, edge Edge) (*ResizeSession, error) {
	if edge != EdgeTop && edge != EdgeBottom {
		return nil, ErrInvalidEdge
	}
	ev, ok := c.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("begin resize: %w: %d", store.ErrNotFound, id)
	}
	c.terminate()

	s := &ResizeSession{Event: ev, Edge: edge}
	c.state = s
	appLog.Debug("resize started", "event_id", id, "edge", edge)
	return s, nil
}

// ResizeMove moves the session's edge to the snapped pointer position and
// commits it to the store right away. A candidate that would invert or
// collapse the event, or that falls outside the day, is ignored. The bool
// reports whether the store changed.
func (c *Controller) ResizeMove(col Column, pointer Point) (model.CalendarEvent, bool, error) {
	s, ok := c.state.(*ResizeSession)
	if !ok {
		return model.CalendarEvent{}, false, ErrNotResizing
	}
	cur, ok := c.store.Get(s.Event.ID)
	if !ok {
		c.state = Idle{}
		return model.CalendarEvent{}, false, fmt.Errorf("resize: %w: %d", store.ErrNotFound, s.Event.ID)
	}
	s.Event = cur

	cand := c.grid.SnappedMinutes(col.localY(pointer))
	if !geometry.InDay(cand) {
		return cur, false, nil
	}
	t := model.TimeOfDay(cand)

	var patch store.Patch
	switch s.Edge {
	case EdgeTop:
		if t >= cur.EndTime || t == cur.StartTime {
			return cur, false, nil
		}
		patch.StartTime = &t
	case EdgeBottom:
		if t <= cur.StartTime || t == cur.EndTime {
			return cur, false, nil
		}
		patch.EndTime = &t
	}

	ev, err := c.store.Update(cur.ID, patch)
	if err != nil {
		return cur, false, fmt.Errorf("resize commit: %w", err)
	}
	s.Event = ev
	s.Moves++
	return ev, true, nil
}
