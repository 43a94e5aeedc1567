// Package store holds the calendar events of one workspace.
//
// A Store is not safe for concurrent use; the owning workspace serializes
// access.
package store

import (
	"errors"
	"fmt"

	"studycal/internal/model"
)

var (
	ErrDuplicateID  = errors.New("duplicate event id")
	ErrNotFound     = errors.New("event not found")
	ErrInvalidRange = model.ErrInvalidRange
)

// Patch is a partial change to an event. Nil fields are left untouched.
type Patch struct {
	Title       *string          `json:"title,omitempty"`
	StartTime   *model.TimeOfDay `json:"startTime,omitempty"`
	EndTime     *model.TimeOfDay `json:"endTime,omitempty"`
	Day         *int             `json:"day,omitempty"`
	Color       *model.Color     `json:"color,omitempty"`
	Description *string          `json:"description,omitempty"`
	Location    *string          `json:"location,omitempty"`
	Organizer   *string          `json:"organizer,omitempty"`
	Attendees   *[]string        `json:"attendees,omitempty"`
}

func (p Patch) apply(ev *model.CalendarEvent) {
	if p.Title != nil {
		ev.Title = *p.Title
	}
	if p.StartTime != nil {
		ev.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		ev.EndTime = *p.EndTime
	}
	if p.Day != nil {
		ev.Day = *p.Day
	}
	if p.Color != nil {
		ev.Color = p.Color.Normalize()
	}
	if p.Description != nil {
		ev.Description = *p.Description
	}
	if p.Location != nil {
		ev.Location = *p.Location
	}
	if p.Organizer != nil {
		ev.Organizer = *p.Organizer
	}
	if p.Attendees != nil {
		ev.Attendees = append([]string(nil), (*p.Attendees)...)
	}
}

// Store is an insertion-ordered collection of events keyed by id.
type Store struct {
	events []model.CalendarEvent
	index  map[int64]int
	lastID int64
}

func New() *Store {
	return &Store{index: make(map[int64]int)}
}

// Add appends ev. A zero id is replaced by a fresh one.
func (s *Store) Add(ev model.CalendarEvent) (model.CalendarEvent, error) {
	if ev.ID == 0 {
		ev.ID = s.nextID()
	} else if _, ok := s.index[ev.ID]; ok {
		return model.CalendarEvent{}, fmt.Errorf("%w: %d", ErrDuplicateID, ev.ID)
	}
	ev = ev.Clone()
	ev.Color = ev.Color.Normalize()
	if err := ev.Validate(); err != nil {
		return model.CalendarEvent{}, err
	}
	s.insert(ev)
	return ev.Clone(), nil
}

// Update applies p to the event with the given id. A patch that would break
// start < end (or any other invariant) is rejected and nothing changes.
func (s *Store) Update(id int64, p Patch) (model.CalendarEvent, error) {
	i, ok := s.index[id]
	if !ok {
		return model.CalendarEvent{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	next := s.events[i].Clone()
	p.apply(&next)
	if err := next.Validate(); err != nil {
		return model.CalendarEvent{}, err
	}
	s.events[i] = next
	return next.Clone(), nil
}

// Remove deletes the event with the given id.
func (s *Store) Remove(id int64) error {
	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	s.events = append(s.events[:i], s.events[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.events); j++ {
		s.index[s.events[j].ID] = j
	}
	return nil
}

// Get returns a copy of the event with the given id.
func (s *Store) Get(id int64) (model.CalendarEvent, bool) {
	i, ok := s.index[id]
	if !ok {
		return model.CalendarEvent{}, false
	}
	return s.events[i].Clone(), true
}

// ByDay returns the events on a day index, in insertion order.
func (s *Store) ByDay(day int) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0)
	for _, ev := range s.events {
		if ev.Day == day {
			out = append(out, ev.Clone())
		}
	}
	return out
}

// All returns every event in insertion order.
func (s *Store) All() []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Clone())
	}
	return out
}

func (s *Store) Len() int { return len(s.events) }

// BulkImport appends events under fresh ids, ignoring whatever ids they
// carry. Either every event is imported or, if one is invalid, none is.
func (s *Store) BulkImport(events []model.CalendarEvent) ([]model.CalendarEvent, error) {
	prepared := make([]model.CalendarEvent, 0, len(events))
	for i, ev := range events {
		ev = ev.Clone()
		ev.Color = ev.Color.Normalize()
		if err := ev.Validate(); err != nil {
			return nil, fmt.Errorf("import entry %d (%q): %w", i, ev.Title, err)
		}
		prepared = append(prepared, ev)
	}

	out := make([]model.CalendarEvent, 0, len(prepared))
	for _, ev := range prepared {
		ev.ID = s.nextID()
		s.insert(ev)
		out = append(out, ev.Clone())
	}
	return out, nil
}

func (s *Store) insert(ev model.CalendarEvent) {
	s.index[ev.ID] = len(s.events)
	s.events = append(s.events, ev)
	if ev.ID > s.lastID {
		s.lastID = ev.ID
	}
}

// nextID is monotonic and always above every id ever stored.
func (s *Store) nextID() int64 {
	s.lastID++
	return s.lastID
}
