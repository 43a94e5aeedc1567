package web

import (
	"net/http"
	"time"

	appLog "studycal/internal/log"
	"studycal/internal/model"
	"studycal/internal/session"
	"studycal/internal/store"
	"studycal/internal/view"
)

type workspaceResponse struct {
	ID      string      `json:"id"`
	Created time.Time   `json:"created"`
	Layout  view.Layout `json:"layout"`
}

func (s *Server) handleCreateWorkspace(w http.ResponseWriter, _ *http.Request) {
	ws := s.sessions.Create()
	var layout view.Layout
	_ = ws.Do(func(st *session.State) error {
		layout = s.composer.Compose(st.Store, *st.Nav, st.Gesture.Snapshot())
		return nil
	})
	writeJSON(w, http.StatusCreated, workspaceResponse{ID: ws.ID, Created: ws.Created, Layout: layout})
}

// eventRequest is the body of a manual add. A zero id asks the store to
// assign one.
type eventRequest struct {
	ID          int64           `json:"id" validate:"min=0"`
	Title       string          `json:"title" validate:"max=200"`
	StartTime   model.TimeOfDay `json:"startTime"`
	EndTime     model.TimeOfDay `json:"endTime"`
	Day         int             `json:"day" validate:"weekday"`
	Color       model.Color     `json:"color"`
	Description string          `json:"description" validate:"max=2000"`
	Location    string          `json:"location" validate:"max=200"`
	Organizer   string          `json:"organizer" validate:"max=200"`
	Attendees   []string        `json:"attendees" validate:"max=100,dive,max=200"`
}

func (e eventRequest) event() model.CalendarEvent {
	attendees := e.Attendees
	if attendees == nil {
		attendees = []string{}
	}
	return model.CalendarEvent{
		ID:          e.ID,
		Title:       e.Title,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		Day:         e.Day,
		Color:       e.Color,
		Description: e.Description,
		Location:    e.Location,
		Organizer:   e.Organizer,
		Attendees:   attendees,
	}
}

type eventsResponse struct {
	Events []model.CalendarEvent `json:"events"`
}

// handleListEvents returns every event, or only those on ?day=N.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	day := parseIntDefault(r.URL.Query().Get("day"), 0)
	if r.URL.Query().Has("day") && !model.ValidDay(day) {
		writeError(w, http.StatusBadRequest, "day must be between 1 (Sunday) and 7 (Saturday)")
		return
	}

	var resp eventsResponse
	_ = ws.Do(func(st *session.State) error {
		if day != 0 {
			resp.Events = st.Store.ByDay(day)
		} else {
			resp.Events = st.Store.All()
		}
		return nil
	})
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddEvent(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req eventRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	var added model.CalendarEvent
	err := ws.Do(func(st *session.State) error {
		var err error
		added, err = st.Store.Add(req.event())
		return err
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	appLog.Debug("event added", "workspace", ws.ID, "event_id", added.ID)
	writeJSON(w, http.StatusCreated, added)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	id, err := parseEventID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		ev    model.CalendarEvent
		found bool
	)
	_ = ws.Do(func(st *session.State) error {
		ev, found = st.Store.Get(id)
		return nil
	})
	if !found {
		s.fail(w, store.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	id, err := parseEventID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var patch store.Patch
	if !s.decodeJSON(w, r, &patch) {
		return
	}

	var updated model.CalendarEvent
	err = ws.Do(func(st *session.State) error {
		var err error
		updated, err = st.Store.Update(id, patch)
		return err
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleRemoveEvent(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	id, err := parseEventID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := ws.Do(func(st *session.State) error { return st.Store.Remove(id) }); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleView composes the layout for the workspace's current view. An
// optional ?view= renders another view without changing the navigation.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var override view.Kind
	if v := r.URL.Query().Get("view"); v != "" {
		k, err := view.ParseKind(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		override = k
	}

	var layout view.Layout
	_ = ws.Do(func(st *session.State) error {
		nav := *st.Nav
		if override != "" {
			nav = nav.WithView(override)
		}
		layout = s.composer.Compose(st.Store, nav, st.Gesture.Snapshot())
		return nil
	})
	writeJSON(w, http.StatusOK, layout)
}

// navRequest changes the navigation state. Fields apply in order: today,
// select (or openDay), view, step.
type navRequest struct {
	Today   bool   `json:"today"`
	Select  string `json:"select" validate:"omitempty,datetime=2006-01-02"`
	OpenDay bool   `json:"openDay"`
	View    string `json:"view" validate:"omitempty,oneof=day week month"`
	Step    int    `json:"step" validate:"min=-120,max=120"`
}

func (s *Server) handleNav(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req navRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	var layout view.Layout
	err := ws.Do(func(st *session.State) error {
		nav := *st.Nav
		if req.Today {
			nav = nav.Select(s.sessions.Today())
		}
		if req.Select != "" {
			date, err := time.ParseInLocation(time.DateOnly, req.Select, s.loc)
			if err != nil {
				return err
			}
			if req.OpenDay {
				nav = nav.OpenDay(date)
			} else {
				nav = nav.Select(date)
			}
		}
		if req.View != "" {
			k, err := view.ParseKind(req.View)
			if err != nil {
				return err
			}
			nav = nav.WithView(k)
		}
		if req.Step != 0 {
			nav = nav.Step(req.Step)
		}
		*st.Nav = nav
		layout = s.composer.Compose(st.Store, nav, st.Gesture.Snapshot())
		return nil
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, layout)
}
