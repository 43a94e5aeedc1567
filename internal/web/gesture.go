package web

import (
	"net/http"

	"studycal/internal/gesture"
	"studycal/internal/metrics"
	"studycal/internal/model"
	"studycal/internal/session"
)

// dragStartRequest carries the pointer and the event block's bounding box
// at pointer-down.
type dragStartRequest struct {
	EventID int64         `json:"eventId" validate:"required,min=1"`
	Pointer gesture.Point `json:"pointer"`
	Block   gesture.Rect  `json:"block"`
}

// moveRequest is a pointer move over one measured day column.
type moveRequest struct {
	Column  gesture.Column `json:"column"`
	Pointer gesture.Point  `json:"pointer"`
}

type resizeStartRequest struct {
	EventID int64        `json:"eventId" validate:"required,min=1"`
	Edge    gesture.Edge `json:"edge" validate:"required"`
}

type dragOverResponse struct {
	Preview *gesture.Placement `json:"preview"`
	Updated bool               `json:"updated"`
}

type resizeMoveResponse struct {
	Event   model.CalendarEvent `json:"event"`
	Changed bool                `json:"changed"`
}

// gestureName labels metrics by the kind of session an outcome ended.
func gestureName(p gesture.Phase) string {
	switch p {
	case gesture.PhaseDragging:
		return "drag"
	case gesture.PhaseResizing:
		return "resize"
	default:
		return "none"
	}
}

func (s *Server) recordOutcome(o gesture.Outcome) {
	switch o.Result {
	case gesture.ResultCommitted:
		s.metrics.RecordGesture(gestureName(o.Phase), metrics.OutcomeCommitted)
	case gesture.ResultCancelled:
		s.metrics.RecordGesture(gestureName(o.Phase), metrics.OutcomeCancelled)
	}
}

func (s *Server) handleDragStart(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req dragStartRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	var snap gesture.Snapshot
	err := ws.Do(func(st *session.State) error {
		if _, err := st.Gesture.BeginDrag(req.EventID, req.Pointer, req.Block); err != nil {
			return err
		}
		snap = st.Gesture.Snapshot()
		return nil
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDragOver(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req moveRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	var resp dragOverResponse
	err := ws.Do(func(st *session.State) error {
		var err error
		resp.Preview, resp.Updated, err = st.Gesture.DragOver(req.Column, req.Pointer)
		return err
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	if !resp.Updated {
		s.metrics.RecordGesture("drag", metrics.OutcomeRejected)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDragLeave(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var snap gesture.Snapshot
	err := ws.Do(func(st *session.State) error {
		if err := st.Gesture.DragLeave(); err != nil {
			return err
		}
		snap = st.Gesture.Snapshot()
		return nil
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDrop(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var out gesture.Outcome
	err := ws.Do(func(st *session.State) error {
		var err error
		out, err = st.Gesture.Drop()
		return err
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	s.recordOutcome(out)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleResizeStart(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req resizeStartRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	var snap gesture.Snapshot
	err := ws.Do(func(st *session.State) error {
		if _, err := st.Gesture.BeginResize(req.EventID, req.Edge); err != nil {
			return err
		}
		snap = st.Gesture.Snapshot()
		return nil
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleResizeMove(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req moveRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	var resp resizeMoveResponse
	err := ws.Do(func(st *session.State) error {
		var err error
		resp.Event, resp.Changed, err = st.Gesture.ResizeMove(req.Column, req.Pointer)
		return err
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	if !resp.Changed {
		s.metrics.RecordGesture("resize", metrics.OutcomeRejected)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePointerUp is the global release: it ends whatever session is
// active, wherever the pointer was released.
func (s *Server) handlePointerUp(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var out gesture.Outcome
	_ = ws.Do(func(st *session.State) error {
		out = st.Gesture.PointerUp()
		return nil
	})
	s.recordOutcome(out)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGesture(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var snap gesture.Snapshot
	_ = ws.Do(func(st *session.State) error {
		snap = st.Gesture.Snapshot()
		return nil
	})
	writeJSON(w, http.StatusOK, snap)
}
