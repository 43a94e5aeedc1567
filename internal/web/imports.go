package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"studycal/internal/calsync"
	"studycal/internal/ics"
	"studycal/internal/importer"
	"studycal/internal/ingest"
	appLog "studycal/internal/log"
	"studycal/internal/model"
	"studycal/internal/planner"
	"studycal/internal/session"
)

// skippedLine reports an input line or slot that produced no event.
type skippedLine struct {
	Line   string `json:"line"`
	Reason string `json:"reason"`
}

func skippedLines(errs []importer.LineError) []skippedLine {
	out := make([]skippedLine, 0, len(errs))
	for _, e := range errs {
		out = append(out, skippedLine{Line: e.Line, Reason: e.Err.Error()})
	}
	return out
}

// handleUpload forwards a class-schedule PDF to the ingestion service and
// keeps the returned class lines on the workspace until a plan is applied.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	if !s.ingest.Configured() {
		s.fail(w, ingest.ErrNotConfigured)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, ingest.MaxUploadBytes+(64<<10))
	if err := r.ParseMultipartForm(ingest.MaxUploadBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.fail(w, ingest.ErrTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, "expected multipart/form-data with a pdf field")
		return
	}
	file, hdr, err := r.FormFile(ingest.FormField)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing pdf file")
		return
	}
	defer file.Close()

	if ct, _, _ := mime.ParseMediaType(hdr.Header.Get("Content-Type")); ct != "application/pdf" {
		s.fail(w, fmt.Errorf("%w: content type %q", ingest.ErrNotPDF, ct))
		return
	}

	lines, err := s.ingest.Extract(r.Context(), hdr.Filename, file)
	if err != nil {
		s.fail(w, err)
		return
	}

	up := session.Upload{FileName: hdr.Filename, ClassTimes: lines}
	_ = ws.Do(func(st *session.State) error {
		*st.Upload = up
		return nil
	})
	writeJSON(w, http.StatusOK, up)
}

// handleSchedule generates a study plan without touching any workspace.
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var req planner.Request
	if !s.decodeJSON(w, r, &req) {
		return
	}
	plan, err := s.planner.Generate(r.Context(), req)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedule": plan})
}

type planResponse struct {
	Events  []model.CalendarEvent `json:"events"`
	Skipped []skippedLine         `json:"skipped"`
}

// handlePlan generates a study plan and imports the class meetings and
// study sessions into the workspace in one step. Class lines default to the
// last upload. A generator failure leaves the store untouched.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req planner.Request
	if !s.decodeJSON(w, r, &req) {
		return
	}

	var fileName string
	if len(req.ClassTimes) == 0 {
		_ = ws.Do(func(st *session.State) error {
			req.ClassTimes = append([]string(nil), st.Upload.ClassTimes...)
			fileName = st.Upload.FileName
			return nil
		})
	}

	// The generator call runs without the workspace lock held.
	plan, err := s.planner.Generate(r.Context(), req)
	if err != nil {
		s.fail(w, err)
		return
	}

	classes, classSkipped := importer.ClassEvents(req.ClassTimes, fileName)
	courses := make([]string, 0, len(req.ClassTimes))
	for _, line := range req.ClassTimes {
		if c := importer.CourseOf(line); c != "" {
			courses = append(courses, c)
		}
	}
	study, studySkipped := importer.StudyEvents(plan, courses)

	var imported []model.CalendarEvent
	err = ws.Do(func(st *session.State) error {
		var err error
		imported, err = st.Store.BulkImport(append(classes, study...))
		return err
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	s.metrics.RecordImport("class", len(classes))
	s.metrics.RecordImport("study", len(study))

	appLog.Info("plan applied", "workspace", ws.ID, "classes", len(classes), "study", len(study))
	writeJSON(w, http.StatusOK, planResponse{
		Events:  imported,
		Skipped: skippedLines(append(classSkipped, studySkipped...)),
	})
}

// syncPayload shapes the workspace's events on its active week. It returns
// false when there is nothing to push.
func (s *Server) syncPayload(ws *session.Workspace) (calsync.Payload, bool) {
	var records []calsync.Record
	_ = ws.Do(func(st *session.State) error {
		records = calsync.Records(st.Store.All(), st.Nav.DateOfDay)
		return nil
	})
	if len(records) == 0 {
		return calsync.Payload{}, false
	}
	return calsync.NewPayload(s.cfg.Sync.CalendarID, records), true
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	if s.pusher == nil {
		s.fail(w, calsync.ErrNotConfigured)
		return
	}
	p, ok := s.syncPayload(ws)
	if !ok {
		writeJSON(w, http.StatusOK, calsync.Result{})
		return
	}
	res, err := s.pusher.Push(r.Context(), p)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SyncAll pushes every non-empty live workspace. It is the job run by the
// sync scheduler; one failing workspace does not stop the others.
func (s *Server) SyncAll(ctx context.Context) error {
	if s.pusher == nil {
		return calsync.ErrNotConfigured
	}
	var errs []error
	pushed := 0
	for _, ws := range s.sessions.All() {
		p, ok := s.syncPayload(ws)
		if !ok {
			continue
		}
		if _, err := s.pusher.Push(ctx, p); err != nil {
			errs = append(errs, fmt.Errorf("workspace %s: %w", ws.ID, err))
			continue
		}
		pushed++
	}
	appLog.Info("scheduled sync finished", "pushed", pushed, "failed", len(errs))
	return errors.Join(errs...)
}

// handleExportICS downloads the workspace as a weekly repeating calendar.
// ?weeks=N limits the repetition; the default repeats forever.
func (s *Server) handleExportICS(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	weeks := parseIntDefault(r.URL.Query().Get("weeks"), 0)
	if weeks < 0 || weeks > 520 {
		writeError(w, http.StatusBadRequest, "weeks must be between 0 and 520")
		return
	}

	var body string
	err := ws.Do(func(st *session.State) error {
		var err error
		body, err = ics.Export(st.Store.All(), st.Nav.WeekDates()[0], ics.ExportOptions{
			Name:  "StudyCal",
			Weeks: weeks,
		})
		return err
	})
	if err != nil {
		s.fail(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="studycal.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

type importURLRequest struct {
	URL string `json:"url" validate:"required,http_url"`
}

type importResponse struct {
	Events []model.CalendarEvent `json:"events"`
	ics.ImportResult
}

// handleImportICS adds the active week's occurrences from an ICS payload.
// The body is either the calendar itself or JSON {"url": "..."} naming a
// feed to fetch.
func (s *Server) handleImportICS(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	var (
		src  ics.Source
		body []byte
	)
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var req importURLRequest
		if !s.decodeJSON(w, r, &req) {
			return
		}
		src = ics.Source{ID: "subscription", URL: req.URL}
		// Network fetch stays outside the workspace lock.
		res, err := s.fetcher.Fetch(r.Context(), src)
		if err != nil {
			s.fail(w, err)
			return
		}
		body = res.Body
	} else {
		var err error
		body, err = io.ReadAll(io.LimitReader(r.Body, ics.MaxFeedBytes+1))
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read body")
			return
		}
		if len(body) > ics.MaxFeedBytes {
			writeError(w, http.StatusRequestEntityTooLarge, "calendar too large")
			return
		}
		if len(bytes.TrimSpace(body)) == 0 {
			s.fail(w, ics.ErrEmptyBody)
			return
		}
		src = ics.Source{ID: "upload"}
	}

	var resp importResponse
	err := ws.Do(func(st *session.State) error {
		res, err := ics.ImportWeek(src, body, st.Nav.WeekDates()[0])
		if err != nil {
			return err
		}
		resp.ImportResult = res
		resp.Events, err = st.Store.BulkImport(res.Events)
		return err
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	if resp.Skipped == nil {
		resp.Skipped = []ics.SkippedOccurrence{}
	}
	s.metrics.RecordImport("ics", len(resp.Events))
	writeJSON(w, http.StatusOK, resp)
}
