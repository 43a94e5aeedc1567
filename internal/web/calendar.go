package web

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"studycal/internal/capture"
	appLog "studycal/internal/log"
	"studycal/internal/session"
	"studycal/internal/view"
)

var errNoCapturer = errors.New("snapshot capture not available")

//go:embed templates/calendar.html
var templateFS embed.FS

var calendarTmpl = template.Must(template.New("calendar.html").Funcs(template.FuncMap{
	"px": func(v float64) template.CSS {
		return template.CSS(strconv.FormatFloat(v, 'f', -1, 64) + "px")
	},
}).ParseFS(templateFS, "templates/calendar.html"))

// calendarPage flattens a Layout for the template. Day and week views both
// render as columns.
type calendarPage struct {
	View    view.Kind
	Title   string
	Hours   []view.HourRow
	Height  float64
	Columns []view.DayColumn
	Month   *view.MonthLayout
}

func newCalendarPage(l view.Layout) calendarPage {
	p := calendarPage{View: l.View}
	switch {
	case l.Day != nil:
		p.Title, p.Hours, p.Height = l.Day.Title, l.Day.Hours, l.Day.Height
		p.Columns = []view.DayColumn{l.Day.Column}
	case l.Month != nil:
		p.Title, p.Month = l.Month.Title, l.Month
	case l.Week != nil:
		p.Title, p.Hours, p.Height = l.Week.Title, l.Week.Hours, l.Week.Height
		p.Columns = l.Week.Columns
	}
	return p
}

// handleCalendar renders the workspace's current view as a static page.
// The root element carries data-ready="true" once rendered, which is what
// the snapshot capture waits for.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	ws, err := s.sessions.Get(r.URL.Query().Get("workspace"))
	if err != nil {
		http.Error(w, "workspace not found", http.StatusNotFound)
		return
	}

	var layout view.Layout
	_ = ws.Do(func(st *session.State) error {
		layout = s.composer.Compose(st.Store, *st.Nav, st.Gesture.Snapshot())
		return nil
	})

	var buf bytes.Buffer
	if err := calendarTmpl.Execute(&buf, newCalendarPage(layout)); err != nil {
		appLog.Error("calendar template failed", err, "workspace", ws.ID)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// CalendarURL is the address headless Chromium loads for ws. A wildcard
// listen host is reached through loopback. Basic auth credentials are
// embedded when configured.
func (s *Server) CalendarURL(wsID string) string {
	host := s.cfg.Listen
	if h, port, err := net.SplitHostPort(host); err == nil {
		if h == "" || h == "0.0.0.0" || h == "::" {
			h = "127.0.0.1"
		}
		host = net.JoinHostPort(h, port)
	}
	u := url.URL{
		Scheme:   "http",
		Host:     host,
		Path:     "/calendar",
		RawQuery: url.Values{"workspace": {wsID}}.Encode(),
	}
	if s.basicAuthEnabled() {
		u.User = url.UserPassword(s.cfg.BasicAuth.Username, s.cfg.BasicAuth.Password)
	}
	return u.String()
}

// handleSnapshot captures the /calendar page of a workspace as PNG.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	if s.capturer == nil {
		s.fail(w, errNoCapturer)
		return
	}

	png, err := s.capturer.CapturePNG(r.Context(), capture.Options{
		URL:       s.CalendarURL(ws.ID),
		Height:    int(s.sessions.Grid().DayHeight()) + 120,
		NoSandbox: os.Geteuid() == 0,
	})
	if err != nil {
		appLog.Error("snapshot capture failed", err, "workspace", ws.ID)
		writeError(w, http.StatusBadGateway, "snapshot capture failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}
