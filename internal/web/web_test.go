package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studycal/internal/calsync"
	"studycal/internal/capture"
	"studycal/internal/config"
	"studycal/internal/ingest"
	"studycal/internal/metrics"
	"studycal/internal/model"
	"studycal/internal/planner"
	"studycal/internal/session"
)

// Wednesday; the active week runs Sunday 2025-03-16 to Saturday 2025-03-22.
var today = time.Date(2025, time.March, 19, 15, 0, 0, 0, time.UTC)

type fakeGenerator struct {
	text string
	err  error
}

func (f *fakeGenerator) Generate(_ context.Context, _ string) (string, error) {
	return f.text, f.err
}

type fakePusher struct {
	mu       sync.Mutex
	payloads []calsync.Payload
	err      error
}

func (f *fakePusher) Push(_ context.Context, p calsync.Payload) (calsync.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return calsync.Result{}, f.err
	}
	f.payloads = append(f.payloads, p)
	return calsync.Result{SessionID: p.SessionID, Pushed: len(p.Events)}, nil
}

type fakeCapturer struct {
	opts capture.Options
}

func (f *fakeCapturer) CapturePNG(_ context.Context, opts capture.Options) ([]byte, error) {
	f.opts = opts
	return []byte("\x89PNG"), nil
}

type testEnv struct {
	srv      *Server
	h        http.Handler
	metrics  *metrics.Metrics
	pusher   *fakePusher
	capturer *fakeCapturer
	gen      *fakeGenerator
}

func newEnv(t *testing.T, mutate func(*config.Config, *Deps)) *testEnv {
	t.Helper()
	cfg := config.DefaultConfig()
	env := &testEnv{
		metrics:  metrics.NewMetrics(),
		pusher:   &fakePusher{},
		capturer: &fakeCapturer{},
		gen:      &fakeGenerator{},
	}
	deps := Deps{
		Sessions: session.NewManager(session.Options{
			TTL:       time.Hour,
			WeekStart: time.Sunday,
			Location:  time.UTC,
			Now:       func() time.Time { return today },
		}),
		Planner:  planner.NewService(env.gen, planner.Options{}),
		Ingest:   ingest.NewClient("", 0),
		Pusher:   env.pusher,
		Capturer: env.capturer,
		Metrics:  env.metrics,
	}
	if mutate != nil {
		mutate(cfg, &deps)
	}
	env.srv = NewServer(cfg, false, deps)
	env.h = env.srv.Handler()
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.h.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) workspace(t *testing.T) string {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/workspaces", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	var resp struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.ID
}

func (e *testEnv) addEvent(t *testing.T, ws string, ev map[string]any) model.CalendarEvent {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/workspaces/"+ws+"/events", ev)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var out model.CalendarEvent
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func lecture() map[string]any {
	return map[string]any{"title": "Lecture", "startTime": "09:00", "endTime": "10:00", "day": model.Monday, "color": "blue"}
}

func TestHealthAndBasicAuth(t *testing.T) {
	env := newEnv(t, func(cfg *config.Config, _ *Deps) {
		cfg.BasicAuth = &config.BasicAuthConfig{Username: "me", Password: "secret"}
	})

	rr := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())

	rr = env.do(t, http.MethodPost, "/api/workspaces", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Header().Get("WWW-Authenticate"), "StudyCal")

	req := httptest.NewRequest(http.MethodPost, "/api/workspaces", nil)
	req.SetBasicAuth("me", "secret")
	rr = httptest.NewRecorder()
	env.h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestEventCRUD(t *testing.T) {
	env := newEnv(t, nil)
	ws := env.workspace(t)
	base := "/api/workspaces/" + ws + "/events"

	ev := env.addEvent(t, ws, lecture())
	assert.Equal(t, int64(1), ev.ID)
	assert.Equal(t, model.ColorBlue, ev.Color)
	assert.Equal(t, []string{}, ev.Attendees)

	odd := lecture()
	odd["color"] = "chartreuse"
	odd["day"] = model.Tuesday
	assert.Equal(t, model.ColorCyan, env.addEvent(t, ws, odd).Color)

	dup := lecture()
	dup["id"] = 1
	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPost, base, dup).Code)

	inverted := lecture()
	inverted["startTime"] = "11:00"
	assert.Equal(t, http.StatusUnprocessableEntity, env.do(t, http.MethodPost, base, inverted).Code)

	badDay := lecture()
	badDay["day"] = 8
	rr := env.do(t, http.MethodPost, base, badDay)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), `"day"`)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, base, `{"startTime": "25:00"}`).Code)

	rr = env.do(t, http.MethodGet, base+"?day=2", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[eventsResponse](t, rr).Events, 1)
	assert.Len(t, decode[eventsResponse](t, env.do(t, http.MethodGet, base, nil)).Events, 2)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, base+"?day=0", nil).Code)

	rr = env.do(t, http.MethodPatch, base+"/1", map[string]any{"endTime": "08:00"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	rr = env.do(t, http.MethodPatch, base+"/1", map[string]any{"title": "Seminar", "endTime": "11:30"})
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[model.CalendarEvent](t, env.do(t, http.MethodGet, base+"/1", nil))
	assert.Equal(t, "Seminar", got.Title)
	assert.Equal(t, "11:30", got.EndTime.String())

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, base+"/1", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, base+"/1", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, base+"/1", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, base+"/abc", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/workspaces/missing/events", nil).Code)
}

func TestDragFlowCommitsAndRecordsMetrics(t *testing.T) {
	env := newEnv(t, nil)
	ws := env.workspace(t)
	env.addEvent(t, ws, lecture())
	prefix := "/api/workspaces/" + ws

	// Grab the 09:00 block 10px below its top edge.
	rr := env.do(t, http.MethodPost, prefix+"/drag/start", map[string]any{
		"eventId": 1,
		"pointer": map[string]float64{"x": 10, "y": 730},
		"block":   map[string]float64{"left": 0, "top": 720, "width": 100, "height": 80},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"phase":"dragging"`)

	col := map[string]any{"day": model.Wednesday, "bounds": map[string]float64{"top": 0}, "scrollTop": 0}
	rr = env.do(t, http.MethodPost, prefix+"/drag/over", map[string]any{
		"column":  col,
		"pointer": map[string]float64{"x": 300, "y": 1130},
	})
	require.Equal(t, http.StatusOK, rr.Code)
	over := decode[dragOverResponse](t, rr)
	require.True(t, over.Updated)
	assert.Equal(t, "14:00", over.Preview.StartTime.String())
	assert.Equal(t, "15:00", over.Preview.EndTime.String())

	// A candidate ending past midnight keeps the previous preview.
	rr = env.do(t, http.MethodPost, prefix+"/drag/over", map[string]any{
		"column":  col,
		"pointer": map[string]float64{"x": 300, "y": 23.5 * 80},
	})
	assert.False(t, decode[dragOverResponse](t, rr).Updated)

	view := env.do(t, http.MethodGet, prefix+"/view", nil).Body.String()
	assert.Contains(t, view, `"highlighted":true`)
	assert.Contains(t, view, `"dimmed":true`)
	assert.Contains(t, view, `"timeRange":"14:00 - 15:00"`)

	rr = env.do(t, http.MethodPost, prefix+"/drag/drop", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"result":"committed"`)

	got := decode[model.CalendarEvent](t, env.do(t, http.MethodGet, prefix+"/events/1", nil))
	assert.Equal(t, model.Wednesday, got.Day)
	assert.Equal(t, "14:00", got.StartTime.String())
	assert.Equal(t, "15:00", got.EndTime.String())

	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPost, prefix+"/drag/drop", nil).Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.GestureOutcomes.WithLabelValues("drag", metrics.OutcomeCommitted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.GestureOutcomes.WithLabelValues("drag", metrics.OutcomeRejected)))
}

func TestDragLeaveThenPointerUpCancels(t *testing.T) {
	env := newEnv(t, nil)
	ws := env.workspace(t)
	env.addEvent(t, ws, lecture())
	prefix := "/api/workspaces/" + ws

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, prefix+"/drag/start", map[string]any{
		"eventId": 1, "pointer": map[string]float64{"y": 720}, "block": map[string]float64{"top": 720},
	}).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, prefix+"/drag/over", map[string]any{
		"column": map[string]any{"day": model.Friday}, "pointer": map[string]float64{"y": 160},
	}).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, prefix+"/drag/leave", nil).Code)

	rr := env.do(t, http.MethodPost, prefix+"/pointerup", nil)
	assert.Contains(t, rr.Body.String(), `"result":"cancelled"`)

	got := decode[model.CalendarEvent](t, env.do(t, http.MethodGet, prefix+"/events/1", nil))
	assert.Equal(t, model.Monday, got.Day)
	assert.Equal(t, "09:00", got.StartTime.String())
	assert.Contains(t, env.do(t, http.MethodGet, prefix+"/gesture", nil).Body.String(), `"phase":"idle"`)
}

func TestResizeFlow(t *testing.T) {
	env := newEnv(t, nil)
	ws := env.workspace(t)
	env.addEvent(t, ws, lecture())
	prefix := "/api/workspaces/" + ws

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, prefix+"/resize/start", map[string]any{"eventId": 1, "edge": "left"}).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, prefix+"/resize/start", map[string]any{"eventId": 9, "edge": "top"}).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, prefix+"/resize/start", map[string]any{"eventId": 1, "edge": "bottom"}).Code)

	col := map[string]any{"day": model.Monday}
	rr := env.do(t, http.MethodPost, prefix+"/resize/move", map[string]any{"column": col, "pointer": map[string]float64{"y": 11 * 80}})
	require.Equal(t, http.StatusOK, rr.Code)
	moved := decode[resizeMoveResponse](t, rr)
	assert.True(t, moved.Changed)
	assert.Equal(t, "11:00", moved.Event.EndTime.String())

	// Dragging the bottom edge above the start is ignored.
	rr = env.do(t, http.MethodPost, prefix+"/resize/move", map[string]any{"column": col, "pointer": map[string]float64{"y": 8 * 80}})
	assert.False(t, decode[resizeMoveResponse](t, rr).Changed)

	rr = env.do(t, http.MethodPost, prefix+"/pointerup", nil)
	assert.Contains(t, rr.Body.String(), `"result":"committed"`)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.GestureOutcomes.WithLabelValues("resize", metrics.OutcomeCommitted)))
	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPost, prefix+"/resize/move", map[string]any{"column": col}).Code)
}

func TestPointerCoordinatesAreBounded(t *testing.T) {
	env := newEnv(t, nil)
	ws := env.workspace(t)
	env.addEvent(t, ws, lecture())
	prefix := "/api/workspaces/" + ws

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, prefix+"/resize/start", map[string]any{"eventId": 1, "edge": "top"}).Code)
	col := map[string]any{"day": model.Monday}
	rr := env.do(t, http.MethodPost, prefix+"/resize/move", map[string]any{"column": col, "pointer": map[string]float64{"y": 1e300}})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, decode[validationResponse](t, rr).Fields, "pointer.y")

	rr = env.do(t, http.MethodPost, prefix+"/resize/move", map[string]any{
		"column":  map[string]any{"day": model.Monday, "bounds": map[string]float64{"top": -5e6}},
		"pointer": map[string]float64{"y": 100},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, decode[validationResponse](t, rr).Fields, "column.bounds.top")

	env.do(t, http.MethodPost, prefix+"/pointerup", nil)
	got := decode[model.CalendarEvent](t, env.do(t, http.MethodGet, prefix+"/events/1", nil))
	assert.Equal(t, "09:00", got.StartTime.String())

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, prefix+"/drag/start", map[string]any{
		"eventId": 1, "pointer": map[string]float64{"y": 730}, "block": map[string]float64{"top": 720, "height": 80},
	}).Code)
	rr = env.do(t, http.MethodPost, prefix+"/drag/over", map[string]any{"column": col, "pointer": map[string]float64{"y": -1e300}})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestNavigation(t *testing.T) {
	env := newEnv(t, nil)
	ws := env.workspace(t)
	env.addEvent(t, ws, lecture())
	nav := "/api/workspaces/" + ws + "/nav"

	rr := env.do(t, http.MethodPost, nav, map[string]any{"view": "month"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"view":"month"`)
	assert.Contains(t, rr.Body.String(), `"title":"March 2025"`)

	rr = env.do(t, http.MethodPost, nav, map[string]any{"select": "2025-03-17", "openDay": true})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"view":"day"`)
	assert.Contains(t, rr.Body.String(), `"title":"Monday, March 17"`)
	assert.Contains(t, rr.Body.String(), `"title":"Lecture"`)

	rr = env.do(t, http.MethodPost, nav, map[string]any{"view": "week", "step": 1})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"date":"2025-03-24"`)

	rr = env.do(t, http.MethodPost, nav, map[string]any{"today": true})
	assert.Contains(t, rr.Body.String(), `"date":"2025-03-19","label":"WED","dateNumber":19,"selected":true`)

	assert.Equal(t, http.StatusUnprocessableEntity, env.do(t, http.MethodPost, nav, map[string]any{"view": "year"}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, env.do(t, http.MethodPost, nav, map[string]any{"select": "17/03/2025"}).Code)

	rr = env.do(t, http.MethodGet, "/api/workspaces/"+ws+"/view?view=month", nil)
	assert.Contains(t, rr.Body.String(), `"view":"month"`)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/workspaces/"+ws+"/view?view=year", nil).Code)
}

const fencedPlan = "```json\n" + `{
  "Monday": {"07:30 - 08:30": "Read chapter 3", "09:30 - 10:30": "CS 3080", "11:30 - 12:30": "-"},
  "Tuesday": {"13:30 - 14:30": "Practice problems", "14:30 - 15:30": ""}
}` + "\n```"

func TestPlanImportsClassesAndStudySessions(t *testing.T) {
	env := newEnv(t, nil)
	env.gen.text = fencedPlan
	ws := env.workspace(t)

	rr := env.do(t, http.MethodPost, "/api/workspaces/"+ws+"/plan", map[string]any{
		"classTimes": []string{"Mon 9:30 AM - 10:45 AM - CS 3080 - Hayes Hall 117", "Someday 9 - 10"},
		"studyGoals": "Pass the midterm",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[planResponse](t, rr)
	require.Len(t, resp.Events, 3)
	assert.Len(t, resp.Skipped, 1)

	class := resp.Events[0]
	assert.Equal(t, "CS 3080", class.Title)
	assert.Equal(t, "University", class.Organizer)
	assert.Equal(t, "Hayes Hall 117", class.Location)

	titles := []string{resp.Events[1].Title, resp.Events[2].Title}
	assert.ElementsMatch(t, []string{"Read chapter 3", "Practice problems"}, titles)
	assert.Equal(t, "AI Study Session", resp.Events[1].Description)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.ImportedEvents.WithLabelValues("class")))
	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.ImportedEvents.WithLabelValues("study")))
}

func TestPlanFailureLeavesStoreUntouched(t *testing.T) {
	env := newEnv(t, nil)
	env.gen.text = "Sure! Here is your plan."
	ws := env.workspace(t)
	body := map[string]any{"studyGoals": "Pass"}

	rr := env.do(t, http.MethodPost, "/api/workspaces/"+ws+"/plan", body)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "AI response was not valid JSON")
	assert.Empty(t, decode[eventsResponse](t, env.do(t, http.MethodGet, "/api/workspaces/"+ws+"/events", nil)).Events)

	env.gen.err = errors.New("quota exceeded")
	assert.Equal(t, http.StatusInternalServerError, env.do(t, http.MethodPost, "/api/workspaces/"+ws+"/plan", body).Code)

	assert.Equal(t, http.StatusUnprocessableEntity, env.do(t, http.MethodPost, "/api/workspaces/"+ws+"/plan", map[string]any{}).Code)
}

func TestScheduleEndpoint(t *testing.T) {
	env := newEnv(t, nil)
	env.gen.text = fencedPlan

	rr := env.do(t, http.MethodPost, "/api/schedule", map[string]any{"classTimes": []string{}, "studyGoals": "Pass", "intensity": 3})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"Read chapter 3"`)

	rr = env.do(t, http.MethodPost, "/api/schedule", map[string]any{"studyGoals": "Pass", "intensity": 5})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), `"intensity"`)

	bare := newEnv(t, func(_ *config.Config, d *Deps) { d.Planner = planner.NewService(nil, planner.Options{}) })
	assert.Equal(t, http.StatusServiceUnavailable, bare.do(t, http.MethodPost, "/api/schedule", map[string]any{"studyGoals": "Pass"}).Code)
}

func pdfUpload(t *testing.T, contentType string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="pdf"; filename="fall.pdf"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF-1.4 fake"))
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadKeepsClassLinesForPlan(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"schedule": {"classTimes": ["Tue 1:00 PM - 2:15 PM - MATH 2010 - Room 4"]}}`))
	}))
	defer upstream.Close()

	env := newEnv(t, func(_ *config.Config, d *Deps) { d.Ingest = ingest.NewClient(upstream.URL, time.Second) })
	env.gen.text = `{"Monday": {"07:30 - 08:30": "Flashcards"}}`
	ws := env.workspace(t)
	path := "/api/workspaces/" + ws + "/upload"

	body, ct := pdfUpload(t, "application/pdf")
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	env.h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	up := decode[session.Upload](t, rr)
	assert.Equal(t, "fall.pdf", up.FileName)
	assert.Len(t, up.ClassTimes, 1)

	rr = env.do(t, http.MethodPost, "/api/workspaces/"+ws+"/plan", map[string]any{"studyGoals": "Algebra"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[planResponse](t, rr)
	require.Len(t, resp.Events, 2)
	assert.Equal(t, "Class from fall.pdf", resp.Events[0].Description)

	body, ct = pdfUpload(t, "image/png")
	req = httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	rr = httptest.NewRecorder()
	env.h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
}

func TestUploadWithoutIngestService(t *testing.T) {
	env := newEnv(t, nil)
	ws := env.workspace(t)
	body, ct := pdfUpload(t, "application/pdf")
	req := httptest.NewRequest(http.MethodPost, "/api/workspaces/"+ws+"/upload", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	env.h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestExportImportRoundTrip(t *testing.T) {
	env := newEnv(t, nil)
	src := env.workspace(t)
	env.addEvent(t, src, lecture())

	rr := env.do(t, http.MethodGet, "/api/workspaces/"+src+"/export.ics?weeks=4", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", rr.Header().Get("Content-Type"))
	cal := rr.Body.String()
	assert.Contains(t, cal, "RRULE:FREQ=WEEKLY;COUNT=4;BYDAY=MO")
	assert.Contains(t, cal, "DTSTART:20250317T090000Z")
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/workspaces/"+src+"/export.ics?weeks=-1", nil).Code)

	dst := env.workspace(t)
	req := httptest.NewRequest(http.MethodPost, "/api/workspaces/"+dst+"/import.ics", strings.NewReader(cal))
	req.Header.Set("Content-Type", "text/calendar")
	rr = httptest.NewRecorder()
	env.h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[importResponse](t, rr)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "Lecture", resp.Events[0].Title)
	assert.Equal(t, model.Monday, resp.Events[0].Day)
	assert.Equal(t, "09:00", resp.Events[0].StartTime.String())

	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		_, _ = io.WriteString(w, cal)
	}))
	defer feed.Close()
	rr = env.do(t, http.MethodPost, "/api/workspaces/"+dst+"/import.ics", map[string]string{"url": feed.URL})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Len(t, decode[eventsResponse](t, env.do(t, http.MethodGet, "/api/workspaces/"+dst+"/events", nil)).Events, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.ImportedEvents.WithLabelValues("ics")))

	assert.Equal(t, http.StatusUnprocessableEntity, env.do(t, http.MethodPost, "/api/workspaces/"+dst+"/import.ics", map[string]string{"url": "ftp://x"}).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/workspaces/"+dst+"/import.ics", strings.NewReader("  "))
	req.Header.Set("Content-Type", "text/calendar")
	rr = httptest.NewRecorder()
	env.h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSyncPushesActiveWeek(t *testing.T) {
	env := newEnv(t, nil)
	ws := env.workspace(t)
	empty := env.workspace(t)
	env.addEvent(t, ws, lecture())

	rr := env.do(t, http.MethodPost, "/api/workspaces/"+ws+"/sync", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"pushed":1`)

	require.Len(t, env.pusher.payloads, 1)
	p := env.pusher.payloads[0]
	assert.Equal(t, "primary", p.CalendarID)
	assert.NotEmpty(t, p.SessionID)
	assert.Equal(t, "2025-03-17T09:00:00Z", p.Events[0].Start)
	assert.Equal(t, "9", p.Events[0].ColorID)

	rr = env.do(t, http.MethodPost, "/api/workspaces/"+empty+"/sync", nil)
	assert.Contains(t, rr.Body.String(), `"pushed":0`)
	assert.Len(t, env.pusher.payloads, 1)

	require.NoError(t, env.srv.SyncAll(context.Background()))
	assert.Len(t, env.pusher.payloads, 2)

	env.pusher.err = calsync.ErrRejected
	assert.ErrorIs(t, env.srv.SyncAll(context.Background()), calsync.ErrRejected)
	assert.Equal(t, http.StatusBadGateway, env.do(t, http.MethodPost, "/api/workspaces/"+ws+"/sync", nil).Code)

	unset := newEnv(t, func(_ *config.Config, d *Deps) { d.Pusher = nil })
	ws = unset.workspace(t)
	assert.Equal(t, http.StatusServiceUnavailable, unset.do(t, http.MethodPost, "/api/workspaces/"+ws+"/sync", nil).Code)
	assert.ErrorIs(t, unset.srv.SyncAll(context.Background()), calsync.ErrNotConfigured)
}

func TestCalendarPageAndSnapshot(t *testing.T) {
	env := newEnv(t, nil)
	ws := env.workspace(t)
	env.addEvent(t, ws, lecture())

	rr := env.do(t, http.MethodGet, "/calendar?workspace="+ws, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	page := rr.Body.String()
	assert.Contains(t, page, `data-ready="true"`)
	assert.Contains(t, page, "Lecture")
	assert.Contains(t, page, "top: 720px; height: 80px")
	assert.Contains(t, page, "09:00 - 10:00")

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/calendar?workspace=nope", nil).Code)

	env.do(t, http.MethodPost, "/api/workspaces/"+ws+"/nav", map[string]any{"view": "month"})
	assert.Contains(t, env.do(t, http.MethodGet, "/calendar?workspace="+ws, nil).Body.String(), `class="chip c-blue"`)

	rr = env.do(t, http.MethodGet, "/api/workspaces/"+ws+"/snapshot.png", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.Equal(t, "http://127.0.0.1:3001/calendar?workspace="+ws, env.capturer.opts.URL)

	noChrome := newEnv(t, func(_ *config.Config, d *Deps) { d.Capturer = nil })
	ws = noChrome.workspace(t)
	assert.Equal(t, http.StatusServiceUnavailable, noChrome.do(t, http.MethodGet, "/api/workspaces/"+ws+"/snapshot.png", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newEnv(t, nil)
	env.workspace(t)

	rr := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `route="POST /api/workspaces"`)
}
