// Package calsync shapes the active week for an external calendar service and
// pushes it there, on demand or on a cron schedule.
package calsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	appLog "studycal/internal/log"
	"studycal/internal/model"
)

var (
	ErrNotConfigured = errors.New("calendar sync not configured")
	ErrRejected      = errors.New("calendar sync rejected")
)

// colorIDs maps palette colors to the target service's event color ids.
var colorIDs = map[model.Color]string{
	model.ColorIndigo: "1",  // lavender
	model.ColorTeal:   "2",  // sage
	model.ColorPurple: "3",  // grape
	model.ColorPink:   "4",  // flamingo
	model.ColorYellow: "5",  // banana
	model.ColorOrange: "6",  // tangerine
	model.ColorCyan:   "7",  // peacock
	model.ColorBlue:   "9",  // blueberry
	model.ColorGreen:  "10", // basil
	model.ColorRed:    "11", // tomato
}

// ColorID returns the color id for c. Unknown colors use cyan's id.
func ColorID(c model.Color) string {
	return colorIDs[c.Normalize()]
}

// Record is one event in the shape the sync endpoint accepts.
type Record struct {
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Attendees   []string `json:"attendees"`
	Organizer   string   `json:"organizer"`
	ColorID     string   `json:"colorId"`
}

// Records places events on their dates and formats times as RFC 3339.
// dateOf resolves a day index to a date in the active week.
func Records(events []model.CalendarEvent, dateOf func(day int) time.Time) []Record {
	out := make([]Record, 0, len(events))
	for _, ev := range events {
		date := dateOf(ev.Day)
		attendees := ev.Attendees
		if attendees == nil {
			attendees = []string{}
		}
		out = append(out, Record{
			Summary:     ev.Title,
			Description: ev.Description,
			Location:    ev.Location,
			Start:       ev.StartTime.On(date).Format(time.RFC3339),
			End:         ev.EndTime.On(date).Format(time.RFC3339),
			Attendees:   attendees,
			Organizer:   ev.Organizer,
			ColorID:     ColorID(ev.Color),
		})
	}
	return out
}

// Payload is the body of one push.
type Payload struct {
	SessionID  string   `json:"sessionId"`
	CalendarID string   `json:"calendarId"`
	Events     []Record `json:"events"`
}

// NewPayload stamps records with a fresh sync session id.
func NewPayload(calendarID string, records []Record) Payload {
	return Payload{SessionID: uuid.NewString(), CalendarID: calendarID, Events: records}
}

// Result is what the endpoint reported.
type Result struct {
	SessionID string `json:"sessionId"`
	Pushed    int    `json:"pushed"`
}

// Pusher delivers a payload.
type Pusher interface {
	Push(ctx context.Context, p Payload) (Result, error)
}

// HTTPPusher POSTs payloads as JSON.
type HTTPPusher struct {
	endpoint string
	client   *http.Client
}

// NewHTTPPusher returns a pusher for endpoint, or nil when it is empty.
func NewHTTPPusher(endpoint string, timeout time.Duration) *HTTPPusher {
	if strings.TrimSpace(endpoint) == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPPusher{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

// Push sends p. Any non-2xx status is ErrRejected.
func (h *HTTPPusher) Push(ctx context.Context, p Payload) (Result, error) {
	if h == nil {
		return Result{}, ErrNotConfigured
	}
	body, err := json.Marshal(p)
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Sync-Session", p.SessionID)

	resp, err := h.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("sync push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	appLog.Info("calendar sync pushed", "session", p.SessionID, "events", len(p.Events))
	return Result{SessionID: p.SessionID, Pushed: len(p.Events)}, nil
}
