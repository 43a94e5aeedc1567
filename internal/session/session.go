// Package session keeps one editing workspace per client: its events, its
// gesture controller and its navigation state. Every call into a workspace
// runs under the workspace's mutex, which gives sequential pointer moves a
// last-committed-write-wins order.
package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"studycal/internal/geometry"
	"studycal/internal/gesture"
	appLog "studycal/internal/log"
	"studycal/internal/store"
	"studycal/internal/view"
)

var ErrNotFound = errors.New("workspace not found")

// Upload remembers the class lines of the last ingested PDF until a plan is
// applied.
type Upload struct {
	FileName   string   `json:"fileName"`
	ClassTimes []string `json:"classTimes"`
}

// State is the workspace content handed to a locked callback. Pointers stay
// valid only for the duration of the callback.
type State struct {
	Store   *store.Store
	Gesture *gesture.Controller
	Nav     *view.Nav
	Upload  *Upload
}

// Workspace is one client's calendar.
type Workspace struct {
	ID      string
	Created time.Time

	mu     sync.Mutex
	store  *store.Store
	ctrl   *gesture.Controller
	nav    view.Nav
	upload Upload

	// lastSeen is guarded by the Manager's mutex.
	lastSeen time.Time
}

// Do runs fn with exclusive access to the workspace.
func (w *Workspace) Do(fn func(*State) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return fn(&State{Store: w.store, Gesture: w.ctrl, Nav: &w.nav, Upload: &w.upload})
}

// Options configure a Manager.
type Options struct {
	TTL       time.Duration
	Grid      geometry.Grid
	WeekStart time.Weekday
	Location  *time.Location
	// Now is the clock; nil means time.Now.
	Now func() time.Time
	// OnCount observes the live workspace count after each change.
	OnCount func(n int)
}

// Manager owns the live workspaces.
type Manager struct {
	opts Options

	mu    sync.Mutex
	items map[string]*Workspace
}

// NewManager returns an empty Manager.
func NewManager(opts Options) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Grid.PixelsPerHour <= 0 {
		opts.Grid = geometry.NewGrid(geometry.DefaultPixelsPerHour, geometry.DefaultGranularity)
	}
	return &Manager{opts: opts, items: make(map[string]*Workspace)}
}

// Today is the current date in the configured location.
func (m *Manager) Today() time.Time {
	return m.opts.Now().In(m.opts.Location)
}

// Grid is the geometry every workspace uses.
func (m *Manager) Grid() geometry.Grid { return m.opts.Grid }

// Create starts a workspace with an empty store, opened on this week.
func (m *Manager) Create() *Workspace {
	now := m.opts.Now()
	st := store.New()
	ws := &Workspace{
		ID:       uuid.NewString(),
		Created:  now,
		store:    st,
		ctrl:     gesture.NewController(st, m.opts.Grid),
		nav:      view.NewNav(now.In(m.opts.Location), m.opts.WeekStart),
		lastSeen: now,
	}

	m.mu.Lock()
	m.items[ws.ID] = ws
	n := len(m.items)
	m.mu.Unlock()

	m.report(n)
	appLog.Info("workspace created", "id", ws.ID)
	return ws
}

// Get returns a live workspace and marks it as used.
func (m *Manager) Get(id string) (*Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	ws.lastSeen = m.opts.Now()
	return ws, nil
}

// All returns the live workspaces ordered by id.
func (m *Manager) All() []*Workspace {
	m.mu.Lock()
	out := make([]*Workspace, 0, len(m.items))
	for _, ws := range m.items {
		out = append(out, ws)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len is the number of live workspaces.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Sweep drops workspaces idle for longer than the TTL and returns how many
// were removed. A zero TTL never expires anything.
func (m *Manager) Sweep() int {
	if m.opts.TTL <= 0 {
		return 0
	}
	cutoff := m.opts.Now().Add(-m.opts.TTL)

	m.mu.Lock()
	removed := 0
	for id, ws := range m.items {
		if ws.lastSeen.Before(cutoff) {
			delete(m.items, id)
			removed++
		}
	}
	n := len(m.items)
	m.mu.Unlock()

	if removed > 0 {
		m.report(n)
		appLog.Info("expired idle workspaces", "removed", removed, "live", n)
	}
	return removed
}

// RunJanitor sweeps every interval until ctx is done.
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Sweep()
		}
	}
}

func (m *Manager) report(n int) {
	if m.opts.OnCount != nil {
		m.opts.OnCount(n)
	}
}
