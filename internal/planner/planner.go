// Package planner asks a generative model for a weekly study plan that fits
// around a student's class times.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"studycal/internal/importer"
	appLog "studycal/internal/log"
)

var (
	// ErrNotConfigured means no generator (or no API key) is available.
	ErrNotConfigured = errors.New("schedule generator not configured")
	// ErrInvalidResponse means the model replied with something that is not
	// a day -> slot -> task JSON object.
	ErrInvalidResponse = errors.New("invalid schedule response")
)

// Weekdays and Slots define the grid the model is asked to fill.
var (
	Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}
	Slots    = []string{
		"07:30 - 08:30",
		"08:30 - 09:30",
		"09:30 - 10:30",
		"10:30 - 11:30",
		"11:30 - 12:30",
		"12:30 - 13:30",
		"13:30 - 14:30",
		"14:30 - 15:30",
		"15:30 - 16:30",
	}
)

// Intensity labels, indexed 1..3.
var intensityLabels = map[int]string{
	1: "Light",
	2: "Moderate",
	3: "Heavy",
}

// IntensityLabel returns the label for level, or "Moderate" when out of range.
func IntensityLabel(level int) string {
	if l, ok := intensityLabels[level]; ok {
		return l
	}
	return intensityLabels[2]
}

// Generator produces raw model text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Request is the input of a schedule generation.
type Request struct {
	ClassTimes []string `json:"classTimes" validate:"dive,required"`
	StudyGoals string   `json:"studyGoals" validate:"required,max=4000"`
	Intensity  int      `json:"intensity,omitempty" validate:"omitempty,min=1,max=3"`
}

// Options tune a Service.
type Options struct {
	Timeout          time.Duration
	DefaultIntensity int
}

// Service builds prompts, calls the Generator and parses its reply.
type Service struct {
	gen  Generator
	opts Options
}

// NewService wraps gen. A nil gen yields a Service whose Generate always
// fails with ErrNotConfigured.
func NewService(gen Generator, opts Options) *Service {
	if opts.DefaultIntensity < 1 || opts.DefaultIntensity > 3 {
		opts.DefaultIntensity = 2
	}
	return &Service{gen: gen, opts: opts}
}

// Configured reports whether a generator is attached.
func (s *Service) Configured() bool {
	return s != nil && s.gen != nil
}

// Generate returns the study plan for req.
func (s *Service) Generate(ctx context.Context, req Request) (importer.StudyPlan, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	if req.Intensity == 0 {
		req.Intensity = s.opts.DefaultIntensity
	}
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	started := time.Now()
	text, err := s.gen.Generate(ctx, BuildPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("generate schedule: %w", err)
	}
	plan, err := ParsePlan(text)
	if err != nil {
		appLog.Warn("schedule response rejected", "err", err, "bytes", len(text))
		return nil, err
	}
	appLog.Info("schedule generated",
		"days", len(plan),
		"intensity", IntensityLabel(req.Intensity),
		"elapsed", time.Since(started).String(),
	)
	return plan, nil
}

// BuildPrompt renders the generation prompt for req.
func BuildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You are a study planner. Build a weekly study schedule for a student.\n\n")

	b.WriteString("Class times (these slots are taken; do not schedule study during them):\n")
	if len(req.ClassTimes) == 0 {
		b.WriteString("- none\n")
	}
	for _, c := range req.ClassTimes {
		fmt.Fprintf(&b, "- %s\n", strings.TrimSpace(c))
	}

	fmt.Fprintf(&b, "\nStudy goals:\n%s\n", strings.TrimSpace(req.StudyGoals))
	fmt.Fprintf(&b, "\nStudy intensity: %s\n", IntensityLabel(req.Intensity))

	b.WriteString("\nFill this grid. Days: ")
	b.WriteString(strings.Join(Weekdays, ", "))
	b.WriteString(".\nSlots:\n")
	for _, s := range Slots {
		fmt.Fprintf(&b, "- %s\n", s)
	}

	b.WriteString("\nRespond with JSON only, no prose and no markdown. Shape:\n")
	b.WriteString(`{"Monday": {"07:30 - 08:30": "task or empty string", ...}, ...}`)
	b.WriteString("\nUse an empty string for free slots. Use the class name for slots taken by a class.\n")
	return b.String()
}

// ParsePlan decodes model output into a StudyPlan. Markdown code fences
// around the JSON are tolerated. Non-string task values are stringified and
// nulls become empty slots.
func ParsePlan(text string) (importer.StudyPlan, error) {
	body := stripFences(text)
	if body == "" {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidResponse)
	}

	var raw map[string]map[string]any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	plan := make(importer.StudyPlan, len(raw))
	for day, slots := range raw {
		out := make(map[string]string, len(slots))
		for slot, v := range slots {
			switch t := v.(type) {
			case nil:
				out[slot] = ""
			case string:
				out[slot] = t
			default:
				out[slot] = fmt.Sprint(t)
			}
		}
		plan[day] = out
	}
	return plan, nil
}

func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the info string ("json") up to the first newline.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
