// Package fixtures provides scripted collaborators for integration tests.
package fixtures

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/krisyupher/Focus-MotherFocus-sub003/internal/domain"
)

// ScriptedUsageSource is a hand-driven domain.UsageSource. Tests set the
// foreground app and per-app totals directly.
type ScriptedUsageSource struct {
	mu         sync.Mutex
	permission bool
	foreground *domain.AppUsageInfo
	totals     map[string]time.Duration
}

// NewScriptedUsageSource starts with permission granted and nothing in the
// foreground.
func NewScriptedUsageSource() *ScriptedUsageSource {
	return &ScriptedUsageSource{
		permission: true,
		totals:     make(map[string]time.Duration),
	}
}

// SetPermission toggles usage-access permission.
func (s *ScriptedUsageSource) SetPermission(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permission = ok
}

// SetForeground puts an app in the foreground with the given continuous time.
// An empty appID clears the foreground.
func (s *ScriptedUsageSource) SetForeground(appID string, continuous time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if appID == "" {
		s.foreground = nil
		return
	}
	s.foreground = &domain.AppUsageInfo{AppID: appID, Continuous: continuous}
}

// SetTotals replaces the per-app totals returned for any window.
func (s *ScriptedUsageSource) SetTotals(totals map[string]time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals = totals
}

func (s *ScriptedUsageSource) HasPermission() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permission
}

func (s *ScriptedUsageSource) CurrentForegroundApp(ctx context.Context) (*domain.AppUsageInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.foreground == nil {
		return nil, nil
	}
	cp := *s.foreground
	return &cp, nil
}

func (s *ScriptedUsageSource) SampleWindow(ctx context.Context, start, end time.Time) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum time.Duration
	for _, d := range s.totals {
		sum += d
	}
	return sum, nil
}

func (s *ScriptedUsageSource) AppTotals(ctx context.Context, start, end time.Time) (map[string]time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Duration, len(s.totals))
	for k, v := range s.totals {
		out[k] = v
	}
	return out, nil
}

var _ domain.UsageSource = (*ScriptedUsageSource)(nil)

// ScriptedOracle replies from a queue, falling back to a canned line when
// the queue runs dry.
type ScriptedOracle struct {
	mu       sync.Mutex
	queue    []string
	Fallback string
	Calls    int
}

// NewScriptedOracle creates an oracle with queued replies.
func NewScriptedOracle(replies ...string) *ScriptedOracle {
	return &ScriptedOracle{queue: replies, Fallback: "Understood."}
}

func (o *ScriptedOracle) Send(ctx context.Context, systemPrompt string, history []domain.DialogueTurn, message string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Calls++
	if len(o.queue) == 0 {
		return o.Fallback, nil
	}
	reply := o.queue[0]
	o.queue = o.queue[1:]
	return reply, nil
}

var _ domain.DialogueOracle = (*ScriptedOracle)(nil)

// CapturingSink records every presented intervention.
type CapturingSink struct {
	mu       sync.Mutex
	captured []PresentedIntervention
}

// PresentedIntervention is one sink delivery.
type PresentedIntervention struct {
	Action  domain.Action
	Message string
}

func (s *CapturingSink) PresentIntervention(action domain.Action, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captured = append(s.captured, PresentedIntervention{Action: action, Message: message})
	return nil
}

// All returns a copy of everything presented so far.
func (s *CapturingSink) All() []PresentedIntervention {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PresentedIntervention, len(s.captured))
	copy(out, s.captured)
	return out
}

var _ domain.PresentationSink = (*CapturingSink)(nil)

// RecordingController records forced closes instead of killing anything.
type RecordingController struct {
	mu     sync.Mutex
	closed []string
	Err    error
}

func (c *RecordingController) CloseSubject(ctx context.Context, appID string) error {
	if c.Err != nil {
		return fmt.Errorf("close %s: %w", appID, c.Err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = append(c.closed, appID)
	return nil
}

// Closed returns the app IDs closed so far.
func (c *RecordingController) Closed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.closed))
	copy(out, c.closed)
	return out
}

var _ domain.SubjectController = (*RecordingController)(nil)
