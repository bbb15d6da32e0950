package infra

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/krisyupher/Focus-MotherFocus-sub003/internal/domain"
)

// ForegroundProber reports which app currently holds the foreground.
// The default prober approximates foreground by CPU activity; platform
// builds can swap in a window-server-backed implementation.
type ForegroundProber interface {
	ForegroundApp(ctx context.Context) (appID string, err error)
}

// ProcessUsageSource implements domain.UsageSource on top of a foreground
// prober plus the persisted sample store. Continuous foreground time is
// tracked in memory and resets when the foreground app changes.
type ProcessUsageSource struct {
	prober  ForegroundProber
	samples domain.SampleStore
	logger  *zap.Logger
	now     func() time.Time

	mu           sync.Mutex
	currentApp   string
	currentSince time.Time
}

// NewProcessUsageSource creates a usage source. A nil prober falls back to
// the CPU-activity prober.
func NewProcessUsageSource(prober ForegroundProber, samples domain.SampleStore, logger *zap.Logger) *ProcessUsageSource {
	if prober == nil {
		prober = &cpuForegroundProber{}
	}
	return &ProcessUsageSource{
		prober:  prober,
		samples: samples,
		logger:  logger,
		now:     time.Now,
	}
}

// HasPermission reports whether process accounting is readable. Listing
// processes fails on hosts where the daemon lacks the needed entitlement.
func (s *ProcessUsageSource) HasPermission() bool {
	_, err := process.Processes()
	return err == nil
}

// CurrentForegroundApp returns the foreground app and how long it has been
// continuously in front.
func (s *ProcessUsageSource) CurrentForegroundApp(ctx context.Context) (*domain.AppUsageInfo, error) {
	appID, err := s.prober.ForegroundApp(ctx)
	if err != nil {
		return nil, err
	}
	if appID == "" {
		s.mu.Lock()
		s.currentApp = ""
		s.mu.Unlock()
		return nil, nil
	}

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if appID != s.currentApp {
		s.currentApp = appID
		s.currentSince = now
	}
	return &domain.AppUsageInfo{
		AppID:      appID,
		Continuous: now.Sub(s.currentSince),
	}, nil
}

// SampleWindow returns total foreground time across all apps in [start, end).
func (s *ProcessUsageSource) SampleWindow(ctx context.Context, start, end time.Time) (time.Duration, error) {
	totals, err := s.samples.TotalsBetween(start, end)
	if err != nil {
		return 0, err
	}
	var sum time.Duration
	for _, d := range totals {
		sum += d
	}
	return sum, nil
}

// AppTotals returns per-app foreground totals in [start, end).
func (s *ProcessUsageSource) AppTotals(ctx context.Context, start, end time.Time) (map[string]time.Duration, error) {
	return s.samples.TotalsBetween(start, end)
}

var _ domain.UsageSource = (*ProcessUsageSource)(nil)

// cpuForegroundProber approximates the foreground app as the user-owned
// process with the highest recent CPU share. Good enough for a headless
// host; GUI platforms should use a real window-server prober.
type cpuForegroundProber struct{}

func (p *cpuForegroundProber) ForegroundApp(ctx context.Context) (string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return "", err
	}

	var bestName string
	var bestCPU float64
	for _, proc := range procs {
		pct, err := proc.CPUPercent()
		if err != nil || pct <= bestCPU {
			continue
		}
		name, err := proc.Name()
		if err != nil || name == "" {
			continue // Process may have exited
		}
		bestName = normalizeAppID(name)
		bestCPU = pct
	}
	return bestName, nil
}

// normalizeAppID lower-cases a process name and strips a trailing extension
// so "Chrome.exe" and "chrome" land on the same identifier.
func normalizeAppID(name string) string {
	name = strings.ToLower(name)
	if i := strings.LastIndex(name, "."); i > 0 {
		ext := name[i+1:]
		if ext == "exe" || ext == "app" {
			name = name[:i]
		}
	}
	return name
}
