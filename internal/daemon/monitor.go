// Package daemon implements the detection and enforcement loops.
package daemon

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/krisyupher/Focus-MotherFocus-sub003/internal/domain"
)

// DetectionRunner is the per-tick detection pipeline.
type DetectionRunner interface {
	OnTick(ctx context.Context) error
}

// Pruner bounds the persisted sample and intervention history.
type Pruner interface {
	DeleteOlderThan(t time.Time) error
}

// MonitorConfig holds detection loop configuration.
type MonitorConfig struct {
	TickInterval  time.Duration // How often to sample and detect (default 2s)
	PruneInterval time.Duration // How often to prune persisted history
	Retention     time.Duration // How far back samples and interventions are kept
}

// DefaultMonitorConfig returns default monitor configuration.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		TickInterval:  2 * time.Second,
		PruneInterval: time.Hour,
		Retention:     30 * 24 * time.Hour,
	}
}

// Monitor drives the detection pipeline on a fixed cadence and prunes
// persisted history in the background. Per-tick failures are logged and
// swallowed so one bad sample never stops the loop.
type Monitor struct {
	config  MonitorConfig
	runner  DetectionRunner
	pruners []Pruner
	logger  *zap.Logger
}

// NewMonitor creates a detection monitor.
func NewMonitor(config MonitorConfig, runner DetectionRunner, logger *zap.Logger, pruners ...Pruner) *Monitor {
	return &Monitor{
		config:  config,
		runner:  runner,
		pruners: pruners,
		logger:  logger,
	}
}

// Run starts the detection loop. This blocks until context is canceled.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("detection monitor started",
		zap.Duration("tick_interval", m.config.TickInterval))

	// Run one tick immediately on startup.
	m.tick(ctx)

	tickTicker := time.NewTicker(m.config.TickInterval)
	pruneTicker := time.NewTicker(m.config.PruneInterval)
	defer func() {
		tickTicker.Stop()
		pruneTicker.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("detection monitor stopping")
			return ctx.Err()

		case <-tickTicker.C:
			m.tick(ctx)

		case <-pruneTicker.C:
			m.prune()
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	if err := m.runner.OnTick(ctx); err != nil {
		if errors.Is(err, domain.ErrPermissionDenied) {
			// Already logged once by the pipeline; stay quiet here.
			return
		}
		m.logger.Warn("detection tick failed", zap.Error(err))
	}
}

func (m *Monitor) prune() {
	cutoff := time.Now().Add(-m.config.Retention)
	for _, p := range m.pruners {
		if err := p.DeleteOlderThan(cutoff); err != nil {
			m.logger.Warn("history prune failed", zap.Error(err))
		}
	}
}
