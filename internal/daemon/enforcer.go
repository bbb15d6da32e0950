package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// EnforcementRunner walks active agreements once per tick.
type EnforcementRunner interface {
	OnEnforcementTick(ctx context.Context) error
}

// EnforcerConfig holds enforcement loop configuration.
type EnforcerConfig struct {
	TickInterval time.Duration // How often to walk active agreements (default 1s)
}

// DefaultEnforcerConfig returns default enforcer configuration.
func DefaultEnforcerConfig() EnforcerConfig {
	return EnforcerConfig{
		TickInterval: time.Second,
	}
}

// Enforcer drives agreement countdown, warnings, grace, and violation on a
// one-second cadence. It runs beside the Monitor so a slow detection tick
// never delays a forced close.
type Enforcer struct {
	config EnforcerConfig
	runner EnforcementRunner
	logger *zap.Logger
}

// NewEnforcer creates an enforcement loop.
func NewEnforcer(config EnforcerConfig, runner EnforcementRunner, logger *zap.Logger) *Enforcer {
	return &Enforcer{
		config: config,
		runner: runner,
		logger: logger,
	}
}

// Run starts the enforcement loop. This blocks until context is canceled.
func (e *Enforcer) Run(ctx context.Context) error {
	e.logger.Info("enforcement loop started",
		zap.Duration("tick_interval", e.config.TickInterval))

	// Catch up immediately: agreements may have expired while stopped.
	if err := e.runner.OnEnforcementTick(ctx); err != nil {
		e.logger.Warn("enforcement tick failed", zap.Error(err))
	}

	ticker := time.NewTicker(e.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("enforcement loop stopping")
			return ctx.Err()

		case <-ticker.C:
			if err := e.runner.OnEnforcementTick(ctx); err != nil {
				e.logger.Warn("enforcement tick failed", zap.Error(err))
			}
		}
	}
}
