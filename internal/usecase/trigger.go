package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/krisyupher/Focus-MotherFocus-sub003/internal/domain"
)

// TriggerConfig holds intervention gating policy.
type TriggerConfig struct {
	// Cooldown is the minimum gap between interventions on one channel.
	// HIGH severity bypasses it.
	Cooldown time.Duration

	// ActionOverrides replaces the default severity -> action mapping
	// (BLOCK for HIGH, NEGOTIATE for MEDIUM, ALERT for LOW).
	ActionOverrides map[domain.Severity]domain.Action
}

// DefaultTriggerConfig returns the default gating policy.
func DefaultTriggerConfig() TriggerConfig {
	return TriggerConfig{Cooldown: 5 * time.Minute}
}

// Trigger decides whether a detection event fires an intervention now.
// The cooldown check and the history append happen in a single critical
// section so overlapping ticks cannot double-fire one channel.
type Trigger struct {
	mu     sync.Mutex
	log    domain.InterventionLog
	sink   domain.PresentationSink
	config TriggerConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewTrigger creates an intervention trigger.
func NewTrigger(log domain.InterventionLog, sink domain.PresentationSink, config TriggerConfig, logger *zap.Logger) *Trigger {
	return &Trigger{
		log:    log,
		sink:   sink,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// HandleEvent fires an intervention for the event unless the channel is
// cooling down. Returns nil when suppressed.
func (t *Trigger) HandleEvent(ctx context.Context, ev domain.DetectionEvent) (*domain.InterventionRecord, error) {
	record, err := t.checkAndRecord(ev)
	if err != nil || record == nil {
		return nil, err
	}

	if err := t.sink.PresentIntervention(record.Action, ev.Message); err != nil {
		// Presentation is best-effort; the intervention is already recorded.
		t.logger.Warn("failed to present intervention",
			zap.String("channel", record.Channel), zap.Error(err))
	}

	t.logger.Info("intervention fired",
		zap.String("channel", record.Channel),
		zap.String("action", string(record.Action)),
		zap.String("severity", string(ev.Severity)))

	return record, nil
}

func (t *Trigger) checkAndRecord(ev domain.DetectionEvent) (*domain.InterventionRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	channel := ev.Channel()

	if ev.Severity != domain.SeverityHigh {
		last, err := t.log.LastForChannel(channel)
		if err != nil {
			return nil, fmt.Errorf("failed to read intervention history: %w", err)
		}
		if last != nil && now.Sub(last.At) < t.config.Cooldown {
			t.logger.Debug("intervention suppressed by cooldown",
				zap.String("channel", channel),
				zap.Duration("since_last", now.Sub(last.At)))
			return nil, nil
		}
	}

	record := domain.InterventionRecord{
		ID:      uuid.NewString(),
		At:      now,
		Channel: channel,
		AppID:   ev.AppID,
		Action:  t.actionFor(ev.Severity),
		Outcome: "fired",
	}
	if err := t.log.Append(record); err != nil {
		return nil, fmt.Errorf("failed to record intervention: %w", err)
	}
	return &record, nil
}

// Rearm records a synthetic intervention on the channel so the cooldown
// restarts. Called by enforcement after a violation.
func (t *Trigger) Rearm(channel, appID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record := domain.InterventionRecord{
		ID:      uuid.NewString(),
		At:      t.now(),
		Channel: channel,
		AppID:   appID,
		Action:  domain.ActionBlock,
		Outcome: "cooldown rearmed after violation",
	}
	if err := t.log.Append(record); err != nil {
		t.logger.Warn("failed to rearm cooldown",
			zap.String("channel", channel), zap.Error(err))
	}
}

func (t *Trigger) actionFor(s domain.Severity) domain.Action {
	if a, ok := t.config.ActionOverrides[s]; ok {
		return a
	}
	switch s {
	case domain.SeverityHigh:
		return domain.ActionBlock
	case domain.SeverityMedium:
		return domain.ActionNegotiate
	default:
		return domain.ActionAlert
	}
}
