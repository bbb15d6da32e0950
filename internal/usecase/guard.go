package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/krisyupher/Focus-MotherFocus-sub003/internal/domain"
)

// Guard is the core control loop facade: detection ticks, enforcement
// ticks, and the user-facing negotiation entry points.
type Guard struct {
	source     domain.UsageSource
	samples    domain.SampleStore
	detector   *Detector
	trigger    *Trigger
	engine     *Engine
	lifecycle  *Lifecycle
	log        domain.InterventionLog
	tickLength time.Duration
	logger     *zap.Logger
	now        func() time.Time

	permissionLogged bool
}

// NewGuard wires the core components into one facade. tickLength is the
// detection cadence, used to size recorded samples.
func NewGuard(
	source domain.UsageSource,
	samples domain.SampleStore,
	detector *Detector,
	trigger *Trigger,
	engine *Engine,
	lifecycle *Lifecycle,
	log domain.InterventionLog,
	tickLength time.Duration,
	logger *zap.Logger,
) *Guard {
	return &Guard{
		source:     source,
		samples:    samples,
		detector:   detector,
		trigger:    trigger,
		engine:     engine,
		lifecycle:  lifecycle,
		log:        log,
		tickLength: tickLength,
		logger:     logger,
		now:        time.Now,
	}
}

// OnTick runs one detection cycle: sample the foreground, persist the
// observation, detect breaches, and fire an intervention when due.
func (g *Guard) OnTick(ctx context.Context) error {
	if !g.source.HasPermission() {
		// Report an honest state rather than fabricating zero-usage
		// compliance. Logged once, not every 2 seconds.
		if !g.permissionLogged {
			g.permissionLogged = true
			g.logger.Warn("usage access denied, monitoring inactive")
		}
		return domain.ErrPermissionDenied
	}
	g.permissionLogged = false

	fg, err := g.source.CurrentForegroundApp(ctx)
	if err != nil {
		return fmt.Errorf("foreground probe failed: %w", err)
	}

	if fg != nil && fg.AppID != "" {
		now := g.now()
		if err := g.samples.Record(domain.UsageSample{
			AppID:       fg.AppID,
			WindowStart: now.Add(-g.tickLength),
			WindowEnd:   now,
			Foreground:  g.tickLength,
		}); err != nil {
			g.logger.Warn("failed to record usage sample", zap.Error(err))
		}
	}

	ev, err := g.detector.Detect(ctx, fg)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}
	if ev == nil {
		return nil
	}

	record, err := g.trigger.HandleEvent(ctx, *ev)
	if err != nil {
		return err
	}
	if record == nil || record.Action != domain.ActionNegotiate {
		return nil
	}

	_, reply, err := g.engine.Open(ctx, ev.AppID, ev.Category, "", ev.Message)
	if err != nil {
		if errors.Is(err, domain.ErrSessionConflict) {
			g.logger.Debug("negotiation already in progress",
				zap.String("channel", ev.Channel()))
			return nil
		}
		return err
	}
	if err := g.trigger.sink.PresentIntervention(domain.ActionNegotiate, reply); err != nil {
		g.logger.Warn("failed to present negotiation opener", zap.Error(err))
	}
	return nil
}

// OnEnforcementTick runs one agreement-enforcement sweep. It never touches
// the negotiation path, so a slow oracle cannot stall enforcement.
func (g *Guard) OnEnforcementTick(ctx context.Context) error {
	return g.lifecycle.Tick(ctx)
}

// SubmitUserReply advances the negotiation session with one user turn. When
// the session reaches agreement it produces an Agreement (or applies the
// extension it was opened for).
func (g *Guard) SubmitUserReply(ctx context.Context, sessionID, text string) (*TurnResult, error) {
	session := g.engine.Get(sessionID)
	if session == nil {
		return nil, fmt.Errorf("no active session %s", sessionID)
	}
	appID, cat, extendsID := session.AppID, session.Category, session.ExtendsID

	result, err := g.engine.Submit(ctx, sessionID, text)
	if err != nil {
		return nil, err
	}

	if result.State.Phase == domain.PhaseAgreed {
		if extendsID != "" {
			if _, err := g.lifecycle.Extend(extendsID, result.State.Proposed,
				"negotiated extension"); err != nil {
				return result, err
			}
		} else {
			if _, err := g.lifecycle.Create(appID, cat, result.State.Proposed, sessionID); err != nil {
				return result, err
			}
		}
	}
	return result, nil
}

// RequestExtension re-opens a negotiation for an active agreement. The
// returned session drives the usual Submit turns; on agreement the same
// agreement's expiry is replaced and audited rather than a new one created.
func (g *Guard) RequestExtension(ctx context.Context, agreementID, text string) (*Session, string, error) {
	target, err := g.lifecycle.store.Get(agreementID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load agreement: %w", err)
	}
	if target == nil {
		return nil, "", fmt.Errorf("agreement %s not found", agreementID)
	}
	if target.Status != domain.AgreementActive {
		return nil, "", domain.ErrInvalidTransition
	}

	return g.engine.Open(ctx, target.AppID, target.Category, agreementID, text)
}

// ActiveAgreements returns all ACTIVE agreements.
func (g *Guard) ActiveAgreements() ([]domain.Agreement, error) {
	return g.lifecycle.Active()
}

// InterventionHistory returns up to limit recent interventions.
func (g *Guard) InterventionHistory(limit int) ([]domain.InterventionRecord, error) {
	return g.log.Recent(limit)
}
