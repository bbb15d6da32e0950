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

// LifecycleConfig holds enforcement timing policy.
type LifecycleConfig struct {
	// YellowBand / RedBand are remaining-time edges for the countdown
	// color: GREEN above YellowBand, YELLOW between, RED below RedBand.
	YellowBand time.Duration
	RedBand    time.Duration

	// WarningLead is how long before expiry the single warning fires.
	WarningLead time.Duration

	// Grace is the window after expiry during which the subject may still
	// leave voluntarily before a forced close.
	Grace time.Duration
}

// DefaultLifecycleConfig returns default enforcement timing.
func DefaultLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		YellowBand:  5 * time.Minute,
		RedBand:     2 * time.Minute,
		WarningLead: 2 * time.Minute,
		Grace:       30 * time.Second,
	}
}

// Lifecycle owns agreements from creation through expiry, warning, grace,
// and violation or completion. It is the only component with wall-clock
// enforcement obligations. Grace is measured from ExpiresAt, so an
// agreement whose grace fully elapsed while monitoring was stopped is
// violated on the first tick after restart.
type Lifecycle struct {
	mu         sync.Mutex
	store      domain.AgreementStore
	source     domain.UsageSource
	controller domain.SubjectController
	sink       domain.PresentationSink
	rearm      func(channel, appID string)
	config     LifecycleConfig
	logger     *zap.Logger
	now        func() time.Time

	graceFlagged map[string]bool // "time's up" announced, per agreement
}

// NewLifecycle creates the agreement lifecycle component. rearm restarts
// the detection cooldown for a channel after a violation; it may be nil.
func NewLifecycle(
	store domain.AgreementStore,
	source domain.UsageSource,
	controller domain.SubjectController,
	sink domain.PresentationSink,
	rearm func(channel, appID string),
	config LifecycleConfig,
	logger *zap.Logger,
) *Lifecycle {
	if rearm == nil {
		rearm = func(string, string) {}
	}
	return &Lifecycle{
		store:        store,
		source:       source,
		controller:   controller,
		sink:         sink,
		rearm:        rearm,
		config:       config,
		logger:       logger,
		now:          time.Now,
		graceFlagged: make(map[string]bool),
	}
}

// Create records a new ACTIVE agreement with ExpiresAt fixed at creation.
func (l *Lifecycle) Create(appID string, cat domain.Category, agreed time.Duration, conversationID string) (domain.Agreement, error) {
	now := l.now()
	a := domain.Agreement{
		ID:             uuid.NewString(),
		AppID:          appID,
		Category:       cat,
		AgreedDuration: agreed,
		CreatedAt:      now,
		ExpiresAt:      now.Add(agreed),
		Status:         domain.AgreementActive,
		ConversationID: conversationID,
	}
	if err := l.store.Insert(a); err != nil {
		return domain.Agreement{}, fmt.Errorf("failed to store agreement: %w", err)
	}
	l.logger.Info("agreement created",
		zap.String("agreement", a.ID),
		zap.String("subject", a.Channel()),
		zap.Duration("agreed", agreed),
		zap.Time("expires_at", a.ExpiresAt))
	return a, nil
}

// TimerColor returns the countdown color for an agreement at time now.
func (l *Lifecycle) TimerColor(a domain.Agreement, now time.Time) domain.TimerColor {
	remaining := a.ExpiresAt.Sub(now)
	switch {
	case remaining < l.config.RedBand:
		return domain.TimerRed
	case remaining < l.config.YellowBand:
		return domain.TimerYellow
	default:
		return domain.TimerGreen
	}
}

// Tick drives every ACTIVE agreement one enforcement step. Per-agreement
// errors are logged and do not stop the sweep.
func (l *Lifecycle) Tick(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	active, err := l.store.GetActive()
	if err != nil {
		return fmt.Errorf("failed to load active agreements: %w", err)
	}

	for _, a := range active {
		if err := l.step(ctx, a); err != nil {
			l.logger.Warn("agreement enforcement step failed",
				zap.String("agreement", a.ID), zap.Error(err))
		}
	}
	return nil
}

func (l *Lifecycle) step(ctx context.Context, a domain.Agreement) error {
	now := l.now()
	remaining := a.ExpiresAt.Sub(now)

	if remaining > 0 {
		if remaining <= l.config.WarningLead && a.WarnedAt.IsZero() {
			return l.warn(a, now, remaining)
		}
		return nil
	}

	foreground, err := l.subjectForeground(ctx, a)
	if err != nil {
		return err
	}
	if !foreground {
		// Voluntary compliance before or during grace.
		return l.complete(a, now)
	}

	if now.Sub(a.ExpiresAt) >= l.config.Grace {
		return l.violate(ctx, a, now)
	}

	if !l.graceFlagged[a.ID] {
		l.graceFlagged[a.ID] = true
		if err := l.sink.PresentIntervention(domain.ActionAlert,
			fmt.Sprintf("Time's up. Close %s in the next %s or it will be closed for you.",
				subjectName(a), l.config.Grace)); err != nil {
			l.logger.Warn("failed to present grace notice",
				zap.String("agreement", a.ID), zap.Error(err))
		}
	}
	return nil
}

func (l *Lifecycle) warn(a domain.Agreement, now time.Time, remaining time.Duration) error {
	a.WarnedAt = now
	if err := l.store.Update(a); err != nil {
		return fmt.Errorf("failed to persist warning: %w", err)
	}
	if err := l.sink.PresentIntervention(domain.ActionAlert,
		fmt.Sprintf("%s left on %s.", remaining.Round(time.Second), subjectName(a))); err != nil {
		l.logger.Warn("failed to present warning",
			zap.String("agreement", a.ID), zap.Error(err))
	}
	l.logger.Info("agreement warning issued",
		zap.String("agreement", a.ID),
		zap.Duration("remaining", remaining))
	return nil
}

func (l *Lifecycle) complete(a domain.Agreement, now time.Time) error {
	a.Status = domain.AgreementCompleted
	a.CompletedAt = now
	if err := l.store.Update(a); err != nil {
		return fmt.Errorf("failed to mark agreement completed: %w", err)
	}
	delete(l.graceFlagged, a.ID)
	l.logger.Info("agreement completed",
		zap.String("agreement", a.ID),
		zap.String("subject", a.Channel()))
	return nil
}

func (l *Lifecycle) violate(ctx context.Context, a domain.Agreement, now time.Time) error {
	// The time contract is broken regardless of whether the forced close
	// succeeds, so VIOLATED is recorded either way. Device-wide agreements
	// have no single process to close.
	if a.AppID != "" {
		if err := l.controller.CloseSubject(ctx, a.AppID); err != nil {
			l.logger.Warn("close command failed, agreement still violated",
				zap.String("agreement", a.ID),
				zap.String("subject", a.Channel()),
				zap.Error(err))
		}
	}

	a.Status = domain.AgreementViolated
	a.ViolatedAt = now
	if err := l.store.Update(a); err != nil {
		return fmt.Errorf("failed to mark agreement violated: %w", err)
	}
	delete(l.graceFlagged, a.ID)
	l.rearm(a.Channel(), a.AppID)

	l.logger.Info("agreement violated",
		zap.String("agreement", a.ID),
		zap.String("subject", a.Channel()))
	return nil
}

// Extend atomically replaces ExpiresAt on the same agreement and appends an
// audit entry. Terminal agreements are rejected with ErrInvalidTransition.
func (l *Lifecycle) Extend(agreementID string, extra time.Duration, reason string) (domain.Agreement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stored, err := l.store.Get(agreementID)
	if err != nil {
		return domain.Agreement{}, fmt.Errorf("failed to load agreement: %w", err)
	}
	if stored == nil {
		return domain.Agreement{}, fmt.Errorf("agreement %s not found", agreementID)
	}
	if stored.Status != domain.AgreementActive {
		l.logger.Warn("extension rejected on terminal agreement",
			zap.String("agreement", agreementID),
			zap.String("status", string(stored.Status)))
		return domain.Agreement{}, domain.ErrInvalidTransition
	}

	now := l.now()
	a := *stored
	old := a.ExpiresAt
	base := old
	if base.Before(now) {
		base = now
	}
	a.ExpiresAt = base.Add(extra)
	a.WarnedAt = time.Time{} // new countdown earns a new warning
	if err := l.store.Update(a); err != nil {
		return domain.Agreement{}, fmt.Errorf("failed to extend agreement: %w", err)
	}
	if err := l.store.AppendAudit(domain.AuditEntry{
		AgreementID:  a.ID,
		OldExpiresAt: old,
		NewExpiresAt: a.ExpiresAt,
		Reason:       reason,
		At:           now,
	}); err != nil {
		return domain.Agreement{}, fmt.Errorf("failed to record extension audit: %w", err)
	}
	delete(l.graceFlagged, a.ID)

	l.logger.Info("agreement extended",
		zap.String("agreement", a.ID),
		zap.Time("old_expires_at", old),
		zap.Time("new_expires_at", a.ExpiresAt))
	return a, nil
}

// Active returns all ACTIVE agreements.
func (l *Lifecycle) Active() ([]domain.Agreement, error) {
	return l.store.GetActive()
}

func (l *Lifecycle) subjectForeground(ctx context.Context, a domain.Agreement) (bool, error) {
	fg, err := l.source.CurrentForegroundApp(ctx)
	if err != nil {
		return false, err
	}
	if fg == nil {
		return false, nil
	}
	if a.AppID == "" {
		// Device-wide agreement: any foreground use counts.
		return true, nil
	}
	return fg.AppID == a.AppID, nil
}

func subjectName(a domain.Agreement) string {
	if a.AppID == "" {
		return "your device"
	}
	return a.AppID
}
