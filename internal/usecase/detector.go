package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/krisyupher/Focus-MotherFocus-sub003/internal/domain"
	"github.com/krisyupher/Focus-MotherFocus-sub003/internal/policy"
)

// DetectorConfig holds detection thresholds.
type DetectorConfig struct {
	// DeviceWindow is the rolling window for the whole-device check.
	DeviceWindow time.Duration

	// DeviceThreshold is the continuous whole-device usage that triggers
	// a device-wide event.
	DeviceThreshold time.Duration

	// SustainedPattern is how long a continuous-use pattern must hold
	// before a breach escalates from LOW to MEDIUM.
	SustainedPattern time.Duration
}

// DefaultDetectorConfig returns default detection thresholds.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		DeviceWindow:     3 * time.Hour,
		DeviceThreshold:  90 * time.Minute,
		SustainedPattern: 10 * time.Minute,
	}
}

// Detector combines the usage source, classifier, and thresholds into
// discrete breach events. At most one event is produced per tick: a per-app
// breach takes precedence and suppresses the device-wide check.
type Detector struct {
	source     domain.UsageSource
	classifier *Classifier
	config     DetectorConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewDetector creates a detector.
func NewDetector(source domain.UsageSource, classifier *Classifier, config DetectorConfig, logger *zap.Logger) *Detector {
	return &Detector{
		source:     source,
		classifier: classifier,
		config:     config,
		logger:     logger,
		now:        time.Now,
	}
}

// Detect inspects the given foreground snapshot (nil when unknown) and the
// rolling device window, returning a breach event or nil.
func (d *Detector) Detect(ctx context.Context, fg *domain.AppUsageInfo) (*domain.DetectionEvent, error) {
	if ev := d.detectPerApp(fg); ev != nil {
		// More specific event wins; device-wide check suppressed this tick.
		return ev, nil
	}
	return d.detectDevice(ctx)
}

func (d *Detector) detectPerApp(fg *domain.AppUsageInfo) *domain.DetectionEvent {
	if fg == nil || fg.AppID == "" {
		return nil
	}

	cat := d.classifier.Categorize(fg.AppID)

	// A user-blocked app breaches the moment it reaches the foreground,
	// whatever its category. HIGH so the trigger skips the cooldown.
	if d.classifier.IsBlocked(fg.AppID) {
		d.logger.Debug("blocked app in foreground",
			zap.String("app", fg.AppID),
			zap.String("category", string(cat)))
		return &domain.DetectionEvent{
			AppID:    fg.AppID,
			Category: cat,
			Observed: fg.Continuous,
			Severity: domain.SeverityHigh,
			Message:  fmt.Sprintf("%s is blocked.", fg.AppID),
		}
	}

	if !policy.IsDistraction(cat) {
		return nil
	}

	threshold := d.classifier.Threshold(fg.AppID)
	if fg.Continuous < threshold {
		return nil
	}

	severity := domain.SeverityLow
	switch {
	case cat == domain.CategoryAdultContent:
		severity = domain.SeverityHigh
	case fg.Continuous >= threshold+d.config.SustainedPattern:
		severity = domain.SeverityMedium
	}

	d.logger.Debug("per-app breach",
		zap.String("app", fg.AppID),
		zap.String("category", string(cat)),
		zap.Duration("continuous", fg.Continuous),
		zap.Duration("threshold", threshold))

	return &domain.DetectionEvent{
		AppID:    fg.AppID,
		Category: cat,
		Observed: fg.Continuous,
		Severity: severity,
		Message: fmt.Sprintf("You've been on %s for %s straight.",
			fg.AppID, fg.Continuous.Round(time.Minute)),
	}
}

func (d *Detector) detectDevice(ctx context.Context) (*domain.DetectionEvent, error) {
	now := d.now()
	total, err := d.source.SampleWindow(ctx, now.Add(-d.config.DeviceWindow), now)
	if err != nil {
		return nil, err
	}
	if total < d.config.DeviceThreshold {
		return nil, nil
	}

	d.logger.Debug("device-wide breach",
		zap.Duration("observed", total),
		zap.Duration("threshold", d.config.DeviceThreshold))

	return &domain.DetectionEvent{
		Category: domain.CategoryOther,
		Observed: total,
		Severity: domain.SeverityMedium,
		Message: fmt.Sprintf("You've been on your device for %s in the last %s.",
			total.Round(time.Minute), d.config.DeviceWindow),
	}, nil
}
