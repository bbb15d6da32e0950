package usecase

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/krisyupher/Focus-MotherFocus-sub003/internal/domain"
)

const (
	// fallbackDailyAverage avoids pathological zero-thresholds when no
	// historical data exists.
	fallbackDailyAverage = 2 * time.Hour

	// suggestedLimitFactor keeps the suggested limit below the observed
	// average to push gradual reduction while remaining achievable.
	suggestedLimitFactor = 0.8

	minSuggestedLimit = 1 * time.Hour
	maxSuggestedLimit = 8 * time.Hour

	topAppCount = 5
)

// BaselineAnalyzer derives a personalized daily-usage baseline from
// historical samples. Pure read-and-derive; no side effects.
type BaselineAnalyzer struct {
	source domain.UsageSource
	logger *zap.Logger
	now    func() time.Time
}

// NewBaselineAnalyzer creates an analyzer over a usage source.
func NewBaselineAnalyzer(source domain.UsageSource, logger *zap.Logger) *BaselineAnalyzer {
	return &BaselineAnalyzer{source: source, logger: logger, now: time.Now}
}

// Analyze computes the baseline over the given number of calendar days
// ending at yesterday. Average is the mean of non-zero daily totals, with a
// fixed fallback when there is no history at all.
func (a *BaselineAnalyzer) Analyze(ctx context.Context, days int) (domain.UsageBaseline, error) {
	if days <= 0 {
		days = 7
	}

	today := startOfDay(a.now())
	appTotals := make(map[string]time.Duration)
	var nonZeroDays []time.Duration
	var peak time.Duration

	for i := 1; i <= days; i++ {
		dayStart := today.AddDate(0, 0, -i)
		dayEnd := dayStart.AddDate(0, 0, 1)

		totals, err := a.source.AppTotals(ctx, dayStart, dayEnd)
		if err != nil {
			return domain.UsageBaseline{}, err
		}

		var dayTotal time.Duration
		for appID, d := range totals {
			dayTotal += d
			appTotals[appID] += d
		}
		if dayTotal > 0 {
			nonZeroDays = append(nonZeroDays, dayTotal)
		}
		if dayTotal > peak {
			peak = dayTotal
		}
	}

	average := fallbackDailyAverage
	if len(nonZeroDays) > 0 {
		var sum time.Duration
		for _, d := range nonZeroDays {
			sum += d
		}
		average = sum / time.Duration(len(nonZeroDays))
	} else {
		a.logger.Debug("no historical usage, using fallback average",
			zap.Duration("fallback", fallbackDailyAverage))
	}

	return domain.UsageBaseline{
		AverageDaily: average,
		PeakDaily:    peak,
		DaysAnalyzed: days,
		TopApps:      topApps(appTotals, topAppCount),
	}, nil
}

// SuggestedDailyLimit is 80% of the observed average, clamped to [1h, 8h].
func (a *BaselineAnalyzer) SuggestedDailyLimit(ctx context.Context, days int) (time.Duration, error) {
	baseline, err := a.Analyze(ctx, days)
	if err != nil {
		return 0, err
	}
	limit := time.Duration(float64(baseline.AverageDaily) * suggestedLimitFactor)
	if limit < minSuggestedLimit {
		limit = minSuggestedLimit
	}
	if limit > maxSuggestedLimit {
		limit = maxSuggestedLimit
	}
	return limit, nil
}

func topApps(totals map[string]time.Duration, n int) []domain.AppTotal {
	apps := make([]domain.AppTotal, 0, len(totals))
	for appID, d := range totals {
		apps = append(apps, domain.AppTotal{AppID: appID, Total: d})
	}
	sort.Slice(apps, func(i, j int) bool {
		if apps[i].Total != apps[j].Total {
			return apps[i].Total > apps[j].Total
		}
		return apps[i].AppID < apps[j].AppID
	})
	if len(apps) > n {
		apps = apps[:n]
	}
	return apps
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
