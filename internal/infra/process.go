package infra

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/krisyupher/Focus-MotherFocus-sub003/internal/domain"
)

// ProcessController implements domain.SubjectController using gopsutil.
// An app identifier like "com.google.android.youtube" maps to processes
// whose name contains its last segment ("youtube").
type ProcessController struct {
	logger *zap.Logger
}

// NewProcessController creates a process-backed subject controller.
func NewProcessController(logger *zap.Logger) *ProcessController {
	return &ProcessController{logger: logger}
}

// CloseSubject terminates every process matching the app identifier.
// A subject that is already gone is not an error.
func (c *ProcessController) CloseSubject(ctx context.Context, appID string) error {
	pattern := processPattern(appID)
	if pattern == "" {
		return nil
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return err
	}

	var killed, failed int
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue // Process may have exited
		}
		if !strings.Contains(strings.ToLower(name), pattern) {
			continue
		}
		if err := p.KillWithContext(ctx); err != nil {
			failed++
			c.logger.Warn("failed to kill process",
				zap.Int32("pid", p.Pid),
				zap.String("name", name),
				zap.Error(err))
			continue
		}
		killed++
	}

	if failed > 0 && killed == 0 {
		return fmt.Errorf("close %s: %w", appID, domain.ErrEnforcementFailed)
	}

	c.logger.Info("closed subject",
		zap.String("app_id", appID),
		zap.Int("processes_killed", killed))
	return nil
}

// processPattern extracts the match pattern from an app identifier:
// the last dot-separated segment, lower-cased.
func processPattern(appID string) string {
	appID = strings.ToLower(strings.TrimSpace(appID))
	if i := strings.LastIndex(appID, "."); i >= 0 {
		appID = appID[i+1:]
	}
	return appID
}

var _ domain.SubjectController = (*ProcessController)(nil)
