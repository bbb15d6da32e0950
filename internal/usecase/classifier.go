// Package usecase contains application business logic.
package usecase

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/krisyupher/Focus-MotherFocus-sub003/internal/domain"
	"github.com/krisyupher/Focus-MotherFocus-sub003/internal/policy"
)

// Classifier resolves app identifiers to categories and thresholds.
// USER-authored mappings win over SYSTEM ones; unmapped apps are UNKNOWN
// with a conservative non-zero threshold, so classification never fails.
type Classifier struct {
	store  domain.MappingStore
	logger *zap.Logger
}

// NewClassifier creates a classifier over a mapping store.
func NewClassifier(store domain.MappingStore, logger *zap.Logger) *Classifier {
	return &Classifier{store: store, logger: logger}
}

// Categorize maps an app identifier to its category.
func (c *Classifier) Categorize(appID string) domain.Category {
	m, err := c.store.Get(appID)
	if err != nil {
		c.logger.Warn("mapping lookup failed", zap.String("app", appID), zap.Error(err))
		return domain.CategoryUnknown
	}
	if m == nil {
		return domain.CategoryUnknown
	}
	return m.Category
}

// Threshold returns the continuous-use threshold for an app: custom override
// first, else the category default, else the UNKNOWN default.
func (c *Classifier) Threshold(appID string) time.Duration {
	m, err := c.store.Get(appID)
	if err != nil {
		c.logger.Warn("mapping lookup failed", zap.String("app", appID), zap.Error(err))
		return policy.DefaultUnknownThreshold
	}
	if m == nil {
		return policy.DefaultUnknownThreshold
	}
	if m.CustomThreshold > 0 {
		return m.CustomThreshold
	}
	return policy.DefaultThreshold(m.Category)
}

// IsBlocked reports whether the app is blocked outright.
func (c *Classifier) IsBlocked(appID string) bool {
	m, err := c.store.Get(appID)
	if err != nil || m == nil {
		return false
	}
	return m.Blocked
}

// SetBlocked records a user decision to block or unblock an app.
func (c *Classifier) SetBlocked(appID string, blocked bool) error {
	return c.mutate(appID, func(m *domain.CategoryMapping) {
		m.Blocked = blocked
	})
}

// SetCustomThreshold records a user threshold override.
func (c *Classifier) SetCustomThreshold(appID string, threshold time.Duration) error {
	return c.mutate(appID, func(m *domain.CategoryMapping) {
		m.CustomThreshold = threshold
	})
}

// UserCategorize records a user-authored category for an app.
func (c *Classifier) UserCategorize(appID string, cat domain.Category) error {
	return c.mutate(appID, func(m *domain.CategoryMapping) {
		m.Category = cat
	})
}

// mutate applies a change to the existing mapping (or a fresh UNKNOWN one)
// and tags the result USER-authored so reseeding preserves it.
func (c *Classifier) mutate(appID string, apply func(*domain.CategoryMapping)) error {
	existing, err := c.store.Get(appID)
	if err != nil {
		return fmt.Errorf("failed to load mapping for %s: %w", appID, err)
	}
	m := domain.CategoryMapping{
		AppID:    appID,
		Category: domain.CategoryUnknown,
	}
	if existing != nil {
		m = *existing
	}
	apply(&m)
	m.AddedBy = domain.AuthorityUser
	if err := c.store.Upsert(m); err != nil {
		return fmt.Errorf("failed to save mapping for %s: %w", appID, err)
	}
	return nil
}

// Seed bulk-inserts the static catalog. Idempotent and authority-preserving:
// USER rows are skipped, SYSTEM rows are refreshed in place, nothing is
// duplicated, so seeding runs safely on every start.
func (c *Classifier) Seed() error {
	seeded, skipped := 0, 0
	for _, m := range policy.SeedMappings() {
		existing, err := c.store.Get(m.AppID)
		if err != nil {
			return fmt.Errorf("seed lookup failed for %s: %w", m.AppID, err)
		}
		if existing != nil && existing.AddedBy == domain.AuthorityUser {
			skipped++
			continue
		}
		if err := c.store.Upsert(m); err != nil {
			return fmt.Errorf("seed upsert failed for %s: %w", m.AppID, err)
		}
		seeded++
	}
	c.logger.Debug("category catalog seeded",
		zap.Int("seeded", seeded),
		zap.Int("skipped_user_rows", skipped))
	return nil
}
