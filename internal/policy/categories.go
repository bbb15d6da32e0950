// Package policy holds the static category catalog: per-category default
// thresholds, block flags, and the seed list of known applications.
package policy

import (
	"time"

	"github.com/krisyupher/Focus-MotherFocus-sub003/internal/domain"
)

// DefaultUnknownThreshold is the conservative fallback for apps the
// classifier has never seen.
const DefaultUnknownThreshold = 30 * time.Minute

// categoryDefaults maps each category to its default continuous-use
// threshold. Productivity and communication apps get generous limits.
var categoryDefaults = map[domain.Category]time.Duration{
	domain.CategorySocialMedia:   20 * time.Minute,
	domain.CategoryGames:         45 * time.Minute,
	domain.CategoryAdultContent:  1 * time.Minute,
	domain.CategoryEntertainment: 30 * time.Minute,
	domain.CategoryProductivity:  4 * time.Hour,
	domain.CategoryCommunication: 2 * time.Hour,
	domain.CategoryShopping:      30 * time.Minute,
	domain.CategoryNews:          30 * time.Minute,
	domain.CategoryBrowser:       90 * time.Minute,
	domain.CategoryOther:         2 * time.Hour,
	domain.CategoryUnknown:       DefaultUnknownThreshold,
}

// blockedByDefault categories are blocked outright rather than negotiated.
var blockedByDefault = map[domain.Category]bool{
	domain.CategoryAdultContent: true,
}

// distractionCategories are the ones the detector watches for per-app
// continuous-use breaches.
var distractionCategories = map[domain.Category]bool{
	domain.CategorySocialMedia:   true,
	domain.CategoryGames:         true,
	domain.CategoryAdultContent:  true,
	domain.CategoryEntertainment: true,
	domain.CategoryShopping:      true,
	domain.CategoryNews:          true,
}

// DefaultThreshold returns the category's default continuous-use threshold.
func DefaultThreshold(c domain.Category) time.Duration {
	if d, ok := categoryDefaults[c]; ok {
		return d
	}
	return DefaultUnknownThreshold
}

// BlockedByDefault reports whether the category is blocked outright.
func BlockedByDefault(c domain.Category) bool {
	return blockedByDefault[c]
}

// IsDistraction reports whether the detector watches this category.
func IsDistraction(c domain.Category) bool {
	return distractionCategories[c]
}

// ValidCategory reports whether c is a known category.
func ValidCategory(c domain.Category) bool {
	_, ok := categoryDefaults[c]
	return ok
}
