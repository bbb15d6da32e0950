package policy

import (
	"github.com/krisyupher/Focus-MotherFocus-sub003/internal/domain"
)

// seedCatalog is the static app -> category catalog bulk-inserted on first
// run. Identifiers are bundle / package ids; the classifier also matches on
// substrings for browser tab subjects.
var seedCatalog = map[string]domain.Category{
	// Social media
	"com.instagram.android":      domain.CategorySocialMedia,
	"com.zhiliaoapp.musically":   domain.CategorySocialMedia, // TikTok
	"com.twitter.android":        domain.CategorySocialMedia,
	"com.facebook.katana":        domain.CategorySocialMedia,
	"com.reddit.frontpage":       domain.CategorySocialMedia,
	"com.snapchat.android":       domain.CategorySocialMedia,
	"com.pinterest":              domain.CategorySocialMedia,
	"com.linkedin.android":       domain.CategorySocialMedia,

	// Games
	"com.valvesoftware.steam":      domain.CategoryGames,
	"com.supercell.clashofclans":   domain.CategoryGames,
	"com.kiloo.subwaysurf":         domain.CategoryGames,
	"com.mojang.minecraftpe":       domain.CategoryGames,
	"com.epicgames.fortnite":       domain.CategoryGames,
	"com.roblox.client":            domain.CategoryGames,

	// Entertainment
	"com.google.android.youtube": domain.CategoryEntertainment,
	"com.netflix.mediaclient":    domain.CategoryEntertainment,
	"com.spotify.music":          domain.CategoryEntertainment,
	"tv.twitch.android.app":      domain.CategoryEntertainment,
	"com.disney.disneyplus":      domain.CategoryEntertainment,

	// Productivity
	"com.google.android.apps.docs": domain.CategoryProductivity,
	"com.microsoft.office.word":    domain.CategoryProductivity,
	"com.notion.id":                domain.CategoryProductivity,
	"com.todoist":                  domain.CategoryProductivity,

	// Communication
	"com.whatsapp":                 domain.CategoryCommunication,
	"com.google.android.gm":        domain.CategoryCommunication,
	"com.slack":                    domain.CategoryCommunication,
	"org.telegram.messenger":       domain.CategoryCommunication,
	"com.discord":                  domain.CategoryCommunication,
	"us.zoom.videomeetings":        domain.CategoryCommunication,

	// Shopping
	"com.amazon.mShop.android.shopping": domain.CategoryShopping,
	"com.ebay.mobile":                   domain.CategoryShopping,
	"com.alibaba.aliexpresshd":          domain.CategoryShopping,

	// News
	"com.google.android.apps.magazines": domain.CategoryNews,
	"flipboard.app":                     domain.CategoryNews,
	"bbc.mobile.news.ww":                domain.CategoryNews,

	// Browsers
	"com.android.chrome":   domain.CategoryBrowser,
	"org.mozilla.firefox":  domain.CategoryBrowser,
	"com.brave.browser":    domain.CategoryBrowser,
	"com.apple.Safari":     domain.CategoryBrowser,
}

// SeedMappings returns the SYSTEM-authored mappings for first-run seeding.
// Thresholds are left at zero so category defaults apply until a user
// overrides them.
func SeedMappings() []domain.CategoryMapping {
	mappings := make([]domain.CategoryMapping, 0, len(seedCatalog))
	for appID, cat := range seedCatalog {
		mappings = append(mappings, domain.CategoryMapping{
			AppID:    appID,
			Category: cat,
			Blocked:  BlockedByDefault(cat),
			AddedBy:  domain.AuthoritySystem,
		})
	}
	return mappings
}
