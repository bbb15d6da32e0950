// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import "time"

// Category is the semantic classification of an application.
type Category string

const (
	CategorySocialMedia   Category = "SOCIAL_MEDIA"
	CategoryGames         Category = "GAMES"
	CategoryAdultContent  Category = "ADULT_CONTENT"
	CategoryEntertainment Category = "ENTERTAINMENT"
	CategoryProductivity  Category = "PRODUCTIVITY"
	CategoryCommunication Category = "COMMUNICATION"
	CategoryShopping      Category = "SHOPPING"
	CategoryNews          Category = "NEWS"
	CategoryBrowser       Category = "BROWSER"
	CategoryOther         Category = "OTHER"
	CategoryUnknown       Category = "UNKNOWN"
)

// Authority identifies who authored a category mapping.
// USER mappings are never overwritten by re-seeding system defaults.
type Authority string

const (
	AuthoritySystem Authority = "SYSTEM"
	AuthorityUser   Authority = "USER"
)

// UsageSample is one immutable per-app foreground observation.
type UsageSample struct {
	AppID       string
	WindowStart time.Time
	WindowEnd   time.Time
	Foreground  time.Duration
}

// AppUsageInfo describes the app currently in the foreground and how long
// it has been there continuously.
type AppUsageInfo struct {
	AppID      string
	Continuous time.Duration
}

// CategoryMapping binds an app identifier to a category and block policy.
// CustomThreshold of zero means "use the category default".
type CategoryMapping struct {
	AppID           string
	Category        Category
	Blocked         bool
	CustomThreshold time.Duration
	AddedBy         Authority
}

// AppTotal is a per-app aggregate used in baseline reporting.
type AppTotal struct {
	AppID string
	Total time.Duration
}

// UsageBaseline is a projection derived from historical samples.
// It is recomputed on demand and never persisted as authoritative truth.
type UsageBaseline struct {
	AverageDaily time.Duration
	PeakDaily    time.Duration
	DaysAnalyzed int
	TopApps      []AppTotal
}

// Severity of a detection event.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// DeviceChannel is the cooldown channel for whole-device events.
const DeviceChannel = "device"

// DetectionEvent is a transient usage-pattern breach produced by the
// detector. An empty AppID means the whole device is the subject.
type DetectionEvent struct {
	AppID    string
	Category Category
	Observed time.Duration
	Severity Severity
	Message  string
}

// Channel returns the cooldown-scoping key for this event.
func (e DetectionEvent) Channel() string {
	if e.AppID == "" {
		return DeviceChannel
	}
	return "app:" + e.AppID
}

// Action is what the intervention asks the presentation collaborator to do.
type Action string

const (
	ActionBlock     Action = "BLOCK"
	ActionNegotiate Action = "NEGOTIATE"
	ActionAlert     Action = "ALERT"
)

// InterventionRecord is one append-only entry in the intervention history.
type InterventionRecord struct {
	ID      string
	At      time.Time
	Channel string
	AppID   string
	Action  Action
	Outcome string
}

// NegotiationPhase enumerates the states of the negotiation protocol.
type NegotiationPhase string

const (
	PhaseInitial     NegotiationPhase = "INITIAL"
	PhaseProposed    NegotiationPhase = "PROPOSED_TIME"
	PhaseNegotiating NegotiationPhase = "NEGOTIATING"
	PhaseAgreed      NegotiationPhase = "AGREEMENT_REACHED"
	PhaseRejected    NegotiationPhase = "REJECTED"
)

// NegotiationState is the tagged variant driving a negotiation session.
// Proposed carries the duration on the table; Rounds counts counter-offer
// exchanges while negotiating.
type NegotiationState struct {
	Phase    NegotiationPhase
	Proposed time.Duration
	Rounds   int
}

// Terminal reports whether the state accepts no further user input.
func (s NegotiationState) Terminal() bool {
	return s.Phase == PhaseAgreed || s.Phase == PhaseRejected
}

// DialogueTurn is one message exchanged with the dialogue oracle.
type DialogueTurn struct {
	Role    string // "user" or "assistant"
	Content string
}

// AgreementStatus of an agreement. Transitions are monotone and terminal:
// ACTIVE -> COMPLETED or ACTIVE -> VIOLATED, no other edges.
type AgreementStatus string

const (
	AgreementActive    AgreementStatus = "ACTIVE"
	AgreementCompleted AgreementStatus = "COMPLETED"
	AgreementViolated  AgreementStatus = "VIOLATED"
)

// Agreement is a negotiated, time-bounded permission to keep using a subject.
// ExpiresAt is fixed at creation; only a recorded extension may replace it.
// An empty AppID means the whole device.
type Agreement struct {
	ID             string
	AppID          string
	Category       Category
	AgreedDuration time.Duration
	CreatedAt      time.Time
	ExpiresAt      time.Time
	Status         AgreementStatus
	WarnedAt       time.Time
	ViolatedAt     time.Time
	CompletedAt    time.Time
	ConversationID string
}

// Channel returns the cooldown channel this agreement governs.
func (a Agreement) Channel() string {
	if a.AppID == "" {
		return DeviceChannel
	}
	return "app:" + a.AppID
}

// TimerColor is the countdown display state for an active agreement.
type TimerColor string

const (
	TimerGreen  TimerColor = "GREEN"
	TimerYellow TimerColor = "YELLOW"
	TimerRed    TimerColor = "RED"
)

// AuditEntry records an explicit change to an agreement's expiry.
type AuditEntry struct {
	AgreementID  string
	OldExpiresAt time.Time
	NewExpiresAt time.Time
	Reason       string
	At           time.Time
}
