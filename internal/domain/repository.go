package domain

import (
	"context"
	"time"
)

// UsageSource is a read-only view of the host's usage-accounting facility.
// When permission is denied, queries return zero/empty results rather than
// failing; callers must check HasPermission before trusting near-zero data.
type UsageSource interface {
	// HasPermission reports whether usage accounting is readable at all.
	HasPermission() bool

	// CurrentForegroundApp returns the app in the foreground and its
	// continuous foreground time, or nil when nothing is known.
	CurrentForegroundApp(ctx context.Context) (*AppUsageInfo, error)

	// SampleWindow returns total foreground time across all apps in [start, end).
	SampleWindow(ctx context.Context, start, end time.Time) (time.Duration, error)

	// AppTotals returns per-app foreground totals in [start, end).
	AppTotals(ctx context.Context, start, end time.Time) (map[string]time.Duration, error)
}

// DialogueOracle maps a prompt plus conversation context to a reply.
// The transport behind it is opaque to the core and may fail.
type DialogueOracle interface {
	Send(ctx context.Context, systemPrompt string, history []DialogueTurn, message string) (string, error)
}

// PresentationSink receives intervention decisions for display.
// Rendering is entirely the collaborator's concern.
type PresentationSink interface {
	PresentIntervention(action Action, message string) error
}

// SubjectController closes apps/tabs on behalf of enforcement.
type SubjectController interface {
	// CloseSubject terminates the subject identified by appID.
	CloseSubject(ctx context.Context, appID string) error
}

// MappingStore persists category mappings.
type MappingStore interface {
	// Get returns the mapping for appID, or nil when absent.
	Get(appID string) (*CategoryMapping, error)

	// Upsert inserts or replaces a mapping keyed by app identifier.
	Upsert(m CategoryMapping) error

	// GetAll returns every mapping.
	GetAll() ([]CategoryMapping, error)

	// GetByCategory returns mappings for one category.
	GetByCategory(c Category) ([]CategoryMapping, error)

	// Delete removes a mapping.
	Delete(appID string) error
}

// AgreementStore persists agreements and their audit trail.
type AgreementStore interface {
	Insert(a Agreement) error

	// Update replaces the stored agreement with the same ID.
	Update(a Agreement) error

	// Get returns the agreement, or nil when absent.
	Get(id string) (*Agreement, error)

	// GetActive returns all agreements with status ACTIVE.
	GetActive() ([]Agreement, error)

	// AppendAudit records an expiry change.
	AppendAudit(e AuditEntry) error

	// AuditFor returns the audit trail for one agreement, oldest first.
	AuditFor(agreementID string) ([]AuditEntry, error)
}

// InterventionLog is the append-only intervention history. The cooldown
// invariant is enforced against LastForChannel.
type InterventionLog interface {
	Append(r InterventionRecord) error

	// LastForChannel returns the most recent record for a channel, or nil.
	LastForChannel(channel string) (*InterventionRecord, error)

	// Recent returns up to limit records, newest first.
	Recent(limit int) ([]InterventionRecord, error)

	// DeleteOlderThan prunes history to keep the log bounded.
	DeleteOlderThan(t time.Time) error
}

// SampleStore persists usage samples so baselines survive restarts.
type SampleStore interface {
	Record(s UsageSample) error

	// TotalsBetween returns per-app foreground totals in [start, end).
	TotalsBetween(start, end time.Time) (map[string]time.Duration, error)

	// DeleteOlderThan prunes old samples.
	DeleteOlderThan(t time.Time) error
}

// KeyProvider abstracts the source of encryption keys for the store.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}
