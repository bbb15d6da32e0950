package domain

import "errors"

// Error taxonomy shared across the core. Loops swallow and log these per
// tick; request paths return them to the caller.
var (
	// ErrPermissionDenied means the usage source is unavailable. Detection
	// degrades to "no data" and must never fabricate zero-usage compliance.
	ErrPermissionDenied = errors.New("usage access permission denied")

	// ErrNoMatch means the duration parser found nothing. Callers re-prompt;
	// it is never treated as "zero time requested".
	ErrNoMatch = errors.New("no duration found in text")

	// ErrRateLimited means the dialogue oracle throttled the request.
	// Conversation state is unchanged and the same turn may be retried.
	ErrRateLimited = errors.New("dialogue oracle rate limited")

	// ErrSessionConflict means a negotiation was requested while one is
	// already active for the same subject.
	ErrSessionConflict = errors.New("negotiation session already active for subject")

	// ErrInvalidTransition means an attempt to move a terminal agreement.
	ErrInvalidTransition = errors.New("invalid agreement state transition")

	// ErrEnforcementFailed means the close/terminate command failed. The
	// agreement is still marked VIOLATED; the failure is logged for retry.
	ErrEnforcementFailed = errors.New("enforcement close command failed")
)
