package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/krisyupher/Focus-MotherFocus-sub003/internal/domain"
	"github.com/krisyupher/Focus-MotherFocus-sub003/internal/timeparse"
)

// MaxNegotiationRounds caps counter-offer exchanges. Once reached, the last
// proposed duration becomes binding rather than failing the session.
const MaxNegotiationRounds = 3

// TurnOutcome tells the engine what a transition asks for.
type TurnOutcome int

const (
	// OutcomeAsk means no usable intent was found; ask the user again.
	OutcomeAsk TurnOutcome = iota
	// OutcomeProposed means the user named a duration for the first time.
	OutcomeProposed
	// OutcomeCounter means a counter-offer moved the negotiation on.
	OutcomeCounter
	// OutcomeAgreed means a binding duration was reached.
	OutcomeAgreed
	// OutcomeRejected means the user declined the whole negotiation.
	OutcomeRejected
)

var declinePhrases = []string{
	"no thanks", "nope", "nah", "never mind", "nevermind",
	"cancel", "stop it", "forget it", "leave me alone", "go away",
}

var affirmPhrases = []string{
	"yes", "yeah", "yep", "ok", "okay", "sure", "deal", "fine",
	"sounds good", "agreed", "alright",
}

// Advance is the pure transition function for the negotiation protocol.
// All I/O stays outside it so the protocol is independently testable.
func Advance(state domain.NegotiationState, input string) (domain.NegotiationState, TurnOutcome) {
	if state.Terminal() {
		return state, OutcomeAsk
	}

	if isDecline(input) {
		return domain.NegotiationState{Phase: domain.PhaseRejected}, OutcomeRejected
	}

	proposed, parseErr := timeparse.Extract(input)

	switch state.Phase {
	case domain.PhaseInitial:
		if parseErr != nil {
			// No time mentioned yet; keep asking.
			return state, OutcomeAsk
		}
		return domain.NegotiationState{Phase: domain.PhaseProposed, Proposed: proposed}, OutcomeProposed

	case domain.PhaseProposed:
		if isAffirm(input) || (parseErr == nil && proposed == state.Proposed) {
			return domain.NegotiationState{Phase: domain.PhaseAgreed, Proposed: state.Proposed}, OutcomeAgreed
		}
		if parseErr == nil {
			return domain.NegotiationState{
				Phase:    domain.PhaseNegotiating,
				Proposed: proposed,
				Rounds:   1,
			}, OutcomeCounter
		}
		return state, OutcomeAsk

	case domain.PhaseNegotiating:
		if isAffirm(input) || (parseErr == nil && proposed == state.Proposed) {
			return domain.NegotiationState{Phase: domain.PhaseAgreed, Proposed: state.Proposed}, OutcomeAgreed
		}
		next := state
		next.Rounds++
		if parseErr == nil {
			next.Proposed = proposed
		}
		if next.Rounds >= MaxNegotiationRounds {
			// Round cap reached: the last proposed duration becomes binding.
			return domain.NegotiationState{Phase: domain.PhaseAgreed, Proposed: next.Proposed}, OutcomeAgreed
		}
		if parseErr != nil {
			return next, OutcomeAsk
		}
		return next, OutcomeCounter
	}

	return state, OutcomeAsk
}

func isDecline(input string) bool {
	lower := strings.ToLower(strings.TrimSpace(input))
	if lower == "no" || lower == "no." {
		return true
	}
	for _, p := range declinePhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func isAffirm(input string) bool {
	lower := strings.ToLower(strings.TrimSpace(input))
	for _, p := range affirmPhrases {
		if lower == p || strings.HasPrefix(lower, p+" ") || strings.HasPrefix(lower, p+",") || strings.HasPrefix(lower, p+"!") {
			return true
		}
	}
	return false
}

// Session is one live negotiation. Exactly one exists per subject.
type Session struct {
	ID        string
	Subject   string // cooldown channel of the subject
	AppID     string
	Category  domain.Category
	ExtendsID string // agreement being extended, empty for a fresh one
	State     domain.NegotiationState
	History   []domain.DialogueTurn
	CreatedAt time.Time

	mu sync.Mutex
}

// TurnResult is what a submitted user reply produced.
type TurnResult struct {
	SessionID string
	State     domain.NegotiationState
	Outcome   TurnOutcome
	Reply     string
}

// EngineConfig holds negotiation engine tunables.
type EngineConfig struct {
	HistoryCap   int // most recent turns kept as oracle context
	SystemPrompt string
}

// DefaultEngineConfig returns default engine tunables.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		HistoryCap: 20,
		SystemPrompt: "You are a caring but firm digital wellbeing assistant. " +
			"The user has been using a distracting app too long. Negotiate a short, " +
			"bounded extension: acknowledge their reply, push gently toward less time, " +
			"and keep answers to one or two sentences.",
	}
}

// Engine owns negotiation sessions and drives them from user free-text
// replies, consulting the dialogue oracle for each conversational turn.
type Engine struct {
	mu        sync.Mutex
	oracle    domain.DialogueOracle
	bySubject map[string]*Session
	byID      map[string]*Session
	config    EngineConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewEngine creates a negotiation engine.
func NewEngine(oracle domain.DialogueOracle, config EngineConfig, logger *zap.Logger) *Engine {
	return &Engine{
		oracle:    oracle,
		bySubject: make(map[string]*Session),
		byID:      make(map[string]*Session),
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

// Open starts a session for the subject. Returns ErrSessionConflict when one
// is already active; a new session is rejected, not queued. The opening
// message is the intervention text shown to the user; the returned reply is
// the oracle's opening conversational turn.
func (e *Engine) Open(ctx context.Context, appID string, cat domain.Category, extendsID, opening string) (*Session, string, error) {
	subject := domain.DeviceChannel
	if appID != "" {
		subject = "app:" + appID
	}

	e.mu.Lock()
	if _, active := e.bySubject[subject]; active {
		e.mu.Unlock()
		return nil, "", domain.ErrSessionConflict
	}
	session := &Session{
		ID:        uuid.NewString(),
		Subject:   subject,
		AppID:     appID,
		Category:  cat,
		ExtendsID: extendsID,
		State:     domain.NegotiationState{Phase: domain.PhaseInitial},
		CreatedAt: e.now(),
	}
	e.bySubject[subject] = session
	e.byID[session.ID] = session
	e.mu.Unlock()

	reply, err := e.oracle.Send(ctx, e.config.SystemPrompt, nil, opening)
	if err != nil {
		// Oracle failed before any state accrued; drop the session so the
		// caller can retry from scratch.
		e.drop(session)
		return nil, "", fmt.Errorf("dialogue oracle failed to open session: %w", err)
	}

	// The session is already discoverable, so a Submit may be running; the
	// session lock keeps the history append ordered against it.
	session.mu.Lock()
	session.History = append(session.History,
		domain.DialogueTurn{Role: "user", Content: opening},
		domain.DialogueTurn{Role: "assistant", Content: reply},
	)
	session.mu.Unlock()

	e.logger.Info("negotiation session opened",
		zap.String("session", session.ID),
		zap.String("subject", subject))

	return session, reply, nil
}

// Submit processes one user reply. On oracle failure the session state and
// history are unchanged and the same turn may be retried. Terminal states
// discard the session.
func (e *Engine) Submit(ctx context.Context, sessionID, text string) (*TurnResult, error) {
	e.mu.Lock()
	session, ok := e.byID[sessionID]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no active session %s", sessionID)
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	newState, outcome := Advance(session.State, text)

	prompt := text + "\n\n" + contextNote(newState, outcome)
	reply, err := e.oracle.Send(ctx, e.config.SystemPrompt, session.History, prompt)
	if err != nil {
		return nil, fmt.Errorf("dialogue oracle turn failed: %w", err)
	}

	// Commit only after the oracle turn succeeded.
	session.State = newState
	session.History = append(session.History,
		domain.DialogueTurn{Role: "user", Content: text},
		domain.DialogueTurn{Role: "assistant", Content: reply},
	)
	if over := len(session.History) - e.config.HistoryCap; over > 0 {
		session.History = session.History[over:]
	}

	if newState.Terminal() {
		e.drop(session)
		e.logger.Info("negotiation session closed",
			zap.String("session", session.ID),
			zap.String("phase", string(newState.Phase)),
			zap.Duration("agreed", newState.Proposed))
	}

	return &TurnResult{
		SessionID: session.ID,
		State:     newState,
		Outcome:   outcome,
		Reply:     reply,
	}, nil
}

// Get returns the live session, or nil.
func (e *Engine) Get(sessionID string) *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.byID[sessionID]
}

// ActiveForSubject returns the live session for a subject channel, or nil.
func (e *Engine) ActiveForSubject(subject string) *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bySubject[subject]
}

func (e *Engine) drop(s *Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.bySubject, s.Subject)
	delete(e.byID, s.ID)
}

// contextNote gives the oracle the protocol position so replies stay
// consistent with the state machine, which remains the source of truth.
func contextNote(state domain.NegotiationState, outcome TurnOutcome) string {
	switch outcome {
	case OutcomeAgreed:
		return fmt.Sprintf("[negotiation context: agreement reached for %s; confirm it warmly and remind them the timer starts now]", state.Proposed)
	case OutcomeRejected:
		return "[negotiation context: the user declined; accept gracefully and end the conversation]"
	case OutcomeProposed:
		return fmt.Sprintf("[negotiation context: the user asked for %s; ask them to confirm or offer less]", state.Proposed)
	case OutcomeCounter:
		return fmt.Sprintf("[negotiation context: counter-offer on the table is %s, round %d of %d]", state.Proposed, state.Rounds, MaxNegotiationRounds)
	default:
		return "[negotiation context: no time understood from the reply; ask how many minutes they need]"
	}
}
