package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"altarfunds/internal/api"
	"altarfunds/internal/core"
	applog "altarfunds/internal/log"
	"altarfunds/internal/storage"
)

// Session states. A session moves Draft -> Submitting ->
// AwaitingConfirmation -> Verifying -> {Completed | Failed}; completed and
// failed are terminal. A session whose verification budget runs out stays in
// Verifying until a later attempt resolves it.
const (
	StateDraft                SessionState = "draft"
	StateSubmitting           SessionState = "submitting"
	StateAwaitingConfirmation SessionState = "awaiting_confirmation"
	StateVerifying            SessionState = "verifying"
	StateCompleted            SessionState = "completed"
	StateFailed               SessionState = "failed"
)

type SessionState string

// PaymentSession tracks one user-initiated giving payment from draft to a
// terminal outcome.
type PaymentSession struct {
	State       SessionState
	Gift        core.Gift
	ChurchID    int64
	Reference   string
	RedirectURL string
	Receipt     string

	inFlight bool
}

// PaymentAPI is the slice of the remote client the manager needs.
type PaymentAPI interface {
	CreatePaymentSession(ctx context.Context, gift core.Gift, churchID int64) (api.PaymentSession, error)
	VerifyPayment(ctx context.Context, reference string) (api.VerificationResult, error)
}

// ResultPublisher announces terminal outcomes; nil disables publishing.
type ResultPublisher interface {
	PublishPaymentResult(ctx context.Context, reference string, status core.TransactionStatus, receipt string) error
}

// VerifyConfig controls the verification polling loop.
type VerifyConfig struct {
	// PollInterval is the delay between verification attempts (default: 3s)
	PollInterval time.Duration

	// MaxAttempts is the attempt budget before the outcome is declared
	// ambiguous (default: 10)
	MaxAttempts int
}

// DefaultVerifyConfig returns sensible defaults
func DefaultVerifyConfig() VerifyConfig {
	return VerifyConfig{
		PollInterval: 3 * time.Second,
		MaxAttempts:  10,
	}
}

// PaymentManager orchestrates the payment lifecycle: validation, session
// creation, hand-off to the external provider and verification polling.
type PaymentManager struct {
	api             PaymentAPI
	store           *storage.CacheStore
	events          ResultPublisher
	config          VerifyConfig
	defaultChurchID int64

	mu       sync.Mutex
	sessions map[string]*PaymentSession
}

func NewPaymentManager(apiClient PaymentAPI, store *storage.CacheStore, events ResultPublisher, config VerifyConfig, defaultChurchID int64) *PaymentManager {
	return &PaymentManager{
		api:             apiClient,
		store:           store,
		events:          events,
		config:          config,
		defaultChurchID: defaultChurchID,
		sessions:        make(map[string]*PaymentSession),
	}
}

// Submit validates a gift and creates a payment session for it. Invalid
// input fails before any network call. The church identifier comes from
// preference storage, falling back to the configured default when no
// preference is stored; the fallback is degraded-mode behavior, not a
// failure.
//
// On success the session is in AwaitingConfirmation and carries the redirect
// URL for the external provider. The caller hands control to the provider
// and later drives Resolve.
func (m *PaymentManager) Submit(ctx context.Context, gift core.Gift) (*PaymentSession, error) {
	session := &PaymentSession{State: StateDraft, Gift: gift}

	if err := gift.Validate(); err != nil {
		return nil, err
	}

	session.ChurchID = m.resolveChurchID(ctx)
	session.State = StateSubmitting

	slog.InfoContext(ctx, "Submitting payment",
		applog.FieldChurchID, session.ChurchID,
		applog.FieldCategory, gift.Category,
		applog.FieldAmountCents, gift.Amount.Cents)

	remote, err := m.api.CreatePaymentSession(ctx, gift, session.ChurchID)
	if err != nil {
		session.State = StateFailed
		return nil, &NetworkError{Op: "create payment session", Err: err}
	}

	session.Reference = remote.Reference
	session.RedirectURL = remote.RedirectURL
	session.State = StateAwaitingConfirmation

	m.mu.Lock()
	m.sessions[session.Reference] = session
	m.mu.Unlock()

	return session, nil
}

// Session returns the tracked session for a reference.
func (m *PaymentManager) Session(reference string) (*PaymentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[reference]
	if !ok {
		return nil, ErrUnknownSession
	}
	return session, nil
}

// Resolve polls the backend for the session's outcome after control returns
// from the external provider. The loop runs at most MaxAttempts polls with
// PollInterval between them; at most one resolve is in flight per session.
//
// Outcomes:
//   - nil: provider confirmed the payment; session is Completed.
//   - ErrProviderDeclined: provider reported failure; session is Failed.
//   - ErrAmbiguousOutcome: budget exhausted while still pending; session
//     stays Verifying and may be resolved again later.
//   - ctx.Err(): the hosting flow went away; no side effects were applied.
//
// Terminal outcomes are persisted to the cache store and published so
// dashboard consumers refresh.
func (m *PaymentManager) Resolve(ctx context.Context, reference string) error {
	m.mu.Lock()
	session, ok := m.sessions[reference]
	if !ok {
		m.mu.Unlock()
		return ErrUnknownSession
	}
	if session.inFlight {
		m.mu.Unlock()
		return ErrVerificationInFlight
	}
	if session.State == StateCompleted || session.State == StateFailed {
		m.mu.Unlock()
		return fmt.Errorf("session %s already resolved to %s", reference, session.State)
	}
	session.inFlight = true
	session.State = StateVerifying
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		session.inFlight = false
		m.mu.Unlock()
	}()

	for attempt := 1; attempt <= m.config.MaxAttempts; attempt++ {
		result, err := m.api.VerifyPayment(ctx, reference)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// A failed poll is not a provider decline. Count it against
			// the budget and keep going.
			slog.WarnContext(ctx, "Verification attempt failed",
				applog.FieldSessionRef, reference,
				applog.FieldAttempt, attempt,
				"error", err)
		} else if result.Status.IsTerminal() {
			return m.finish(ctx, session, result)
		}

		if attempt == m.config.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.config.PollInterval):
		}
	}

	slog.WarnContext(ctx, "Verification budget exhausted",
		applog.FieldSessionRef, reference,
		"attempts", m.config.MaxAttempts)
	return ErrAmbiguousOutcome
}

// finish applies a terminal verification result.
func (m *PaymentManager) finish(ctx context.Context, session *PaymentSession, result api.VerificationResult) error {
	m.mu.Lock()
	session.Receipt = result.Receipt
	if result.Status == core.StatusCompleted {
		session.State = StateCompleted
	} else {
		session.State = StateFailed
	}
	m.mu.Unlock()

	tx := core.Transaction{
		ID:       session.Reference,
		Category: session.Gift.Category,
		Amount:   session.Gift.Amount,
		Date:     time.Now().UTC().Format(time.RFC3339),
		Status:   result.Status,
		Receipt:  result.Receipt,
	}
	if m.store != nil {
		if err := m.store.PutTransaction(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to cache resolved transaction",
				applog.FieldSessionRef, session.Reference, "error", err)
			// The outcome stands even when caching fails.
		}
	}

	m.publishResult(ctx, session.Reference, result)

	slog.InfoContext(ctx, "Payment resolved",
		applog.FieldSessionRef, session.Reference,
		"status", string(result.Status),
		"receipt", result.Receipt)

	if result.Status == core.StatusFailed {
		return ErrProviderDeclined
	}
	return nil
}

func (m *PaymentManager) publishResult(ctx context.Context, reference string, result api.VerificationResult) {
	if m.events == nil {
		slog.DebugContext(ctx, "No event publisher configured, skipping payment result")
		return
	}
	if err := m.events.PublishPaymentResult(ctx, reference, result.Status, result.Receipt); err != nil {
		slog.ErrorContext(ctx, "Failed to publish payment result",
			applog.FieldSessionRef, reference, "error", err)
		// Publishing is best effort; the cached record is already written.
	}
}

func (m *PaymentManager) resolveChurchID(ctx context.Context) int64 {
	if m.store == nil {
		return m.defaultChurchID
	}
	return m.store.GetIntPref(ctx, storage.PrefChurchID, m.defaultChurchID)
}
