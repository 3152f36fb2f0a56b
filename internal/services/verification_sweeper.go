package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"altarfunds/internal/core"
	applog "altarfunds/internal/log"
	"altarfunds/internal/storage"
)

// SweeperConfig holds configuration for the verification sweeper
type SweeperConfig struct {
	// SweepInterval is how often to re-check pending transactions (default: 5m)
	SweepInterval time.Duration

	// MinAge is how long a transaction must have been pending before the
	// sweeper re-verifies it (default: 30m)
	MinAge time.Duration
}

// DefaultSweeperConfig returns sensible defaults
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		SweepInterval: 5 * time.Minute,
		MinAge:        30 * time.Minute,
	}
}

// VerificationSweeper periodically re-verifies cached pending transactions
// that a foreground verification never resolved (app killed mid-flow,
// ambiguous outcomes, missed provider callbacks) and applies terminal
// results to the cache.
type VerificationSweeper struct {
	store  *storage.CacheStore
	api    PaymentAPI
	config SweeperConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewVerificationSweeper(store *storage.CacheStore, apiClient PaymentAPI, config SweeperConfig) *VerificationSweeper {
	return &VerificationSweeper{
		store:  store,
		api:    apiClient,
		config: config,
	}
}

// Start begins the sweep loop. Returns an error if already running.
func (s *VerificationSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("verification sweeper is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	slog.InfoContext(ctx, "Verification sweeper started",
		"sweep_interval", s.config.SweepInterval,
		"min_age", s.config.MinAge)

	return nil
}

// Stop gracefully stops the sweeper and waits for completion.
func (s *VerificationSweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	close(s.stopCh)

	select {
	case <-s.doneCh:
		slog.InfoContext(ctx, "Verification sweeper stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Verification sweeper stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	return nil
}

// IsRunning returns whether the sweeper is currently running
func (s *VerificationSweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *VerificationSweeper) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	// Sweep immediately on startup
	s.Sweep(ctx)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs a single pass: re-verify every cached pending transaction old
// enough to have left its foreground flow. One verification per transaction,
// no polling loop; still-pending stays pending for the next pass.
func (s *VerificationSweeper) Sweep(ctx context.Context) {
	pending, err := s.store.GetPendingTransactions(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list pending transactions", "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	slog.DebugContext(ctx, "Sweeping pending transactions", "count", len(pending))

	cutoff := time.Now().Add(-s.config.MinAge)
	for _, tx := range pending {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		if !s.oldEnough(tx, cutoff) {
			continue
		}

		result, err := s.api.VerifyPayment(ctx, tx.ID)
		if err != nil {
			slog.WarnContext(ctx, "Sweep verification failed",
				applog.FieldTransactionID, tx.ID, "error", err)
			continue
		}
		if !result.Status.IsTerminal() {
			continue
		}

		tx.Status = result.Status
		tx.Receipt = result.Receipt
		if err := s.store.PutTransaction(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to apply swept result",
				applog.FieldTransactionID, tx.ID, "error", err)
			continue
		}

		slog.InfoContext(ctx, "Stale pending transaction resolved",
			applog.FieldTransactionID, tx.ID,
			"status", string(result.Status))
	}
}

// oldEnough parses the transaction date to decide sweep eligibility. An
// unparsable date is treated as old enough: a stuck record should not be
// stuck forever because its timestamp is garbage.
func (s *VerificationSweeper) oldEnough(tx core.Transaction, cutoff time.Time) bool {
	t, err := time.Parse(time.RFC3339, tx.Date)
	if err != nil {
		return true
	}
	return t.Before(cutoff)
}
