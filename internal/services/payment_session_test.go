package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"altarfunds/internal/api"
	"altarfunds/internal/core"
	"altarfunds/internal/storage"
)

type fakePaymentAPI struct {
	mu sync.Mutex

	createCalls int
	createResp  api.PaymentSession
	createErr   error

	verifyCalls int
	verifyFn    func(attempt int) (api.VerificationResult, error)
}

func (f *fakePaymentAPI) CreatePaymentSession(ctx context.Context, gift core.Gift, churchID int64) (api.PaymentSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return api.PaymentSession{}, f.createErr
	}
	return f.createResp, nil
}

func (f *fakePaymentAPI) VerifyPayment(ctx context.Context, reference string) (api.VerificationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	if f.verifyFn != nil {
		return f.verifyFn(f.verifyCalls)
	}
	return api.VerificationResult{Status: core.StatusPending}, nil
}

func (f *fakePaymentAPI) VerifyCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verifyCalls
}

type recordingPublisher struct {
	mu         sync.Mutex
	references []string
	statuses   []core.TransactionStatus
}

func (p *recordingPublisher) PublishPaymentResult(ctx context.Context, reference string, status core.TransactionStatus, receipt string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.references = append(p.references, reference)
	p.statuses = append(p.statuses, status)
	return nil
}

func fastVerifyConfig() VerifyConfig {
	return VerifyConfig{
		PollInterval: time.Millisecond,
		MaxAttempts:  10,
	}
}

func newTestStore(t *testing.T) *storage.CacheStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	store, err := storage.NewCacheStore(dbPath)
	if err != nil {
		t.Fatalf("NewCacheStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPaymentManager_Submit(t *testing.T) {
	apiClient := &fakePaymentAPI{
		createResp: api.PaymentSession{
			Reference:   "pay_abc123",
			RedirectURL: "https://pay.example.com/pay_abc123",
		},
	}
	manager := NewPaymentManager(apiClient, nil, nil, fastVerifyConfig(), 1)

	gift := core.Gift{Amount: core.Money{Cents: 50000}, Category: "Tithe"}
	session, err := manager.Submit(context.Background(), gift)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if session.State != StateAwaitingConfirmation {
		t.Errorf("State = %s, want %s", session.State, StateAwaitingConfirmation)
	}
	if session.Reference != "pay_abc123" {
		t.Errorf("Reference = %s, want pay_abc123", session.Reference)
	}
	if session.RedirectURL != "https://pay.example.com/pay_abc123" {
		t.Errorf("RedirectURL = %s", session.RedirectURL)
	}
	if apiClient.createCalls != 1 {
		t.Errorf("createCalls = %d, want 1", apiClient.createCalls)
	}

	got, err := manager.Session("pay_abc123")
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if got != session {
		t.Error("Session() returned a different session")
	}
}

func TestPaymentManager_SubmitInvalidGift(t *testing.T) {
	tests := []struct {
		name    string
		gift    core.Gift
		wantErr error
	}{
		{
			name:    "zero amount",
			gift:    core.Gift{Amount: core.Money{Cents: 0}, Category: "Tithe"},
			wantErr: core.ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			gift:    core.Gift{Amount: core.Money{Cents: -100}, Category: "Tithe"},
			wantErr: core.ErrInvalidAmount,
		},
		{
			name:    "empty category",
			gift:    core.Gift{Amount: core.Money{Cents: 1000}, Category: "  "},
			wantErr: core.ErrEmptyCategory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiClient := &fakePaymentAPI{}
			manager := NewPaymentManager(apiClient, nil, nil, fastVerifyConfig(), 1)

			_, err := manager.Submit(context.Background(), tt.gift)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Submit() error = %v, want %v", err, tt.wantErr)
			}
			if apiClient.createCalls != 0 {
				t.Errorf("createCalls = %d, want 0 for invalid input", apiClient.createCalls)
			}
		})
	}
}

func TestPaymentManager_SubmitNetworkError(t *testing.T) {
	apiClient := &fakePaymentAPI{createErr: errors.New("connection refused")}
	manager := NewPaymentManager(apiClient, nil, nil, fastVerifyConfig(), 1)

	gift := core.Gift{Amount: core.Money{Cents: 1000}, Category: "Offering"}
	_, err := manager.Submit(context.Background(), gift)
	if err == nil {
		t.Fatal("Submit() error = nil, want network error")
	}
	if !IsNetworkError(err) {
		t.Errorf("IsNetworkError(%v) = false, want true", err)
	}
}

func TestPaymentManager_SubmitChurchDefault(t *testing.T) {
	// No stored preference: the configured default applies.
	store := newTestStore(t)
	apiClient := &fakePaymentAPI{
		createResp: api.PaymentSession{Reference: "pay_1", RedirectURL: "https://pay.example.com/1"},
	}
	manager := NewPaymentManager(apiClient, store, nil, fastVerifyConfig(), 1)

	gift := core.Gift{Amount: core.Money{Cents: 500}, Category: "Tithe"}
	session, err := manager.Submit(context.Background(), gift)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if session.ChurchID != 1 {
		t.Errorf("ChurchID = %d, want 1", session.ChurchID)
	}
}

func TestPaymentManager_SubmitChurchPreference(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.SetIntPref(ctx, storage.PrefChurchID, 7); err != nil {
		t.Fatalf("SetIntPref() error = %v", err)
	}

	apiClient := &fakePaymentAPI{
		createResp: api.PaymentSession{Reference: "pay_2", RedirectURL: "https://pay.example.com/2"},
	}
	manager := NewPaymentManager(apiClient, store, nil, fastVerifyConfig(), 1)

	session, err := manager.Submit(ctx, core.Gift{Amount: core.Money{Cents: 500}, Category: "Tithe"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if session.ChurchID != 7 {
		t.Errorf("ChurchID = %d, want 7", session.ChurchID)
	}
}

func submitSession(t *testing.T, manager *PaymentManager) *PaymentSession {
	t.Helper()
	gift := core.Gift{Amount: core.Money{Cents: 2500}, Category: "Tithe"}
	session, err := manager.Submit(context.Background(), gift)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	return session
}

func TestPaymentManager_ResolveCompleted(t *testing.T) {
	store := newTestStore(t)
	events := &recordingPublisher{}
	apiClient := &fakePaymentAPI{
		createResp: api.PaymentSession{Reference: "pay_ok", RedirectURL: "https://pay.example.com/ok"},
		verifyFn: func(attempt int) (api.VerificationResult, error) {
			if attempt < 3 {
				return api.VerificationResult{Status: core.StatusPending}, nil
			}
			return api.VerificationResult{Status: core.StatusCompleted, Receipt: "RCT001"}, nil
		},
	}
	manager := NewPaymentManager(apiClient, store, events, fastVerifyConfig(), 1)
	session := submitSession(t, manager)

	if err := manager.Resolve(context.Background(), session.Reference); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if session.State != StateCompleted {
		t.Errorf("State = %s, want %s", session.State, StateCompleted)
	}
	if session.Receipt != "RCT001" {
		t.Errorf("Receipt = %s, want RCT001", session.Receipt)
	}
	if got := apiClient.VerifyCalls(); got != 3 {
		t.Errorf("verifyCalls = %d, want 3", got)
	}

	txs, err := store.GetAllTransactions(context.Background())
	if err != nil {
		t.Fatalf("GetAllTransactions() error = %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("cached transactions = %d, want 1", len(txs))
	}
	if txs[0].ID != "pay_ok" || txs[0].Status != core.StatusCompleted || txs[0].Receipt != "RCT001" {
		t.Errorf("cached transaction = %+v", txs[0])
	}

	if len(events.references) != 1 || events.references[0] != "pay_ok" {
		t.Errorf("published references = %v, want [pay_ok]", events.references)
	}
}

func TestPaymentManager_ResolveDeclined(t *testing.T) {
	apiClient := &fakePaymentAPI{
		createResp: api.PaymentSession{Reference: "pay_no", RedirectURL: "https://pay.example.com/no"},
		verifyFn: func(attempt int) (api.VerificationResult, error) {
			return api.VerificationResult{Status: core.StatusFailed}, nil
		},
	}
	manager := NewPaymentManager(apiClient, nil, nil, fastVerifyConfig(), 1)
	session := submitSession(t, manager)

	err := manager.Resolve(context.Background(), session.Reference)
	if !errors.Is(err, ErrProviderDeclined) {
		t.Fatalf("Resolve() error = %v, want ErrProviderDeclined", err)
	}
	if session.State != StateFailed {
		t.Errorf("State = %s, want %s", session.State, StateFailed)
	}
}

func TestPaymentManager_ResolveAmbiguous(t *testing.T) {
	// Never resolves: the outcome is ambiguous after exactly MaxAttempts
	// polls, and the session stays in Verifying for a later retry.
	apiClient := &fakePaymentAPI{
		createResp: api.PaymentSession{Reference: "pay_mu", RedirectURL: "https://pay.example.com/mu"},
	}
	config := VerifyConfig{PollInterval: time.Millisecond, MaxAttempts: 4}
	manager := NewPaymentManager(apiClient, nil, nil, config, 1)
	session := submitSession(t, manager)

	err := manager.Resolve(context.Background(), session.Reference)
	if !errors.Is(err, ErrAmbiguousOutcome) {
		t.Fatalf("Resolve() error = %v, want ErrAmbiguousOutcome", err)
	}
	if got := apiClient.VerifyCalls(); got != 4 {
		t.Errorf("verifyCalls = %d, want exactly 4", got)
	}
	if session.State != StateVerifying {
		t.Errorf("State = %s, want %s", session.State, StateVerifying)
	}

	// A later attempt may still resolve it.
	apiClient.mu.Lock()
	apiClient.verifyFn = func(attempt int) (api.VerificationResult, error) {
		return api.VerificationResult{Status: core.StatusCompleted, Receipt: "RCT099"}, nil
	}
	apiClient.mu.Unlock()

	if err := manager.Resolve(context.Background(), session.Reference); err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}
	if session.State != StateCompleted {
		t.Errorf("State = %s, want %s", session.State, StateCompleted)
	}
}

func TestPaymentManager_ResolvePollErrorsAreNotDeclines(t *testing.T) {
	apiClient := &fakePaymentAPI{
		createResp: api.PaymentSession{Reference: "pay_err", RedirectURL: "https://pay.example.com/err"},
		verifyFn: func(attempt int) (api.VerificationResult, error) {
			if attempt < 2 {
				return api.VerificationResult{}, errors.New("timeout")
			}
			return api.VerificationResult{Status: core.StatusCompleted, Receipt: "RCT002"}, nil
		},
	}
	manager := NewPaymentManager(apiClient, nil, nil, fastVerifyConfig(), 1)
	session := submitSession(t, manager)

	if err := manager.Resolve(context.Background(), session.Reference); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if session.State != StateCompleted {
		t.Errorf("State = %s, want %s", session.State, StateCompleted)
	}
}

func TestPaymentManager_ResolveUnknownSession(t *testing.T) {
	manager := NewPaymentManager(&fakePaymentAPI{}, nil, nil, fastVerifyConfig(), 1)
	err := manager.Resolve(context.Background(), "pay_nope")
	if !errors.Is(err, ErrUnknownSession) {
		t.Errorf("Resolve() error = %v, want ErrUnknownSession", err)
	}
}

func TestPaymentManager_ResolveContextCanceled(t *testing.T) {
	apiClient := &fakePaymentAPI{
		createResp: api.PaymentSession{Reference: "pay_ctx", RedirectURL: "https://pay.example.com/ctx"},
	}
	config := VerifyConfig{PollInterval: time.Hour, MaxAttempts: 10}
	manager := NewPaymentManager(apiClient, nil, nil, config, 1)
	session := submitSession(t, manager)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- manager.Resolve(ctx, session.Reference) }()

	// Let the first poll complete, then tear the context down mid-wait.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Resolve() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Resolve() did not return after cancellation")
	}
}
