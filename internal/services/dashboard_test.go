package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"altarfunds/internal/core"
)

type fakeDashboardAPI struct {
	profile    core.Profile
	profileErr error

	summary    core.FinancialSummary
	summaryErr error

	transactions    []core.Transaction
	transactionsErr error
}

func (f *fakeDashboardAPI) GetProfile(ctx context.Context) (core.Profile, error) {
	return f.profile, f.profileErr
}

func (f *fakeDashboardAPI) GetFinancialSummary(ctx context.Context) (core.FinancialSummary, error) {
	return f.summary, f.summaryErr
}

func (f *fakeDashboardAPI) ListTransactions(ctx context.Context, limit int) ([]core.Transaction, error) {
	return f.transactions, f.transactionsErr
}

func serverTransactions(n int) []core.Transaction {
	txs := make([]core.Transaction, 0, n)
	for i := 1; i <= n; i++ {
		txs = append(txs, core.Transaction{
			ID:       fmt.Sprintf("tx_%03d", i),
			Category: "Tithe",
			Amount:   core.Money{Cents: int64(i) * 100},
			Date:     "2026-01-15T10:00:00Z",
			Status:   core.StatusCompleted,
		})
	}
	return txs
}

func TestDashboardAggregator_Load(t *testing.T) {
	apiClient := &fakeDashboardAPI{
		profile: core.Profile{Name: "Grace M", ChurchID: 3},
		summary: core.FinancialSummary{
			TotalIncome:   core.Money{Cents: 1_000_000},
			TotalExpenses: core.Money{Cents: 400_000},
		},
		transactions: serverTransactions(3),
	}
	agg := NewDashboardAggregator(apiClient, nil)

	dash := agg.Load(context.Background())

	if !dash.ProfileOK || dash.Profile.Name != "Grace M" {
		t.Errorf("Profile = %+v (ok=%v)", dash.Profile, dash.ProfileOK)
	}
	if !dash.SummaryOK || dash.Summary.Balance().Cents != 600_000 {
		t.Errorf("Summary balance = %d (ok=%v)", dash.Summary.Balance().Cents, dash.SummaryOK)
	}
	if !dash.HasTransactions || len(dash.Recent) != 3 {
		t.Errorf("Recent = %d transactions (has=%v)", len(dash.Recent), dash.HasTransactions)
	}
}

func TestDashboardAggregator_SummaryFailureIsIsolated(t *testing.T) {
	apiClient := &fakeDashboardAPI{
		profile:      core.Profile{Name: "Grace M"},
		summaryErr:   errors.New("500 from summary endpoint"),
		transactions: serverTransactions(2),
	}
	agg := NewDashboardAggregator(apiClient, nil)

	dash := agg.Load(context.Background())

	if dash.SummaryOK {
		t.Error("SummaryOK = true, want false")
	}
	if dash.Summary != (core.FinancialSummary{}) {
		t.Errorf("Summary = %+v, want zero value", dash.Summary)
	}
	// The other sections carry live data untouched.
	if !dash.ProfileOK || dash.Profile.Name != "Grace M" {
		t.Errorf("Profile = %+v (ok=%v)", dash.Profile, dash.ProfileOK)
	}
	if !dash.HasTransactions || len(dash.Recent) != 2 {
		t.Errorf("Recent = %d transactions (has=%v)", len(dash.Recent), dash.HasTransactions)
	}
}

func TestDashboardAggregator_AllSectionsFail(t *testing.T) {
	fetchErr := errors.New("network is down")
	apiClient := &fakeDashboardAPI{
		profileErr:      fetchErr,
		summaryErr:      fetchErr,
		transactionsErr: fetchErr,
	}
	agg := NewDashboardAggregator(apiClient, nil)

	dash := agg.Load(context.Background())

	if dash.ProfileOK || dash.SummaryOK || dash.HasTransactions {
		t.Errorf("Load() = %+v, want all sections defaulted", dash)
	}
	if len(dash.Recent) != 0 {
		t.Errorf("Recent = %d transactions, want 0", len(dash.Recent))
	}
}

func TestDashboardAggregator_RecentLimit(t *testing.T) {
	apiClient := &fakeDashboardAPI{transactions: serverTransactions(12)}
	agg := NewDashboardAggregator(apiClient, nil)

	dash := agg.Load(context.Background())

	if len(dash.Recent) != RecentTransactionLimit {
		t.Fatalf("Recent = %d transactions, want %d", len(dash.Recent), RecentTransactionLimit)
	}
	// The first five in server order, not a re-sorted slice.
	for i, tx := range dash.Recent {
		want := fmt.Sprintf("tx_%03d", i+1)
		if tx.ID != want {
			t.Errorf("Recent[%d].ID = %s, want %s", i, tx.ID, want)
		}
	}
}

func TestDashboardAggregator_RefreshesCache(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// A stale entry the next successful load must supersede.
	stale := core.Transaction{ID: "tx_old", Category: "Tithe", Amount: core.Money{Cents: 100}, Status: core.StatusCompleted}
	if err := store.PutTransaction(ctx, stale); err != nil {
		t.Fatalf("PutTransaction() error = %v", err)
	}

	apiClient := &fakeDashboardAPI{transactions: serverTransactions(2)}
	agg := NewDashboardAggregator(apiClient, store)
	agg.Load(ctx)

	cached, err := store.GetAllTransactions(ctx)
	if err != nil {
		t.Fatalf("GetAllTransactions() error = %v", err)
	}
	if len(cached) != 2 {
		t.Fatalf("cached = %d transactions, want 2", len(cached))
	}
	for _, tx := range cached {
		if tx.ID == "tx_old" {
			t.Error("stale transaction survived a wholesale refresh")
		}
	}
}

func TestDashboardAggregator_FailedFetchKeepsCache(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cachedTx := core.Transaction{ID: "tx_keep", Category: "Offering", Amount: core.Money{Cents: 300}, Status: core.StatusCompleted}
	if err := store.PutTransaction(ctx, cachedTx); err != nil {
		t.Fatalf("PutTransaction() error = %v", err)
	}

	apiClient := &fakeDashboardAPI{transactionsErr: errors.New("timeout")}
	agg := NewDashboardAggregator(apiClient, store)
	agg.Load(ctx)

	cached, err := store.GetAllTransactions(ctx)
	if err != nil {
		t.Fatalf("GetAllTransactions() error = %v", err)
	}
	if len(cached) != 1 || cached[0].ID != "tx_keep" {
		t.Errorf("cached = %+v, want the pre-existing entry untouched", cached)
	}
}
