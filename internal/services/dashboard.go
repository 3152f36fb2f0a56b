package services

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"altarfunds/internal/core"
	"altarfunds/internal/storage"
)

// RecentTransactionLimit caps the dashboard's giving-history section.
const RecentTransactionLimit = 5

// Dashboard is one consistent load of the home screen's data. Sections that
// failed to fetch hold their documented defaults instead of an error.
type Dashboard struct {
	Profile   core.Profile
	ProfileOK bool

	Summary   core.FinancialSummary
	SummaryOK bool

	// Recent holds up to RecentTransactionLimit transactions in server
	// order. HasTransactions distinguishes "none yet" from "fetch failed";
	// both render as an empty list.
	Recent          []core.Transaction
	HasTransactions bool
}

// DashboardAPI is the slice of the remote client the aggregator needs.
type DashboardAPI interface {
	GetProfile(ctx context.Context) (core.Profile, error)
	GetFinancialSummary(ctx context.Context) (core.FinancialSummary, error)
	ListTransactions(ctx context.Context, limit int) ([]core.Transaction, error)
}

// DashboardAggregator composes profile, summary and recent transactions into
// one load cycle. Each fetch fails independently; a failed section falls
// back to its zero value and never blocks the others. The aggregator does
// not retry; callers invoke Load again to refresh from scratch.
type DashboardAggregator struct {
	api   DashboardAPI
	cache *storage.CacheStore
}

func NewDashboardAggregator(apiClient DashboardAPI, cache *storage.CacheStore) *DashboardAggregator {
	return &DashboardAggregator{
		api:   apiClient,
		cache: cache,
	}
}

// Load runs the three fetches concurrently and returns when the slowest one
// finishes. It never returns an error: per-section failures are downgraded
// to defaults. A successful transactions fetch supersedes the cached giving
// history wholesale.
func (a *DashboardAggregator) Load(ctx context.Context) Dashboard {
	var dash Dashboard

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		profile, err := a.api.GetProfile(gctx)
		if err != nil {
			slog.WarnContext(gctx, "Profile fetch failed, using empty profile", "error", err)
			return nil
		}
		dash.Profile = profile
		dash.ProfileOK = true
		return nil
	})

	g.Go(func() error {
		summary, err := a.api.GetFinancialSummary(gctx)
		if err != nil {
			slog.WarnContext(gctx, "Summary fetch failed, using zero-valued summary", "error", err)
			return nil
		}
		dash.Summary = summary
		dash.SummaryOK = true
		return nil
	})

	g.Go(func() error {
		txs, err := a.api.ListTransactions(gctx, RecentTransactionLimit)
		if err != nil {
			slog.WarnContext(gctx, "Transactions fetch failed, using empty list", "error", err)
			return nil
		}
		// Server order preserved; no client-side re-sort.
		if len(txs) > RecentTransactionLimit {
			txs = txs[:RecentTransactionLimit]
		}
		dash.Recent = txs
		dash.HasTransactions = len(txs) > 0
		a.refreshCache(gctx, txs)
		return nil
	})

	// Goroutines never return errors; Wait only orders completion.
	_ = g.Wait()

	return dash
}

func (a *DashboardAggregator) refreshCache(ctx context.Context, txs []core.Transaction) {
	if a.cache == nil {
		return
	}
	if err := a.cache.ReplaceAllTransactions(ctx, txs); err != nil {
		slog.ErrorContext(ctx, "Failed to refresh transaction cache", "error", err)
	}
}
