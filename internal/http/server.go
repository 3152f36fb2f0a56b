package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"altarfunds/internal/cache"
	"altarfunds/internal/core"
	applog "altarfunds/internal/log"
	"altarfunds/internal/services"
)

// DashboardLoader is the aggregator slice the server needs.
type DashboardLoader interface {
	Load(ctx context.Context) services.Dashboard
}

// PaymentService drives the payment lifecycle for the give endpoints.
type PaymentService interface {
	Submit(ctx context.Context, gift core.Gift) (*services.PaymentSession, error)
	Resolve(ctx context.Context, reference string) error
	Session(reference string) (*services.PaymentSession, error)
}

// GivingAPI is the slice of the remote client the read endpoints proxy.
type GivingAPI interface {
	ListTransactions(ctx context.Context, limit int) ([]core.Transaction, error)
	ListRecurring(ctx context.Context) ([]core.RecurringGiving, error)
	SetRecurringStatus(ctx context.Context, id int64, status core.RecurringStatus) error
	ListPledges(ctx context.Context) ([]core.Pledge, error)
	ListNotifications(ctx context.Context) ([]core.Notification, error)
}

// TransactionCache serves giving history when the backend is unreachable.
type TransactionCache interface {
	GetAllTransactions(ctx context.Context) ([]core.Transaction, error)
}

// Server is the JSON API surface. Dashboard loads are memoized in a TTL
// cache; a terminal payment verification invalidates it so the next load
// reflects the new transaction.
type Server struct {
	http.Server

	dash     DashboardLoader
	payments PaymentService
	giving   GivingAPI
	txCache  TransactionCache

	dashCache *cache.TTLCache[services.Dashboard]
	janitor   *cache.Janitor
	logger    *applog.Logger

	shutdownOnce sync.Once
}

const dashCacheKey = "dashboard"

// NewServer wires routes and starts the cache janitor. dashboardTTL bounds
// how stale a memoized dashboard may be.
func NewServer(addr string, dash DashboardLoader, payments PaymentService, giving GivingAPI, txCache TransactionCache, dashboardTTL time.Duration) *Server {
	mux := http.NewServeMux()

	logger := applog.New(applog.Config{Component: applog.ComponentHTTP})

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           applog.RequestMiddleware(logger)(mux),
			ReadHeaderTimeout: 10 * time.Second,
		},
		dash:      dash,
		payments:  payments,
		giving:    giving,
		txCache:   txCache,
		dashCache: cache.NewTTLCache[services.Dashboard](8, dashboardTTL),
		janitor:   cache.NewJanitor(),
		logger:    logger,
	}

	s.janitor.Register(s.dashCache)
	s.janitor.Start(10 * time.Minute)

	mux.HandleFunc("/api/dashboard", s.handleDashboard)
	mux.HandleFunc("/api/give", s.handleGive)
	mux.HandleFunc("/api/give/verify", s.handleGiveVerify)
	mux.HandleFunc("/api/transactions", s.handleTransactions)
	mux.HandleFunc("/api/recurring", s.handleRecurring)
	mux.HandleFunc("/api/recurring/", s.handleRecurringAction)
	mux.HandleFunc("/api/pledges", s.handlePledges)
	mux.HandleFunc("/api/notifications", s.handleNotifications)
	mux.HandleFunc("/healthz", s.handleHealth)

	return s
}

// Shutdown stops the janitor and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.janitor.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
