package services

import (
	"context"
	"log/slog"

	"altarfunds/internal/core"
	applog "altarfunds/internal/log"
	"altarfunds/internal/storage"
)

// EntityAPI is the slice of the remote client the refresher needs.
type EntityAPI interface {
	ListCategories(ctx context.Context) ([]core.GivingCategory, error)
	GetChurch(ctx context.Context, id int64) (core.Church, error)
	ListNotifications(ctx context.Context) ([]core.Notification, error)
}

// EntityRefresher pulls the slow-moving entity kinds (categories, the user's
// church, notifications) into the local cache. Runs at worker startup; each
// kind refreshes independently and a failed fetch leaves the cached copy in
// place.
type EntityRefresher struct {
	store           *storage.CacheStore
	api             EntityAPI
	defaultChurchID int64
}

func NewEntityRefresher(store *storage.CacheStore, apiClient EntityAPI, defaultChurchID int64) *EntityRefresher {
	return &EntityRefresher{
		store:           store,
		api:             apiClient,
		defaultChurchID: defaultChurchID,
	}
}

// RefreshAll refreshes every entity kind, best effort.
func (r *EntityRefresher) RefreshAll(ctx context.Context) {
	if cats, err := r.api.ListCategories(ctx); err != nil {
		slog.WarnContext(ctx, "Category refresh failed", "error", err)
	} else if err := r.store.ReplaceAllCategories(ctx, cats); err != nil {
		slog.ErrorContext(ctx, "Failed to cache categories", "error", err)
	}

	churchID := r.store.GetIntPref(ctx, storage.PrefChurchID, r.defaultChurchID)
	if church, err := r.api.GetChurch(ctx, churchID); err != nil {
		slog.WarnContext(ctx, "Church refresh failed",
			applog.FieldChurchID, churchID, "error", err)
	} else if err := r.store.PutChurch(ctx, church); err != nil {
		slog.ErrorContext(ctx, "Failed to cache church", "error", err)
	}

	if notes, err := r.api.ListNotifications(ctx); err != nil {
		slog.WarnContext(ctx, "Notification refresh failed", "error", err)
	} else if err := r.store.ReplaceAllNotifications(ctx, notes); err != nil {
		slog.ErrorContext(ctx, "Failed to cache notifications", "error", err)
	}
}
