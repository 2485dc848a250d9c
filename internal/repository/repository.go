// Package repository is the single data surface for the app's screens and
// commands. It delegates to the store's DAOs and adds nothing else.
package repository

import (
	"context"

	"github.com/santelocale/healthlog/internal/health"
	"github.com/santelocale/healthlog/internal/live"
	"github.com/santelocale/healthlog/internal/store"
)

// StoreSource hands out the open store. *store.Provider satisfies it.
type StoreSource interface {
	Get(ctx context.Context) (*store.Store, error)
}

// Repository combines the log and food DAOs. Every method resolves the
// store first, so a storage-fatal error reaches the caller of whichever
// method runs next.
type Repository struct {
	stores StoreSource
}

// New returns a Repository over stores.
func New(stores StoreSource) *Repository {
	return &Repository{stores: stores}
}

// AllLogs streams every measurement, most recent first.
func (r *Repository) AllLogs(ctx context.Context) (*live.Subscription[[]health.Measurement], error) {
	s, err := r.stores.Get(ctx)
	if err != nil {
		return nil, err
	}
	return s.Logs().ObserveAll(ctx), nil
}

// LastGlucose streams the latest glucose measurement or nil.
func (r *Repository) LastGlucose(ctx context.Context) (*live.Subscription[*health.Measurement], error) {
	s, err := r.stores.Get(ctx)
	if err != nil {
		return nil, err
	}
	return s.Logs().ObserveLastGlucose(ctx), nil
}

// FoodsByCategory streams one category of the food guide, by name.
func (r *Repository) FoodsByCategory(ctx context.Context, c health.Category) (*live.Subscription[[]health.FoodReference], error) {
	s, err := r.stores.Get(ctx)
	if err != nil {
		return nil, err
	}
	return s.Foods().ObserveByCategory(ctx, c), nil
}

// AllFoods streams the whole food guide.
func (r *Repository) AllFoods(ctx context.Context) (*live.Subscription[[]health.FoodReference], error) {
	s, err := r.stores.Get(ctx)
	if err != nil {
		return nil, err
	}
	return s.Foods().ObserveAll(ctx), nil
}

// InsertLog stores m and returns its ID.
func (r *Repository) InsertLog(ctx context.Context, m health.Measurement) (int64, error) {
	s, err := r.stores.Get(ctx)
	if err != nil {
		return 0, err
	}
	return s.Logs().Insert(ctx, m)
}

// DeleteLog removes m. Deleting an already removed entry is not an error.
func (r *Repository) DeleteLog(ctx context.Context, m health.Measurement) error {
	s, err := r.stores.Get(ctx)
	if err != nil {
		return err
	}
	return s.Logs().Delete(ctx, m)
}

// ClearAllLogs removes every measurement.
func (r *Repository) ClearAllLogs(ctx context.Context) error {
	s, err := r.stores.Get(ctx)
	if err != nil {
		return err
	}
	return s.Logs().DeleteAll(ctx)
}

// LogsSnapshot returns the current measurement list once.
func (r *Repository) LogsSnapshot(ctx context.Context) ([]health.Measurement, error) {
	s, err := r.stores.Get(ctx)
	if err != nil {
		return nil, err
	}
	return s.Logs().All(ctx)
}

// LastGlucoseSnapshot returns the latest glucose measurement once.
func (r *Repository) LastGlucoseSnapshot(ctx context.Context) (*health.Measurement, error) {
	s, err := r.stores.Get(ctx)
	if err != nil {
		return nil, err
	}
	return s.Logs().LastGlucose(ctx)
}

// FoodsSnapshot returns the food guide once, optionally one category.
// An empty category means all.
func (r *Repository) FoodsSnapshot(ctx context.Context, c health.Category) ([]health.FoodReference, error) {
	s, err := r.stores.Get(ctx)
	if err != nil {
		return nil, err
	}
	if c == "" {
		return s.Foods().All(ctx)
	}
	return s.Foods().ByCategory(ctx, c)
}
