package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/set-night/appealrouter/internal/config"
	"github.com/set-night/appealrouter/internal/domain"
	"github.com/set-night/appealrouter/internal/metrics"
)

// AppealCache holds open appeals. Reads return copies; writes are applied to
// a copy, persisted, and only then swapped in, all under one lock.
type AppealCache struct {
	store   DocumentStore
	mu      sync.Mutex
	appeals domain.Appeals
}

func NewAppealCache(store DocumentStore) *AppealCache {
	return &AppealCache{store: store, appeals: domain.Appeals{}}
}

// Load replaces the cache with the stored document. Entries that cannot be
// decoded are dropped; a missing or corrupt document yields an empty cache.
func (c *AppealCache) Load(ctx context.Context) error {
	data, err := c.store.Load(ctx, config.AppealsDocument)
	if err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
		return fmt.Errorf("load appeals: %w", err)
	}

	appeals := domain.Appeals{}
	if err == nil {
		var raw map[string]json.RawMessage
		if uerr := json.Unmarshal(data, &raw); uerr != nil {
			slog.Warn("appeals document is corrupt, starting empty", "error", uerr)
		}
		for k, v := range raw {
			key, kerr := domain.ParseAppealKey(k)
			if kerr != nil {
				slog.Warn("skipping appeal with invalid key", "key", k, "error", kerr)
				continue
			}
			rec := &domain.AppealRecord{}
			if rerr := json.Unmarshal(v, rec); rerr != nil {
				slog.Warn("skipping unreadable appeal", "key", k, "error", rerr)
				continue
			}
			rec.Key = key
			appeals[k] = rec
		}
	} else {
		slog.Info("no appeals document found, starting empty")
	}

	c.mu.Lock()
	c.appeals = appeals
	c.mu.Unlock()
	metrics.AppealsOpen.Set(float64(len(appeals)))

	slog.Info("appeals cache loaded", "appeals", len(appeals))
	return nil
}

// mutate applies fn to a copy of the cache. When fn reports no change nothing
// is written.
func (c *AppealCache) mutate(ctx context.Context, fn func(a domain.Appeals) bool) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.appeals.Clone()
	if !fn(next) {
		return false, nil
	}

	data, err := json.MarshalIndent(next, "", "    ")
	if err != nil {
		return false, fmt.Errorf("%w: encode appeals: %w", domain.ErrPersistence, err)
	}
	if err := c.store.Save(ctx, config.AppealsDocument, data); err != nil {
		return false, fmt.Errorf("%w: save appeals: %w", domain.ErrPersistence, err)
	}

	c.appeals = next
	metrics.AppealsOpen.Set(float64(len(next)))
	return true, nil
}

// Put inserts or replaces the record stored under rec.Key.
func (c *AppealCache) Put(ctx context.Context, rec *domain.AppealRecord) error {
	_, err := c.mutate(ctx, func(a domain.Appeals) bool {
		a[rec.Key.String()] = rec.Clone()
		return true
	})
	return err
}

// Remove deletes the record and reports whether this call removed it.
func (c *AppealCache) Remove(ctx context.Context, key domain.AppealKey) (bool, error) {
	return c.mutate(ctx, func(a domain.Appeals) bool {
		if _, ok := a[key.String()]; !ok {
			return false
		}
		delete(a, key.String())
		return true
	})
}

// MarkReminded records that the reminder for interval went out. It reports
// false when the appeal is gone or was already marked.
func (c *AppealCache) MarkReminded(ctx context.Context, key domain.AppealKey, interval time.Duration) (bool, error) {
	return c.mutate(ctx, func(a domain.Appeals) bool {
		rec, ok := a[key.String()]
		if !ok || rec.WasReminded(interval) {
			return false
		}
		rec.MarkReminded(interval)
		return true
	})
}

func (c *AppealCache) Get(key domain.AppealKey) (*domain.AppealRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.appeals[key.String()]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// FindByAppealID returns every open record carrying appealID.
func (c *AppealCache) FindByAppealID(appealID string) []*domain.AppealRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*domain.AppealRecord
	for _, rec := range c.appeals {
		if rec.AppealID == appealID {
			out = append(out, rec.Clone())
		}
	}
	sortRecords(out)
	return out
}

// Snapshot returns copies of all open records, oldest first.
func (c *AppealCache) Snapshot() []*domain.AppealRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*domain.AppealRecord, 0, len(c.appeals))
	for _, rec := range c.appeals {
		out = append(out, rec.Clone())
	}
	sortRecords(out)
	return out
}

func (c *AppealCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.appeals)
}

func sortRecords(recs []*domain.AppealRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].Key.String() < recs[j].Key.String()
	})
}
