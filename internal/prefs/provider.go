package prefs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultCacheTTL bounds how long a preference snapshot may be served from
// memory before the store is consulted again.
const DefaultCacheTTL = 30 * time.Second

// ProviderConfig holds configuration for the cached snapshot provider.
type ProviderConfig struct {
	Repository Repository
	Logger     zerolog.Logger
	CacheTTL   time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Provider serves preference snapshots with short-lived caching. A snapshot
// is immutable once fetched; concurrent readers inside the validity window
// share the same value. A write replaces the cache unconditionally.
type Provider struct {
	repo   Repository
	logger zerolog.Logger
	ttl    time.Duration
	now    func() time.Time

	mu        sync.RWMutex
	snapshot  NotificationPreferences
	fetchedAt time.Time
	valid     bool
}

// NewProvider creates a cached preference provider.
func NewProvider(cfg ProviderConfig) *Provider {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Provider{
		repo:   cfg.Repository,
		logger: cfg.Logger,
		ttl:    ttl,
		now:    now,
	}
}

// Get returns the current preferences, from cache when the snapshot is still
// inside its validity window.
func (p *Provider) Get(ctx context.Context) (NotificationPreferences, error) {
	p.mu.RLock()
	if p.valid && p.now().Sub(p.fetchedAt) < p.ttl {
		snap := p.snapshot
		p.mu.RUnlock()
		return snap, nil
	}
	p.mu.RUnlock()

	snap, err := p.repo.Get(ctx)
	if err != nil {
		return NotificationPreferences{}, fmt.Errorf("%w: %v", ErrPreferencesUnavailable, err)
	}

	p.mu.Lock()
	p.snapshot = snap
	p.fetchedAt = p.now()
	p.valid = true
	p.mu.Unlock()

	return snap, nil
}

// Put stores new preferences and invalidates the cache on success.
func (p *Provider) Put(ctx context.Context, prefs NotificationPreferences) error {
	if err := p.repo.Put(ctx, prefs); err != nil {
		return err
	}

	p.mu.Lock()
	p.valid = false
	p.mu.Unlock()

	p.logger.Debug().Msg("preference cache invalidated")
	return nil
}

// Invalidate drops the cached snapshot so the next Get hits the store.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	p.valid = false
	p.mu.Unlock()
}
