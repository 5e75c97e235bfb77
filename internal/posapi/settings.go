package posapi

import (
	"context"
	"sync"
	"time"

	"github.com/dukerupert/tabletill/internal/pricing"
	"github.com/rs/zerolog"
)

// DefaultSettingsRetry is how long the fallback policy is used after a failed
// store settings fetch before the next attempt.
const DefaultSettingsRetry = time.Minute

// SettingsFetcher loads store settings.
type SettingsFetcher interface {
	GetStoreSettings(ctx context.Context) (StoreSettings, error)
}

// SettingsProvider resolves the store tax policy from the order API. The first
// successful answer is cached for the life of the process. Until then callers
// get the configured fallback: while a fetch is in flight, and for the retry
// interval after a failed one.
type SettingsProvider struct {
	fetcher  SettingsFetcher
	fallback pricing.TaxPolicy
	retry    time.Duration
	now      func() time.Time
	logger   *zerolog.Logger

	mu          sync.Mutex
	cached      *pricing.TaxPolicy
	fetching    bool
	nextAttempt time.Time
}

// NewSettingsProvider creates a provider. fetcher may be nil, in which case the
// fallback is always used.
func NewSettingsProvider(fetcher SettingsFetcher, fallback pricing.TaxPolicy, logger *zerolog.Logger) *SettingsProvider {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &SettingsProvider{
		fetcher:  fetcher,
		fallback: fallback,
		retry:    DefaultSettingsRetry,
		now:      time.Now,
		logger:   logger,
	}
}

// TaxPolicy returns the cached store policy. At most one caller fetches at a
// time; everyone else gets the fallback without waiting.
func (p *SettingsProvider) TaxPolicy(ctx context.Context) pricing.TaxPolicy {
	p.mu.Lock()
	if p.cached != nil {
		policy := *p.cached
		p.mu.Unlock()
		return policy
	}
	if p.fetcher == nil || p.fetching || p.now().Before(p.nextAttempt) {
		p.mu.Unlock()
		return p.fallback
	}
	p.fetching = true
	p.mu.Unlock()

	settings, err := p.fetcher.GetStoreSettings(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetching = false

	if err != nil {
		p.nextAttempt = p.now().Add(p.retry)
		p.logger.Warn().Err(err).
			Bool("price_includes_tax", p.fallback.PriceIncludesTax).
			Dur("retry_in", p.retry).
			Msg("store settings unavailable, using configured tax policy")
		return p.fallback
	}

	policy := pricing.TaxPolicy{PriceIncludesTax: settings.PriceIncludesTax}
	p.cached = &policy
	p.logger.Info().Bool("price_includes_tax", policy.PriceIncludesTax).Msg("store tax policy loaded")
	return policy
}
