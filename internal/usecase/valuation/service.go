package valuation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/simaogato/wealthflow-valuation/internal/domain"
)

// DefaultTTL is how long a script result is reused when the caller does not override it
const DefaultTTL = 5 * time.Minute

// Fixed-strategy projections use a 365.25-day year
const fixedYearDays = 365.25

// Config holds the resolver's tunables
type Config struct {
	TTL time.Duration
	// MaxTTL bounds per-call TTL overrides. Zero takes the cache's retention when it reports one.
	MaxTTL time.Duration
	Clock  domain.Clock
}

// retentionBounded is implemented by caches that drop entries after a fixed retention
type retentionBounded interface {
	Retention() time.Duration
}

// ValuationService resolves an asset's current value from its strategy.
// It is the only place where script failures are degraded to the last known value.
type ValuationService struct {
	AssetRepo domain.AssetRepository
	Runner    domain.ScriptRunner
	Cache     domain.ScriptCache
	TTL       time.Duration
	MaxTTL    time.Duration
	Now       domain.Clock
	Log       zerolog.Logger
}

// NewValuationService creates a new ValuationService instance
func NewValuationService(assetRepo domain.AssetRepository, runner domain.ScriptRunner, cache domain.ScriptCache, cfg Config, log zerolog.Logger) *ValuationService {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.MaxTTL <= 0 {
		if bounded, ok := cache.(retentionBounded); ok {
			cfg.MaxTTL = bounded.Retention()
		}
	}

	return &ValuationService{
		AssetRepo: assetRepo,
		Runner:    runner,
		Cache:     cache,
		TTL:       cfg.TTL,
		MaxTTL:    cfg.MaxTTL,
		Now:       cfg.Clock,
		Log:       log.With().Str("component", "valuation").Logger(),
	}
}

// Options tune a single valuation call
type Options struct {
	AsOf        time.Time
	TTL         time.Duration
	BypassCache bool
}

// Option mutates Options
type Option func(*Options)

// WithAsOf values fixed-strategy assets, and measures growth, at t instead of now
func WithAsOf(t time.Time) Option {
	return func(o *Options) { o.AsOf = t }
}

// WithTTL overrides the cache TTL for this call
func WithTTL(ttl time.Duration) Option {
	return func(o *Options) { o.TTL = ttl }
}

// WithBypassCache forces the script to run; the fresh result still refreshes the cache
func WithBypassCache() Option {
	return func(o *Options) { o.BypassCache = true }
}

func (s *ValuationService) options(now time.Time, opts []Option) (Options, error) {
	o := Options{AsOf: now, TTL: s.TTL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.TTL <= 0 {
		o.TTL = s.TTL
	}
	if s.MaxTTL > 0 && o.TTL > s.MaxTTL {
		return o, fmt.Errorf("%w: %s > %s", domain.ErrTTLOutOfRange, o.TTL, s.MaxTTL)
	}
	return o, nil
}

// CurrentValue loads an asset and resolves its current value.
// Missing assets and strategies are returned as errors; script failures are not.
func (s *ValuationService) CurrentValue(ctx context.Context, assetID uuid.UUID, opts ...Option) (float64, error) {
	asset, err := s.AssetRepo.GetByID(ctx, assetID)
	if err != nil {
		return 0, err
	}
	return s.Value(ctx, asset, opts...)
}

// Value resolves the current value of an already loaded asset
func (s *ValuationService) Value(ctx context.Context, asset *domain.Asset, opts ...Option) (float64, error) {
	if asset.Strategy == nil {
		return 0, fmt.Errorf("asset %s: %w", asset.ID, domain.ErrStrategyMissing)
	}
	if err := asset.Strategy.Validate(); err != nil {
		return 0, fmt.Errorf("asset %s: %w", asset.ID, err)
	}

	now := s.Now()
	o, err := s.options(now, opts)
	if err != nil {
		return 0, err
	}

	switch asset.Strategy.Kind {
	case domain.StrategyKindFixed:
		return fixedValue(asset, asset.Strategy.Fixed.GrowthRate, o.AsOf), nil
	case domain.StrategyKindDynamic:
		price, ok := s.scriptPrice(ctx, asset, now, o)
		if !ok {
			return fallbackValue(asset.Strategy.Dynamic), nil
		}
		return price * asset.TotalQuantity().InexactFloat64(), nil
	case domain.StrategyKindManual:
		if asset.Strategy.Manual.Value == nil {
			return 0, nil
		}
		return *asset.Strategy.Manual.Value, nil
	}

	return 0, fmt.Errorf("asset %s: %w", asset.ID, domain.ErrStrategyMissing)
}

// UnitPrice returns the price of one unit of asset, used when contributions buy units.
// Dynamic assets are priced by their script (or the last known price), everything else at 1.
func (s *ValuationService) UnitPrice(ctx context.Context, asset *domain.Asset) (float64, error) {
	if asset.Strategy == nil {
		return 0, fmt.Errorf("asset %s: %w", asset.ID, domain.ErrStrategyMissing)
	}
	if err := asset.Strategy.Validate(); err != nil {
		return 0, fmt.Errorf("asset %s: %w", asset.ID, err)
	}
	if asset.Strategy.Kind != domain.StrategyKindDynamic {
		return 1, nil
	}

	now := s.Now()
	o, err := s.options(now, nil)
	if err != nil {
		return 0, err
	}
	if price, ok := s.scriptPrice(ctx, asset, now, o); ok {
		return price, nil
	}
	return fallbackValue(asset.Strategy.Dynamic), nil
}

// scriptPrice returns the per-unit price from the cache or a fresh script run.
// The second result is false when the script failed and the caller must fall back.
func (s *ValuationService) scriptPrice(ctx context.Context, asset *domain.Asset, now time.Time, o Options) (float64, bool) {
	dynamic := asset.Strategy.Dynamic
	source := dynamic.ScriptSource

	if !o.BypassCache {
		if price, hit := s.Cache.Get(source, o.TTL); hit {
			return price, true
		}
	}

	price, err := s.Runner.Execute(ctx, source)
	if err != nil {
		event := s.Log.Warn().
			Err(err).
			Str("asset_id", asset.ID.String()).
			Str("kind", domain.ScriptErrorKind(err))
		if dynamic.LastValue != nil {
			event = event.Float64("fallback", *dynamic.LastValue)
		}
		event.Msg("dynamic valuation failed, using last known value")
		return 0, false
	}

	s.Cache.Put(source, price)

	if err := s.AssetRepo.UpdateDynamicLastValue(ctx, asset.ID, price, now); err != nil {
		s.Log.Error().
			Err(err).
			Str("asset_id", asset.ID.String()).
			Msg("failed to persist last known value")
	} else {
		dynamic.LastValue = &price
		dynamic.LastValueAt = &now
	}

	return price, true
}

// fallbackValue is the last known value, returned as is
func fallbackValue(dynamic *domain.DynamicStrategy) float64 {
	if dynamic.LastValue == nil {
		return 0
	}
	return *dynamic.LastValue
}

// fixedValue compounds every investment's principal at growthRate percent per year
func fixedValue(asset *domain.Asset, growthRate float64, asOf time.Time) float64 {
	rate := growthRate / 100
	total := 0.0
	for _, inv := range asset.Investments {
		years := asOf.Sub(inv.Date).Hours() / 24 / fixedYearDays
		if years < 0 {
			years = 0
		}
		total += inv.Principal().InexactFloat64() * math.Pow(1+rate, years)
	}
	return total
}

// InvalidateScriptCache drops the cached result for exactly this script body
func (s *ValuationService) InvalidateScriptCache(source string) {
	s.Cache.Invalidate(source)
	s.Log.Info().Int("script_bytes", len(source)).Msg("script cache entry invalidated")
}

// ClearScriptCache drops every cached script result
func (s *ValuationService) ClearScriptCache() {
	s.Cache.Clear()
	s.Log.Info().Msg("script cache cleared")
}

// RunScript executes source in the sandbox without touching the cache or any asset
func (s *ValuationService) RunScript(ctx context.Context, source string) (float64, error) {
	return s.Runner.Execute(ctx, source)
}
