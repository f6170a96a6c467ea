package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"impact-service/internal/models"
	"impact-service/shared/utils"

	"golang.org/x/sync/singleflight"
)

const aggregateKeyPrefix = "impact:v1:"

// AggregateCache stores serialised aggregates. Implementations must be safe
// for concurrent use.
type AggregateCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Aggregator is what handlers, jobs and the CLI depend on.
type Aggregator interface {
	Aggregate(ctx context.Context, scope models.GeoScope, period models.Period) (*models.ImpactAggregate, error)
	ValidateScope(ctx context.Context, scope models.GeoScope) error
}

// CachedAggregator is a read-through cache in front of AggregationService.
// Concurrent misses for the same key share one computation. Invalidation is
// best-effort; entries also expire after ttl.
type CachedAggregator struct {
	engine *AggregationService
	cache  AggregateCache
	ttl    time.Duration
	group  singleflight.Group
}

func NewCachedAggregator(engine *AggregationService, cache AggregateCache, ttl time.Duration) *CachedAggregator {
	return &CachedAggregator{engine: engine, cache: cache, ttl: ttl}
}

func (c *CachedAggregator) ValidateScope(ctx context.Context, scope models.GeoScope) error {
	return c.engine.ValidateScope(ctx, scope)
}

func (c *CachedAggregator) Aggregate(ctx context.Context, scope models.GeoScope, period models.Period) (*models.ImpactAggregate, error) {
	dateRange, err := c.engine.ResolvePeriod(period)
	if err != nil {
		return nil, err
	}
	key := c.CacheKey(scope, period, dateRange)

	if data, ok, err := c.cache.Get(ctx, key); err != nil {
		slog.Warn("aggregate cache read failed", "key", key, "error", err)
	} else if ok {
		var agg models.ImpactAggregate
		if err := utils.DeserializeModel(data, &agg); err == nil {
			return &agg, nil
		}
		slog.Warn("discarding unreadable cached aggregate", "key", key)
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		// detached so one caller giving up does not fail the others
		computeCtx := context.WithoutCancel(ctx)
		agg, err := c.engine.Aggregate(computeCtx, scope, period)
		if err != nil {
			return nil, err
		}
		data, err := utils.SerializeModel(agg)
		if err != nil {
			return nil, err
		}
		if err := c.cache.Set(computeCtx, key, data, c.ttl); err != nil {
			slog.Warn("aggregate cache write failed", "key", key, "error", err)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("aggregate computation shared", "key", key)
	}

	var agg models.ImpactAggregate
	if err := utils.DeserializeModel(v.([]byte), &agg); err != nil {
		return nil, fmt.Errorf("failed to decode aggregate: %w", err)
	}
	return &agg, nil
}

// CacheKey includes the resolved dates so a new term or fiscal year never
// reads the previous period's entry.
func (c *CachedAggregator) CacheKey(scope models.GeoScope, period models.Period, dateRange models.DateRange) string {
	canonical, ok := c.engine.Geography().CanonicalScope(scope)
	if !ok {
		canonical = scope
	}
	return fmt.Sprintf("%s%s:%s:%s",
		scopePrefix(canonical.Level, canonical.ID), period, dateRange.From.String(), dateRange.To.String())
}

// Invalidate drops cached aggregates that a write in district can affect:
// the country, its region, sub-region and district, and all school entries.
func (c *CachedAggregator) Invalidate(ctx context.Context, district string) error {
	geo := c.engine.Geography()
	ref := geo.Place(district)

	prefixes := []string{
		scopePrefix(models.GeoLevelCountry, geo.Country()),
		aggregateKeyPrefix + string(models.GeoLevelSchool) + ":",
	}
	if ref.Region != "" {
		prefixes = append(prefixes, scopePrefix(models.GeoLevelRegion, ref.Region))
	}
	if ref.Known {
		prefixes = append(prefixes,
			scopePrefix(models.GeoLevelSubRegion, ref.SubRegion),
			scopePrefix(models.GeoLevelDistrict, ref.District),
		)
	}

	var firstErr error
	for _, prefix := range prefixes {
		if err := c.cache.DeletePrefix(ctx, prefix); err != nil {
			slog.Warn("failed to invalidate cached aggregates", "prefix", prefix, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func scopePrefix(level models.GeoLevel, id string) string {
	return aggregateKeyPrefix + string(level) + ":" + strings.ReplaceAll(NormalizePlaceName(id), " ", "_") + ":"
}
