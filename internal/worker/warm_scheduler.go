package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"impact-service/internal/models"

	"github.com/robfig/cron/v3"
)

// Aggregator computes (and caches) one aggregate.
type Aggregator interface {
	Aggregate(ctx context.Context, scope models.GeoScope, period models.Period) (*models.ImpactAggregate, error)
}

// Hierarchy lists the scopes worth keeping warm.
type Hierarchy interface {
	Country() string
	Regions() []string
	SubRegions(region string) []string
}

// WarmScheduler refreshes the country, region and sub-region aggregates on
// a cron schedule so dashboard reads hit the cache.
type WarmScheduler struct {
	cron       *cron.Cron
	spec       string
	pool       *WorkingPool
	aggregator Aggregator
	geo        Hierarchy
	periods    []models.Period
	jobTimeout time.Duration
}

func NewWarmScheduler(spec string, pool *WorkingPool, aggregator Aggregator, geo Hierarchy, jobTimeout time.Duration) *WarmScheduler {
	if jobTimeout <= 0 {
		jobTimeout = 30 * time.Second
	}
	return &WarmScheduler{
		cron:       cron.New(),
		spec:       spec,
		pool:       pool,
		aggregator: aggregator,
		geo:        geo,
		periods:    []models.Period{models.PeriodFiscalYear, models.PeriodTerm, models.PeriodQuarter},
		jobTimeout: jobTimeout,
	}
}

// Start registers the warm run and starts the cron loop. The loop stops
// when ctx is done.
func (s *WarmScheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		if n, err := s.WarmAll(ctx); err != nil {
			slog.Warn("cache warm run incomplete", "submitted", n, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid warm schedule %q: %w", s.spec, err)
	}
	s.cron.Start()
	slog.Info("cache warm scheduler started", "schedule", s.spec)

	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
		slog.Info("cache warm scheduler stopped")
	}()
	return nil
}

// Scopes returns every scope a warm run covers, country first.
func (s *WarmScheduler) Scopes() []models.GeoScope {
	scopes := []models.GeoScope{{Level: models.GeoLevelCountry, ID: s.geo.Country()}}
	for _, region := range s.geo.Regions() {
		scopes = append(scopes, models.GeoScope{Level: models.GeoLevelRegion, ID: region})
	}
	for _, region := range s.geo.Regions() {
		for _, sub := range s.geo.SubRegions(region) {
			scopes = append(scopes, models.GeoScope{Level: models.GeoLevelSubRegion, ID: sub})
		}
	}
	return scopes
}

// WarmAll submits one job per scope and period. It returns how many were
// queued.
func (s *WarmScheduler) WarmAll(ctx context.Context) (int, error) {
	submitted := 0
	for _, scope := range s.Scopes() {
		for _, period := range s.periods {
			if err := s.pool.SubmitJob(ctx, s.warmJob(scope, period)); err != nil {
				return submitted, err
			}
			submitted++
		}
	}
	slog.Debug("cache warm jobs submitted", "count", submitted)
	return submitted, nil
}

func (s *WarmScheduler) warmJob(scope models.GeoScope, period models.Period) Job {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
		if _, err := s.aggregator.Aggregate(ctx, scope, period); err != nil {
			return fmt.Errorf("warm %s/%s/%s: %w", scope.Level, scope.ID, period, err)
		}
		return nil
	}
}
