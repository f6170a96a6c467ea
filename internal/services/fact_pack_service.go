package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"impact-service/internal/models"
)

// FactPackStore keeps published fact packs in object storage. Put returns
// the object's location.
type FactPackStore interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, bool, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// FactPackService turns aggregates into the numeric fact pack consumed by
// the narrative step. Every pack passes the privacy guard before it leaves
// the service.
type FactPackService struct {
	aggregator Aggregator
	store      FactPackStore
	guard      *PrivacyGuard
	now        func() time.Time
}

func NewFactPackService(aggregator Aggregator, store FactPackStore, guard *PrivacyGuard, now func() time.Time) *FactPackService {
	if now == nil {
		now = time.Now
	}
	return &FactPackService{aggregator: aggregator, store: store, guard: guard, now: now}
}

// PublishedFactPack describes a stored pack.
type PublishedFactPack struct {
	Key      string          `json:"key"`
	Location string          `json:"location"`
	Pack     models.FactPack `json:"pack"`
}

// Build derives a fact pack from an aggregate. The navigator is left out.
func (s *FactPackService) Build(agg *models.ImpactAggregate) (*models.FactPack, error) {
	pack := &models.FactPack{
		Scope:        agg.Scope,
		Period:       agg.Period,
		From:         agg.Meta.From,
		To:           agg.Meta.To,
		KPIs:         agg.KPIs,
		Funnel:       agg.Funnel.Stages(),
		Outcomes:     agg.Outcomes,
		Fidelity:     agg.Fidelity,
		Completeness: agg.Meta.DataCompleteness,
		SampleSize:   agg.Meta.SampleSize,
		GeneratedAt:  s.now().UTC(),
	}
	if err := s.guard.Scan(pack); err != nil {
		return nil, err
	}
	return pack, nil
}

// Generate aggregates a scope and returns its fact pack without storing it.
func (s *FactPackService) Generate(ctx context.Context, scope models.GeoScope, period models.Period) (*models.FactPack, error) {
	if err := s.aggregator.ValidateScope(ctx, scope); err != nil {
		return nil, err
	}
	agg, err := s.aggregator.Aggregate(ctx, scope, period)
	if err != nil {
		return nil, err
	}
	return s.Build(agg)
}

// Publish generates a fact pack and writes it to the fact-pack store.
func (s *FactPackService) Publish(ctx context.Context, scope models.GeoScope, period models.Period) (*PublishedFactPack, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: fact pack storage is not configured", models.ErrStoreUnavailable)
	}
	pack, err := s.Generate(ctx, scope, period)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(pack, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode fact pack: %w", err)
	}

	key := FactPackKey(pack)
	location, err := s.store.Put(ctx, key, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	slog.Info("fact pack published", "key", key, "scope_level", scope.Level, "scope_id", scope.ID, "period", period)
	return &PublishedFactPack{Key: key, Location: location, Pack: *pack}, nil
}

// List returns the keys of published packs under prefix.
func (s *FactPackService) List(ctx context.Context, prefix string) ([]string, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: fact pack storage is not configured", models.ErrStoreUnavailable)
	}
	keys, err := s.store.List(ctx, strings.TrimPrefix(prefix, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

// Get loads a published pack by key.
func (s *FactPackService) Get(ctx context.Context, key string) (*models.FactPack, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: fact pack storage is not configured", models.ErrStoreUnavailable)
	}
	data, found, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: fact pack %s", models.ErrFactPackNotFound, key)
	}
	var pack models.FactPack
	if err := json.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("failed to decode fact pack %s: %w", key, err)
	}
	return &pack, nil
}

// FactPackKey is the object name of a pack: one object per scope and
// reporting window, overwritten on republish.
func FactPackKey(pack *models.FactPack) string {
	id := strings.ReplaceAll(NormalizePlaceName(pack.Scope.ID), " ", "_")
	if id == "" {
		id = "all"
	}
	return fmt.Sprintf("%s/%s/%s/%s_%s.json",
		pack.Scope.Level, id, pack.Period, pack.From.String(), pack.To.String())
}
