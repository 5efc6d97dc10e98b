package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/apex/log"

	"github.com/toxiscan/backend/internal/domain"
	"github.com/toxiscan/backend/internal/infrastructure/metrics"
)

// hazardCacheKey holds the whole reference set as one ordered JSON array
const hazardCacheKey = "hazards:reference:v1"

// HazardCatalog loads the hazard reference set, cache first
type HazardCatalog struct {
	cache    domain.CacheRepository
	repo     domain.HazardRepository
	cacheTTL time.Duration
}

// NewHazardCatalog creates a catalog; cache may be nil to always read the store
func NewHazardCatalog(cache domain.CacheRepository, repo domain.HazardRepository, cacheTTL time.Duration) *HazardCatalog {
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Minute
	}
	return &HazardCatalog{
		cache:    cache,
		repo:     repo,
		cacheTTL: cacheTTL,
	}
}

// Hazards returns the reference set in store order.
// Flow: check cache -> read store -> cache -> return. Cache errors never fail the call.
func (c *HazardCatalog) Hazards(ctx context.Context) ([]domain.HazardRecord, error) {
	if cached, err := c.getFromCache(ctx); err == nil {
		metrics.HazardCatalogLookupsTotal.WithLabelValues("hit").Inc()
		return cached, nil
	} else if !errors.Is(err, domain.ErrCacheMiss) {
		metrics.HazardCatalogLookupsTotal.WithLabelValues("cache_error").Inc()
		log.WithError(err).Warn("hazard cache read failed, reading store")
	} else {
		metrics.HazardCatalogLookupsTotal.WithLabelValues("miss").Inc()
	}

	hazards, err := c.repo.ListHazards(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.setInCache(ctx, hazards); err != nil {
		// Log but don't fail if caching fails
		log.WithError(err).Warn("hazard cache write failed")
	}

	return hazards, nil
}

// Invalidate drops the cached reference set so the next call reads the store
func (c *HazardCatalog) Invalidate(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Delete(ctx, hazardCacheKey)
}

func (c *HazardCatalog) getFromCache(ctx context.Context) ([]domain.HazardRecord, error) {
	if c.cache == nil {
		return nil, domain.ErrCacheMiss
	}

	raw, err := c.cache.Get(ctx, hazardCacheKey)
	if err != nil {
		return nil, err
	}

	var hazards []domain.HazardRecord
	if err := json.Unmarshal(raw, &hazards); err != nil {
		// Corrupt entry; treat as a miss and overwrite it
		return nil, domain.ErrCacheMiss
	}
	return hazards, nil
}

func (c *HazardCatalog) setInCache(ctx context.Context, hazards []domain.HazardRecord) error {
	if c.cache == nil {
		return nil
	}

	raw, err := json.Marshal(hazards)
	if err != nil {
		return err
	}
	return c.cache.Set(ctx, hazardCacheKey, raw, c.cacheTTL)
}
