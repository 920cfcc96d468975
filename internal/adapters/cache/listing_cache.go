package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stitchd-marketplace-service/internal/domain/listing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// listingTTL bounds staleness if an invalidation is ever missed.
const listingTTL = 1 * time.Hour

// ListingCache is a Redis-backed snapshot cache for listings. It is
// write-through on mutations and never authoritative; a miss simply
// falls back to the repository.
type ListingCache struct {
	client *redis.Client
	logger zerolog.Logger
}

type ListingCacheParams struct {
	RedisClient *redis.Client
	Logger      zerolog.Logger
}

// NewListingCache creates a listing cache on an existing Redis client
func NewListingCache(params ListingCacheParams) *ListingCache {
	return &ListingCache{
		client: params.RedisClient,
		logger: params.Logger.With().Str("component", "listing_cache").Logger(),
	}
}

func cacheKey(id uuid.UUID) string {
	return "listing:snapshot:" + id.String()
}

// Get returns the cached listing, or (nil, nil) on a miss
func (c *ListingCache) Get(ctx context.Context, id uuid.UUID) (*listing.Listing, error) {
	data, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil // Cache miss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read listing from cache: %w", err)
	}

	var l listing.Listing
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("failed to decode cached listing: %w", err)
	}
	return &l, nil
}

// Set stores a listing snapshot
func (c *ListingCache) Set(ctx context.Context, l *listing.Listing) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("failed to encode listing: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey(l.ID), data, listingTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache listing: %w", err)
	}

	c.logger.Debug().Str("listing_id", l.ID.String()).Msg("Listing snapshot cached")
	return nil
}

// Delete evicts a listing snapshot
func (c *ListingCache) Delete(ctx context.Context, id uuid.UUID) error {
	return c.client.Del(ctx, cacheKey(id)).Err()
}
