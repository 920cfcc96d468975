package app

import (
	"context"
	"sort"
	"sync"

	"stitchd-marketplace-service/internal/domain/bid"
	"stitchd-marketplace-service/internal/domain/listing"
	"stitchd-marketplace-service/internal/ports/inbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MarketplaceProjection is the caller-facing view of the marketplace. It
// caches listings for filtering and display, relays writes to the
// services, and reconciles its cache against returned state. It performs
// no business validation of its own and holds no authority: the cache is
// always re-derivable from the repository.
type MarketplaceProjection struct {
	listingService inbound.ListingService
	bidService     inbound.BidService

	mu       sync.RWMutex
	listings map[uuid.UUID]*listing.Listing
	filter   listing.Filter

	logger zerolog.Logger
}

type MarketplaceProjectionParams struct {
	ListingService inbound.ListingService
	BidService     inbound.BidService
	Logger         zerolog.Logger
}

// NewMarketplaceProjection creates an empty projection with no filter.
func NewMarketplaceProjection(params MarketplaceProjectionParams) *MarketplaceProjection {
	return &MarketplaceProjection{
		listingService: params.ListingService,
		bidService:     params.BidService,
		listings:       make(map[uuid.UUID]*listing.Listing),
		logger:         params.Logger.With().Str("component", "marketplace_projection").Logger(),
	}
}

// SetFilter replaces the active filter and re-fetches from the source of
// truth. Stale cached data is never filtered locally.
func (p *MarketplaceProjection) SetFilter(ctx context.Context, filter listing.Filter) error {
	p.mu.Lock()
	p.filter = filter
	p.mu.Unlock()

	return p.Refresh(ctx)
}

// Refresh re-pulls all listings matching the current filter. It is
// idempotent and safe to call repeatedly.
func (p *MarketplaceProjection) Refresh(ctx context.Context) error {
	p.mu.RLock()
	filter := p.filter
	p.mu.RUnlock()

	fetched, err := p.listingService.ListListings(ctx, filter)
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to refresh projection")
		return err
	}

	next := make(map[uuid.UUID]*listing.Listing, len(fetched))
	for _, l := range fetched {
		next[l.ID] = l
	}

	p.mu.Lock()
	p.listings = next
	p.mu.Unlock()

	p.logger.Debug().Int("listing_count", len(next)).Msg("Projection refreshed")
	return nil
}

// Listings returns snapshots of the cached listings sorted by creation
// time, oldest first, with ID as tie-breaker so the order is stable
// across reads.
func (p *MarketplaceProjection) Listings() []*listing.Listing {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*listing.Listing, 0, len(p.listings))
	for _, l := range p.listings {
		out = append(out, l.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Get returns a snapshot of the cached listing with the given ID, if
// present. Mutating the returned value never affects the cache.
func (p *MarketplaceProjection) Get(listingID uuid.UUID) (*listing.Listing, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	l, ok := p.listings[listingID]
	if !ok {
		return nil, false
	}
	return l.Clone(), true
}

// CreateListing relays creation to the listing service. On success the
// returned listing is merged into the cache; on failure the cache is left
// untouched and the error is surfaced unchanged.
func (p *MarketplaceProjection) CreateListing(ctx context.Context, req inbound.CreateListingRequest) (*listing.Listing, error) {
	created, err := p.listingService.CreateListing(ctx, req)
	if err != nil {
		return nil, err
	}

	p.merge(created)
	return created, nil
}

// PlaceBid relays a bid to the bid service. On success the updated
// listing replaces any prior cached version; on failure the cache is left
// untouched so the caller sees consistent pre-bid state.
func (p *MarketplaceProjection) PlaceBid(ctx context.Context, req inbound.PlaceBidRequest) (*listing.Listing, *bid.Bid, error) {
	updated, accepted, err := p.bidService.PlaceBid(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	p.merge(updated)
	return updated, accepted, nil
}

func (p *MarketplaceProjection) merge(l *listing.Listing) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listings[l.ID] = l.Clone()
}
