package app

import (
	"context"
	"time"

	"stitchd-marketplace-service/internal/domain/bid"
	"stitchd-marketplace-service/internal/domain/listing"
	"stitchd-marketplace-service/internal/domain/shared"
	"stitchd-marketplace-service/internal/ports/inbound"
	"stitchd-marketplace-service/internal/ports/outbound"

	"github.com/rs/zerolog"
)

// BidService implements the bid use cases
type BidService struct {
	listingRepo outbound.ListingRepository
	identity    outbound.IdentityResolver
	cache       outbound.ListingCache
	broadcaster outbound.Broadcaster
	publisher   outbound.EventPublisher
	now         func() time.Time
	logger      zerolog.Logger
}

type BidServiceParams struct {
	ListingRepo outbound.ListingRepository
	Identity    outbound.IdentityResolver
	Cache       outbound.ListingCache
	Broadcaster outbound.Broadcaster
	Publisher   outbound.EventPublisher
	Now         func() time.Time
	Logger      zerolog.Logger
}

// NewBidService creates a new bid service
func NewBidService(params BidServiceParams) *BidService {
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &BidService{
		listingRepo: params.ListingRepo,
		identity:    params.Identity,
		cache:       params.Cache,
		broadcaster: params.Broadcaster,
		publisher:   params.Publisher,
		now:         now,
		logger:      params.Logger.With().Str("component", "bid_service").Logger(),
	}
}

// PlaceBid places a new bid on an auction listing. The repository runs
// the acceptance rules under per-listing serialization and commits the
// bid and updated listing atomically; a rejection is returned to the
// caller unchanged, never retried here.
func (service *BidService) PlaceBid(ctx context.Context, req inbound.PlaceBidRequest) (*listing.Listing, *bid.Bid, error) {
	userID, err := service.identity.CurrentUser(ctx)
	if err != nil {
		service.logger.Warn().Err(err).Str("listing_id", req.ListingID.String()).Msg("Bid without authenticated user")
		return nil, nil, shared.ErrUnauthenticated
	}

	service.logger.Info().
		Str("listing_id", req.ListingID.String()).
		Str("user_id", userID.String()).
		Float64("amount", req.Amount).
		Msg("Attempting to place bid")

	now := service.now()
	updated, accepted, err := service.listingRepo.PlaceBid(ctx, req.ListingID, userID, req.Amount, now)
	if err != nil {
		service.logger.Warn().
			Err(err).
			Str("listing_id", req.ListingID.String()).
			Str("user_id", userID.String()).
			Float64("amount", req.Amount).
			Msg("Bid rejected")
		return nil, nil, err
	}

	if service.cache != nil {
		if cacheErr := service.cache.Set(ctx, updated); cacheErr != nil {
			service.logger.Warn().Err(cacheErr).Str("listing_id", updated.ID.String()).Msg("Failed to refresh listing cache after bid")
		}
	}

	event := outbound.Event{
		Type:      outbound.EventTypeBidPlaced,
		ListingID: updated.ID,
		Data: map[string]interface{}{
			"bid_id":      accepted.ID,
			"user_id":     accepted.UserID,
			"amount":      accepted.Amount,
			"current_bid": updated.CurrentBid,
			"timestamp":   accepted.CreatedAt.Unix(),
		},
		Timestamp: accepted.CreatedAt.Unix(),
	}

	if service.broadcaster != nil {
		if err := service.broadcaster.Publish(ctx, updated.ID, event); err != nil {
			// Log error but don't fail the bid placement
			service.logger.Error().Err(err).Str("bid_id", accepted.ID.String()).Msg("Failed to broadcast bid event")
		}
	}
	if service.publisher != nil {
		if err := service.publisher.Publish(ctx, "marketplace.bid.placed", event); err != nil {
			service.logger.Error().Err(err).Str("bid_id", accepted.ID.String()).Msg("Failed to publish bid event")
		}
	}

	service.logger.Info().
		Str("bid_id", accepted.ID.String()).
		Str("listing_id", updated.ID.String()).
		Str("user_id", accepted.UserID.String()).
		Float64("amount", accepted.Amount).
		Float64("current_bid", updated.CurrentBid).
		Msg("Bid placed successfully")

	return updated, accepted, nil
}
