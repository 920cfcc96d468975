package app

import (
	"context"
	"time"

	"stitchd-marketplace-service/internal/domain/bid"
	"stitchd-marketplace-service/internal/domain/listing"
	"stitchd-marketplace-service/internal/domain/shared"
	"stitchd-marketplace-service/internal/ports/inbound"
	"stitchd-marketplace-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ListingService implements the listing use cases
type ListingService struct {
	listingRepo outbound.ListingRepository
	identity    outbound.IdentityResolver
	cache       outbound.ListingCache
	broadcaster outbound.Broadcaster
	publisher   outbound.EventPublisher
	now         func() time.Time
	logger      zerolog.Logger
}

type ListingServiceParams struct {
	ListingRepo outbound.ListingRepository
	Identity    outbound.IdentityResolver
	Cache       outbound.ListingCache
	Broadcaster outbound.Broadcaster
	Publisher   outbound.EventPublisher
	Now         func() time.Time
	Logger      zerolog.Logger
}

// NewListingService creates a new listing service
func NewListingService(params ListingServiceParams) *ListingService {
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &ListingService{
		listingRepo: params.ListingRepo,
		identity:    params.Identity,
		cache:       params.Cache,
		broadcaster: params.Broadcaster,
		publisher:   params.Publisher,
		now:         now,
		logger:      params.Logger.With().Str("component", "listing_service").Logger(),
	}
}

// CreateListing validates and creates a new listing attributed to the
// acting user. Validation stops at the first failing check.
func (service *ListingService) CreateListing(ctx context.Context, req inbound.CreateListingRequest) (*listing.Listing, error) {
	sellerID, err := service.identity.CurrentUser(ctx)
	if err != nil {
		service.logger.Warn().Err(err).Msg("Listing creation without authenticated user")
		return nil, shared.ErrUnauthenticated
	}

	service.logger.Info().
		Str("seller_id", sellerID.String()).
		Str("item_id", req.ItemID).
		Str("type", string(req.Type)).
		Float64("price", req.Price).
		Msg("Attempting to create listing")

	now := service.now()
	l, err := service.buildListing(req, sellerID, now)
	if err != nil {
		service.logger.Warn().Err(err).Str("seller_id", sellerID.String()).Msg("Listing validation failed")
		return nil, err
	}

	if err := service.listingRepo.Create(ctx, l); err != nil {
		service.logger.Error().Err(err).Str("listing_id", l.ID.String()).Msg("Failed to save listing")
		return nil, err
	}

	service.cacheListing(ctx, l)
	service.publishEvent(ctx, "marketplace.listing.created", outbound.Event{
		Type:      outbound.EventTypeListingCreated,
		ListingID: l.ID,
		Data: map[string]interface{}{
			"seller_id": l.SellerID,
			"item_id":   l.ItemID,
			"type":      string(l.Type),
			"price":     l.Price,
		},
		Timestamp: now.Unix(),
	})

	service.logger.Info().
		Str("listing_id", l.ID.String()).
		Str("type", string(l.Type)).
		Msg("Listing created successfully")

	return l, nil
}

// buildListing runs the creation checks in order and assembles the entity.
func (service *ListingService) buildListing(req inbound.CreateListingRequest, sellerID uuid.UUID, now time.Time) (*listing.Listing, error) {
	if req.ItemID == "" {
		return nil, shared.NewValidationError("item_id", "item reference is required")
	}
	if len(req.Images) == 0 {
		return nil, shared.NewValidationError("images", "at least one image is required")
	}
	if req.Size == "" {
		return nil, shared.NewValidationError("size", "size is required")
	}
	if req.Condition < listing.MinCondition || req.Condition > listing.MaxCondition {
		return nil, shared.NewValidationError("condition", "condition must be between 1 and 10")
	}
	if req.Price <= 0 {
		return nil, shared.NewValidationError("price", "price must be greater than 0")
	}

	l := &listing.Listing{
		ID:        uuid.New(),
		SellerID:  sellerID,
		ItemID:    req.ItemID,
		Images:    req.Images,
		Size:      req.Size,
		Condition: req.Condition,
		Type:      req.Type,
		Status:    listing.StatusActive,
		Price:     req.Price,
		CreatedAt: now,
		UpdatedAt: now,
	}

	switch req.Type {
	case listing.TypeSale:
		// no type-specific fields

	case listing.TypeRent:
		if req.RentPrice <= 0 {
			return nil, shared.NewValidationError("rent_price", "rent price must be greater than 0")
		}
		if req.RentDeposit <= 0 {
			return nil, shared.NewValidationError("rent_deposit", "rent deposit must be greater than 0")
		}
		from, err := time.Parse(time.RFC3339, req.RentAvailableFrom)
		if err != nil {
			return nil, shared.NewValidationError("rent_available_from", "must be a valid RFC3339 timestamp")
		}
		to, err := time.Parse(time.RFC3339, req.RentAvailableTo)
		if err != nil {
			return nil, shared.NewValidationError("rent_available_to", "must be a valid RFC3339 timestamp")
		}
		if !from.Before(to) {
			return nil, shared.NewValidationError("rent_available_to", "availability window must end after it starts")
		}
		l.RentPrice = req.RentPrice
		l.RentDeposit = req.RentDeposit
		l.RentAvailableFrom = from
		l.RentAvailableTo = to

	case listing.TypeAuction:
		endTime, err := time.Parse(time.RFC3339, req.BidEndTime)
		if err != nil {
			return nil, shared.NewValidationError("bid_end_time", "must be a valid RFC3339 timestamp")
		}
		if !endTime.After(now) {
			return nil, shared.NewValidationError("bid_end_time", "auction end time must be in the future")
		}
		l.CurrentBid = req.Price
		l.BidEndTime = endTime
		l.BidHistory = []*bid.Bid{}

	default:
		return nil, shared.NewValidationError("type", "type must be one of sale, rent, auction")
	}

	return l, nil
}

// GetListing retrieves a listing by ID
func (service *ListingService) GetListing(ctx context.Context, listingID uuid.UUID) (*listing.Listing, error) {
	if service.cache != nil {
		cached, err := service.cache.Get(ctx, listingID)
		if err != nil {
			service.logger.Warn().Err(err).Str("listing_id", listingID.String()).Msg("Listing cache read failed")
		} else if cached != nil {
			service.logger.Debug().Str("listing_id", listingID.String()).Msg("Listing served from cache")
			return cached, nil
		}
	}

	l, err := service.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		service.logger.Debug().Err(err).Str("listing_id", listingID.String()).Msg("Failed to retrieve listing")
		return nil, err
	}

	service.cacheListing(ctx, l)
	return l, nil
}

// ListListings retrieves listings matching a filter
func (service *ListingService) ListListings(ctx context.Context, filter listing.Filter) ([]*listing.Listing, error) {
	return service.listingRepo.List(ctx, filter)
}

// ListBids retrieves the chronological bid history of a listing
func (service *ListingService) ListBids(ctx context.Context, listingID uuid.UUID) ([]*bid.Bid, error) {
	return service.listingRepo.ListBids(ctx, listingID)
}

// CompleteSale marks a sale listing as sold
func (service *ListingService) CompleteSale(ctx context.Context, listingID uuid.UUID) (*listing.Listing, error) {
	return service.transition(ctx, listingID, listing.TypeSale, listing.StatusSold)
}

// CompleteRent marks a rent listing as rented
func (service *ListingService) CompleteRent(ctx context.Context, listingID uuid.UUID) (*listing.Listing, error) {
	return service.transition(ctx, listingID, listing.TypeRent, listing.StatusRented)
}

// CloseListing closes an active listing of any type. This is how the
// surrounding application retires an auction whose window has elapsed;
// the core itself never originates the transition.
func (service *ListingService) CloseListing(ctx context.Context, listingID uuid.UUID) (*listing.Listing, error) {
	return service.transition(ctx, listingID, "", listing.StatusClosed)
}

// transition applies a terminal status change on behalf of the seller.
// An empty requiredType accepts any listing type.
func (service *ListingService) transition(ctx context.Context, listingID uuid.UUID, requiredType listing.Type, status listing.Status) (*listing.Listing, error) {
	userID, err := service.identity.CurrentUser(ctx)
	if err != nil {
		return nil, shared.ErrUnauthenticated
	}

	current, err := service.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}

	if current.SellerID != userID {
		service.logger.Warn().
			Str("listing_id", listingID.String()).
			Str("user_id", userID.String()).
			Msg("Status change attempted by non-seller")
		return nil, shared.ErrNotSeller
	}
	if requiredType != "" && current.Type != requiredType {
		return nil, shared.ErrInvalidStatusTransition
	}
	if !current.IsActive() {
		return nil, shared.ErrListingNotActive
	}

	now := service.now()
	updated, err := service.listingRepo.UpdateStatus(ctx, listingID, status, now)
	if err != nil {
		service.logger.Error().Err(err).Str("listing_id", listingID.String()).Msg("Failed to update listing status")
		return nil, err
	}

	service.cacheListing(ctx, updated)

	event := outbound.Event{
		Type:      outbound.EventTypeListingClosed,
		ListingID: updated.ID,
		Data: map[string]interface{}{
			"status": string(updated.Status),
		},
		Timestamp: now.Unix(),
	}
	if service.broadcaster != nil {
		if err := service.broadcaster.Publish(ctx, updated.ID, event); err != nil {
			service.logger.Error().Err(err).Str("listing_id", updated.ID.String()).Msg("Failed to broadcast status change")
		}
	}
	service.publishEvent(ctx, "marketplace.listing.closed", event)

	service.logger.Info().
		Str("listing_id", updated.ID.String()).
		Str("status", string(updated.Status)).
		Msg("Listing status updated")

	return updated, nil
}

// cacheListing refreshes the read cache, best effort.
func (service *ListingService) cacheListing(ctx context.Context, l *listing.Listing) {
	if service.cache == nil {
		return
	}
	if err := service.cache.Set(ctx, l); err != nil {
		service.logger.Warn().Err(err).Str("listing_id", l.ID.String()).Msg("Failed to cache listing")
	}
}

// publishEvent fans an event out to sibling services, best effort.
func (service *ListingService) publishEvent(ctx context.Context, subject string, event outbound.Event) {
	if service.publisher == nil {
		return
	}
	if err := service.publisher.Publish(ctx, subject, event); err != nil {
		service.logger.Error().Err(err).Str("subject", subject).Msg("Failed to publish marketplace event")
	}
}
