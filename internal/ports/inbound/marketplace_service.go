package inbound

import (
	"context"

	"stitchd-marketplace-service/internal/domain/bid"
	"stitchd-marketplace-service/internal/domain/listing"

	"github.com/google/uuid"
)

// ListingService defines the interface for listing operations
type ListingService interface {
	// CreateListing validates and creates a new listing for the acting user
	CreateListing(ctx context.Context, req CreateListingRequest) (*listing.Listing, error)

	// GetListing retrieves a listing by ID
	GetListing(ctx context.Context, listingID uuid.UUID) (*listing.Listing, error)

	// ListListings retrieves listings matching a filter
	ListListings(ctx context.Context, filter listing.Filter) ([]*listing.Listing, error)

	// ListBids retrieves the chronological bid history of a listing
	ListBids(ctx context.Context, listingID uuid.UUID) ([]*bid.Bid, error)

	// CompleteSale marks a sale listing as sold
	CompleteSale(ctx context.Context, listingID uuid.UUID) (*listing.Listing, error)

	// CompleteRent marks a rent listing as rented
	CompleteRent(ctx context.Context, listingID uuid.UUID) (*listing.Listing, error)

	// CloseListing closes an active listing of any type
	CloseListing(ctx context.Context, listingID uuid.UUID) (*listing.Listing, error)
}

// BidService defines the interface for bid operations
type BidService interface {
	// PlaceBid places a new bid on an auction listing for the acting user.
	// On success it returns the updated listing and the accepted bid.
	PlaceBid(ctx context.Context, req PlaceBidRequest) (*listing.Listing, *bid.Bid, error)
}

// request to create a listing; times are RFC3339 strings
type CreateListingRequest struct {
	ItemID    string       `json:"item_id"`
	Images    []string     `json:"images"`
	Size      string       `json:"size"`
	Condition int          `json:"condition"`
	Type      listing.Type `json:"type"`
	Price     float64      `json:"price"`

	// Rent-only fields
	RentPrice         float64 `json:"rent_price,omitempty"`
	RentDeposit       float64 `json:"rent_deposit,omitempty"`
	RentAvailableFrom string  `json:"rent_available_from,omitempty"`
	RentAvailableTo   string  `json:"rent_available_to,omitempty"`

	// Auction-only fields
	BidEndTime string `json:"bid_end_time,omitempty"`
}

// request to place a bid
type PlaceBidRequest struct {
	ListingID uuid.UUID `json:"listing_id"`
	Amount    float64   `json:"amount"`
}
