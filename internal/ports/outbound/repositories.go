package outbound

import (
	"context"
	"time"

	"stitchd-marketplace-service/internal/domain/bid"
	"stitchd-marketplace-service/internal/domain/listing"

	"github.com/google/uuid"
)

// ListingRepository is the sole authority over listing and bid storage.
// Implementations return snapshots, never live references, and serialize
// mutations per listing so that concurrent bids are totally ordered.
type ListingRepository interface {
	// Create stores a new listing
	Create(ctx context.Context, l *listing.Listing) error

	// GetByID retrieves a listing by ID
	GetByID(ctx context.Context, id uuid.UUID) (*listing.Listing, error)

	// List retrieves listings matching a filter, in an order that is
	// stable across repeated reads absent mutation
	List(ctx context.Context, filter listing.Filter) ([]*listing.Listing, error)

	// ListBids retrieves a listing's bid history in chronological order
	ListBids(ctx context.Context, listingID uuid.UUID) ([]*bid.Bid, error)

	// PlaceBid runs the bid-acceptance state machine against the stored
	// listing and commits the bid and updated listing atomically. Bids on
	// the same listing are serialized; either both records are committed
	// or neither is.
	PlaceBid(ctx context.Context, listingID, userID uuid.UUID, amount float64, now time.Time) (*listing.Listing, *bid.Bid, error)

	// UpdateStatus applies an externally-originated terminal transition
	UpdateStatus(ctx context.Context, listingID uuid.UUID, status listing.Status, now time.Time) (*listing.Listing, error)
}

// IdentityResolver supplies the acting user's identity. It is owned by the
// authentication subsystem; this core only consumes it.
type IdentityResolver interface {
	// CurrentUser returns the acting user's ID, or ErrUnauthenticated
	CurrentUser(ctx context.Context) (uuid.UUID, error)
}

// ListingCache is a read-side snapshot cache for listings. A miss returns
// (nil, nil); the cache is never authoritative.
type ListingCache interface {
	Get(ctx context.Context, id uuid.UUID) (*listing.Listing, error)
	Set(ctx context.Context, l *listing.Listing) error
	Delete(ctx context.Context, id uuid.UUID) error
}
