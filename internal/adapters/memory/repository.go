package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"stitchd-marketplace-service/internal/domain/auction"
	"stitchd-marketplace-service/internal/domain/bid"
	"stitchd-marketplace-service/internal/domain/listing"
	"stitchd-marketplace-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Repository is an in-memory listing repository. Mutations on a listing
// are serialized through a per-listing lock; mutations on different
// listings proceed in parallel. All returned values are snapshots.
type Repository struct {
	mu       sync.RWMutex
	listings map[uuid.UUID]*entry
	logger   zerolog.Logger
}

// entry pairs a stored listing with its write lock. The stored value is
// replaced wholesale on every committed mutation so readers holding the
// read lock never observe a half-applied bid.
type entry struct {
	mu      sync.RWMutex
	listing *listing.Listing
}

type RepositoryParams struct {
	Logger zerolog.Logger
}

// NewRepository creates an empty in-memory repository
func NewRepository(params RepositoryParams) *Repository {
	return &Repository{
		listings: make(map[uuid.UUID]*entry),
		logger:   params.Logger.With().Str("component", "memory_repository").Logger(),
	}
}

// Create stores a snapshot of a new listing
func (r *Repository) Create(ctx context.Context, l *listing.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.listings[l.ID] = &entry{listing: l.Clone()}

	r.logger.Debug().Str("listing_id", l.ID.String()).Str("type", string(l.Type)).Msg("Listing stored")
	return nil
}

// GetByID retrieves a snapshot of a listing by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*listing.Listing, error) {
	e, err := r.entryByID(id)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.listing.Clone(), nil
}

// List retrieves snapshots of listings matching the filter, ordered by
// creation time with listing ID as tie-breaker
func (r *Repository) List(ctx context.Context, filter listing.Filter) ([]*listing.Listing, error) {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.listings))
	for _, e := range r.listings {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	var result []*listing.Listing
	for _, e := range entries {
		e.mu.RLock()
		if filter.Matches(e.listing) {
			result = append(result, e.listing.Clone())
		}
		e.mu.RUnlock()
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() < result[j].ID.String()
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

// ListBids retrieves a listing's bid history in chronological order
func (r *Repository) ListBids(ctx context.Context, listingID uuid.UUID) ([]*bid.Bid, error) {
	e, err := r.entryByID(listingID)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	bids := make([]*bid.Bid, 0, len(e.listing.BidHistory))
	for _, b := range e.listing.BidHistory {
		bc := *b
		bids = append(bids, &bc)
	}
	return bids, nil
}

// PlaceBid runs the acceptance state machine under the per-listing lock
// and commits the bid and updated listing together. Concurrent bids on
// the same listing are totally ordered by commit order: the second bid
// is evaluated against the current bid the first one just set.
func (r *Repository) PlaceBid(ctx context.Context, listingID, userID uuid.UUID, amount float64, now time.Time) (*listing.Listing, *bid.Bid, error) {
	e, err := r.entryByID(listingID)
	if err != nil {
		return nil, nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.listing.Clone()
	accepted, err := auction.Accept(next, userID, amount, now)
	if err != nil {
		return nil, nil, err
	}

	e.listing = next

	r.logger.Debug().
		Str("listing_id", listingID.String()).
		Str("bid_id", accepted.ID.String()).
		Float64("amount", amount).
		Msg("Bid committed")

	bc := *accepted
	return next.Clone(), &bc, nil
}

// UpdateStatus applies a terminal status transition under the
// per-listing lock. The ACTIVE check runs under the same lock, so a
// listing that lost a race to another transition stays in the state the
// winner committed.
func (r *Repository) UpdateStatus(ctx context.Context, listingID uuid.UUID, status listing.Status, now time.Time) (*listing.Listing, error) {
	e, err := r.entryByID(listingID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.listing.IsActive() {
		return nil, shared.ErrListingNotActive
	}

	next := e.listing.Clone()
	next.SetStatus(status, now)
	e.listing = next

	return next.Clone(), nil
}

func (r *Repository) entryByID(id uuid.UUID) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.listings[id]
	if !ok {
		return nil, shared.ErrListingNotFound
	}
	return e, nil
}
