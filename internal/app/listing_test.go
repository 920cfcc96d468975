package app

import (
	"context"
	"testing"
	"time"

	"stitchd-marketplace-service/internal/adapters/memory"
	"stitchd-marketplace-service/internal/domain/listing"
	"stitchd-marketplace-service/internal/domain/shared"
	"stitchd-marketplace-service/internal/ports/inbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticIdentity resolves every call to a fixed user, or fails when the
// user is unset.
type staticIdentity struct {
	userID uuid.UUID
}

func (s *staticIdentity) CurrentUser(ctx context.Context) (uuid.UUID, error) {
	if s.userID == uuid.Nil {
		return uuid.Nil, shared.ErrUnauthenticated
	}
	return s.userID, nil
}

// fakeClock returns a controllable now function.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type testEnv struct {
	repo     *memory.Repository
	identity *staticIdentity
	clock    *fakeClock
	listings *ListingService
	bids     *BidService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := memory.NewRepository(memory.RepositoryParams{Logger: zerolog.Nop()})
	ident := &staticIdentity{userID: uuid.New()}
	clock := &fakeClock{now: time.Now().Truncate(time.Second)}

	return &testEnv{
		repo:     repo,
		identity: ident,
		clock:    clock,
		listings: NewListingService(ListingServiceParams{
			ListingRepo: repo,
			Identity:    ident,
			Now:         clock.Now,
			Logger:      zerolog.Nop(),
		}),
		bids: NewBidService(BidServiceParams{
			ListingRepo: repo,
			Identity:    ident,
			Now:         clock.Now,
			Logger:      zerolog.Nop(),
		}),
	}
}

func saleRequest() inbound.CreateListingRequest {
	return inbound.CreateListingRequest{
		ItemID:    "item-1",
		Images:    []string{"front.jpg"},
		Size:      "M",
		Condition: 8,
		Type:      listing.TypeSale,
		Price:     100,
	}
}

func auctionRequest(endTime time.Time) inbound.CreateListingRequest {
	req := saleRequest()
	req.Type = listing.TypeAuction
	req.BidEndTime = endTime.Format(time.RFC3339)
	return req
}

func rentRequest(from, to time.Time) inbound.CreateListingRequest {
	req := saleRequest()
	req.Type = listing.TypeRent
	req.RentPrice = 20
	req.RentDeposit = 50
	req.RentAvailableFrom = from.Format(time.RFC3339)
	req.RentAvailableTo = to.Format(time.RFC3339)
	return req
}

func TestCreateSaleListing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.listings.CreateListing(ctx, saleRequest())
	require.NoError(t, err)
	assert.Equal(t, env.identity.userID, created.SellerID)
	assert.Equal(t, listing.StatusActive, created.Status)
	assert.Equal(t, listing.TypeSale, created.Type)
	assert.Equal(t, 0.0, created.CurrentBid)
	assert.Nil(t, created.BidHistory)

	got, err := env.listings.GetListing(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestCreateAuctionListing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.listings.CreateListing(ctx, auctionRequest(env.clock.now.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, listing.TypeAuction, created.Type)
	assert.Equal(t, created.Price, created.CurrentBid)
	assert.NotNil(t, created.BidHistory)
	assert.Empty(t, created.BidHistory)
}

func TestCreateRentListing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	from := env.clock.now.Add(24 * time.Hour)
	to := from.Add(7 * 24 * time.Hour)
	created, err := env.listings.CreateListing(ctx, rentRequest(from, to))
	require.NoError(t, err)
	assert.Equal(t, listing.TypeRent, created.Type)
	assert.Equal(t, 20.0, created.RentPrice)
	assert.Equal(t, 50.0, created.RentDeposit)
	assert.True(t, created.RentAvailableFrom.Before(created.RentAvailableTo))
}

func TestCreateListingRequiresAuthentication(t *testing.T) {
	env := newTestEnv(t)
	env.identity.userID = uuid.Nil

	_, err := env.listings.CreateListing(context.Background(), saleRequest())
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestCreateListingValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := env.clock.now

	tests := []struct {
		name   string
		mutate func(req *inbound.CreateListingRequest)
		field  string
	}{
		{"missing item", func(r *inbound.CreateListingRequest) { r.ItemID = "" }, "item_id"},
		{"no images", func(r *inbound.CreateListingRequest) { r.Images = nil }, "images"},
		{"missing size", func(r *inbound.CreateListingRequest) { r.Size = "" }, "size"},
		{"condition too low", func(r *inbound.CreateListingRequest) { r.Condition = 0 }, "condition"},
		{"condition too high", func(r *inbound.CreateListingRequest) { r.Condition = 11 }, "condition"},
		{"zero price", func(r *inbound.CreateListingRequest) { r.Price = 0 }, "price"},
		{"negative price", func(r *inbound.CreateListingRequest) { r.Price = -5 }, "price"},
		{"unknown type", func(r *inbound.CreateListingRequest) { r.Type = "swap" }, "type"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := saleRequest()
			tc.mutate(&req)

			_, err := env.listings.CreateListing(ctx, req)
			var vErr *shared.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.field, vErr.Field)
		})
	}

	t.Run("rent fields", func(t *testing.T) {
		from := now.Add(24 * time.Hour)
		to := from.Add(48 * time.Hour)

		req := rentRequest(from, to)
		req.RentPrice = 0
		_, err := env.listings.CreateListing(ctx, req)
		var vErr *shared.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "rent_price", vErr.Field)

		req = rentRequest(from, to)
		req.RentDeposit = 0
		_, err = env.listings.CreateListing(ctx, req)
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "rent_deposit", vErr.Field)

		req = rentRequest(from, to)
		req.RentAvailableTo = "not-a-timestamp"
		_, err = env.listings.CreateListing(ctx, req)
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "rent_available_to", vErr.Field)

		// window must end after it starts
		req = rentRequest(to, from)
		_, err = env.listings.CreateListing(ctx, req)
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "rent_available_to", vErr.Field)
	})

	t.Run("auction fields", func(t *testing.T) {
		req := auctionRequest(now.Add(time.Hour))
		req.BidEndTime = "garbage"
		_, err := env.listings.CreateListing(ctx, req)
		var vErr *shared.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "bid_end_time", vErr.Field)

		// end time in the past
		req = auctionRequest(now.Add(-time.Hour))
		_, err = env.listings.CreateListing(ctx, req)
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "bid_end_time", vErr.Field)
	})
}

func TestListListingsWithFilter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.listings.CreateListing(ctx, saleRequest())
	require.NoError(t, err)
	env.clock.Advance(time.Second)
	_, err = env.listings.CreateListing(ctx, auctionRequest(env.clock.now.Add(time.Hour)))
	require.NoError(t, err)

	all, err := env.listings.ListListings(ctx, listing.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.True(t, all[0].CreatedAt.Before(all[1].CreatedAt))

	saleType := listing.TypeSale
	sales, err := env.listings.ListListings(ctx, listing.Filter{Type: &saleType})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, listing.TypeSale, sales[0].Type)
}

func TestCompleteSale(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.listings.CreateListing(ctx, saleRequest())
	require.NoError(t, err)

	sold, err := env.listings.CompleteSale(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, listing.StatusSold, sold.Status)

	// Terminal states are final
	_, err = env.listings.CompleteSale(ctx, created.ID)
	assert.ErrorIs(t, err, shared.ErrListingNotActive)
}

func TestCompleteRentRejectsWrongType(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.listings.CreateListing(ctx, saleRequest())
	require.NoError(t, err)

	_, err = env.listings.CompleteRent(ctx, created.ID)
	assert.ErrorIs(t, err, shared.ErrInvalidStatusTransition)
}

func TestCloseListingRequiresSeller(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.listings.CreateListing(ctx, saleRequest())
	require.NoError(t, err)

	env.identity.userID = uuid.New()
	_, err = env.listings.CloseListing(ctx, created.ID)
	assert.ErrorIs(t, err, shared.ErrNotSeller)
}

func TestCloseListingAnyType(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.listings.CreateListing(ctx, auctionRequest(env.clock.now.Add(time.Hour)))
	require.NoError(t, err)

	closed, err := env.listings.CloseListing(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, listing.StatusClosed, closed.Status)
}
