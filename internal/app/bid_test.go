package app

import (
	"context"
	"testing"
	"time"

	"stitchd-marketplace-service/internal/domain/shared"
	"stitchd-marketplace-service/internal/ports/inbound"
	"stitchd-marketplace-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingBroadcaster counts calls; events go nowhere.
type recordingBroadcaster struct {
	subscribes int
	publishes  int
}

func (b *recordingBroadcaster) Subscribe(ctx context.Context, listingID uuid.UUID, clientID string, eventChan chan outbound.Event) error {
	b.subscribes++
	return nil
}

func (b *recordingBroadcaster) Unsubscribe(ctx context.Context, listingID uuid.UUID, clientID string) error {
	return nil
}

func (b *recordingBroadcaster) Publish(ctx context.Context, listingID uuid.UUID, event outbound.Event) error {
	b.publishes++
	return nil
}

func (b *recordingBroadcaster) GetSubscribers(ctx context.Context, listingID uuid.UUID) ([]string, error) {
	return nil, nil
}

func (b *recordingBroadcaster) IsSubscribed(ctx context.Context, listingID uuid.UUID, clientID string) bool {
	return false
}

func TestPlaceBidOnAuction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.listings.CreateListing(ctx, auctionRequest(env.clock.now.Add(time.Hour)))
	require.NoError(t, err)

	// Below the minimum increment over the starting price
	_, _, err = env.bids.PlaceBid(ctx, inbound.PlaceBidRequest{ListingID: created.ID, Amount: 105})
	var tooLow *shared.BidTooLowError
	require.ErrorAs(t, err, &tooLow)
	assert.Equal(t, 110.0, tooLow.MinimumAcceptable)

	// Exactly the minimum succeeds
	updated, accepted, err := env.bids.PlaceBid(ctx, inbound.PlaceBidRequest{ListingID: created.ID, Amount: 110})
	require.NoError(t, err)
	assert.Equal(t, 110.0, updated.CurrentBid)
	assert.Equal(t, 110.0, accepted.Amount)
	assert.Equal(t, env.identity.userID, accepted.UserID)
	require.Len(t, updated.BidHistory, 1)

	bids, err := env.listings.ListBids(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, bids, 1)
	assert.Equal(t, accepted.ID, bids[0].ID)
}

func TestPlaceBidOnSaleListing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.listings.CreateListing(ctx, saleRequest())
	require.NoError(t, err)

	_, _, err = env.bids.PlaceBid(ctx, inbound.PlaceBidRequest{ListingID: created.ID, Amount: 500})
	assert.ErrorIs(t, err, shared.ErrWrongListingType)
}

func TestPlaceBidAfterAuctionExpires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.listings.CreateListing(ctx, auctionRequest(env.clock.now.Add(time.Hour)))
	require.NoError(t, err)

	// Valid while the window is open
	_, _, err = env.bids.PlaceBid(ctx, inbound.PlaceBidRequest{ListingID: created.ID, Amount: 110})
	require.NoError(t, err)

	// The same auction rejects bids once the deadline passes, with no
	// background process involved
	env.clock.Advance(2 * time.Hour)
	_, _, err = env.bids.PlaceBid(ctx, inbound.PlaceBidRequest{ListingID: created.ID, Amount: 1000})
	assert.ErrorIs(t, err, shared.ErrAuctionExpired)

	// Committed state survives the rejection
	got, err := env.listings.GetListing(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 110.0, got.CurrentBid)
	assert.Len(t, got.BidHistory, 1)
}

func TestPlaceBidRequiresAuthentication(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.listings.CreateListing(ctx, auctionRequest(env.clock.now.Add(time.Hour)))
	require.NoError(t, err)

	env.identity.userID = uuid.Nil
	_, _, err = env.bids.PlaceBid(ctx, inbound.PlaceBidRequest{ListingID: created.ID, Amount: 110})
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestPlaceBidBroadcastsWithoutSubscribing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.listings.CreateListing(ctx, auctionRequest(env.clock.now.Add(time.Hour)))
	require.NoError(t, err)

	recorder := &recordingBroadcaster{}
	bids := NewBidService(BidServiceParams{
		ListingRepo: env.repo,
		Identity:    env.identity,
		Broadcaster: recorder,
		Now:         env.clock.Now,
		Logger:      zerolog.Nop(),
	})

	_, _, err = bids.PlaceBid(ctx, inbound.PlaceBidRequest{ListingID: created.ID, Amount: 110})
	require.NoError(t, err)

	// The bid event fans out to existing subscribers; managing channel
	// subscriptions is the transport's job, not the service's
	assert.Equal(t, 1, recorder.publishes)
	assert.Equal(t, 0, recorder.subscribes)
}

func TestPlaceBidOnUnknownListing(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.bids.PlaceBid(context.Background(), inbound.PlaceBidRequest{ListingID: uuid.New(), Amount: 110})
	assert.ErrorIs(t, err, shared.ErrListingNotFound)
}
