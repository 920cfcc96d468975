package listing

import (
	"testing"
	"time"

	"stitchd-marketplace-service/internal/domain/bid"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneIsIndependent(t *testing.T) {
	now := time.Now()
	l := &Listing{
		ID:         uuid.New(),
		SellerID:   uuid.New(),
		ItemID:     "item-1",
		Images:     []string{"a.jpg", "b.jpg"},
		Size:       "L",
		Condition:  9,
		Type:       TypeAuction,
		Status:     StatusActive,
		Price:      100,
		CurrentBid: 120,
		BidEndTime: now.Add(time.Hour),
		BidHistory: []*bid.Bid{bid.New(uuid.New(), uuid.New(), 120, now)},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	c := l.Clone()
	require.Equal(t, l.ID, c.ID)
	require.Len(t, c.BidHistory, 1)

	// Mutating the clone must not leak back into the original
	c.Images[0] = "tampered.jpg"
	c.BidHistory[0].Amount = 9999
	c.CurrentBid = 9999

	assert.Equal(t, "a.jpg", l.Images[0])
	assert.Equal(t, 120.0, l.BidHistory[0].Amount)
	assert.Equal(t, 120.0, l.CurrentBid)
}

func TestHighestBid(t *testing.T) {
	l := &Listing{Type: TypeAuction, Price: 100, CurrentBid: 100}
	assert.Nil(t, l.HighestBid())

	now := time.Now()
	l.ApplyBid(bid.New(l.ID, uuid.New(), 110, now))
	l.ApplyBid(bid.New(l.ID, uuid.New(), 130, now.Add(time.Minute)))

	require.NotNil(t, l.HighestBid())
	assert.Equal(t, 130.0, l.HighestBid().Amount)
	assert.Equal(t, 130.0, l.CurrentBid)
}

func TestBiddingOpen(t *testing.T) {
	now := time.Now()
	l := &Listing{BidEndTime: now.Add(time.Hour)}

	assert.True(t, l.BiddingOpen(now))
	assert.False(t, l.BiddingOpen(now.Add(time.Hour)))
	assert.False(t, l.BiddingOpen(now.Add(2*time.Hour)))
}

func TestFilterMatches(t *testing.T) {
	seller := uuid.New()
	l := &Listing{SellerID: seller, Type: TypeRent, Status: StatusActive}

	assert.True(t, Filter{}.Matches(l))

	rent := TypeRent
	sale := TypeSale
	assert.True(t, Filter{Type: &rent}.Matches(l))
	assert.False(t, Filter{Type: &sale}.Matches(l))

	active := StatusActive
	sold := StatusSold
	assert.True(t, Filter{Status: &active}.Matches(l))
	assert.False(t, Filter{Status: &sold}.Matches(l))

	other := uuid.New()
	assert.True(t, Filter{SellerID: &seller}.Matches(l))
	assert.False(t, Filter{SellerID: &other}.Matches(l))

	assert.True(t, Filter{Type: &rent, Status: &active, SellerID: &seller}.Matches(l))
}
