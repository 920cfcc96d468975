package bid

import (
	"time"

	"github.com/google/uuid"
)

// Bid represents an accepted monetary offer against an auction listing.
// Bids are append-only: once part of a listing's history they are never
// modified or removed.
type Bid struct {
	ID        uuid.UUID `json:"id"`
	ListingID uuid.UUID `json:"listing_id"`
	UserID    uuid.UUID `json:"user_id"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// New creates an accepted bid for a listing.
func New(listingID, userID uuid.UUID, amount float64, now time.Time) *Bid {
	return &Bid{
		ID:        uuid.New(),
		ListingID: listingID,
		UserID:    userID,
		Amount:    amount,
		CreatedAt: now,
	}
}
