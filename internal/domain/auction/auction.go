package auction

import (
	"time"

	"stitchd-marketplace-service/internal/domain/bid"
	"stitchd-marketplace-service/internal/domain/listing"
	"stitchd-marketplace-service/internal/domain/shared"

	"github.com/google/uuid"
)

// MinIncrement is the fixed amount a new bid must exceed the current bid
// by, in currency units.
const MinIncrement = 10.0

// MinimumAcceptable returns the lowest amount the next bid may carry.
func MinimumAcceptable(l *listing.Listing) float64 {
	return l.CurrentBid + MinIncrement
}

// Accept runs the bid-acceptance state machine against a listing.
//
// On success the listing is mutated in place: the new bid is appended to
// the history, the current bid advances, and the update timestamp is
// refreshed. On rejection the listing is untouched and one of the domain
// errors is returned.
//
// Expiry is checked lazily at bid time. A listing whose window has
// elapsed but has received no further bids stays formally active until
// the next bid attempt or an external close.
func Accept(l *listing.Listing, userID uuid.UUID, amount float64, now time.Time) (*bid.Bid, error) {
	if !l.IsAuction() {
		return nil, shared.ErrWrongListingType
	}
	if !l.IsActive() {
		return nil, shared.ErrListingNotActive
	}
	if !l.BiddingOpen(now) {
		return nil, shared.ErrAuctionExpired
	}

	minimum := MinimumAcceptable(l)
	if amount < minimum {
		return nil, &shared.BidTooLowError{MinimumAcceptable: minimum}
	}

	// History timestamps never go backwards. Concurrent callers sample
	// their clocks before the listing lock is taken, so a bid committing
	// second can carry an earlier instant; clamp it to the history.
	if last := l.HighestBid(); last != nil && now.Before(last.CreatedAt) {
		now = last.CreatedAt
	}

	b := bid.New(l.ID, userID, amount, now)
	l.ApplyBid(b)
	return b, nil
}
