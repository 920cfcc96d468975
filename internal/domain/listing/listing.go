package listing

import (
	"time"

	"stitchd-marketplace-service/internal/domain/bid"

	"github.com/google/uuid"
)

// Type represents how an item is offered on the marketplace.
type Type string

const (
	TypeSale    Type = "sale"
	TypeRent    Type = "rent"
	TypeAuction Type = "auction"
)

// Status represents the lifecycle state of a listing.
type Status string

const (
	StatusActive Status = "active"
	StatusSold   Status = "sold"
	StatusRented Status = "rented"
	StatusClosed Status = "closed"
)

// Condition bounds for listed items. 10 means pristine/unused.
const (
	MinCondition = 1
	MaxCondition = 10
)

// Listing represents an offer for an item. Exactly one of the rent or
// auction field groups is populated, matching Type.
type Listing struct {
	ID        uuid.UUID `json:"id"`
	SellerID  uuid.UUID `json:"seller_id"`
	ItemID    string    `json:"item_id"`
	Images    []string  `json:"images"`
	Size      string    `json:"size"`
	Condition int       `json:"condition"`
	Type      Type      `json:"type"`
	Status    Status    `json:"status"`
	Price     float64   `json:"price"`

	// Rent-only fields
	RentPrice         float64   `json:"rent_price,omitempty"`
	RentDeposit       float64   `json:"rent_deposit,omitempty"`
	RentAvailableFrom time.Time `json:"rent_available_from,omitempty"`
	RentAvailableTo   time.Time `json:"rent_available_to,omitempty"`

	// Auction-only fields
	CurrentBid float64    `json:"current_bid,omitempty"`
	BidEndTime time.Time  `json:"bid_end_time,omitempty"`
	BidHistory []*bid.Bid `json:"bid_history,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive returns true if the listing is currently active.
func (l *Listing) IsActive() bool {
	return l.Status == StatusActive
}

// IsAuction returns true if the listing accepts bids.
func (l *Listing) IsAuction() bool {
	return l.Type == TypeAuction
}

// BiddingOpen returns true if the auction window is still open at the
// given instant. The check is strict: a bid arriving exactly at the end
// time is too late.
func (l *Listing) BiddingOpen(now time.Time) bool {
	return now.Before(l.BidEndTime)
}

// HighestBid returns the last accepted bid, or nil if there are none.
func (l *Listing) HighestBid() *bid.Bid {
	if len(l.BidHistory) == 0 {
		return nil
	}
	return l.BidHistory[len(l.BidHistory)-1]
}

// ApplyBid appends an accepted bid and advances the current bid. The
// caller is responsible for having validated the bid first.
func (l *Listing) ApplyBid(b *bid.Bid) {
	l.BidHistory = append(l.BidHistory, b)
	l.CurrentBid = b.Amount
	l.UpdatedAt = b.CreatedAt
}

// SetStatus applies a terminal status transition.
func (l *Listing) SetStatus(status Status, now time.Time) {
	l.Status = status
	l.UpdatedAt = now
}

// Clone returns a deep copy of the listing. Repositories hand out clones
// so that callers can never mutate stored state through a returned value.
func (l *Listing) Clone() *Listing {
	c := *l
	if l.Images != nil {
		c.Images = make([]string, len(l.Images))
		copy(c.Images, l.Images)
	}
	if l.BidHistory != nil {
		c.BidHistory = make([]*bid.Bid, len(l.BidHistory))
		for i, b := range l.BidHistory {
			bc := *b
			c.BidHistory[i] = &bc
		}
	}
	return &c
}

// Filter narrows listing reads. Nil fields match everything.
type Filter struct {
	Type     *Type
	Status   *Status
	SellerID *uuid.UUID
}

// Matches reports whether a listing satisfies the filter.
func (f Filter) Matches(l *Listing) bool {
	if f.Type != nil && l.Type != *f.Type {
		return false
	}
	if f.Status != nil && l.Status != *f.Status {
		return false
	}
	if f.SellerID != nil && l.SellerID != *f.SellerID {
		return false
	}
	return true
}
