package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"stitchd-marketplace-service/internal/domain/auction"
	"stitchd-marketplace-service/internal/domain/bid"
	"stitchd-marketplace-service/internal/domain/listing"
	"stitchd-marketplace-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const listingColumns = `id, seller_id, item_id, images, size, condition, type, status, price,
	rent_price, rent_deposit, rent_available_from, rent_available_to,
	current_bid, bid_end_time, created_at, updated_at`

// ListingRepository implements the listing repository interface on
// PostgreSQL. Listings live in one row per listing; bids live in a
// secondary table keyed by (listing_id, created_at) so history reloads
// in chronological order. Per-listing serialization is provided by
// SELECT ... FOR UPDATE inside a transaction.
type ListingRepository struct {
	conn *Connection
}

// NewListingRepository creates a new listing repository
func NewListingRepository(conn *Connection) *ListingRepository {
	return &ListingRepository{conn: conn}
}

// Create creates a new listing
func (r *ListingRepository) Create(ctx context.Context, l *listing.Listing) error {
	query := `
		INSERT INTO listings (` + listingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		l.ID,
		l.SellerID,
		l.ItemID,
		pq.Array(l.Images),
		l.Size,
		l.Condition,
		l.Type,
		l.Status,
		l.Price,
		nullFloat(l.RentPrice, l.Type == listing.TypeRent),
		nullFloat(l.RentDeposit, l.Type == listing.TypeRent),
		nullTime(l.RentAvailableFrom, l.Type == listing.TypeRent),
		nullTime(l.RentAvailableTo, l.Type == listing.TypeRent),
		nullFloat(l.CurrentBid, l.Type == listing.TypeAuction),
		nullTime(l.BidEndTime, l.Type == listing.TypeAuction),
		l.CreatedAt,
		l.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}

	return nil
}

// GetByID retrieves a listing by ID, including its bid history for
// auction listings
func (r *ListingRepository) GetByID(ctx context.Context, id uuid.UUID) (*listing.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`

	l, err := scanListing(r.conn.GetDB().QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}

	if l.IsAuction() {
		bids, err := r.ListBids(ctx, l.ID)
		if err != nil {
			return nil, err
		}
		l.BidHistory = bids
	}

	return l, nil
}

// List retrieves listings matching the filter, ordered by creation time
// with listing ID as tie-breaker so repeated reads are stable
func (r *ListingRepository) List(ctx context.Context, filter listing.Filter) ([]*listing.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings`

	var clauses []string
	var args []interface{}

	if filter.Type != nil {
		args = append(args, *filter.Type)
		clauses = append(clauses, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.SellerID != nil {
		args = append(args, *filter.SellerID)
		clauses = append(clauses, fmt.Sprintf("seller_id = $%d", len(args)))
	}

	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := r.conn.GetDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()

	var listings []*listing.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listings: %w", err)
	}

	for _, l := range listings {
		if l.IsAuction() {
			bids, err := r.ListBids(ctx, l.ID)
			if err != nil {
				return nil, err
			}
			l.BidHistory = bids
		}
	}

	return listings, nil
}

// ListBids retrieves a listing's bid history in chronological order.
// Amounts increase strictly with commit order, so they break ties
// between bids carrying the same timestamp.
func (r *ListingRepository) ListBids(ctx context.Context, listingID uuid.UUID) ([]*bid.Bid, error) {
	query := `
		SELECT id, listing_id, user_id, amount, created_at
		FROM bids
		WHERE listing_id = $1
		ORDER BY created_at ASC, amount ASC
	`

	rows, err := r.conn.GetDB().QueryContext(ctx, query, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bids: %w", err)
	}
	defer rows.Close()

	bids := []*bid.Bid{}
	for rows.Next() {
		var b bid.Bid
		err := rows.Scan(&b.ID, &b.ListingID, &b.UserID, &b.Amount, &b.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, &b)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}

	return bids, nil
}

// PlaceBid locks the listing row, runs the acceptance state machine, and
// commits the bid and updated listing in the same transaction. Either
// both records are committed or neither is.
func (r *ListingRepository) PlaceBid(ctx context.Context, listingID, userID uuid.UUID, amount float64, now time.Time) (*listing.Listing, *bid.Bid, error) {
	var updated *listing.Listing
	var accepted *bid.Bid

	err := r.conn.ExecuteTransaction(func(tx *sql.Tx) error {
		query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1 FOR UPDATE`

		l, err := scanListing(tx.QueryRowContext(ctx, query, listingID))
		if err != nil {
			return err
		}

		if l.IsAuction() {
			bids, err := listBidsTx(ctx, tx, listingID)
			if err != nil {
				return err
			}
			l.BidHistory = bids
		}

		b, err := auction.Accept(l, userID, amount, now)
		if err != nil {
			return err
		}

		insertBid := `
			INSERT INTO bids (id, listing_id, user_id, amount, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`
		if _, err := tx.ExecContext(ctx, insertBid, b.ID, b.ListingID, b.UserID, b.Amount, b.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert bid: %w", err)
		}

		updateListing := `
			UPDATE listings SET current_bid = $2, updated_at = $3 WHERE id = $1
		`
		if _, err := tx.ExecContext(ctx, updateListing, l.ID, l.CurrentBid, l.UpdatedAt); err != nil {
			return fmt.Errorf("failed to update listing: %w", err)
		}

		updated = l
		accepted = b
		return nil
	})

	if err != nil {
		return nil, nil, err
	}

	return updated, accepted, nil
}

// UpdateStatus applies a terminal status transition under the listing
// row lock. The ACTIVE check runs against the locked row, so racing
// transitions cannot overwrite each other's terminal state.
func (r *ListingRepository) UpdateStatus(ctx context.Context, listingID uuid.UUID, status listing.Status, now time.Time) (*listing.Listing, error) {
	var updated *listing.Listing

	err := r.conn.ExecuteTransaction(func(tx *sql.Tx) error {
		query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1 FOR UPDATE`

		l, err := scanListing(tx.QueryRowContext(ctx, query, listingID))
		if err != nil {
			return err
		}

		if !l.IsActive() {
			return shared.ErrListingNotActive
		}

		l.SetStatus(status, now)

		update := `UPDATE listings SET status = $2, updated_at = $3 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, update, l.ID, l.Status, l.UpdatedAt); err != nil {
			return fmt.Errorf("failed to update listing status: %w", err)
		}

		updated = l
		return nil
	})

	if err != nil {
		return nil, err
	}

	return updated, nil
}

func listBidsTx(ctx context.Context, tx *sql.Tx, listingID uuid.UUID) ([]*bid.Bid, error) {
	query := `
		SELECT id, listing_id, user_id, amount, created_at
		FROM bids
		WHERE listing_id = $1
		ORDER BY created_at ASC, amount ASC
	`

	rows, err := tx.QueryContext(ctx, query, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bids: %w", err)
	}
	defer rows.Close()

	bids := []*bid.Bid{}
	for rows.Next() {
		var b bid.Bid
		if err := rows.Scan(&b.ID, &b.ListingID, &b.UserID, &b.Amount, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, &b)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}

	return bids, nil
}

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanListing(row scanner) (*listing.Listing, error) {
	var l listing.Listing
	var images pq.StringArray
	var rentPrice, rentDeposit, currentBid sql.NullFloat64
	var rentFrom, rentTo, bidEndTime sql.NullTime

	err := row.Scan(
		&l.ID,
		&l.SellerID,
		&l.ItemID,
		&images,
		&l.Size,
		&l.Condition,
		&l.Type,
		&l.Status,
		&l.Price,
		&rentPrice,
		&rentDeposit,
		&rentFrom,
		&rentTo,
		&currentBid,
		&bidEndTime,
		&l.CreatedAt,
		&l.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to scan listing: %w", err)
	}

	l.Images = images
	l.RentPrice = rentPrice.Float64
	l.RentDeposit = rentDeposit.Float64
	l.RentAvailableFrom = rentFrom.Time
	l.RentAvailableTo = rentTo.Time
	l.CurrentBid = currentBid.Float64
	l.BidEndTime = bidEndTime.Time

	return &l, nil
}

func nullFloat(v float64, valid bool) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: valid}
}

func nullTime(v time.Time, valid bool) sql.NullTime {
	return sql.NullTime{Time: v, Valid: valid}
}
