package store

import (
	"context"
	"time"
)

type ListingStatus string

const (
	ListingActive    ListingStatus = "ACTIVE"
	ListingSold      ListingStatus = "SOLD"
	ListingCancelled ListingStatus = "CANCELLED"
)

type Listing struct {
	ListingID     string
	SellerID      string
	ProjectID     string
	TokenCount    int64
	PricePerToken int64
	Status        ListingStatus
	CreatedAt     time.Time
}

func (s *Store) CreateListing(ctx context.Context, l Listing) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO listings(listing_id,seller_id,project_id,token_count,price_per_token,status,created_at)
VALUES($1,$2,$3,$4,$5,$6,$7)`,
		l.ListingID, l.SellerID, l.ProjectID, l.TokenCount, l.PricePerToken, string(l.Status), l.CreatedAt.UnixMilli())
	return err
}

func (s *Store) GetListing(ctx context.Context, listingID string) (Listing, error) {
	var l Listing
	var status string
	var createdAt int64
	err := s.q.QueryRowContext(ctx, `SELECT listing_id,seller_id,project_id,token_count,price_per_token,status,created_at
FROM listings WHERE listing_id=$1`, listingID).
		Scan(&l.ListingID, &l.SellerID, &l.ProjectID, &l.TokenCount, &l.PricePerToken, &status, &createdAt)
	if err != nil {
		return Listing{}, notFound(err)
	}
	l.Status = ListingStatus(status)
	l.CreatedAt = fromMillis(createdAt)
	return l, nil
}

func (s *Store) ListActiveListings(ctx context.Context) ([]Listing, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT listing_id,seller_id,project_id,token_count,price_per_token,status,created_at
FROM listings WHERE status=$1 ORDER BY created_at DESC, listing_id`, string(ListingActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Listing
	for rows.Next() {
		var l Listing
		var status string
		var createdAt int64
		if err := rows.Scan(&l.ListingID, &l.SellerID, &l.ProjectID, &l.TokenCount, &l.PricePerToken,
			&status, &createdAt); err != nil {
			return nil, err
		}
		l.Status = ListingStatus(status)
		l.CreatedAt = fromMillis(createdAt)
		out = append(out, l)
	}
	return out, rows.Err()
}

// CloseListing moves an ACTIVE listing to a terminal status. Returns
// ErrNotFound when the listing is missing or already closed, which makes the
// close race-safe inside a transaction.
func (s *Store) CloseListing(ctx context.Context, listingID string, to ListingStatus) error {
	res, err := s.q.ExecContext(ctx, `UPDATE listings SET status=$1 WHERE listing_id=$2 AND status=$3`,
		string(to), listingID, string(ListingActive))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}
