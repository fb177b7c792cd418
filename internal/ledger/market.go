package ledger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"infrabondx/internal/store"
	"infrabondx/pkg/domain"
)

// CreateListing reserves the seller's tokens into a new ACTIVE listing. The
// tokens leave the holding immediately so one position cannot back several
// listings at once.
func (l *Ledger) CreateListing(ctx context.Context, sellerID, projectID string, tokenCount, pricePerToken int64) (store.Listing, error) {
	if tokenCount <= 0 || pricePerToken <= 0 {
		return store.Listing{}, ErrInvalidListing
	}
	listing := store.Listing{
		ListingID:     store.NewID("lst"),
		SellerID:      sellerID,
		ProjectID:     projectID,
		TokenCount:    tokenCount,
		PricePerToken: pricePerToken,
		Status:        store.ListingActive,
		CreatedAt:     time.Now(),
	}
	err := l.store.InTx(ctx, func(tx *store.Store) error {
		if _, err := tx.GetProject(ctx, projectID); err != nil {
			return err
		}
		holding, err := tx.GetHolding(ctx, sellerID, projectID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInsufficientTokens
			}
			return err
		}
		if holding.TokenCount < tokenCount {
			return ErrInsufficientTokens
		}
		holding.TokenCount -= tokenCount
		if err := tx.UpsertHolding(ctx, holding); err != nil {
			return err
		}
		if err := tx.CreateListing(ctx, listing); err != nil {
			return err
		}
		return tx.AddEvent(ctx, projectID, "LISTING_CREATED", sellerID, map[string]any{
			"listing_id": listing.ListingID, "tokens": tokenCount, "price_per_token": pricePerToken,
		})
	})
	if err != nil {
		return store.Listing{}, err
	}
	return listing, nil
}

type TradeResult struct {
	TxHash     string
	Amount     int64
	TokenCount int64
}

// BuyListing commits a reserved listing to the buyer: the listing flips to
// SOLD, the buyer's holding absorbs the tokens at the listing price, and a
// TRANSFER row lands in the ledger log.
func (l *Ledger) BuyListing(ctx context.Context, buyerID, listingID string) (TradeResult, error) {
	var res TradeResult
	err := l.store.InTx(ctx, func(tx *store.Store) error {
		listing, err := tx.GetListing(ctx, listingID)
		if err != nil {
			return err
		}
		if listing.Status != store.ListingActive {
			return ErrListingUnavailable
		}
		if listing.SellerID == buyerID {
			return ErrOwnListing
		}
		p, err := tx.GetProject(ctx, listing.ProjectID)
		if err != nil {
			return err
		}
		if p.Status != domain.ProjectActive {
			return ErrProjectNotActive
		}
		if err := tx.CloseListing(ctx, listingID, store.ListingSold); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrListingUnavailable
			}
			return err
		}

		holding, err := tx.GetHolding(ctx, buyerID, listing.ProjectID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		holding.UserID = buyerID
		holding.ProjectID = listing.ProjectID
		holding.AvgBuyPrice = domain.BlendedAvgPrice(holding.TokenCount, holding.AvgBuyPrice,
			listing.TokenCount, listing.PricePerToken)
		holding.TokenCount += listing.TokenCount
		if err := tx.UpsertHolding(ctx, holding); err != nil {
			return err
		}

		txHash := store.NewTxHash()
		amount := listing.TokenCount * listing.PricePerToken
		if err := tx.AppendTransaction(ctx, store.Transaction{
			TxID:       store.NewID("txn"),
			TxHash:     txHash,
			UserID:     buyerID,
			ProjectID:  listing.ProjectID,
			Type:       store.TxTransfer,
			Amount:     amount,
			TokenCount: listing.TokenCount,
			Status:     "SUCCESS",
			CreatedAt:  time.Now(),
		}); err != nil {
			return err
		}
		if err := tx.AddEvent(ctx, listing.ProjectID, "LISTING_SOLD", buyerID, map[string]any{
			"listing_id": listingID, "tokens": listing.TokenCount, "amount": amount, "tx_hash": txHash,
		}); err != nil {
			return err
		}
		res = TradeResult{TxHash: txHash, Amount: amount, TokenCount: listing.TokenCount}
		return nil
	})
	if err != nil {
		return TradeResult{}, err
	}
	l.log.Info("listing sold",
		zap.String("listing_id", listingID),
		zap.String("buyer_id", buyerID),
		zap.Int64("amount", res.Amount))
	return res, nil
}

// CancelListing aborts a reservation: the listing flips to CANCELLED and the
// tokens return to the seller's holding at their previous average price.
func (l *Ledger) CancelListing(ctx context.Context, sellerID, listingID string) error {
	return l.store.InTx(ctx, func(tx *store.Store) error {
		listing, err := tx.GetListing(ctx, listingID)
		if err != nil {
			return err
		}
		if listing.SellerID != sellerID {
			return ErrNotListingOwner
		}
		if err := tx.CloseListing(ctx, listingID, store.ListingCancelled); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrListingUnavailable
			}
			return err
		}
		holding, err := tx.GetHolding(ctx, sellerID, listing.ProjectID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		holding.UserID = sellerID
		holding.ProjectID = listing.ProjectID
		holding.TokenCount += listing.TokenCount
		if err := tx.UpsertHolding(ctx, holding); err != nil {
			return err
		}
		return tx.AddEvent(ctx, listing.ProjectID, "LISTING_CANCELLED", sellerID, map[string]any{
			"listing_id": listingID, "tokens": listing.TokenCount,
		})
	})
}
