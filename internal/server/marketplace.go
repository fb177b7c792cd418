package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"infrabondx/internal/idempotency"
	"infrabondx/internal/ledger"
	"infrabondx/internal/store"
	"infrabondx/pkg/authn"
	"infrabondx/pkg/domain"
	"infrabondx/pkg/httpx"
)

// handleListings serves the open order book. Listings whose project is no
// longer ACTIVE stay hidden but keep their reservation.
func (s *Server) handleListings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listings, err := s.store.ListActiveListings(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(listings))
	for _, l := range listings {
		p, err := s.store.GetProject(ctx, l.ProjectID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if p.Status != domain.ProjectActive {
			continue
		}
		row := listingJSON(l)
		row["project_title"] = p.Title
		row["token_price"] = p.TokenPrice
		if seller, err := s.store.GetUser(ctx, l.SellerID); err == nil {
			row["seller_name"] = seller.Name
		}
		out = append(out, row)
	}
	httpx.WriteJSON(w, 200, map[string]any{"listings": out, "count": len(out)})
}

type createListingRequest struct {
	ProjectID     string `json:"project_id"`
	TokenCount    int64  `json:"token_count"`
	PricePerToken int64  `json:"price_per_token"`
}

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := authn.IdentityFrom(ctx)

	var req createListingRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if req.ProjectID == "" {
		httpx.WriteError(w, 400, "BAD_REQUEST", "project_id required", nil)
		return
	}
	listing, err := s.ledger.CreateListing(ctx, id.UserID, req.ProjectID, req.TokenCount, req.PricePerToken)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := listingJSON(listing)
	resp["message"] = "Listing created"
	httpx.WriteJSON(w, 201, resp)
}

type buyRequest struct {
	ListingID string `json:"listing_id"`
}

func (s *Server) handleBuyListing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := authn.IdentityFrom(ctx)
	actor := idemActor(r, id.UserID)

	var req buyRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if req.ListingID == "" {
		httpx.WriteError(w, 400, "BAD_REQUEST", "listing_id required", nil)
		return
	}

	// Replay, trade and record share one transaction; see handleInvest.
	var status int
	var resp map[string]any
	err := s.ledger.InTx(ctx, func(lg *ledger.Ledger, tx *store.Store) error {
		st, body, found, err := idempotency.Replay(ctx, tx, actor, "marketplace/buy")
		if err != nil {
			return err
		}
		if found {
			status, resp = st, body
			return nil
		}
		res, err := lg.BuyListing(ctx, id.UserID, req.ListingID)
		if err != nil {
			return err
		}
		status = 200
		resp = map[string]any{
			"message":     "Purchase successful",
			"listing_id":  req.ListingID,
			"token_count": res.TokenCount,
			"amount":      res.Amount,
			"tx_hash":     res.TxHash,
		}
		return idempotency.Save(ctx, tx, actor, "marketplace/buy", status, resp)
	})
	if errors.Is(err, store.ErrIdempotencyConflict) {
		var found bool
		status, resp, found, err = idempotency.Replay(ctx, s.store, actor, "marketplace/buy")
		if err == nil && !found {
			err = store.ErrIdempotencyConflict
		}
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, status, resp)
}

func (s *Server) handleCancelListing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := authn.IdentityFrom(ctx)
	listingID := chi.URLParam(r, "listing_id")

	if err := s.ledger.CancelListing(ctx, id.UserID, listingID); err != nil {
		writeDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{
		"message":    "Listing cancelled",
		"listing_id": listingID,
		"status":     string(store.ListingCancelled),
	})
}
