package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"infrabondx/internal/idempotency"
	"infrabondx/internal/ledger"
	"infrabondx/internal/store"
	"infrabondx/pkg/authn"
	"infrabondx/pkg/httpx"
)

func idemActor(r *http.Request, userID string) idempotency.Actor {
	return idempotency.Actor{
		UserID:         userID,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	}
}

type investRequest struct {
	ProjectID string `json:"project_id"`
	Amount    int64  `json:"amount"`
}

func (s *Server) handleInvest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := authn.IdentityFrom(ctx)
	actor := idemActor(r, id.UserID)

	var req investRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if req.ProjectID == "" || req.Amount <= 0 {
		httpx.WriteError(w, 400, "BAD_REQUEST", "project_id and a positive amount required", nil)
		return
	}

	// Replay, mint and record share one transaction: a concurrent request
	// with the same key loses the record insert and rolls its mint back.
	var status int
	var resp map[string]any
	err := s.ledger.InTx(ctx, func(lg *ledger.Ledger, tx *store.Store) error {
		st, body, found, err := idempotency.Replay(ctx, tx, actor, "investor/invest")
		if err != nil {
			return err
		}
		if found {
			status, resp = st, body
			return nil
		}
		res, err := lg.Invest(ctx, id.UserID, req.ProjectID, req.Amount)
		if err != nil {
			return err
		}
		status = 201
		resp = map[string]any{
			"message":       "Investment successful",
			"project_id":    req.ProjectID,
			"amount":        req.Amount,
			"tokens_issued": res.TokensIssued,
			"tx_hash":       res.TxHash,
		}
		return idempotency.Save(ctx, tx, actor, "investor/invest", status, resp)
	})
	if errors.Is(err, store.ErrIdempotencyConflict) {
		var found bool
		status, resp, found, err = idempotency.Replay(ctx, s.store, actor, "investor/invest")
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

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := authn.IdentityFrom(ctx)

	holdings, err := s.store.ListHoldings(ctx, id.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(holdings))
	var totalInvested, totalValue int64
	for _, h := range holdings {
		if h.TokenCount == 0 {
			continue
		}
		p, err := s.store.GetProject(ctx, h.ProjectID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			writeDomainError(w, err)
			return
		}
		invested := int64(float64(h.TokenCount) * h.AvgBuyPrice)
		value := h.TokenCount * p.TokenPrice
		totalInvested += invested
		totalValue += value
		out = append(out, map[string]any{
			"project_id":    p.ProjectID,
			"project_title": p.Title,
			"status":        string(p.Status),
			"token_count":   h.TokenCount,
			"avg_buy_price": h.AvgBuyPrice,
			"token_price":   p.TokenPrice,
			"invested":      invested,
			"current_value": value,
			"roi_percent":   p.ROIPercent,
		})
	}
	httpx.WriteJSON(w, 200, map[string]any{
		"holdings":       out,
		"total_invested": totalInvested,
		"current_value":  totalValue,
	})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := authn.IdentityFrom(ctx)

	txs, err := s.store.ListTransactionsByUser(ctx, id.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	titles := map[string]string{}
	out := make([]map[string]any, 0, len(txs))
	for _, t := range txs {
		title, ok := titles[t.ProjectID]
		if !ok {
			p, err := s.store.GetProject(ctx, t.ProjectID)
			if err == nil {
				title = p.Title
			}
			titles[t.ProjectID] = title
		}
		row := transactionJSON(t)
		row["project_title"] = title
		out = append(out, row)
	}
	httpx.WriteJSON(w, 200, map[string]any{"transactions": out, "count": len(out)})
}

// handleCertificate returns a verifiable holding certificate as JSON. The tx
// hash of the holder's latest ledger entry anchors it to the audit trail.
func (s *Server) handleCertificate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := authn.IdentityFrom(ctx)
	projectID := chi.URLParam(r, "project_id")

	h, err := s.store.GetHolding(ctx, id.UserID, projectID)
	if err != nil || h.TokenCount == 0 {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			writeDomainError(w, err)
			return
		}
		httpx.WriteError(w, 404, "NOT_FOUND", "no holding for this project", nil)
		return
	}
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	u, err := s.store.GetUser(ctx, id.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	latest, err := s.store.LatestTransaction(ctx, id.UserID, projectID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeDomainError(w, err)
		return
	}

	httpx.WriteJSON(w, 200, map[string]any{
		"certificate_id": store.NewID("crt"),
		"investor": map[string]any{
			"id":   u.UserID,
			"name": u.Name,
		},
		"project": map[string]any{
			"id":       p.ProjectID,
			"title":    p.Title,
			"location": p.Location,
		},
		"token_count":   h.TokenCount,
		"avg_buy_price": h.AvgBuyPrice,
		"tx_hash":       latest.TxHash,
		"issued_at":     latest.CreatedAt.UTC(),
	})
}
