package server

import (
	"infrabondx/internal/store"
)

// View helpers keep response field names stable across handlers.

func userJSON(u store.User) map[string]any {
	return map[string]any{
		"id":    u.UserID,
		"name":  u.Name,
		"email": u.Email,
		"role":  string(u.Role),
	}
}

func projectJSON(p store.Project) map[string]any {
	progress := 0.0
	if p.FundingTarget > 0 {
		progress = float64(p.FundingRaised) / float64(p.FundingTarget) * 100
	}
	return map[string]any{
		"id":               p.ProjectID,
		"issuer_id":        p.IssuerID,
		"title":            p.Title,
		"category":         p.Category,
		"location":         p.Location,
		"description":      p.Description,
		"funding_target":   p.FundingTarget,
		"funding_raised":   p.FundingRaised,
		"funding_progress": progress,
		"token_price":      p.TokenPrice,
		"roi_percent":      p.ROIPercent,
		"tenure_months":    p.TenureMonths,
		"risk_level":       string(p.RiskLevel),
		"risk_score":       p.RiskScore,
		"status":           string(p.Status),
		"created_at":       p.CreatedAt.UTC(),
	}
}

func milestoneJSON(m store.Milestone) map[string]any {
	return map[string]any{
		"id":                     m.MilestoneID,
		"project_id":             m.ProjectID,
		"position":               m.Position,
		"title":                  m.Title,
		"escrow_release_percent": m.ReleasePercent,
		"status":                 string(m.Status),
		"proof_url":              m.ProofURL,
	}
}

func escrowJSON(e store.EscrowAccount) map[string]any {
	return map[string]any{
		"project_id":     e.ProjectID,
		"total_locked":   e.TotalLocked,
		"total_released": e.TotalReleased,
	}
}

func listingJSON(l store.Listing) map[string]any {
	return map[string]any{
		"id":              l.ListingID,
		"seller_id":       l.SellerID,
		"project_id":      l.ProjectID,
		"token_count":     l.TokenCount,
		"price_per_token": l.PricePerToken,
		"status":          string(l.Status),
		"created_at":      l.CreatedAt.UTC(),
	}
}

func transactionJSON(t store.Transaction) map[string]any {
	return map[string]any{
		"id":          t.TxID,
		"seq":         t.Seq,
		"tx_hash":     t.TxHash,
		"user_id":     t.UserID,
		"project_id":  t.ProjectID,
		"tx_type":     string(t.Type),
		"amount":      t.Amount,
		"token_count": t.TokenCount,
		"status":      t.Status,
		"created_at":  t.CreatedAt.UTC(),
	}
}

func eventJSON(e store.ProjectEvent) map[string]any {
	return map[string]any{
		"id":          e.EventID,
		"project_id":  e.ProjectID,
		"seq":         e.Seq,
		"type":        e.Type,
		"actor_id":    e.ActorID,
		"payload":     e.Payload,
		"occurred_at": e.OccurredAt.UTC(),
	}
}
