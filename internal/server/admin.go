package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"infrabondx/internal/fraud"
	"infrabondx/internal/store"
	"infrabondx/pkg/authn"
	"infrabondx/pkg/domain"
	"infrabondx/pkg/httpx"
)

func (s *Server) handleAdminProjects(w http.ResponseWriter, r *http.Request) {
	var filter domain.ProjectStatus
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		st, err := domain.ParseProjectStatus(raw)
		if err != nil {
			httpx.WriteError(w, 400, "BAD_REQUEST", "unknown status filter", nil)
			return
		}
		filter = st
	}
	projects, err := s.store.ListProjects(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(projects))
	for _, p := range projects {
		out = append(out, projectJSON(p))
	}
	httpx.WriteJSON(w, 200, map[string]any{"projects": out, "count": len(out)})
}

func (s *Server) handleAdminProjectDetails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID := chi.URLParam(r, "project_id")

	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	milestones, err := s.store.ListMilestones(ctx, projectID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	msOut := make([]map[string]any, 0, len(milestones))
	for _, m := range milestones {
		msOut = append(msOut, milestoneJSON(m))
	}
	resp := projectJSON(p)
	resp["milestones"] = msOut
	if issuer, err := s.store.GetUser(ctx, p.IssuerID); err == nil {
		resp["issuer"] = userJSON(issuer)
	}
	acct, err := s.store.GetEscrowAccount(ctx, projectID)
	if err == nil {
		resp["escrow"] = escrowJSON(acct)
	} else if !errors.Is(err, store.ErrNotFound) {
		writeDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, 200, resp)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleAdminProjectStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := authn.IdentityFrom(ctx)
	projectID := chi.URLParam(r, "project_id")

	var req statusRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	status, err := domain.ParseProjectStatus(req.Status)
	if err != nil {
		httpx.WriteError(w, 400, "BAD_REQUEST", "status must be PENDING, ACTIVE or FROZEN", nil)
		return
	}
	if err := s.ledger.SetProjectStatus(ctx, id.UserID, projectID, status); err != nil {
		writeDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{
		"message":    "Project status updated",
		"project_id": projectID,
		"status":     string(status),
	})
}

func (s *Server) handleAdminProjectEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID := chi.URLParam(r, "project_id")
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		writeDomainError(w, err)
		return
	}
	events, err := s.store.ListEvents(ctx, projectID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(events))
	for _, e := range events {
		out = append(out, eventJSON(e))
	}
	httpx.WriteJSON(w, 200, map[string]any{"project_id": projectID, "events": out, "count": len(out)})
}

type verifyRequest struct {
	Decision string `json:"decision"`
}

func (s *Server) handleVerifyMilestone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := authn.IdentityFrom(ctx)
	milestoneID := chi.URLParam(r, "milestone_id")

	var req verifyRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	var approve bool
	switch strings.ToUpper(strings.TrimSpace(req.Decision)) {
	case "APPROVE":
		approve = true
	case "REJECT":
		approve = false
	default:
		httpx.WriteError(w, 400, "BAD_REQUEST", "decision must be APPROVE or REJECT", nil)
		return
	}
	res, err := s.ledger.VerifyMilestone(ctx, id.UserID, milestoneID, approve)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	msg := "Milestone rejected"
	if res.Approved {
		msg = "Milestone approved, escrow released"
		if res.Replayed {
			msg = "Milestone already approved, release replayed"
		}
	}
	httpx.WriteJSON(w, 200, map[string]any{
		"message":         msg,
		"milestone_id":    res.MilestoneID,
		"approved":        res.Approved,
		"amount_released": res.Amount,
		"tx_hash":         res.TxHash,
		"replayed":        res.Replayed,
	})
}

func (s *Server) handleFraudAlerts(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context(), "")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	snapshots := make([]fraud.Snapshot, 0, len(projects))
	for _, p := range projects {
		snapshots = append(snapshots, fraud.Snapshot{
			ProjectID:     p.ProjectID,
			Title:         p.Title,
			Status:        string(p.Status),
			ROIPercent:    p.ROIPercent,
			FundingTarget: p.FundingTarget,
			FundingRaised: p.FundingRaised,
			RiskScore:     p.RiskScore,
		})
	}
	alerts := s.fraud.Evaluate(snapshots)
	httpx.WriteJSON(w, 200, map[string]any{"alerts": alerts, "count": len(alerts)})
}
