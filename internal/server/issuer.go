package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"infrabondx/internal/ledger"
	"infrabondx/pkg/authn"
	"infrabondx/pkg/domain"
	"infrabondx/pkg/httpx"
)

type planEntryRequest struct {
	Title          string `json:"title"`
	ReleasePercent int64  `json:"release_percent"`
}

type createProjectRequest struct {
	Title         string             `json:"title"`
	Category      string             `json:"category"`
	Location      string             `json:"location"`
	Description   string             `json:"description"`
	FundingTarget int64              `json:"funding_target"`
	TokenPrice    int64              `json:"token_price"`
	ROIPercent    float64            `json:"roi_percent"`
	TenureMonths  int64              `json:"tenure_months"`
	Milestones    []planEntryRequest `json:"milestones"`
}

func (s *Server) handleIssuerCreateProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := authn.IdentityFrom(ctx)

	var req createProjectRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	plan := make([]domain.PlanEntry, 0, len(req.Milestones))
	for _, m := range req.Milestones {
		plan = append(plan, domain.PlanEntry{Title: m.Title, ReleasePercent: m.ReleasePercent})
	}
	p, err := s.ledger.CreateProject(ctx, id.UserID, ledger.ProjectInput{
		Title:         req.Title,
		Category:      req.Category,
		Location:      req.Location,
		Description:   req.Description,
		FundingTarget: req.FundingTarget,
		TokenPrice:    req.TokenPrice,
		ROIPercent:    req.ROIPercent,
		TenureMonths:  req.TenureMonths,
		Plan:          plan,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := projectJSON(p)
	resp["message"] = "Project submitted for review"
	httpx.WriteJSON(w, 201, resp)
}

func (s *Server) handleIssuerProjects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := authn.IdentityFrom(ctx)

	projects, err := s.store.ListProjectsByIssuer(ctx, id.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(projects))
	for _, p := range projects {
		milestones, err := s.store.ListMilestones(ctx, p.ProjectID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		msOut := make([]map[string]any, 0, len(milestones))
		for _, m := range milestones {
			msOut = append(msOut, milestoneJSON(m))
		}
		row := projectJSON(p)
		row["milestones"] = msOut
		out = append(out, row)
	}
	httpx.WriteJSON(w, 200, map[string]any{"projects": out, "count": len(out)})
}

type submitProofRequest struct {
	ProofURL string `json:"proof_url"`
}

func (s *Server) handleSubmitProof(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := authn.IdentityFrom(ctx)
	milestoneID := chi.URLParam(r, "milestone_id")

	var req submitProofRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, 400, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	m, err := s.ledger.SubmitProof(ctx, id.UserID, milestoneID, req.ProofURL)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := milestoneJSON(m)
	resp["message"] = "Proof submitted for verification"
	httpx.WriteJSON(w, 200, resp)
}
