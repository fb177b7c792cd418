package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"infrabondx/internal/store"
	"infrabondx/pkg/domain"
	"infrabondx/pkg/httpx"
)

// handleListProjects serves the public catalog. Only ACTIVE projects are
// public; pending and frozen projects are visible through the admin routes.
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context(), domain.ProjectActive)
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

func (s *Server) handleProjectDetails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID := chi.URLParam(r, "project_id")
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if p.Status == domain.ProjectFrozen {
		httpx.WriteError(w, 403, "PROJECT_FROZEN", "project is frozen pending review", nil)
		return
	}
	milestones, err := s.store.ListMilestones(ctx, projectID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	msOut := make([]map[string]any, 0, len(milestones))
	completed := 0
	for _, m := range milestones {
		if m.Status == domain.MilestoneCompleted {
			completed++
		}
		msOut = append(msOut, milestoneJSON(m))
	}
	resp := projectJSON(p)
	resp["milestones"] = msOut
	resp["milestones_completed"] = completed
	acct, err := s.store.GetEscrowAccount(ctx, projectID)
	if err == nil {
		resp["escrow"] = escrowJSON(acct)
	} else if !errors.Is(err, store.ErrNotFound) {
		writeDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, 200, resp)
}

func (s *Server) handleProjectMilestones(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID := chi.URLParam(r, "project_id")
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		writeDomainError(w, err)
		return
	}
	milestones, err := s.store.ListMilestones(ctx, projectID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(milestones))
	for _, m := range milestones {
		out = append(out, milestoneJSON(m))
	}
	httpx.WriteJSON(w, 200, map[string]any{"project_id": projectID, "milestones": out})
}

// handleTransparency exposes the escrow position, milestone schedule and the
// recorded releases for a project in one payload.
func (s *Server) handleTransparency(w http.ResponseWriter, r *http.Request) {
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
	acct, err := s.store.GetEscrowAccount(ctx, projectID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeDomainError(w, err)
		return
	}
	acct.ProjectID = projectID

	releases := make([]map[string]any, 0, len(milestones))
	msOut := make([]map[string]any, 0, len(milestones))
	for _, m := range milestones {
		msOut = append(msOut, milestoneJSON(m))
		if m.Status != domain.MilestoneCompleted {
			continue
		}
		rel, err := s.store.GetEscrowRelease(ctx, m.MilestoneID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			writeDomainError(w, err)
			return
		}
		releases = append(releases, map[string]any{
			"milestone_id": rel.MilestoneID,
			"amount":       rel.Amount,
			"tx_hash":      rel.TxHash,
			"released_at":  rel.ReleasedAt.UTC(),
		})
	}

	httpx.WriteJSON(w, 200, map[string]any{
		"project_id":     projectID,
		"title":          p.Title,
		"funding_target": p.FundingTarget,
		"funding_raised": p.FundingRaised,
		"escrow":         escrowJSON(acct),
		"milestones":     msOut,
		"releases":       releases,
	})
}
