package ledger

import (
	"context"
	"strings"
	"time"

	"infrabondx/internal/store"
	"infrabondx/pkg/domain"
)

type ProjectInput struct {
	Title         string
	Category      string
	Location      string
	Description   string
	FundingTarget int64
	TokenPrice    int64
	ROIPercent    float64
	TenureMonths  int64
	Plan          []domain.PlanEntry
}

// CreateProject registers a PENDING project with its escrow account and
// milestone plan. An empty plan gets the default five-step schedule.
func (l *Ledger) CreateProject(ctx context.Context, issuerID string, in ProjectInput) (store.Project, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Location = strings.TrimSpace(in.Location)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" || in.Location == "" || in.Description == "" {
		return store.Project{}, ErrMissingFields
	}
	if in.FundingTarget <= 0 || in.TokenPrice <= 0 {
		return store.Project{}, ErrInvalidTerms
	}
	if in.Category == "" {
		in.Category = "Road"
	}
	plan := in.Plan
	if len(plan) == 0 {
		plan = domain.DefaultPlan()
	}
	if err := domain.ValidatePlan(plan); err != nil {
		return store.Project{}, err
	}

	score, level := domain.ScoreRisk(in.ROIPercent)
	p := store.Project{
		ProjectID:     store.NewID("prj"),
		IssuerID:      issuerID,
		Title:         in.Title,
		Category:      in.Category,
		Location:      in.Location,
		Description:   in.Description,
		FundingTarget: in.FundingTarget,
		TokenPrice:    in.TokenPrice,
		ROIPercent:    in.ROIPercent,
		TenureMonths:  in.TenureMonths,
		RiskLevel:     level,
		RiskScore:     score,
		Status:        domain.ProjectPending,
		CreatedAt:     time.Now(),
	}

	err := l.store.InTx(ctx, func(tx *store.Store) error {
		if err := tx.CreateProject(ctx, p); err != nil {
			return err
		}
		if err := tx.CreateEscrowAccount(ctx, store.EscrowAccount{ProjectID: p.ProjectID}); err != nil {
			return err
		}
		for i, entry := range plan {
			if err := tx.CreateMilestone(ctx, store.Milestone{
				MilestoneID:    store.NewID("mls"),
				ProjectID:      p.ProjectID,
				Position:       int64(i + 1),
				Title:          entry.Title,
				ReleasePercent: entry.ReleasePercent,
				Status:         domain.MilestonePending,
				CreatedAt:      p.CreatedAt,
			}); err != nil {
				return err
			}
		}
		return tx.AddEvent(ctx, p.ProjectID, "CREATED", issuerID, map[string]any{
			"funding_target": p.FundingTarget, "milestones": len(plan),
		})
	})
	if err != nil {
		return store.Project{}, err
	}
	return p, nil
}

// SetProjectStatus applies an admin status decision and records it.
func (l *Ledger) SetProjectStatus(ctx context.Context, adminID, projectID string, status domain.ProjectStatus) error {
	return l.store.InTx(ctx, func(tx *store.Store) error {
		p, err := tx.GetProject(ctx, projectID)
		if err != nil {
			return err
		}
		if p.Status == status {
			return nil
		}
		if err := tx.SetProjectStatus(ctx, projectID, status); err != nil {
			return err
		}
		return tx.AddEvent(ctx, projectID, "STATUS_CHANGED", adminID, map[string]any{
			"from": string(p.Status), "to": string(status),
		})
	})
}
