// Package seed loads the demo dataset on first start. Seeding is a no-op when
// users already exist.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"infrabondx/internal/store"
	"infrabondx/pkg/authn"
	"infrabondx/pkg/domain"
)

//go:embed fixtures.yaml
var fixturesYAML []byte

type userFixture struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

type projectFixture struct {
	Title               string  `yaml:"title"`
	Category            string  `yaml:"category"`
	Location            string  `yaml:"location"`
	Description         string  `yaml:"description"`
	FundingTarget       int64   `yaml:"funding_target"`
	FundingRaised       int64   `yaml:"funding_raised"`
	TokenPrice          int64   `yaml:"token_price"`
	ROIPercent          float64 `yaml:"roi_percent"`
	TenureMonths        int64   `yaml:"tenure_months"`
	RiskLevel           string  `yaml:"risk_level"`
	RiskScore           int64   `yaml:"risk_score"`
	Status              string  `yaml:"status"`
	CompletedMilestones int     `yaml:"completed_milestones"`
}

type fixtures struct {
	Users    []userFixture    `yaml:"users"`
	Projects []projectFixture `yaml:"projects"`
}

// Run seeds the demo users, projects, milestone plans and escrow accounts.
func Run(ctx context.Context, st *store.Store, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	n, err := st.CountUsers(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Debug("seed skipped, users exist", zap.Int64("users", n))
		return nil
	}

	var fx fixtures
	if err := yaml.Unmarshal(fixturesYAML, &fx); err != nil {
		return fmt.Errorf("parse fixtures: %w", err)
	}

	return st.InTx(ctx, func(tx *store.Store) error {
		now := time.Now()
		var issuerID string
		for _, uf := range fx.Users {
			role, err := domain.ParseRole(uf.Role)
			if err != nil {
				return err
			}
			hash, err := authn.HashPassword(uf.Password)
			if err != nil {
				return err
			}
			u := store.User{
				UserID:       store.NewID("usr"),
				Name:         uf.Name,
				Email:        uf.Email,
				PasswordHash: hash,
				Role:         role,
				CreatedAt:    now,
			}
			if err := tx.CreateUser(ctx, u); err != nil {
				return err
			}
			if role == domain.RoleIssuer {
				issuerID = u.UserID
			}
		}
		if issuerID == "" {
			return fmt.Errorf("fixtures contain no issuer")
		}

		for _, pf := range fx.Projects {
			status, err := domain.ParseProjectStatus(pf.Status)
			if err != nil {
				return err
			}
			p := store.Project{
				ProjectID:     store.NewID("prj"),
				IssuerID:      issuerID,
				Title:         pf.Title,
				Category:      pf.Category,
				Location:      pf.Location,
				Description:   pf.Description,
				FundingTarget: pf.FundingTarget,
				FundingRaised: pf.FundingRaised,
				TokenPrice:    pf.TokenPrice,
				ROIPercent:    pf.ROIPercent,
				TenureMonths:  pf.TenureMonths,
				RiskLevel:     domain.RiskLevel(pf.RiskLevel),
				RiskScore:     pf.RiskScore,
				Status:        status,
				CreatedAt:     now,
			}
			if err := tx.CreateProject(ctx, p); err != nil {
				return err
			}
			if err := tx.CreateEscrowAccount(ctx, store.EscrowAccount{
				ProjectID:   p.ProjectID,
				TotalLocked: pf.FundingRaised,
			}); err != nil {
				return err
			}
			for i, entry := range domain.DefaultPlan() {
				ms := domain.MilestonePending
				if i < pf.CompletedMilestones {
					ms = domain.MilestoneCompleted
				}
				if err := tx.CreateMilestone(ctx, store.Milestone{
					MilestoneID:    store.NewID("mls"),
					ProjectID:      p.ProjectID,
					Position:       int64(i + 1),
					Title:          entry.Title,
					ReleasePercent: entry.ReleasePercent,
					Status:         ms,
					CreatedAt:      now,
				}); err != nil {
					return err
				}
			}
			if err := tx.AddEvent(ctx, p.ProjectID, "CREATED", issuerID, map[string]any{
				"seeded": true,
			}); err != nil {
				return err
			}
		}
		log.Info("seeded demo dataset",
			zap.Int("users", len(fx.Users)),
			zap.Int("projects", len(fx.Projects)))
		return nil
	})
}
