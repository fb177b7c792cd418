package store

import (
	"context"
	"time"

	"infrabondx/pkg/domain"
)

type Project struct {
	ProjectID     string
	IssuerID      string
	Title         string
	Category      string
	Location      string
	Description   string
	FundingTarget int64
	FundingRaised int64
	TokenPrice    int64
	ROIPercent    float64
	TenureMonths  int64
	RiskLevel     domain.RiskLevel
	RiskScore     int64
	Status        domain.ProjectStatus
	CreatedAt     time.Time
}

const projectCols = `project_id,issuer_id,title,category,location,description,funding_target,funding_raised,token_price,roi_percent,tenure_months,risk_level,risk_score,status,created_at`

func (s *Store) CreateProject(ctx context.Context, p Project) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO projects(`+projectCols+`)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		p.ProjectID, p.IssuerID, p.Title, p.Category, p.Location, p.Description,
		p.FundingTarget, p.FundingRaised, p.TokenPrice, p.ROIPercent, p.TenureMonths,
		string(p.RiskLevel), p.RiskScore, string(p.Status), p.CreatedAt.UnixMilli())
	return err
}

func (s *Store) GetProject(ctx context.Context, projectID string) (Project, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+projectCols+` FROM projects WHERE project_id=$1`, projectID)
	var p Project
	var risk, status string
	var createdAt int64
	err := row.Scan(&p.ProjectID, &p.IssuerID, &p.Title, &p.Category, &p.Location, &p.Description,
		&p.FundingTarget, &p.FundingRaised, &p.TokenPrice, &p.ROIPercent, &p.TenureMonths,
		&risk, &p.RiskScore, &status, &createdAt)
	if err != nil {
		return Project{}, notFound(err)
	}
	p.RiskLevel = domain.RiskLevel(risk)
	p.Status = domain.ProjectStatus(status)
	p.CreatedAt = fromMillis(createdAt)
	return p, nil
}

// ListProjects returns projects filtered by status when status is non-empty,
// newest first.
func (s *Store) ListProjects(ctx context.Context, status domain.ProjectStatus) ([]Project, error) {
	query := `SELECT ` + projectCols + ` FROM projects ORDER BY created_at DESC, project_id`
	args := []any{}
	if status != "" {
		query = `SELECT ` + projectCols + ` FROM projects WHERE status=$1 ORDER BY created_at DESC, project_id`
		args = append(args, string(status))
	}
	return s.queryProjects(ctx, query, args...)
}

func (s *Store) ListProjectsByIssuer(ctx context.Context, issuerID string) ([]Project, error) {
	return s.queryProjects(ctx,
		`SELECT `+projectCols+` FROM projects WHERE issuer_id=$1 ORDER BY created_at DESC, project_id`, issuerID)
}

func (s *Store) queryProjects(ctx context.Context, query string, args ...any) ([]Project, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Project
	for rows.Next() {
		var p Project
		var risk, status string
		var createdAt int64
		if err := rows.Scan(&p.ProjectID, &p.IssuerID, &p.Title, &p.Category, &p.Location, &p.Description,
			&p.FundingTarget, &p.FundingRaised, &p.TokenPrice, &p.ROIPercent, &p.TenureMonths,
			&risk, &p.RiskScore, &status, &createdAt); err != nil {
			return nil, err
		}
		p.RiskLevel = domain.RiskLevel(risk)
		p.Status = domain.ProjectStatus(status)
		p.CreatedAt = fromMillis(createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) SetProjectStatus(ctx context.Context, projectID string, status domain.ProjectStatus) error {
	res, err := s.q.ExecContext(ctx, `UPDATE projects SET status=$1 WHERE project_id=$2`, string(status), projectID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

func (s *Store) AddFundingRaised(ctx context.Context, projectID string, amount int64) error {
	_, err := s.q.ExecContext(ctx, `UPDATE projects SET funding_raised=funding_raised+$1 WHERE project_id=$2`,
		amount, projectID)
	return err
}
