package store

import (
	"context"
	"time"

	"infrabondx/pkg/domain"
)

type Milestone struct {
	MilestoneID    string
	ProjectID      string
	Position       int64
	Title          string
	ReleasePercent int64
	Status         domain.MilestoneStatus
	ProofURL       string
	CreatedAt      time.Time
}

const milestoneCols = `milestone_id,project_id,position,title,escrow_release_percent,status,proof_url,created_at`

func (s *Store) CreateMilestone(ctx context.Context, m Milestone) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO milestones(`+milestoneCols+`)
VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		m.MilestoneID, m.ProjectID, m.Position, m.Title, m.ReleasePercent,
		string(m.Status), m.ProofURL, m.CreatedAt.UnixMilli())
	return err
}

func (s *Store) GetMilestone(ctx context.Context, milestoneID string) (Milestone, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+milestoneCols+` FROM milestones WHERE milestone_id=$1`, milestoneID)
	var m Milestone
	var status string
	var createdAt int64
	err := row.Scan(&m.MilestoneID, &m.ProjectID, &m.Position, &m.Title, &m.ReleasePercent,
		&status, &m.ProofURL, &createdAt)
	if err != nil {
		return Milestone{}, notFound(err)
	}
	m.Status = domain.MilestoneStatus(status)
	m.CreatedAt = fromMillis(createdAt)
	return m, nil
}

func (s *Store) ListMilestones(ctx context.Context, projectID string) ([]Milestone, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+milestoneCols+` FROM milestones WHERE project_id=$1 ORDER BY position`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Milestone
	for rows.Next() {
		var m Milestone
		var status string
		var createdAt int64
		if err := rows.Scan(&m.MilestoneID, &m.ProjectID, &m.Position, &m.Title, &m.ReleasePercent,
			&status, &m.ProofURL, &createdAt); err != nil {
			return nil, err
		}
		m.Status = domain.MilestoneStatus(status)
		m.CreatedAt = fromMillis(createdAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) SetMilestoneStatus(ctx context.Context, milestoneID string, status domain.MilestoneStatus, proofURL string) error {
	res, err := s.q.ExecContext(ctx, `UPDATE milestones SET status=$1, proof_url=$2 WHERE milestone_id=$3`,
		string(status), proofURL, milestoneID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}
