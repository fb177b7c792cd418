package store

import (
	"context"
	"time"
)

type EscrowAccount struct {
	ProjectID     string
	TotalLocked   int64
	TotalReleased int64
}

func (s *Store) CreateEscrowAccount(ctx context.Context, e EscrowAccount) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO escrow_accounts(project_id,total_locked,total_released)
VALUES($1,$2,$3)`, e.ProjectID, e.TotalLocked, e.TotalReleased)
	return err
}

func (s *Store) GetEscrowAccount(ctx context.Context, projectID string) (EscrowAccount, error) {
	var e EscrowAccount
	err := s.q.QueryRowContext(ctx,
		`SELECT project_id,total_locked,total_released FROM escrow_accounts WHERE project_id=$1`, projectID).
		Scan(&e.ProjectID, &e.TotalLocked, &e.TotalReleased)
	if err != nil {
		return EscrowAccount{}, notFound(err)
	}
	return e, nil
}

func (s *Store) LockEscrow(ctx context.Context, projectID string, amount int64) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE escrow_accounts SET total_locked=total_locked+$1 WHERE project_id=$2`, amount, projectID)
	return err
}

// MoveEscrowToReleased shifts amount from locked to released within the
// account; callers compute the clamped amount first.
func (s *Store) MoveEscrowToReleased(ctx context.Context, projectID string, amount int64) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE escrow_accounts SET total_locked=total_locked-$1, total_released=total_released+$2 WHERE project_id=$3`,
		amount, amount, projectID)
	return err
}

type EscrowRelease struct {
	MilestoneID string
	ProjectID   string
	Amount      int64
	TxHash      string
	ReleasedAt  time.Time
}

func (s *Store) RecordEscrowRelease(ctx context.Context, r EscrowRelease) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO escrow_releases(milestone_id,project_id,amount,tx_hash,released_at)
VALUES($1,$2,$3,$4,$5)`, r.MilestoneID, r.ProjectID, r.Amount, r.TxHash, r.ReleasedAt.UnixMilli())
	return err
}

func (s *Store) GetEscrowRelease(ctx context.Context, milestoneID string) (EscrowRelease, error) {
	var r EscrowRelease
	var releasedAt int64
	err := s.q.QueryRowContext(ctx,
		`SELECT milestone_id,project_id,amount,tx_hash,released_at FROM escrow_releases WHERE milestone_id=$1`, milestoneID).
		Scan(&r.MilestoneID, &r.ProjectID, &r.Amount, &r.TxHash, &releasedAt)
	if err != nil {
		return EscrowRelease{}, notFound(err)
	}
	r.ReleasedAt = fromMillis(releasedAt)
	return r, nil
}
