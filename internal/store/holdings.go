package store

import "context"

type Holding struct {
	UserID      string
	ProjectID   string
	TokenCount  int64
	AvgBuyPrice float64
}

func (s *Store) GetHolding(ctx context.Context, userID, projectID string) (Holding, error) {
	var h Holding
	err := s.q.QueryRowContext(ctx,
		`SELECT user_id,project_id,token_count,avg_buy_price FROM holdings WHERE user_id=$1 AND project_id=$2`,
		userID, projectID).
		Scan(&h.UserID, &h.ProjectID, &h.TokenCount, &h.AvgBuyPrice)
	if err != nil {
		return Holding{}, notFound(err)
	}
	return h, nil
}

func (s *Store) ListHoldings(ctx context.Context, userID string) ([]Holding, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT user_id,project_id,token_count,avg_buy_price FROM holdings WHERE user_id=$1 ORDER BY project_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Holding
	for rows.Next() {
		var h Holding
		if err := rows.Scan(&h.UserID, &h.ProjectID, &h.TokenCount, &h.AvgBuyPrice); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// UpsertHolding writes the full holding row; callers compute balances inside
// a ledger transaction.
func (s *Store) UpsertHolding(ctx context.Context, h Holding) error {
	_, err := s.q.ExecContext(ctx, `
INSERT INTO holdings(user_id,project_id,token_count,avg_buy_price)
VALUES($1,$2,$3,$4)
ON CONFLICT (user_id,project_id) DO UPDATE SET
  token_count=EXCLUDED.token_count,
  avg_buy_price=EXCLUDED.avg_buy_price
`, h.UserID, h.ProjectID, h.TokenCount, h.AvgBuyPrice)
	return err
}
