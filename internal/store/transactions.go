package store

import (
	"context"
	"time"
)

type TxType string

const (
	TxMint     TxType = "MINT"
	TxTransfer TxType = "TRANSFER"
	TxRelease  TxType = "RELEASE"
)

type Transaction struct {
	TxID       string
	Seq        int64
	TxHash     string
	UserID     string
	ProjectID  string
	Type       TxType
	Amount     int64
	TokenCount int64
	Status     string
	CreatedAt  time.Time
}

// AppendTransaction adds a row to the ledger log. The sequence number is
// assigned inside the caller's transaction, so the log has a total order.
func (s *Store) AppendTransaction(ctx context.Context, t Transaction) error {
	_, err := s.q.ExecContext(ctx, `
INSERT INTO transactions(tx_id,seq,tx_hash,user_id,project_id,tx_type,amount,token_count,status,created_at)
SELECT $1, COALESCE(MAX(seq),0)+1, $2,$3,$4,$5,$6,$7,$8,$9 FROM transactions`,
		t.TxID, t.TxHash, t.UserID, t.ProjectID, string(t.Type), t.Amount, t.TokenCount, t.Status,
		t.CreatedAt.UnixMilli())
	return err
}

func (s *Store) ListTransactionsByUser(ctx context.Context, userID string) ([]Transaction, error) {
	return s.queryTransactions(ctx, `SELECT tx_id,seq,tx_hash,user_id,project_id,tx_type,amount,token_count,status,created_at
FROM transactions WHERE user_id=$1 ORDER BY seq DESC`, userID)
}

func (s *Store) LatestTransaction(ctx context.Context, userID, projectID string) (Transaction, error) {
	txs, err := s.queryTransactions(ctx, `SELECT tx_id,seq,tx_hash,user_id,project_id,tx_type,amount,token_count,status,created_at
FROM transactions WHERE user_id=$1 AND project_id=$2 ORDER BY seq DESC`, userID, projectID)
	if err != nil {
		return Transaction{}, err
	}
	if len(txs) == 0 {
		return Transaction{}, ErrNotFound
	}
	return txs[0], nil
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]Transaction, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		var t Transaction
		var typ string
		var createdAt int64
		if err := rows.Scan(&t.TxID, &t.Seq, &t.TxHash, &t.UserID, &t.ProjectID, &typ,
			&t.Amount, &t.TokenCount, &t.Status, &createdAt); err != nil {
			return nil, err
		}
		t.Type = TxType(typ)
		t.CreatedAt = fromMillis(createdAt)
		out = append(out, t)
	}
	return out, rows.Err()
}
