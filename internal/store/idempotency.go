package store

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrIdempotencyConflict means another request already claimed the key; the
// caller should roll back and replay the recorded response instead.
var ErrIdempotencyConflict = errors.New("idempotency key already claimed")

func (s *Store) GetIdempotencyRecord(ctx context.Context, userID, idemKey, endpoint string) (int, map[string]any, bool, error) {
	var status int64
	var body string
	err := s.q.QueryRowContext(ctx, `SELECT response_status,response_body FROM idempotency_records
WHERE user_id=$1 AND idem_key=$2 AND endpoint=$3`, userID, idemKey, endpoint).
		Scan(&status, &body)
	if err != nil {
		if notFound(err) == ErrNotFound {
			return 0, nil, false, nil
		}
		return 0, nil, false, err
	}
	var resp map[string]any
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return 0, nil, false, err
	}
	return int(status), resp, true, nil
}

func (s *Store) SaveIdempotencyRecord(ctx context.Context, userID, idemKey, endpoint string, responseStatus int, responseBody map[string]any) error {
	b, err := json.Marshal(responseBody)
	if err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `
INSERT INTO idempotency_records(user_id,idem_key,endpoint,response_status,response_body,created_at)
VALUES($1,$2,$3,$4,$5,$6)
ON CONFLICT (user_id,idem_key,endpoint) DO NOTHING`,
		userID, idemKey, endpoint, responseStatus, string(b), nowMillis())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrIdempotencyConflict
	}
	return err
}
