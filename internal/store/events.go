package store

import (
	"context"
	"encoding/json"
	"time"
)

type ProjectEvent struct {
	EventID    string
	ProjectID  string
	Seq        int64
	Type       string
	ActorID    string
	Payload    map[string]any
	OccurredAt time.Time
}

// AddEvent appends to the project audit trail. Sequence numbers are scoped to
// the project and assigned inside the caller's transaction.
func (s *Store) AddEvent(ctx context.Context, projectID, typ, actorID string, payload map[string]any) error {
	b, _ := json.Marshal(payload)
	_, err := s.q.ExecContext(ctx, `
INSERT INTO project_events(event_id,project_id,seq,type,actor_id,payload,occurred_at)
SELECT $1, $2, COALESCE(MAX(seq),0)+1, $3,$4,$5,$6 FROM project_events WHERE project_id=$7`,
		NewID("evt"), projectID, typ, actorID, string(b), nowMillis(), projectID)
	return err
}

func (s *Store) ListEvents(ctx context.Context, projectID string) ([]ProjectEvent, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT event_id,project_id,seq,type,actor_id,payload,occurred_at
FROM project_events WHERE project_id=$1 ORDER BY seq`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ProjectEvent
	for rows.Next() {
		var e ProjectEvent
		var payload []byte
		var occurredAt int64
		if err := rows.Scan(&e.EventID, &e.ProjectID, &e.Seq, &e.Type, &e.ActorID, &payload, &occurredAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(payload, &e.Payload)
		e.OccurredAt = fromMillis(occurredAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
