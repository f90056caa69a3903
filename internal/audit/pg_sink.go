// README: Postgres-backed audit sink (append-only table, JSONB payload).
package audit

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PGSink struct {
	db *pgxpool.Pool
}

func NewPGSink(db *pgxpool.Pool) *PGSink {
	return &PGSink{db: db}
}

func (s *PGSink) Append(ctx context.Context, e Entry) error {
	payload, err := json.Marshal(e.Context)
	if err != nil {
		payload = nil
	}
	_, err = s.db.Exec(ctx, `
        INSERT INTO audit_log (
            entry_type, actor_id, reason, severity, payload, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6)`,
		e.Type,
		string(e.ActorID),
		e.Reason,
		e.Severity,
		payload,
		e.CreatedAt,
	)
	return err
}
