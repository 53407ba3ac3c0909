package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// InsertAuditLogParams is the typed parameter set for InsertAuditLog.
type InsertAuditLogParams struct {
	ID             pgtype.UUID
	OrganizationID pgtype.UUID
	EventKey       string
	EventType      string
	AggregateType  string
	AggregateID    string
	Payload        []byte
}

const insertAuditLogSQL = `
INSERT INTO audit_log (
	id, organization_id, event_key, event_type, aggregate_type, aggregate_id,
	payload, occurred_at, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
ON CONFLICT (organization_id, event_key) DO NOTHING`

func (q *Queries) InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) error {
	_, err := q.db.Exec(ctx, insertAuditLogSQL,
		arg.ID, arg.OrganizationID, arg.EventKey, arg.EventType, arg.AggregateType,
		arg.AggregateID, arg.Payload,
	)
	return err
}
