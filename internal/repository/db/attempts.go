package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// InsertAttemptParams is the typed parameter set for InsertAttempt,
// following the sqlc *Params convention used throughout this codebase.
type InsertAttemptParams struct {
	ID               pgtype.UUID
	OrganizationID   pgtype.UUID
	DeviceID         pgtype.UUID
	AreaID           pgtype.UUID
	Direction        string
	AuthMethod       string
	SubjectType      string
	CredentialRef    pgtype.Text
	RawPayload       []byte
	IdempotencyKey   string
	GatewayRequestID pgtype.Text
	OccurredAt       pgtype.Timestamptz
}

const insertAttemptSQL = `
INSERT INTO attempt (
	id, organization_id, device_id, area_id, direction, auth_method,
	subject_type, credential_ref, raw_payload, idempotency_key,
	gateway_request_id, occurred_at, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
RETURNING id, organization_id, device_id, area_id, direction, auth_method,
	subject_type, credential_ref, raw_payload, idempotency_key,
	gateway_request_id, occurred_at, created_at`

func (q *Queries) InsertAttempt(ctx context.Context, arg InsertAttemptParams) (Attempt, error) {
	row := q.db.QueryRow(ctx, insertAttemptSQL,
		arg.ID, arg.OrganizationID, arg.DeviceID, arg.AreaID, arg.Direction, arg.AuthMethod,
		arg.SubjectType, arg.CredentialRef, arg.RawPayload, arg.IdempotencyKey,
		arg.GatewayRequestID, arg.OccurredAt,
	)
	return scanAttempt(row)
}

const getAttemptByIdempotencyKeySQL = `
SELECT id, organization_id, device_id, area_id, direction, auth_method,
	subject_type, credential_ref, raw_payload, idempotency_key,
	gateway_request_id, occurred_at, created_at
FROM attempt
WHERE organization_id = $1 AND idempotency_key = $2`

func (q *Queries) GetAttemptByIdempotencyKey(ctx context.Context, orgID, idempotencyKey string) (Attempt, error) {
	row := q.db.QueryRow(ctx, getAttemptByIdempotencyKeySQL, orgID, idempotencyKey)
	return scanAttempt(row)
}

const getAttemptSQL = `
SELECT id, organization_id, device_id, area_id, direction, auth_method,
	subject_type, credential_ref, raw_payload, idempotency_key,
	gateway_request_id, occurred_at, created_at
FROM attempt
WHERE organization_id = $1 AND id = $2`

func (q *Queries) GetAttempt(ctx context.Context, orgID, id string) (Attempt, error) {
	row := q.db.QueryRow(ctx, getAttemptSQL, orgID, id)
	return scanAttempt(row)
}

func scanAttempt(row pgx.Row) (Attempt, error) {
	var a Attempt
	err := row.Scan(
		&a.ID, &a.OrganizationID, &a.DeviceID, &a.AreaID, &a.Direction, &a.AuthMethod,
		&a.SubjectType, &a.CredentialRef, &a.RawPayload, &a.IdempotencyKey,
		&a.GatewayRequestID, &a.OccurredAt, &a.CreatedAt,
	)
	return a, err
}
