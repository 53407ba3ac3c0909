package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// InsertCommandParams is the typed parameter set for InsertCommand.
type InsertCommandParams struct {
	ID             pgtype.UUID
	OrganizationID pgtype.UUID
	AttemptID      pgtype.UUID
	DeviceID       pgtype.UUID
	Type           string
	Message        pgtype.Text
	IdempotencyKey string
}

const insertCommandSQL = `
INSERT INTO command (
	id, organization_id, attempt_id, device_id, type, message, state,
	sent_at, idempotency_key
) VALUES ($1, $2, $3, $4, $5, $6, 'SENT', now(), $7)
RETURNING id, organization_id, attempt_id, device_id, type, message, state,
	sent_at, confirmed_at, error_code, error_detail, idempotency_key, external_execution`

func (q *Queries) InsertCommand(ctx context.Context, arg InsertCommandParams) (Command, error) {
	row := q.db.QueryRow(ctx, insertCommandSQL,
		arg.ID, arg.OrganizationID, arg.AttemptID, arg.DeviceID, arg.Type, arg.Message,
		arg.IdempotencyKey,
	)
	return scanCommand(row)
}

const getCommandByIdempotencyKeySQL = `
SELECT id, organization_id, attempt_id, device_id, type, message, state,
	sent_at, confirmed_at, error_code, error_detail, idempotency_key, external_execution
FROM command
WHERE organization_id = $1 AND idempotency_key = $2`

func (q *Queries) GetCommandByIdempotencyKey(ctx context.Context, orgID, idempotencyKey string) (Command, error) {
	row := q.db.QueryRow(ctx, getCommandByIdempotencyKeySQL, orgID, idempotencyKey)
	return scanCommand(row)
}

const getCommandByAttemptIDSQL = `
SELECT id, organization_id, attempt_id, device_id, type, message, state,
	sent_at, confirmed_at, error_code, error_detail, idempotency_key, external_execution
FROM command
WHERE organization_id = $1 AND attempt_id = $2`

// GetCommandByAttemptID reconstructs the command the idempotency
// short-circuit needs — an attempt persists at most one command in
// this design, so this is always the "first" one.
func (q *Queries) GetCommandByAttemptID(ctx context.Context, orgID, attemptID string) (Command, error) {
	row := q.db.QueryRow(ctx, getCommandByAttemptIDSQL, orgID, attemptID)
	return scanCommand(row)
}

const getCommandSQL = `
SELECT id, organization_id, attempt_id, device_id, type, message, state,
	sent_at, confirmed_at, error_code, error_detail, idempotency_key, external_execution
FROM command
WHERE organization_id = $1 AND id = $2`

func (q *Queries) GetCommand(ctx context.Context, orgID, id string) (Command, error) {
	row := q.db.QueryRow(ctx, getCommandSQL, orgID, id)
	return scanCommand(row)
}

// UpdateCommandOutcomeParams is the typed parameter set for
// UpdateCommandOutcome.
type UpdateCommandOutcomeParams struct {
	OrganizationID    pgtype.UUID
	ID                pgtype.UUID
	State             string
	ConfirmedAt       pgtype.Timestamptz
	ErrorCode         pgtype.Text
	ErrorDetail       pgtype.Text
	ExternalExecution pgtype.Text
}

// updateCommandOutcomeSQL is guarded by `state = 'SENT'` so a command
// already in a terminal state is never overwritten (spec §4.1 — the
// command state machine has no transition out of a terminal state). If
// zero rows match, the caller must distinguish "not found" from
// "already terminal" by re-reading the row with GetCommand.
const updateCommandOutcomeSQL = `
UPDATE command
SET state = $3, confirmed_at = $4, error_code = $5, error_detail = $6,
	external_execution = $7
WHERE organization_id = $1 AND id = $2 AND state = 'SENT'
RETURNING id, organization_id, attempt_id, device_id, type, message, state,
	sent_at, confirmed_at, error_code, error_detail, idempotency_key, external_execution`

func (q *Queries) UpdateCommandOutcome(ctx context.Context, arg UpdateCommandOutcomeParams) (Command, error) {
	row := q.db.QueryRow(ctx, updateCommandOutcomeSQL,
		arg.OrganizationID, arg.ID, arg.State, arg.ConfirmedAt, arg.ErrorCode, arg.ErrorDetail, arg.ExternalExecution,
	)
	return scanCommand(row)
}

func scanCommand(row pgx.Row) (Command, error) {
	var c Command
	err := row.Scan(
		&c.ID, &c.OrganizationID, &c.AttemptID, &c.DeviceID, &c.Type, &c.Message, &c.State,
		&c.SentAt, &c.ConfirmedAt, &c.ErrorCode, &c.ErrorDetail, &c.IdempotencyKey, &c.ExternalExecution,
	)
	return c, err
}
