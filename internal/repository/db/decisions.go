package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// InsertDecisionParams is the typed parameter set for InsertDecision.
type InsertDecisionParams struct {
	ID             pgtype.UUID
	OrganizationID pgtype.UUID
	AttemptID      pgtype.UUID
	Result         string
	ReasonCode     string
	Detail         pgtype.Text
	ExpiresAt      pgtype.Timestamptz
	PolicyVersion  pgtype.Text
}

const insertDecisionSQL = `
INSERT INTO decision (
	id, organization_id, attempt_id, result, reason_code, detail,
	decided_at, expires_at, policy_version
) VALUES ($1, $2, $3, $4, $5, $6, now(), $7, $8)
RETURNING id, organization_id, attempt_id, result, reason_code, detail,
	decided_at, expires_at, policy_version`

func (q *Queries) InsertDecision(ctx context.Context, arg InsertDecisionParams) (Decision, error) {
	row := q.db.QueryRow(ctx, insertDecisionSQL,
		arg.ID, arg.OrganizationID, arg.AttemptID, arg.Result, arg.ReasonCode, arg.Detail,
		arg.ExpiresAt, arg.PolicyVersion,
	)
	return scanDecision(row)
}

const getDecisionByAttemptIDSQL = `
SELECT id, organization_id, attempt_id, result, reason_code, detail,
	decided_at, expires_at, policy_version
FROM decision
WHERE organization_id = $1 AND attempt_id = $2`

func (q *Queries) GetDecisionByAttemptID(ctx context.Context, orgID, attemptID string) (Decision, error) {
	row := q.db.QueryRow(ctx, getDecisionByAttemptIDSQL, orgID, attemptID)
	return scanDecision(row)
}

func scanDecision(row pgx.Row) (Decision, error) {
	var d Decision
	err := row.Scan(
		&d.ID, &d.OrganizationID, &d.AttemptID, &d.Result, &d.ReasonCode, &d.Detail,
		&d.DecidedAt, &d.ExpiresAt, &d.PolicyVersion,
	)
	return d, err
}
