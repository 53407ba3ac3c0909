package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// InsertOutboxEventParams is the typed parameter set for InsertOutboxEvent.
// Callers always run this through a *Queries bound to an open transaction
// alongside the business-row insert it accompanies (spec §4.4).
type InsertOutboxEventParams struct {
	ID             pgtype.UUID
	OrganizationID pgtype.UUID
	EventType      string
	AggregateType  string
	AggregateID    string
	Payload        []byte
}

const insertOutboxEventSQL = `
INSERT INTO outbox_event (
	id, organization_id, event_type, aggregate_type, aggregate_id, payload,
	status, attempts, created_at
) VALUES ($1, $2, $3, $4, $5, $6, 'PENDING', 0, now())`

func (q *Queries) InsertOutboxEvent(ctx context.Context, arg InsertOutboxEventParams) error {
	_, err := q.db.Exec(ctx, insertOutboxEventSQL,
		arg.ID, arg.OrganizationID, arg.EventType, arg.AggregateType, arg.AggregateID, arg.Payload,
	)
	return err
}

// ClaimPendingOutboxEventsParams parameterizes the dispatcher's claim step.
type ClaimPendingOutboxEventsParams struct {
	LockedBy string
	Limit    int32
}

// claimPendingOutboxEventsSQL locks up to Limit due, unlocked PENDING
// rows (a retry stays PENDING with a later next_attempt_at) with FOR
// UPDATE SKIP LOCKED so concurrent dispatcher instances never contend
// for the same row (spec §4.4 — competing consumers).
const claimPendingOutboxEventsSQL = `
WITH due AS (
	SELECT id FROM outbox_event
	WHERE status = 'PENDING'
	  AND (next_attempt_at IS NULL OR next_attempt_at <= now())
	  AND locked_at IS NULL
	ORDER BY created_at
	LIMIT $2
	FOR UPDATE SKIP LOCKED
)
UPDATE outbox_event o
SET locked_at = now(), locked_by = $1
FROM due
WHERE o.id = due.id
RETURNING o.id, o.organization_id, o.event_type, o.aggregate_type, o.aggregate_id,
	o.payload, o.status, o.attempts, o.created_at, o.published_at, o.next_attempt_at,
	o.last_error_code, o.last_error_msg, o.last_error_http, o.last_error_at,
	o.locked_at, o.locked_by`

func (q *Queries) ClaimPendingOutboxEvents(ctx context.Context, arg ClaimPendingOutboxEventsParams) ([]OutboxEvent, error) {
	rows, err := q.db.Query(ctx, claimPendingOutboxEventsSQL, arg.LockedBy, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(
			&e.ID, &e.OrganizationID, &e.EventType, &e.AggregateType, &e.AggregateID,
			&e.Payload, &e.Status, &e.Attempts, &e.CreatedAt, &e.PublishedAt, &e.NextAttemptAt,
			&e.LastErrorCode, &e.LastErrorMsg, &e.LastErrorHTTP, &e.LastErrorAt,
			&e.LockedAt, &e.LockedBy,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const markOutboxPublishedSQL = `
UPDATE outbox_event
SET status = 'PUBLISHED', published_at = now(), locked_at = NULL, locked_by = NULL
WHERE id = $1`

func (q *Queries) MarkOutboxPublished(ctx context.Context, id string) error {
	_, err := q.db.Exec(ctx, markOutboxPublishedSQL, id)
	return err
}

// MarkOutboxFailedParams carries the classified failure plus the
// dispatcher's computed next_attempt_at backoff deadline (spec §4.4).
type MarkOutboxFailedParams struct {
	ID            pgtype.UUID
	Status        string // PENDING to retry, FAILED once retries are exhausted
	NextAttemptAt pgtype.Timestamptz
	ErrorCode     pgtype.Text
	ErrorMsg      pgtype.Text
	ErrorHTTP     pgtype.Int4
}

const markOutboxFailedSQL = `
UPDATE outbox_event
SET status = $2, attempts = attempts + 1, next_attempt_at = $3,
	last_error_code = $4, last_error_msg = $5, last_error_http = $6, last_error_at = now(),
	locked_at = NULL, locked_by = NULL
WHERE id = $1`

func (q *Queries) MarkOutboxFailed(ctx context.Context, arg MarkOutboxFailedParams) error {
	_, err := q.db.Exec(ctx, markOutboxFailedSQL,
		arg.ID, arg.Status, arg.NextAttemptAt, arg.ErrorCode, arg.ErrorMsg, arg.ErrorHTTP,
	)
	return err
}

// reclaimStaleLocksSQL releases locks held past olderThanSeconds, so a
// dispatcher instance that crashed mid-claim doesn't strand its rows
// forever (run periodically by the janitor, spec §4.4 failure recovery).
const reclaimStaleLocksSQL = `
UPDATE outbox_event
SET locked_at = NULL, locked_by = NULL
WHERE locked_at IS NOT NULL
  AND locked_at < now() - ($1 || ' seconds')::interval
  AND status = 'PENDING'`

func (q *Queries) ReclaimStaleLocks(ctx context.Context, olderThanSeconds int) (int64, error) {
	tag, err := q.db.Exec(ctx, reclaimStaleLocksSQL, olderThanSeconds)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// InsertDeadLetterParams is the typed parameter set for InsertDeadLetter.
type InsertDeadLetterParams struct {
	ID              pgtype.UUID
	OriginalEventID pgtype.UUID
	OrganizationID  pgtype.UUID
	EventType       string
	AggregateType   string
	AggregateID     string
	Payload         []byte
	FailureReason   string
}

const insertDeadLetterSQL = `
INSERT INTO outbox_dead_letter (
	id, original_event_id, organization_id, event_type, aggregate_type,
	aggregate_id, payload, failure_reason, parked_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())`

func (q *Queries) InsertDeadLetter(ctx context.Context, arg InsertDeadLetterParams) error {
	_, err := q.db.Exec(ctx, insertDeadLetterSQL,
		arg.ID, arg.OriginalEventID, arg.OrganizationID, arg.EventType, arg.AggregateType,
		arg.AggregateID, arg.Payload, arg.FailureReason,
	)
	return err
}
