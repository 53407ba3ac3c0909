package db

import "context"

// Querier is the full set of SQL operations the access pipeline, decision
// engine candidate loader, outbox dispatcher, and callback service depend
// on. Production code depends on this interface, never on *Queries, so
// tests can substitute a mock (go.uber.org/mock) or an in-memory fake.
type Querier interface {
	// Attempts (spec §3, §4.3 idempotent short-circuit).
	GetAttemptByIdempotencyKey(ctx context.Context, orgID, idempotencyKey string) (Attempt, error)
	InsertAttempt(ctx context.Context, arg InsertAttemptParams) (Attempt, error)
	GetAttempt(ctx context.Context, orgID, id string) (Attempt, error)

	// Decisions (spec §3, §4.2).
	GetDecisionByAttemptID(ctx context.Context, orgID, attemptID string) (Decision, error)
	InsertDecision(ctx context.Context, arg InsertDecisionParams) (Decision, error)

	// Commands (spec §3, §4.1 callback state machine).
	GetCommandByIdempotencyKey(ctx context.Context, orgID, idempotencyKey string) (Command, error)
	InsertCommand(ctx context.Context, arg InsertCommandParams) (Command, error)
	GetCommand(ctx context.Context, orgID, id string) (Command, error)
	GetCommandByAttemptID(ctx context.Context, orgID, attemptID string) (Command, error)
	UpdateCommandOutcome(ctx context.Context, arg UpdateCommandOutcomeParams) (Command, error)

	// Rules (spec §3, §4.2 candidate loading).
	ListActiveRulesByArea(ctx context.Context, orgID, areaID string) ([]Rule, error)

	// Reason catalog (spec §3, fixed lookup table).
	GetReason(ctx context.Context, code string) (ReasonCatalog, error)
	ListReasons(ctx context.Context) ([]ReasonCatalog, error)

	// Outbox (spec §3, §4.4 transactional outbox).
	InsertOutboxEvent(ctx context.Context, arg InsertOutboxEventParams) error
	ClaimPendingOutboxEvents(ctx context.Context, arg ClaimPendingOutboxEventsParams) ([]OutboxEvent, error)
	MarkOutboxPublished(ctx context.Context, id string) error
	MarkOutboxFailed(ctx context.Context, arg MarkOutboxFailedParams) error
	ReclaimStaleLocks(ctx context.Context, olderThanSeconds int) (int64, error)
	InsertDeadLetter(ctx context.Context, arg InsertDeadLetterParams) error

	// Audit log (spec §3, append-only).
	InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) error

	// External collaborators (spec §1 Out of scope — reads only).
	GetDevice(ctx context.Context, orgID, deviceID string) (DeviceRow, error)
	GetAreaZone(ctx context.Context, orgID, areaID string) (string, error)
}

var _ Querier = (*Queries)(nil)
