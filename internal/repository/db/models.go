package db

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// Attempt mirrors the attempt table (spec §3).
type Attempt struct {
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
	CreatedAt        pgtype.Timestamptz
}

// Decision mirrors the decision table (spec §3).
type Decision struct {
	ID             pgtype.UUID
	OrganizationID pgtype.UUID
	AttemptID      pgtype.UUID
	Result         string
	ReasonCode     string
	Detail         pgtype.Text
	DecidedAt      pgtype.Timestamptz
	ExpiresAt      pgtype.Timestamptz
	PolicyVersion  pgtype.Text
}

// Command mirrors the command table (spec §3, §4.1).
type Command struct {
	ID                pgtype.UUID
	OrganizationID    pgtype.UUID
	AttemptID         pgtype.UUID
	DeviceID          pgtype.UUID
	Type              string
	Message           pgtype.Text
	State             string
	SentAt            pgtype.Timestamptz
	ConfirmedAt       pgtype.Timestamptz
	ErrorCode         pgtype.Text
	ErrorDetail       pgtype.Text
	IdempotencyKey    string
	ExternalExecution pgtype.Text
}

// Rule mirrors the rule table (spec §3, §4.2).
type Rule struct {
	ID             pgtype.UUID
	OrganizationID pgtype.UUID
	AreaID         pgtype.UUID
	DeviceID       pgtype.UUID
	SubjectType    string
	Direction      pgtype.Text
	AuthMethod     pgtype.Text
	Action         string
	Priority       int32
	State          string
	Message        pgtype.Text
	ValidFromUTC   pgtype.Timestamptz
	ValidToUTC     pgtype.Timestamptz
	FromLocalMin   pgtype.Int4
	ToLocalMin     pgtype.Int4
	CreatedAt      pgtype.Timestamptz
	UpdatedAt      pgtype.Timestamptz
}

// ReasonCatalog mirrors the fixed reason_catalog table (spec §3).
type ReasonCatalog struct {
	Code        string
	Description string
}

// OutboxEvent mirrors the outbox_event table (spec §3, §4.4).
type OutboxEvent struct {
	ID             pgtype.UUID
	OrganizationID pgtype.UUID
	EventType      string
	AggregateType  string
	AggregateID    string
	Payload        []byte
	Status         string
	Attempts       int32
	CreatedAt      pgtype.Timestamptz
	PublishedAt    pgtype.Timestamptz
	NextAttemptAt  pgtype.Timestamptz
	LastErrorCode  pgtype.Text
	LastErrorMsg   pgtype.Text
	LastErrorHTTP  pgtype.Int4
	LastErrorAt    pgtype.Timestamptz
	LockedAt       pgtype.Timestamptz
	LockedBy       pgtype.Text
}

// AuditLog mirrors the append-only audit_log table (spec §3).
type AuditLog struct {
	ID             pgtype.UUID
	OrganizationID pgtype.UUID
	EventKey       string
	EventType      string
	AggregateType  string
	AggregateID    string
	Payload        []byte
	OccurredAt     pgtype.Timestamptz
	CreatedAt      pgtype.Timestamptz
}
