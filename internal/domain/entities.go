package domain

import "time"

// Attempt is a single access event originated by a device. Once persisted
// it is never mutated (spec §3 Attempt lifecycle).
type Attempt struct {
	ID               string
	OrganizationID   string
	DeviceID         string
	AreaID           string
	Direction        Direction
	AuthMethod       AuthMethod
	SubjectType      SubjectType
	CredentialRef    *string
	RawPayload       []byte
	IdempotencyKey   string
	GatewayRequestID *string
	OccurredAt       time.Time
	CreatedAt        time.Time
}

// Decision is the policy outcome attached 1:1 to an attempt. Never mutated
// once written.
type Decision struct {
	ID             string
	OrganizationID string
	AttemptID      string
	Result         DecisionResult
	ReasonCode     ReasonCode
	Detail         *string
	DecidedAt      time.Time
	ExpiresAt      *time.Time
	PolicyVersion  *string
}

// Command is an instruction sent to a device reflecting a decision. It is
// created once in state SENT and transitions to exactly one terminal state.
type Command struct {
	ID                string
	OrganizationID    string
	AttemptID         string
	DeviceID          string
	Type              CommandType
	Message           *string
	State             CommandState
	SentAt            time.Time
	ConfirmedAt       *time.Time
	ErrorCode         *string
	ErrorDetail       *string
	IdempotencyKey    string
	ExternalExecution *string
}

// Rule is a base access-control rule. Agnostic of time when cached as a
// candidate; time-bounding is applied at match time by the engine.
type Rule struct {
	ID            string
	OrganizationID string
	AreaID        string
	DeviceID      *string
	SubjectType   SubjectType
	Direction     *Direction
	AuthMethod    *AuthMethod
	Action        RuleAction
	Priority      int
	State         RuleState
	Message       *string
	ValidFromUTC  *time.Time
	ValidToUTC    *time.Time
	FromLocal     *LocalTime
	ToLocal       *LocalTime
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}

// LocalTime is a wall-clock time of day, minute resolution, used for the
// rule's daily window bounds (spec §4.2 Daily window semantics).
type LocalTime struct {
	Hour   int
	Minute int
}

// Minutes returns the time of day as minutes-since-midnight, for ordering.
func (t LocalTime) Minutes() int { return t.Hour*60 + t.Minute }

// Reason is a row in the fixed reason catalog (spec §3).
type Reason struct {
	Code        ReasonCode
	Description string
}

// Device is the minimal device snapshot the engine and pipeline need.
// CRUD for the full device record is an external collaborator (spec §1).
type Device struct {
	ID             string
	OrganizationID string
	AreaID         string
}

// OutboxEvent is a durable, at-least-once queue row co-written with
// business state in the same transaction (spec §3, §4.4).
type OutboxEvent struct {
	ID             string
	OrganizationID string
	EventType      string
	AggregateType  string
	AggregateID    string
	Payload        []byte
	Status         OutboxStatus
	Attempts       int
	CreatedAt      time.Time
	PublishedAt    *time.Time
	NextAttemptAt  *time.Time
	LastErrorCode  *string
	LastErrorMsg   *string
	LastErrorHTTP  *int
	LastErrorAt    *time.Time
	LockedAt       *time.Time
	LockedBy       *string
}

// AuditLogEntry is an append-only, tenant-scoped audit row (spec §3).
type AuditLogEntry struct {
	ID             string
	OrganizationID string
	EventKey       string
	EventType      string
	AggregateType  string
	AggregateID    string
	Payload        []byte
	OccurredAt     time.Time
	CreatedAt      time.Time
}
