// Package access implements the access pipeline: the single
// transactional register() operation that turns a device attempt into
// a persisted decision and, optionally, one device command (spec
// §4.1).
package access

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/arc-self/access-core/internal/apperror"
	"github.com/arc-self/access-core/internal/cache"
	"github.com/arc-self/access-core/internal/domain"
	"github.com/arc-self/access-core/internal/engine"
	"github.com/arc-self/access-core/internal/idempotency"
	"github.com/arc-self/access-core/internal/outbox"
	"github.com/arc-self/access-core/internal/repository/db"
	"github.com/arc-self/access-core/internal/zone"
)

const maxCommandMessageLen = 120

// Request is the input to Register (spec §4.1 inputs).
type Request struct {
	DeviceID         string
	AreaID           string
	Direction        domain.Direction
	AuthMethod       domain.AuthMethod
	CredentialRef    *string
	RawPayload       []byte
	IdempotencyKey   string
	GatewayRequestID *string
	OccurredAt       *time.Time
}

// Result is Register's output (spec §4.1 result).
type Result struct {
	AttemptID      string
	DecisionResult domain.DecisionResult
	DecisionID     string
	CommandID      *string
	CommandType    *domain.CommandType
	CommandState   *domain.CommandState
}

// Service implements register() over one DB transaction per attempt.
type Service struct {
	pool       *pgxpool.Pool
	root       db.Querier
	candidates *cache.Provider
	zones      *zone.Provider
	engine     *engine.Engine
	outbox     *outbox.Publisher
	idem       *idempotency.Cache
	metrics    *Metrics
	log        *zap.Logger
}

// NewService builds a Service. idem may be nil (a nil *Cache is a valid
// no-op lookaside cache).
func NewService(
	pool *pgxpool.Pool,
	root db.Querier,
	candidates *cache.Provider,
	zones *zone.Provider,
	eng *engine.Engine,
	ob *outbox.Publisher,
	idem *idempotency.Cache,
	metrics *Metrics,
	log *zap.Logger,
) *Service {
	return &Service{
		pool: pool, root: root, candidates: candidates, zones: zones,
		engine: eng, outbox: ob, idem: idem, metrics: metrics, log: log,
	}
}

// Register is the access pipeline's single transactional operation
// (spec §4.1 algorithm).
func (s *Service) Register(ctx context.Context, orgID string, req Request) (Result, error) {
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		return Result{}, apperror.Validation("idempotencyKey is required")
	}

	if result, found, err := s.idempotentHit(ctx, orgID, key); err != nil {
		return Result{}, err
	} else if found {
		s.metrics.incResult("idempotent_hit")
		return result, nil
	}

	deviceStart := time.Now()
	device, err := s.root.GetDevice(ctx, orgID, strings.TrimSpace(req.DeviceID))
	s.metrics.observePhase("device_scoping", time.Since(deviceStart).Seconds())
	if err != nil {
		return Result{}, apperror.NotFound("device not found for tenant")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Result{}, apperror.Transient("begin transaction", err)
	}
	defer tx.Rollback(ctx)
	q := db.New(tx)

	attemptStart := time.Now()
	attempt, err := s.persistAttempt(ctx, q, orgID, device, req, key)
	s.metrics.observePhase("attempt_persistence", time.Since(attemptStart).Seconds())
	if err != nil {
		if isUniqueViolation(err) {
			if result, found, hitErr := s.idempotentHit(ctx, orgID, key); hitErr == nil && found {
				s.metrics.incResult("idempotent_hit")
				return result, nil
			}
			return Result{}, apperror.Conflict("idempotency key race", err)
		}
		return Result{}, apperror.Internal("persist attempt", err)
	}

	subject := domain.SubjectType(attempt.SubjectType)
	direction := domain.Direction(attempt.Direction)
	authMethod := domain.AuthMethod(attempt.AuthMethod)
	occurredAt := attempt.OccurredAt.Time

	zoneLoc := s.zones.Resolve(ctx, orgID, device.AreaID)
	candidates, err := s.candidates.Candidates(ctx, orgID, device.AreaID, subject)
	if err != nil {
		return Result{}, apperror.Transient("load candidates", err)
	}

	engineStart := time.Now()
	output := s.engine.Evaluate(engine.DecisionContext{
		OrganizationID: orgID,
		AttemptID:      attempt.ID.String(),
		DeviceID:       device.ID,
		AreaID:         device.AreaID,
		Direction:      direction,
		AuthMethod:     authMethod,
		Subject:        subject,
		Now:            occurredAt,
		Zone:           zoneLoc,
	}, candidates)
	s.metrics.observePhase("engine_evaluation", time.Since(engineStart).Seconds())

	reasonCode, err := s.resolveReasonCode(ctx, q, output.ReasonCode)
	if err != nil {
		return Result{}, err
	}

	decisionStart := time.Now()
	decision, err := s.persistDecision(ctx, q, orgID, attempt.ID, output, reasonCode)
	s.metrics.observePhase("decision_persistence", time.Since(decisionStart).Seconds())
	if err != nil {
		return Result{}, apperror.Internal("persist decision", err)
	}

	if err := s.outbox.Publish(ctx, q, orgID, outbox.Event{
		EventType:     "AttemptRegistered",
		AggregateType: "attempt",
		AggregateID:   attempt.ID.String(),
		Payload: map[string]interface{}{
			"attemptId":      attempt.ID.String(),
			"deviceId":       device.ID,
			"areaId":         device.AreaID,
			"direction":      string(direction),
			"authMethod":     string(authMethod),
			"subjectType":    string(subject),
			"idempotencyKey": key,
			"occurredAt":     occurredAt.UTC().Format(time.RFC3339),
		},
	}); err != nil {
		return Result{}, apperror.Internal("publish AttemptRegistered", err)
	}

	if err := s.outbox.Publish(ctx, q, orgID, outbox.Event{
		EventType:     "DecisionMade",
		AggregateType: "decision",
		AggregateID:   decision.ID.String(),
		Payload: map[string]interface{}{
			"attemptId":  attempt.ID.String(),
			"decisionId": decision.ID.String(),
			"result":     string(output.Result),
			"reasonCode": string(reasonCode),
			"detail":     output.Detail,
		},
	}); err != nil {
		return Result{}, apperror.Internal("publish DecisionMade", err)
	}

	result := Result{
		AttemptID:      attempt.ID.String(),
		DecisionResult: domain.DecisionResult(decision.Result),
		DecisionID:     decision.ID.String(),
	}

	if output.HasCommand {
		cmdStart := time.Now()
		cmd, cmdErr := s.persistCommand(ctx, q, orgID, attempt, device, key, output)
		s.metrics.observePhase("command_persistence", time.Since(cmdStart).Seconds())
		if cmdErr != nil {
			s.metrics.incCommandGap()
			return Result{}, apperror.Internal("persist command", cmdErr)
		}

		if err := s.outbox.Publish(ctx, q, orgID, outbox.Event{
			EventType:     "CommandEmitted",
			AggregateType: "command",
			AggregateID:   cmd.ID.String(),
			Payload: map[string]interface{}{
				"attemptId": attempt.ID.String(),
				"commandId": cmd.ID.String(),
				"type":      cmd.Type,
				"state":     cmd.State,
				"message":   cmd.Message.String,
			},
		}); err != nil {
			return Result{}, apperror.Internal("publish CommandEmitted", err)
		}

		cmdID := cmd.ID.String()
		cmdType := domain.CommandType(cmd.Type)
		cmdState := domain.CommandState(cmd.State)
		result.CommandID = &cmdID
		result.CommandType = &cmdType
		result.CommandState = &cmdState
	}

	if err := tx.Commit(ctx); err != nil {
		return Result{}, apperror.Transient("commit transaction", err)
	}

	if s.idem != nil {
		s.idem.RememberAttempt(ctx, orgID, key, attempt.ID.String())
	}
	s.metrics.incResult(strings.ToLower(string(output.Result)))
	switch reasonCode {
	case domain.ReasonNoRulesForContext, domain.ReasonNoMatchingRule, domain.ReasonPolicyError:
		s.metrics.incReasonFallback(strings.ToLower(string(reasonCode)))
	}

	return result, nil
}

// idempotentHit implements spec §4.1 step 1: if an attempt already
// exists for (orgId, idempotencyKey), reconstruct the result without
// writing anything. The Redis cache, when it has the attempt id, lets
// this skip straight to a primary-key read instead of the
// idempotency-key index.
func (s *Service) idempotentHit(ctx context.Context, orgID, key string) (Result, bool, error) {
	var attempt db.Attempt

	if s.idem != nil {
		if cachedID, ok := s.idem.GetAttemptID(ctx, orgID, key); ok {
			if a, err := s.root.GetAttempt(ctx, orgID, cachedID); err == nil {
				attempt = a
			}
		}
	}

	if attempt.IdempotencyKey == "" {
		a, err := s.root.GetAttemptByIdempotencyKey(ctx, orgID, key)
		if err != nil {
			return Result{}, false, nil
		}
		attempt = a
	}

	decision, err := s.root.GetDecisionByAttemptID(ctx, orgID, attempt.ID.String())
	if err != nil {
		return Result{}, false, apperror.Internal("load decision for idempotent attempt", err)
	}

	result := Result{
		AttemptID:      attempt.ID.String(),
		DecisionResult: domain.DecisionResult(decision.Result),
		DecisionID:     decision.ID.String(),
	}

	if cmd, err := s.root.GetCommandByAttemptID(ctx, orgID, attempt.ID.String()); err == nil {
		cmdID := cmd.ID.String()
		cmdType := domain.CommandType(cmd.Type)
		cmdState := domain.CommandState(cmd.State)
		result.CommandID = &cmdID
		result.CommandType = &cmdType
		result.CommandState = &cmdState
	}

	return result, true, nil
}

func (s *Service) persistAttempt(ctx context.Context, q db.Querier, orgID string, device db.DeviceRow, req Request, idempotencyKey string) (db.Attempt, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return db.Attempt{}, err
	}
	attemptID, err := toUUID(id.String())
	if err != nil {
		return db.Attempt{}, err
	}
	orgUUID, err := toUUID(orgID)
	if err != nil {
		return db.Attempt{}, err
	}
	deviceUUID, err := toUUID(device.ID)
	if err != nil {
		return db.Attempt{}, err
	}
	areaUUID, err := toUUID(device.AreaID)
	if err != nil {
		return db.Attempt{}, err
	}

	occurredAt := time.Now().UTC()
	if req.OccurredAt != nil {
		occurredAt = req.OccurredAt.UTC()
	}
	var occurredAtParam pgtype.Timestamptz
	if err := occurredAtParam.Scan(occurredAt); err != nil {
		return db.Attempt{}, err
	}

	return q.InsertAttempt(ctx, db.InsertAttemptParams{
		ID:               attemptID,
		OrganizationID:   orgUUID,
		DeviceID:         deviceUUID,
		AreaID:           areaUUID,
		Direction:        string(req.Direction),
		AuthMethod:       string(req.AuthMethod),
		SubjectType:      string(domain.SubjectUnknown),
		CredentialRef:    normalizedText(req.CredentialRef),
		RawPayload:       req.RawPayload,
		IdempotencyKey:   idempotencyKey,
		GatewayRequestID: normalizedText(req.GatewayRequestID),
		OccurredAt:       occurredAtParam,
	})
}

// resolveReasonCode implements spec §4.1 step 5's reason-code
// resolution: fall back to POLICY_ERROR if the engine's code is
// missing from the catalog, and fail fast if even POLICY_ERROR is
// missing (spec §7 FatalConfigError).
func (s *Service) resolveReasonCode(ctx context.Context, q db.Querier, code domain.ReasonCode) (domain.ReasonCode, error) {
	if _, err := q.GetReason(ctx, string(code)); err == nil {
		return code, nil
	}
	if _, err := q.GetReason(ctx, string(domain.ReasonPolicyError)); err != nil {
		return "", apperror.FatalConfig("reason catalog is missing POLICY_ERROR", err)
	}
	return domain.ReasonPolicyError, nil
}

func (s *Service) persistDecision(ctx context.Context, q db.Querier, orgID string, attemptID pgtype.UUID, output engine.DecisionOutput, reasonCode domain.ReasonCode) (db.Decision, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return db.Decision{}, err
	}
	decisionID, err := toUUID(id.String())
	if err != nil {
		return db.Decision{}, err
	}
	orgUUID, err := toUUID(orgID)
	if err != nil {
		return db.Decision{}, err
	}

	var expiresAt pgtype.Timestamptz
	if output.ExpiresAt != nil {
		if err := expiresAt.Scan(output.ExpiresAt.UTC()); err != nil {
			return db.Decision{}, err
		}
	}

	return q.InsertDecision(ctx, db.InsertDecisionParams{
		ID:             decisionID,
		OrganizationID: orgUUID,
		AttemptID:      attemptID,
		Result:         string(output.Result),
		ReasonCode:     string(reasonCode),
		Detail:         optionalText(output.Detail),
		ExpiresAt:      expiresAt,
	})
}

func (s *Service) persistCommand(ctx context.Context, q db.Querier, orgID string, attempt db.Attempt, device db.DeviceRow, attemptIdempotencyKey string, output engine.DecisionOutput) (db.Command, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return db.Command{}, err
	}
	cmdID, err := toUUID(id.String())
	if err != nil {
		return db.Command{}, err
	}
	orgUUID, err := toUUID(orgID)
	if err != nil {
		return db.Command{}, err
	}
	deviceUUID, err := toUUID(device.ID)
	if err != nil {
		return db.Command{}, err
	}

	message := strings.TrimSpace(output.Message)
	if len(message) > maxCommandMessageLen {
		message = message[:maxCommandMessageLen]
	}

	return q.InsertCommand(ctx, db.InsertCommandParams{
		ID:             cmdID,
		OrganizationID: orgUUID,
		AttemptID:      attempt.ID,
		DeviceID:       deviceUUID,
		Type:           string(output.CommandHint),
		Message:        optionalText(message),
		IdempotencyKey: "CMD:" + attemptIdempotencyKey + ":" + string(output.CommandHint),
	})
}

func toUUID(s string) (pgtype.UUID, error) {
	var u pgtype.UUID
	if err := u.Scan(s); err != nil {
		return pgtype.UUID{}, err
	}
	return u, nil
}

func normalizedText(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return optionalText(strings.TrimSpace(*s))
}

func optionalText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
