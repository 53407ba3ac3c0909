// Package callback implements the command callback state machine: the
// single final-state-guarded apply() operation devices use to report
// command outcomes (spec §4.3).
package callback

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/arc-self/access-core/internal/apperror"
	"github.com/arc-self/access-core/internal/domain"
	"github.com/arc-self/access-core/internal/outbox"
	"github.com/arc-self/access-core/internal/repository/db"
)

const (
	maxErrorCodeLen  = 60
	maxDetailLen     = 250
	maxExternalIDLen = 120
)

// Outcome is apply()'s input (spec §4.3 inputs).
type Outcome struct {
	State               domain.CommandState
	ErrorCode           *string
	Detail              *string
	OccurredAt          *time.Time
	ExternalExecutionID *string
}

// Service applies device outcome callbacks.
type Service struct {
	pool   *pgxpool.Pool
	root   db.Querier
	outbox *outbox.Publisher
	log    *zap.Logger
}

// NewService builds a Service. root is used for the initial read
// (including the terminal-state short-circuit, which never needs to
// write); the state transition and CommandExecuted publish run inside
// one short transaction opened on pool.
func NewService(pool *pgxpool.Pool, root db.Querier, ob *outbox.Publisher, log *zap.Logger) *Service {
	return &Service{pool: pool, root: root, outbox: ob, log: log}
}

// Apply implements spec §4.3's algorithm: load, guard against a second
// terminal transition, persist, and emit CommandExecuted. It never
// fails to reach a terminal state — late or duplicate outcomes are
// absorbed, not rejected.
func (s *Service) Apply(ctx context.Context, orgID, commandID string, outcome Outcome) (domain.CommandState, error) {
	if err := validateOutcome(outcome); err != nil {
		return "", err
	}

	cmd, err := s.root.GetCommand(ctx, orgID, strings.TrimSpace(commandID))
	if err != nil {
		return "", apperror.NotFound("command not found")
	}

	current := domain.CommandState(cmd.State)
	if current.IsTerminal() {
		if current == outcome.State {
			s.log.Debug("duplicate terminal outcome, no-op",
				zap.String("command_id", cmd.ID.String()), zap.String("state", string(current)))
		} else {
			s.log.Warn("late outcome for command already in a different terminal state",
				zap.String("command_id", cmd.ID.String()),
				zap.String("current_state", string(current)),
				zap.String("incoming_state", string(outcome.State)))
		}
		return current, nil
	}

	confirmedAt := time.Now().UTC()
	if outcome.OccurredAt != nil {
		confirmedAt = outcome.OccurredAt.UTC()
	}
	var confirmedAtParam pgtype.Timestamptz
	if err := confirmedAtParam.Scan(confirmedAt); err != nil {
		return "", apperror.Internal("scan confirmedAt", err)
	}

	externalExecution := cmd.ExternalExecution
	if !externalExecution.Valid || strings.TrimSpace(externalExecution.String) == "" {
		externalExecution = optionalText(outcome.ExternalExecutionID)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", apperror.Transient("begin transaction", err)
	}
	defer tx.Rollback(ctx)
	q := db.New(tx)

	updated, err := q.UpdateCommandOutcome(ctx, db.UpdateCommandOutcomeParams{
		OrganizationID:    cmd.OrganizationID,
		ID:                cmd.ID,
		State:             string(outcome.State),
		ConfirmedAt:       confirmedAtParam,
		ErrorCode:         optionalText(outcome.ErrorCode),
		ErrorDetail:       optionalText(outcome.Detail),
		ExternalExecution: externalExecution,
	})
	if err != nil {
		// Zero rows matched because the command raced to a terminal
		// state between our read and this write — re-read and absorb
		// it the same way the pre-checked terminal branch does.
		if reread, rereadErr := s.root.GetCommand(ctx, orgID, cmd.ID.String()); rereadErr == nil {
			s.log.Warn("command reached terminal state concurrently, absorbing outcome",
				zap.String("command_id", cmd.ID.String()), zap.String("state", reread.State))
			return domain.CommandState(reread.State), nil
		}
		return "", apperror.Internal("update command outcome", err)
	}

	if err := s.outbox.Publish(ctx, q, orgID, outbox.Event{
		EventType:     "CommandExecuted",
		AggregateType: "command",
		AggregateID:   updated.ID.String(),
		Payload: map[string]interface{}{
			"commandId":  updated.ID.String(),
			"attemptId":  updated.AttemptID.String(),
			"deviceId":   updated.DeviceID.String(),
			"finalState": updated.State,
			"at":         confirmedAt.Format(time.RFC3339),
			"errorCode":  updated.ErrorCode.String,
			"detail":     updated.ErrorDetail.String,
			"externalId": updated.ExternalExecution.String,
		},
	}); err != nil {
		return "", apperror.Internal("publish CommandExecuted", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", apperror.Transient("commit transaction", err)
	}

	return domain.CommandState(updated.State), nil
}

func validateOutcome(o Outcome) error {
	switch o.State {
	case domain.CommandExecutedOK, domain.CommandExecutedError, domain.CommandTimeout:
	default:
		return apperror.Validation("state must be one of EXECUTED_OK, EXECUTED_ERROR, TIMEOUT")
	}
	if o.ErrorCode != nil && len(*o.ErrorCode) > maxErrorCodeLen {
		return apperror.Validation("errorCode exceeds 60 characters")
	}
	if o.Detail != nil && len(*o.Detail) > maxDetailLen {
		return apperror.Validation("detail exceeds 250 characters")
	}
	if o.ExternalExecutionID != nil && len(*o.ExternalExecutionID) > maxExternalIDLen {
		return apperror.Validation("externalExecutionId exceeds 120 characters")
	}
	if o.State == domain.CommandExecutedError {
		hasCode := o.ErrorCode != nil && strings.TrimSpace(*o.ErrorCode) != ""
		hasDetail := o.Detail != nil && strings.TrimSpace(*o.Detail) != ""
		if !hasCode && !hasDetail {
			return apperror.Validation("EXECUTED_ERROR requires errorCode or detail")
		}
	}
	return nil
}

func optionalText(s *string) pgtype.Text {
	if s == nil || strings.TrimSpace(*s) == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: strings.TrimSpace(*s), Valid: true}
}
