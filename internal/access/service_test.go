package access_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/access-core/internal/access"
	"github.com/arc-self/access-core/internal/apperror"
	"github.com/arc-self/access-core/internal/domain"
	"github.com/arc-self/access-core/internal/repository/db"
)

// Register's transactional write path opens a real pgxpool.Pool
// transaction and is exercised by integration tests against a live
// database, not here — these cover the pre-transaction branches:
// input validation, device scoping, and the idempotent short-circuit.

var errNoRows = errors.New("no rows")

func mustUUID(t *testing.T, s string) pgtype.UUID {
	t.Helper()
	var u pgtype.UUID
	require.NoError(t, u.Scan(s))
	return u
}

func TestRegister_BlankIdempotencyKey(t *testing.T) {
	svc := access.NewService(nil, &fakeQuerier{}, nil, nil, nil, nil, nil, nil, nil)
	_, err := svc.Register(context.Background(), "org-1", access.Request{
		DeviceID: "dev-1", AreaID: "area-1",
	})
	require.Error(t, err)
	ae, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, ae.Code)
}

func TestRegister_DeviceNotFound(t *testing.T) {
	fq := &fakeQuerier{
		getAttemptByIdempotency: func(ctx context.Context, orgID, key string) (db.Attempt, error) {
			return db.Attempt{}, errNoRows
		},
		getDevice: func(ctx context.Context, orgID, deviceID string) (db.DeviceRow, error) {
			return db.DeviceRow{}, errors.New("no such device")
		},
	}
	svc := access.NewService(nil, fq, nil, nil, nil, nil, nil, nil, nil)
	_, err := svc.Register(context.Background(), "org-1", access.Request{
		DeviceID: "missing-device", AreaID: "area-1", IdempotencyKey: "key-1",
	})
	require.Error(t, err)
	ae, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeNotFound, ae.Code)
}

func TestRegister_IdempotentHit_ReplaysPriorResult(t *testing.T) {
	attemptID := mustUUID(t, "018f0000-0000-7000-8000-000000000001")
	decisionID := mustUUID(t, "018f0000-0000-7000-8000-000000000002")

	fq := &fakeQuerier{
		getAttemptByIdempotency: func(ctx context.Context, orgID, key string) (db.Attempt, error) {
			return db.Attempt{ID: attemptID, IdempotencyKey: key}, nil
		},
		getDecisionByAttemptID: func(ctx context.Context, orgID, attemptID string) (db.Decision, error) {
			return db.Decision{ID: decisionID, Result: string(domain.DecisionPermit)}, nil
		},
		getCommandByAttemptID: func(ctx context.Context, orgID, attemptID string) (db.Command, error) {
			return db.Command{}, errors.New("no command for this attempt")
		},
	}
	svc := access.NewService(nil, fq, nil, nil, nil, nil, nil, nil, nil)

	result, err := svc.Register(context.Background(), "org-1", access.Request{
		DeviceID: "dev-1", AreaID: "area-1", IdempotencyKey: "key-1",
	})
	require.NoError(t, err)
	assert.Equal(t, attemptID.String(), result.AttemptID)
	assert.Equal(t, domain.DecisionPermit, result.DecisionResult)
	assert.Equal(t, decisionID.String(), result.DecisionID)
	assert.Nil(t, result.CommandID)
}
