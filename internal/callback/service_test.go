package callback_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arc-self/access-core/internal/apperror"
	"github.com/arc-self/access-core/internal/callback"
	"github.com/arc-self/access-core/internal/domain"
	"github.com/arc-self/access-core/internal/repository/db"
)

// Apply's state-transition write path opens a real pgxpool.Pool
// transaction and is exercised by integration tests against a live
// database, not here — these cover validation and the terminal-state
// guard, neither of which touches the pool.

func TestApply_CommandNotFound(t *testing.T) {
	fq := &fakeQuerier{
		getCommand: func(ctx context.Context, orgID, id string) (db.Command, error) {
			return db.Command{}, errors.New("no rows")
		},
	}
	svc := callback.NewService(nil, fq, nil, zap.NewNop())

	_, err := svc.Apply(context.Background(), "org-1", "cmd-1", callback.Outcome{
		State: domain.CommandExecutedOK,
	})
	require.Error(t, err)
	ae, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeNotFound, ae.Code)
}

func TestApply_DuplicateTerminalOutcome_IsNoOp(t *testing.T) {
	fq := &fakeQuerier{
		getCommand: func(ctx context.Context, orgID, id string) (db.Command, error) {
			return db.Command{State: string(domain.CommandExecutedOK)}, nil
		},
	}
	svc := callback.NewService(nil, fq, nil, zap.NewNop())

	state, err := svc.Apply(context.Background(), "org-1", "cmd-1", callback.Outcome{
		State: domain.CommandExecutedOK,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.CommandExecutedOK, state)
}

func TestApply_LateOutcomeAfterDifferentTerminalState_IsAbsorbed(t *testing.T) {
	fq := &fakeQuerier{
		getCommand: func(ctx context.Context, orgID, id string) (db.Command, error) {
			return db.Command{State: string(domain.CommandTimeout)}, nil
		},
	}
	svc := callback.NewService(nil, fq, nil, zap.NewNop())

	state, err := svc.Apply(context.Background(), "org-1", "cmd-1", callback.Outcome{
		State: domain.CommandExecutedOK,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.CommandTimeout, state)
}

func TestApply_InvalidState_Rejected(t *testing.T) {
	svc := callback.NewService(nil, &fakeQuerier{}, nil, zap.NewNop())

	_, err := svc.Apply(context.Background(), "org-1", "cmd-1", callback.Outcome{
		State: domain.CommandState("BOGUS"),
	})
	require.Error(t, err)
	ae, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, ae.Code)
}

func TestApply_ExecutedErrorWithoutCodeOrDetail_Rejected(t *testing.T) {
	svc := callback.NewService(nil, &fakeQuerier{}, nil, zap.NewNop())

	_, err := svc.Apply(context.Background(), "org-1", "cmd-1", callback.Outcome{
		State: domain.CommandExecutedError,
	})
	require.Error(t, err)
	ae, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, ae.Code)
}
