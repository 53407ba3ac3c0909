package access_test

import (
	"context"

	"github.com/arc-self/access-core/internal/repository/db"
)

// fakeQuerier implements db.Querier with per-call overrides; any method
// left nil panics if invoked, which surfaces an unexpectedly-exercised
// path instead of silently returning a zero value.
type fakeQuerier struct {
	db.Querier

	getAttempt              func(ctx context.Context, orgID, id string) (db.Attempt, error)
	getAttemptByIdempotency func(ctx context.Context, orgID, key string) (db.Attempt, error)
	getDecisionByAttemptID  func(ctx context.Context, orgID, attemptID string) (db.Decision, error)
	getCommandByAttemptID   func(ctx context.Context, orgID, attemptID string) (db.Command, error)
	getDevice               func(ctx context.Context, orgID, deviceID string) (db.DeviceRow, error)
	getReason               func(ctx context.Context, code string) (db.ReasonCatalog, error)
}

func (f *fakeQuerier) GetAttempt(ctx context.Context, orgID, id string) (db.Attempt, error) {
	return f.getAttempt(ctx, orgID, id)
}

func (f *fakeQuerier) GetAttemptByIdempotencyKey(ctx context.Context, orgID, key string) (db.Attempt, error) {
	return f.getAttemptByIdempotency(ctx, orgID, key)
}

func (f *fakeQuerier) GetDecisionByAttemptID(ctx context.Context, orgID, attemptID string) (db.Decision, error) {
	return f.getDecisionByAttemptID(ctx, orgID, attemptID)
}

func (f *fakeQuerier) GetCommandByAttemptID(ctx context.Context, orgID, attemptID string) (db.Command, error) {
	return f.getCommandByAttemptID(ctx, orgID, attemptID)
}

func (f *fakeQuerier) GetDevice(ctx context.Context, orgID, deviceID string) (db.DeviceRow, error) {
	return f.getDevice(ctx, orgID, deviceID)
}

func (f *fakeQuerier) GetReason(ctx context.Context, code string) (db.ReasonCatalog, error) {
	return f.getReason(ctx, code)
}
