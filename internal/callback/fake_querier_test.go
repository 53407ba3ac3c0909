package callback_test

import (
	"context"

	"github.com/arc-self/access-core/internal/repository/db"
)

type fakeQuerier struct {
	db.Querier

	getCommand func(ctx context.Context, orgID, id string) (db.Command, error)
}

func (f *fakeQuerier) GetCommand(ctx context.Context, orgID, id string) (db.Command, error) {
	return f.getCommand(ctx, orgID, id)
}
