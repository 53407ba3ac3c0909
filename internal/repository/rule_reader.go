package repository

import (
	"context"

	"github.com/arc-self/access-core/internal/domain"
	"github.com/arc-self/access-core/internal/repository/db"
)

// RuleReader adapts db.Querier to cache.RuleReader, converting rows to
// domain.Rule at the repository boundary so the cache and engine never
// import the db package's pgtype-typed rows.
type RuleReader struct {
	Querier db.Querier
}

func (r RuleReader) ListActiveRulesByArea(ctx context.Context, orgID, areaID string) ([]domain.Rule, error) {
	rows, err := r.Querier.ListActiveRulesByArea(ctx, orgID, areaID)
	if err != nil {
		return nil, err
	}
	return ToDomainRules(rows), nil
}
