// Package repository adapts the hand-written sqlc-style db.Queries rows
// (pgtype-typed, matching this codebase's generated-SQL convention) into
// the plain domain.* structs the engine, pipeline, and cache operate on.
package repository

import (
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/arc-self/access-core/internal/domain"
	"github.com/arc-self/access-core/internal/repository/db"
)

func textOrNil(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func minutesToLocalTime(m int32) *domain.LocalTime {
	return &domain.LocalTime{Hour: int(m / 60), Minute: int(m % 60)}
}

// ToDomainRule converts a db.Rule row into the engine's domain.Rule.
func ToDomainRule(r db.Rule) domain.Rule {
	var direction *domain.Direction
	if d := textOrNil(r.Direction); d != nil {
		dv := domain.Direction(*d)
		direction = &dv
	}
	var authMethod *domain.AuthMethod
	if a := textOrNil(r.AuthMethod); a != nil {
		av := domain.AuthMethod(*a)
		authMethod = &av
	}

	rule := domain.Rule{
		ID:             r.ID.String(),
		OrganizationID: r.OrganizationID.String(),
		AreaID:         r.AreaID.String(),
		SubjectType:    domain.SubjectType(r.SubjectType),
		Direction:      direction,
		AuthMethod:     authMethod,
		Action:         domain.RuleAction(r.Action),
		Priority:       int(r.Priority),
		State:          domain.RuleState(r.State),
		Message:        textOrNil(r.Message),
	}
	if r.DeviceID.Valid {
		id := r.DeviceID.String()
		rule.DeviceID = &id
	}
	if r.ValidFromUTC.Valid {
		t := r.ValidFromUTC.Time
		rule.ValidFromUTC = &t
	}
	if r.ValidToUTC.Valid {
		t := r.ValidToUTC.Time
		rule.ValidToUTC = &t
	}
	if r.FromLocalMin.Valid {
		rule.FromLocal = minutesToLocalTime(r.FromLocalMin.Int32)
	}
	if r.ToLocalMin.Valid {
		rule.ToLocal = minutesToLocalTime(r.ToLocalMin.Int32)
	}
	if r.CreatedAt.Valid {
		rule.CreatedAt = r.CreatedAt.Time
	}
	if r.UpdatedAt.Valid {
		t := r.UpdatedAt.Time
		rule.UpdatedAt = &t
	}
	return rule
}

// ToDomainRules converts a slice of db.Rule rows.
func ToDomainRules(rows []db.Rule) []domain.Rule {
	out := make([]domain.Rule, len(rows))
	for i, r := range rows {
		out[i] = ToDomainRule(r)
	}
	return out
}
