package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/access-core/internal/domain"
	"github.com/arc-self/access-core/internal/engine"
)

func baseCtx(now time.Time, zone *time.Location) engine.DecisionContext {
	return engine.DecisionContext{
		OrganizationID: "org-1",
		AttemptID:      "att-1",
		DeviceID:       "dev-1",
		AreaID:         "area-1",
		Direction:      domain.DirectionIn,
		AuthMethod:     domain.AuthMethodCard,
		Subject:        domain.SubjectResident,
		Now:            now,
		Zone:           zone,
	}
}

func TestEvaluate_HappyPathPermit(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	rule := domain.Rule{
		ID:          "r1",
		AreaID:      "area-1",
		SubjectType: domain.SubjectResident,
		Action:      domain.ActionPermit,
		Priority:    100,
		State:       domain.RuleStateActive,
	}

	e := engine.NewEngine(nil, nil)
	out := e.Evaluate(baseCtx(now, time.UTC), []domain.Rule{rule})

	assert.Equal(t, domain.DecisionPermit, out.Result)
	assert.Equal(t, domain.ReasonRuleMatchAllow, out.ReasonCode)
	require.True(t, out.HasCommand)
	assert.Equal(t, domain.CommandOpenDoor, out.CommandHint)
}

func TestEvaluate_NoCandidates(t *testing.T) {
	e := engine.NewEngine(nil, nil)
	out := e.Evaluate(baseCtx(time.Now().UTC(), time.UTC), nil)

	assert.Equal(t, domain.DecisionDeny, out.Result)
	assert.Equal(t, domain.ReasonNoRulesForContext, out.ReasonCode)
	assert.Equal(t, domain.CommandDenyWithSignal, out.CommandHint)
}

func TestEvaluate_NoMatchingRule(t *testing.T) {
	rule := domain.Rule{
		AreaID:      "area-1",
		SubjectType: domain.SubjectResident,
		Action:      domain.ActionPermit,
		Priority:    100,
		State:       domain.RuleStateActive,
		Direction:   directionPtr(domain.DirectionOut), // never matches an IN attempt
	}

	e := engine.NewEngine(nil, nil)
	out := e.Evaluate(baseCtx(time.Now().UTC(), time.UTC), []domain.Rule{rule})

	assert.Equal(t, domain.DecisionDeny, out.Result)
	assert.Equal(t, domain.ReasonNoMatchingRule, out.ReasonCode)
}

func TestEvaluate_OvernightWindow(t *testing.T) {
	bogota, err := time.LoadLocation("America/Bogota")
	require.NoError(t, err)

	rule := domain.Rule{
		AreaID:      "area-1",
		SubjectType: domain.SubjectResident,
		Action:      domain.ActionPermit,
		Priority:    100,
		State:       domain.RuleStateActive,
		FromLocal:   &domain.LocalTime{Hour: 22, Minute: 0},
		ToLocal:     &domain.LocalTime{Hour: 6, Minute: 0},
	}
	e := engine.NewEngine(nil, nil)

	// 23:30 local falls inside [22:00, 06:00) wraparound — matches.
	matchNow := time.Date(2026, 7, 31, 23, 30, 0, 0, time.UTC)
	inBogota := time.Date(matchNow.Year(), matchNow.Month(), matchNow.Day(), 23, 30, 0, 0, bogota)
	out := e.Evaluate(baseCtx(inBogota.UTC(), bogota), []domain.Rule{rule})
	assert.Equal(t, domain.DecisionPermit, out.Result)

	// 07:00 local falls outside the window — no match, falls back to deny.
	missNow := time.Date(2026, 8, 1, 7, 0, 0, 0, bogota)
	out = e.Evaluate(baseCtx(missNow.UTC(), bogota), []domain.Rule{rule})
	assert.Equal(t, domain.DecisionDeny, out.Result)
	assert.Equal(t, domain.ReasonNoMatchingRule, out.ReasonCode)
}

func TestEvaluate_PriorityTieBreak(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	low := domain.Rule{ID: "low", AreaID: "area-1", SubjectType: domain.SubjectResident, Action: domain.ActionDeny, Priority: 100, State: domain.RuleStateActive}
	high := domain.Rule{ID: "high", AreaID: "area-1", SubjectType: domain.SubjectResident, Action: domain.ActionPermit, Priority: 200, State: domain.RuleStateActive}

	e := engine.NewEngine(nil, nil)
	out := e.Evaluate(baseCtx(now, time.UTC), []domain.Rule{low, high})
	assert.Equal(t, domain.DecisionPermit, out.Result, "higher priority rule should win")

	// Equal priority: newer updatedAt wins.
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	low.Priority = 100
	high.Priority = 100
	low.UpdatedAt = &older
	high.UpdatedAt = &newer

	out = e.Evaluate(baseCtx(now, time.UTC), []domain.Rule{low, high})
	assert.Equal(t, domain.DecisionPermit, out.Result, "newer updatedAt should win on a priority tie")
}

func TestEvaluate_WaitControlSetsExpiry(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	rule := domain.Rule{AreaID: "area-1", SubjectType: domain.SubjectResident, Action: domain.ActionWaitControl, Priority: 100, State: domain.RuleStateActive}

	e := engine.NewEngine(nil, nil)
	out := e.Evaluate(baseCtx(now, time.UTC), []domain.Rule{rule})

	assert.Equal(t, domain.DecisionPending, out.Result)
	require.NotNil(t, out.ExpiresAt)
	assert.Equal(t, now.Add(15*time.Second), *out.ExpiresAt)
}

func TestEvaluate_NilActionIsPolicyError(t *testing.T) {
	rule := domain.Rule{AreaID: "area-1", SubjectType: domain.SubjectResident, Priority: 100, State: domain.RuleStateActive}

	e := engine.NewEngine(nil, nil)
	out := e.Evaluate(baseCtx(time.Now().UTC(), time.UTC), []domain.Rule{rule})

	assert.Equal(t, domain.DecisionError, out.Result)
	assert.Equal(t, domain.ReasonPolicyError, out.ReasonCode)
}

func directionPtr(d domain.Direction) *domain.Direction { return &d }
