// Package engine implements the pure rule-based decision engine (spec
// §4.2). evaluate never performs I/O; it is handed a pre-loaded
// candidate set and the caller's resolved zone.
package engine

import (
	"strings"
	"time"

	"github.com/arc-self/access-core/internal/domain"
)

// DecisionContext is the immutable input the access pipeline builds for
// one attempt (spec §4.1 step 4).
type DecisionContext struct {
	OrganizationID string
	AttemptID      string
	DeviceID       string
	AreaID         string
	Direction      domain.Direction
	AuthMethod     domain.AuthMethod
	Subject        domain.SubjectType
	Now            time.Time     // UTC instant the engine evaluates against
	Zone           *time.Location // resolved via zone.Provider; defaults to UTC
}

// DecisionOutput is what evaluate returns; commandHint, when non-empty,
// tells the pipeline to emit exactly one command (spec §4.1 step 6).
type DecisionOutput struct {
	Result      domain.DecisionResult
	ReasonCode  domain.ReasonCode
	Detail      string
	DecidedAt   time.Time
	ExpiresAt   *time.Time
	CommandHint domain.CommandType
	HasCommand  bool
	Message     string
}

// ZoneFallbackCounter is incremented whenever the engine must default to
// UTC because no zone was supplied (spec §4.2 zone resolution).
type ZoneFallbackCounter interface {
	Inc()
}

// MalformedWindowCounter is incremented whenever a rule's daily window
// cannot be evaluated (spec §4.2 — "exactly one null or d == h").
type MalformedWindowCounter interface {
	Inc()
}

// Engine evaluates a DecisionContext against a candidate rule set.
type Engine struct {
	zoneFallback      ZoneFallbackCounter
	malformedWindow   MalformedWindowCounter
}

// NewEngine builds an Engine. Either counter may be nil (counting is
// then a no-op), which keeps unit tests free of metrics wiring.
func NewEngine(zoneFallback ZoneFallbackCounter, malformedWindow MalformedWindowCounter) *Engine {
	return &Engine{zoneFallback: zoneFallback, malformedWindow: malformedWindow}
}

func (e *Engine) incZoneFallback() {
	if e.zoneFallback != nil {
		e.zoneFallback.Inc()
	}
}

func (e *Engine) incMalformedWindow() {
	if e.malformedWindow != nil {
		e.malformedWindow.Inc()
	}
}

// Evaluate runs the matching and selection algorithm over candidates and
// translates the winner into a DecisionOutput. It never returns an error
// for domain data — malformed rule data degrades to ERROR/POLICY_ERROR.
func (e *Engine) Evaluate(ctx DecisionContext, candidates []domain.Rule) DecisionOutput {
	now := ctx.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	zone := ctx.Zone
	if zone == nil {
		e.incZoneFallback()
		zone = time.UTC
	}

	if len(candidates) == 0 {
		return e.fallback(domain.ReasonNoRulesForContext, now)
	}

	var winner *domain.Rule
	localNow := now.In(zone)
	for i := range candidates {
		r := &candidates[i]
		if e.matches(r, ctx, now, localNow) {
			if winner == nil || isBetter(r, winner) {
				winner = r
			}
		}
	}

	if winner == nil {
		return e.fallback(domain.ReasonNoMatchingRule, now)
	}

	return e.translate(winner, now)
}

func (e *Engine) matches(r *domain.Rule, ctx DecisionContext, now, localNow time.Time) bool {
	if r.State != domain.RuleStateActive {
		return false
	}
	if r.DeviceID != nil && *r.DeviceID != ctx.DeviceID {
		return false
	}
	if r.Direction != nil && *r.Direction != ctx.Direction {
		return false
	}
	if r.AuthMethod != nil && *r.AuthMethod != ctx.AuthMethod {
		return false
	}
	if r.ValidFromUTC != nil && now.Before(*r.ValidFromUTC) {
		return false
	}
	if r.ValidToUTC != nil && now.After(*r.ValidToUTC) {
		return false
	}
	return e.dailyWindowMatches(r, localNow)
}

// dailyWindowMatches implements spec §4.2's daily window semantics,
// including overnight wraparound.
func (e *Engine) dailyWindowMatches(r *domain.Rule, localNow time.Time) bool {
	if r.FromLocal == nil && r.ToLocal == nil {
		return true
	}
	if r.FromLocal == nil || r.ToLocal == nil {
		e.incMalformedWindow()
		return false
	}

	d := r.FromLocal.Minutes()
	h := r.ToLocal.Minutes()
	if d == h {
		e.incMalformedWindow()
		return false
	}

	t := localNow.Hour()*60 + localNow.Minute()
	if d < h {
		return t >= d && t < h
	}
	// overnight: d > h
	return t >= d || t < h
}

// isBetter reports whether candidate beats current under the tie-break
// order: priority, then updatedAt (nulls last), then createdAt (nulls last).
func isBetter(candidate, current *domain.Rule) bool {
	if candidate.Priority != current.Priority {
		return candidate.Priority > current.Priority
	}
	if cmp, ok := compareNullableTime(candidate.UpdatedAt, current.UpdatedAt); ok {
		return cmp > 0
	}
	cmp, _ := compareNullableTime(&candidate.CreatedAt, &current.CreatedAt)
	return cmp > 0
}

// compareNullableTime returns (cmp, true) when a decision could be made
// from these two pointers (non-equal/non-both-nil), nulls sorting last.
func compareNullableTime(a, b *time.Time) (int, bool) {
	if a == nil && b == nil {
		return 0, false
	}
	if a == nil {
		return -1, true
	}
	if b == nil {
		return 1, true
	}
	if a.Equal(*b) {
		return 0, false
	}
	if a.After(*b) {
		return 1, true
	}
	return -1, true
}

func (e *Engine) fallback(reason domain.ReasonCode, now time.Time) DecisionOutput {
	return DecisionOutput{
		Result:      domain.DecisionDeny,
		ReasonCode:  reason,
		DecidedAt:   now,
		CommandHint: domain.CommandDenyWithSignal,
		HasCommand:  true,
		Message:     "Access denied",
	}
}

func (e *Engine) translate(r *domain.Rule, now time.Time) DecisionOutput {
	switch r.Action {
	case domain.ActionPermit:
		return DecisionOutput{
			Result:      domain.DecisionPermit,
			ReasonCode:  domain.ReasonRuleMatchAllow,
			DecidedAt:   now,
			CommandHint: domain.CommandOpenDoor,
			HasCommand:  true,
			Message:     derefOr(r.Message, ""),
		}
	case domain.ActionDeny:
		return DecisionOutput{
			Result:      domain.DecisionDeny,
			ReasonCode:  domain.ReasonRuleMatchDeny,
			DecidedAt:   now,
			CommandHint: domain.CommandDenyWithSignal,
			HasCommand:  true,
			Message:     derefOr(r.Message, "Access denied"),
		}
	case domain.ActionRequireAuth:
		return DecisionOutput{
			Result:     domain.DecisionPending,
			ReasonCode: domain.ReasonRuleMatchRequireAuth,
			DecidedAt:  now,
			Message:    "Requires additional authentication",
		}
	case domain.ActionWaitControl:
		expires := now.Add(15 * time.Second)
		return DecisionOutput{
			Result:     domain.DecisionPending,
			ReasonCode: domain.ReasonRuleMatchWaitControl,
			DecidedAt:  now,
			ExpiresAt:  &expires,
			Detail:     derefOr(r.Message, ""),
		}
	default:
		return DecisionOutput{
			Result:     domain.DecisionError,
			ReasonCode: domain.ReasonPolicyError,
			DecidedAt:  now,
			Message:    "Rule without action",
		}
	}
}

func derefOr(s *string, def string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return def
	}
	return *s
}
