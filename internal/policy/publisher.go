// Package policy implements rule-change propagation: publishing
// PolicyChanged/InvalidateAllRequested events through the outbox, and
// consuming them on every node to invalidate the candidate cache (spec
// §4.5).
package policy

import (
	"context"

	"github.com/arc-self/access-core/internal/outbox"
	"github.com/arc-self/access-core/internal/repository/db"
)

const (
	EventPolicyChanged          = "PolicyChanged"
	EventInvalidateAllRequested = "InvalidateAllRequested"
)

// Publisher emits rule-change notifications through the outbox so every
// node eventually invalidates its local candidate cache.
type Publisher struct {
	outbox *outbox.Publisher
}

// NewPublisher builds a Publisher over the shared outbox publisher.
func NewPublisher(ob *outbox.Publisher) *Publisher {
	return &Publisher{outbox: ob}
}

// ChangeType describes what happened to the rule that triggered the
// notification — informational only, invalidation is always area-wide.
type ChangeType string

const (
	ChangeCreated ChangeType = "CREATED"
	ChangeUpdated ChangeType = "UPDATED"
	ChangeDeleted ChangeType = "DELETED"
)

// PublishRuleChanged emits PolicyChanged for (orgId, areaId, ruleId).
func (p *Publisher) PublishRuleChanged(ctx context.Context, q db.Querier, orgID, areaID, ruleID string, changeType ChangeType) error {
	return p.outbox.Publish(ctx, q, orgID, outbox.Event{
		EventType:     EventPolicyChanged,
		AggregateType: "rule",
		AggregateID:   ruleID,
		Payload: map[string]interface{}{
			"orgId":      orgID,
			"areaId":     areaID,
			"ruleId":     ruleID,
			"changeType": string(changeType),
		},
	})
}

// PublishInvalidateAll emits InvalidateAllRequested for orgID — used for
// bulk rule imports or operator-triggered full cache resets.
func (p *Publisher) PublishInvalidateAll(ctx context.Context, q db.Querier, orgID string) error {
	return p.outbox.Publish(ctx, q, orgID, outbox.Event{
		EventType:     EventInvalidateAllRequested,
		AggregateType: "organization",
		AggregateID:   orgID,
		Payload: map[string]interface{}{
			"orgId": orgID,
		},
	})
}
