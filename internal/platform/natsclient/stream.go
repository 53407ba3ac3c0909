package natsclient

import (
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	// StreamAccessEvents is the durable stream carrying everything this
	// service publishes on NATS: DLQ and parking-lot messages under
	// access.events and policy cache-invalidation events under
	// access.policy (spec §4.4, §4.5).
	StreamAccessEvents = "ACCESS_EVENTS"

	// SubjectAccessEvents captures the per-organization subjects built by
	// EventSubject, access.events.<orgId>.<kind>; the outbox dispatcher
	// publishes terminally-failed events there with kind "dlq".
	SubjectAccessEvents = "access.events.>"
	// SubjectPolicyEvents captures rule-change notifications consumed by
	// the candidate cache invalidator (spec §4.5): access.policy.<orgId>.>.
	SubjectPolicyEvents = "access.policy.>"
)

var streamSubjects = []string{SubjectAccessEvents, SubjectPolicyEvents}

// ProvisionStreams idempotently ensures the ACCESS_EVENTS JetStream stream
// exists with the correct subject filters. It creates the stream on first
// run and is a no-op if the stream already exists.
func (c *Client) ProvisionStreams() error {
	_, err := c.JS.StreamInfo(StreamAccessEvents)
	if err == nil {
		c.Log.Info("NATS stream already exists", zap.String("stream", StreamAccessEvents))
		return nil
	}

	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:      StreamAccessEvents,
		Subjects:  streamSubjects,
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
	}

	if _, err := c.JS.AddStream(cfg); err != nil {
		return fmt.Errorf("create stream: %w", err)
	}

	c.Log.Info("NATS stream provisioned",
		zap.String("stream", StreamAccessEvents),
		zap.Strings("subjects", streamSubjects),
	)
	return nil
}

// PolicySubject builds the subject a policy-change event for org is
// published on.
func PolicySubject(orgID, eventType string) string {
	return "access.policy." + orgID + "." + eventType
}

// EventSubject builds the subject an outbox event for org/eventType is
// published on.
func EventSubject(orgID, eventType string) string {
	return "access.events." + orgID + "." + eventType
}
