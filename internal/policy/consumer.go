package policy

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/arc-self/access-core/internal/cache"
	"github.com/arc-self/access-core/internal/platform/natsclient"
)

const (
	consumerDurable    = "access-core-policy-invalidator"
	consumerFetchBatch = 20
	consumerFetchWait  = 5 * time.Second
)

// policyChangedPayload mirrors Publisher.PublishRuleChanged's payload.
type policyChangedPayload struct {
	OrgID  string `json:"orgId"`
	AreaID string `json:"areaId"`
}

type invalidateAllPayload struct {
	OrgID string `json:"orgId"`
}

// Consumer subscribes to policy-change events on every node and
// invalidates the local candidate cache so reads stay eventually
// consistent across the cluster (spec §4.5).
type Consumer struct {
	nc    *natsclient.Client
	cache *cache.CandidateCache
	log   *zap.Logger
}

// NewConsumer builds a Consumer over the shared candidate cache.
func NewConsumer(nc *natsclient.Client, c *cache.CandidateCache, log *zap.Logger) *Consumer {
	return &Consumer{nc: nc, cache: c, log: log}
}

// Start subscribes to the policy subject as a durable pull consumer and
// invalidates the cache until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	sub, err := c.nc.JS.PullSubscribe(natsclient.SubjectPolicyEvents, consumerDurable, nats.AckExplicit(), nats.ManualAck())
	if err != nil {
		return err
	}

	c.log.Info("policy invalidation consumer started", zap.String("subject", natsclient.SubjectPolicyEvents))

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.log.Info("policy invalidation consumer stopping")
				return
			default:
			}

			msgs, err := sub.Fetch(consumerFetchBatch, nats.MaxWait(consumerFetchWait))
			if err != nil {
				if err == nats.ErrTimeout {
					continue
				}
				c.log.Error("policy consumer fetch error", zap.Error(err))
				continue
			}
			for _, msg := range msgs {
				c.process(msg)
			}
		}
	}()
	return nil
}

func (c *Consumer) process(msg *nats.Msg) {
	eventType := extractEventType(msg.Subject)

	switch eventType {
	case EventPolicyChanged:
		var p policyChangedPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			c.log.Warn("malformed PolicyChanged payload, terminating", zap.Error(err))
			msg.Term()
			return
		}
		c.cache.Invalidate(p.OrgID, p.AreaID)
		c.log.Debug("candidate cache invalidated", zap.String("org_id", p.OrgID), zap.String("area_id", p.AreaID))
		msg.Ack()
	case EventInvalidateAllRequested:
		var p invalidateAllPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			c.log.Warn("malformed InvalidateAllRequested payload, terminating", zap.Error(err))
			msg.Term()
			return
		}
		c.cache.InvalidateAll(p.OrgID)
		c.log.Info("candidate cache fully invalidated", zap.String("org_id", p.OrgID))
		msg.Ack()
	default:
		// Not a policy event this consumer understands — ack so it
		// doesn't pile up; the DOMAIN subject may carry other event
		// types this durable is not meant to process.
		msg.Ack()
	}
}

func extractEventType(subject string) string {
	for i := len(subject) - 1; i >= 0; i-- {
		if subject[i] == '.' {
			return subject[i+1:]
		}
	}
	return subject
}
