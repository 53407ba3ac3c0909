// Package outbox implements the transactional outbox: the composite
// writer used inside business transactions, the background dispatcher
// that claims and transports PENDING rows, and the DLQ/parking-lot
// terminal sinks (spec §4.4).
package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"

	"github.com/arc-self/access-core/internal/repository/db"
)

// Event is one domain event the pipeline or callback service wants
// delivered to external consumers (spec §4.4, §6 outbox envelope).
type Event struct {
	EventType     string
	AggregateType string
	AggregateID   string
	Payload       map[string]interface{}
}

// InProcessSubscriber receives a best-effort, in-process copy of every
// published event — e.g. the candidate cache's own-node invalidation
// handler. Failures here must never abort the business transaction
// (spec §4.4 write path, §9 "Global publisher").
type InProcessSubscriber func(orgID string, ev Event)

// Publisher is the composite sink: it writes the durable outbox row in
// the caller's transaction (required — failure aborts the transaction)
// and best-effort fans out to in-process subscribers (failures logged,
// never propagated).
type Publisher struct {
	subscribers []InProcessSubscriber
	log         *zap.Logger
}

// NewPublisher builds a Publisher with the given in-process subscribers.
func NewPublisher(log *zap.Logger, subscribers ...InProcessSubscriber) *Publisher {
	return &Publisher{subscribers: subscribers, log: log}
}

// Publish writes ev to the outbox through q (bound to the caller's open
// transaction) and then fans it out in-process. q must be bound to the
// same transaction as the business rows written alongside this event —
// the caller is responsible for that binding.
func (p *Publisher) Publish(ctx context.Context, q db.Querier, orgID string, ev Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate event id: %w", err)
	}
	var eventID pgtype.UUID
	if err := eventID.Scan(id.String()); err != nil {
		return fmt.Errorf("scan event id: %w", err)
	}
	var orgUUID pgtype.UUID
	if err := orgUUID.Scan(orgID); err != nil {
		return fmt.Errorf("scan organization id: %w", err)
	}

	if err := q.InsertOutboxEvent(ctx, db.InsertOutboxEventParams{
		ID:             eventID,
		OrganizationID: orgUUID,
		EventType:      ev.EventType,
		AggregateType:  ev.AggregateType,
		AggregateID:    ev.AggregateID,
		Payload:        payload,
	}); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}

	p.fanOut(orgID, ev)
	return nil
}

func (p *Publisher) fanOut(orgID string, ev Event) {
	for _, sub := range p.subscribers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.log.Error("in-process subscriber panicked", zap.Any("recover", r))
				}
			}()
			sub(orgID, ev)
		}()
	}
}
