package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"

	"github.com/arc-self/access-core/internal/platform/natsclient"
	"github.com/arc-self/access-core/internal/repository/db"
)

// Dispatcher is the background worker that claims PENDING outbox rows
// and transports them, retrying or terminally failing per the backoff
// policy and failure taxonomy (spec §4.4).
type Dispatcher struct {
	querier    db.Querier
	transport  *HTTPTransport
	backoff    *BackoffPolicy
	nats       *natsclient.Client
	instanceID string
	batchSize  int32
	interval   time.Duration
	metrics    *Metrics
	log        *zap.Logger
}

// NewDispatcher builds a Dispatcher. nats is used to forward
// terminally-failed events to the DLQ subject (spec §4.4 DLQ/Parking lot)
// and to publish delivered policy-change events on the policy subject
// that every node's policy consumer reads (spec §4.5).
func NewDispatcher(
	querier db.Querier,
	transport *HTTPTransport,
	backoff *BackoffPolicy,
	nats *natsclient.Client,
	instanceID string,
	batchSize int,
	interval time.Duration,
	metrics *Metrics,
	log *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		querier:    querier,
		transport:  transport,
		backoff:    backoff,
		nats:       nats,
		instanceID: instanceID,
		batchSize:  int32(batchSize),
		interval:   interval,
		metrics:    metrics,
		log:        log,
	}
}

// Run blocks, ticking at the configured interval until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.log.Info("outbox dispatcher started", zap.Duration("interval", d.interval), zap.String("instance_id", d.instanceID))

	for {
		select {
		case <-ctx.Done():
			d.log.Info("outbox dispatcher stopping")
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

// tick claims one batch and transports each row independently, so one
// bad row never blocks the rest of the batch (spec §4.4 step 1-2).
func (d *Dispatcher) tick(ctx context.Context) {
	events, err := d.querier.ClaimPendingOutboxEvents(ctx, db.ClaimPendingOutboxEventsParams{
		LockedBy: d.instanceID,
		Limit:    d.batchSize,
	})
	if err != nil {
		d.log.Error("claim pending outbox events failed", zap.Error(err))
		return
	}

	for _, ev := range events {
		d.process(ctx, ev)
	}
}

func (d *Dispatcher) process(ctx context.Context, ev db.OutboxEvent) {
	var payload json.RawMessage
	_ = json.Unmarshal(ev.Payload, &payload)

	env := Envelope{
		EventID:        ev.ID.String(),
		OrganizationID: ev.OrganizationID.String(),
		EventType:      ev.EventType,
		AggregateType:  ev.AggregateType,
		AggregateID:    ev.AggregateID,
		OccurredAt:     ev.CreatedAt.Time.UTC().Format(time.RFC3339),
		Payload:        string(ev.Payload),
	}

	failure := d.transport.Send(ctx, env)
	if failure == nil {
		if err := d.querier.MarkOutboxPublished(ctx, ev.ID.String()); err != nil {
			d.log.Error("mark outbox published failed", zap.String("event_id", ev.ID.String()), zap.Error(err))
			return
		}
		d.metrics.Dispatched.WithLabelValues("published").Inc()
		if d.nats != nil && (ev.EventType == "PolicyChanged" || ev.EventType == "InvalidateAllRequested") {
			subject := natsclient.PolicySubject(ev.OrganizationID.String(), ev.EventType)
			if _, err := d.nats.JS.Publish(subject, ev.Payload); err != nil {
				d.log.Error("publish policy event failed", zap.String("subject", subject), zap.Error(err))
			}
		}
		return
	}

	attempts := int(ev.Attempts) + 1
	if !failure.Retryable || attempts >= d.backoff.MaxAttempts() {
		d.fail(ctx, ev, failure, attempts)
		return
	}

	delay := d.backoff.NextDelay(int(ev.Attempts), failure.RetryAfter)
	next := time.Now().UTC().Add(delay)
	var nextAttemptAt pgtype.Timestamptz
	_ = nextAttemptAt.Scan(next)

	if err := d.querier.MarkOutboxFailed(ctx, db.MarkOutboxFailedParams{
		ID:            ev.ID,
		Status:        "PENDING",
		NextAttemptAt: nextAttemptAt,
		ErrorCode:     textParam(string(failure.Kind)),
		ErrorMsg:      textParam(failure.Error()),
		ErrorHTTP:     intParam(failure.HTTPStatus),
	}); err != nil {
		d.log.Error("mark outbox retry failed", zap.String("event_id", ev.ID.String()), zap.Error(err))
		return
	}
	d.metrics.Dispatched.WithLabelValues("retry").Inc()
}

func (d *Dispatcher) fail(ctx context.Context, ev db.OutboxEvent, failure *TransportFailure, attempts int) {
	if err := d.querier.MarkOutboxFailed(ctx, db.MarkOutboxFailedParams{
		ID:        ev.ID,
		Status:    "FAILED",
		ErrorCode: textParam(string(failure.Kind)),
		ErrorMsg:  textParam(failure.Error()),
		ErrorHTTP: intParam(failure.HTTPStatus),
	}); err != nil {
		d.log.Error("mark outbox failed failed", zap.String("event_id", ev.ID.String()), zap.Error(err))
		return
	}

	reason := failure.Error()
	if !failure.Retryable {
		reason = "non-retryable: " + reason
	} else {
		reason = "max attempts exceeded: " + reason
	}

	id, err := uuid.NewV7()
	if err == nil {
		var dlqID pgtype.UUID
		_ = dlqID.Scan(id.String())
		if insertErr := d.querier.InsertDeadLetter(ctx, db.InsertDeadLetterParams{
			ID:              dlqID,
			OriginalEventID: ev.ID,
			OrganizationID:  ev.OrganizationID,
			EventType:       ev.EventType,
			AggregateType:   ev.AggregateType,
			AggregateID:     ev.AggregateID,
			Payload:         ev.Payload,
			FailureReason:   reason,
		}); insertErr != nil {
			d.log.Error("insert dead letter failed", zap.String("event_id", ev.ID.String()), zap.Error(insertErr))
		}
	}

	d.publishDLQ(ev, reason)

	d.metrics.Dispatched.WithLabelValues("failed").Inc()
	d.log.Warn("outbox event moved to FAILED",
		zap.String("event_id", ev.ID.String()),
		zap.Int("attempts", attempts),
		zap.String("reason", reason),
	)
}

// publishDLQ forwards a terminally-failed event to the DLQ subject so
// the DLQConsumer can wrap it with diagnostics (spec §4.4 DLQ/Parking
// lot, §6 DLQ message). Best-effort: a publish failure here is logged,
// never escalated — the outbox_dead_letter row already preserves state.
func (d *Dispatcher) publishDLQ(ev db.OutboxEvent, reason string) {
	if d.nats == nil {
		return
	}
	msg := DLQMessage{
		Source:          "outbox-dispatcher",
		OriginalPayload: string(ev.Payload),
		ErrorType:       "dispatch_exhausted",
		ErrorMessage:    reason,
		FailedAtUTC:     time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		d.log.Error("marshal dlq message failed", zap.Error(err))
		return
	}
	subject := natsclient.EventSubject(ev.OrganizationID.String(), "dlq")
	if _, err := d.nats.JS.Publish(subject, data); err != nil {
		d.log.Error("publish dlq message failed", zap.String("subject", subject), zap.Error(err))
	}
}

func textParam(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func intParam(i int) pgtype.Int4 {
	if i == 0 {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(i), Valid: true}
}
