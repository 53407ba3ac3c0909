package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/arc-self/access-core/internal/platform/natsclient"
)

const (
	dlqDurable       = "access-core-dlq-consumer"
	dlqFetchBatch    = 10
	dlqFetchTimeout  = 5 * time.Second
)

// DLQMessage is the wire format delivered to the DLQ subject (spec §6
// DLQ message).
type DLQMessage struct {
	Source          string `json:"source"`
	OriginalPayload string `json:"originalPayload"`
	ErrorType       string `json:"errorType"`
	ErrorMessage    string `json:"errorMessage"`
	FailedAtUTC     string `json:"failedAtUtc"`
}

// dlqEnvelope wraps the original DLQMessage with consumer-side
// diagnostics before handing it to the parking lot (spec §4.4 — "wraps
// the original payload with diagnostics").
type dlqEnvelope struct {
	Original   DLQMessage `json:"original"`
	ReceivedAt string     `json:"receivedAt"`
	Truncated  string     `json:"truncatedMessage"`
}

// DLQConsumer is the first-stage sink for terminally-failed outbox
// events. It always ACKs — this is a diagnostic sink, not a retry path —
// and forwards an enriched envelope to the parking lot. It optionally
// alerts an operator Slack channel so failures are not silently buried.
type DLQConsumer struct {
	nc           *natsclient.Client
	subject      string
	parkSubject  string
	slackClient  *slack.Client
	slackChannel string
	metrics      *Metrics
	log          *zap.Logger
}

// NewDLQConsumer builds a DLQConsumer listening on subject and
// forwarding to parkSubject. slackClient/slackChannel may be empty to
// disable alerting.
func NewDLQConsumer(nc *natsclient.Client, subject, parkSubject string, slackClient *slack.Client, slackChannel string, metrics *Metrics, log *zap.Logger) *DLQConsumer {
	return &DLQConsumer{
		nc:           nc,
		subject:      subject,
		parkSubject:  parkSubject,
		slackClient:  slackClient,
		slackChannel: slackChannel,
		metrics:      metrics,
		log:          log,
	}
}

// Start subscribes as a durable pull consumer and processes messages
// until ctx is cancelled.
func (c *DLQConsumer) Start(ctx context.Context) error {
	sub, err := c.nc.JS.PullSubscribe(c.subject, dlqDurable, nats.AckExplicit(), nats.ManualAck())
	if err != nil {
		return err
	}

	c.log.Info("dlq consumer started", zap.String("subject", c.subject))

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.log.Info("dlq consumer stopping")
				return
			default:
			}

			msgs, err := sub.Fetch(dlqFetchBatch, nats.MaxWait(dlqFetchTimeout))
			if err != nil {
				if err == nats.ErrTimeout {
					continue
				}
				c.log.Error("dlq fetch error", zap.Error(err))
				continue
			}
			for _, msg := range msgs {
				c.process(msg)
			}
		}
	}()
	return nil
}

func (c *DLQConsumer) process(msg *nats.Msg) {
	c.metrics.DLQReceived.Inc()

	var original DLQMessage
	if err := json.Unmarshal(msg.Data, &original); err != nil {
		c.log.Warn("malformed dlq message, parking as-is", zap.Error(err))
		if _, err := c.nc.JS.Publish(c.parkSubject, msg.Data); err != nil {
			c.log.Error("forward to parking lot failed", zap.Error(err))
		}
		msg.Ack()
		return
	}

	truncated := original.OriginalPayload
	if len(truncated) > 500 {
		truncated = truncated[:500] + "...(truncated)"
	}

	env := dlqEnvelope{
		Original:   original,
		ReceivedAt: time.Now().UTC().Format(time.RFC3339),
		Truncated:  truncated,
	}

	c.alertSlack(original)

	data, err := json.Marshal(env)
	if err == nil {
		if _, err := c.nc.JS.Publish(c.parkSubject, data); err != nil {
			c.log.Error("forward to parking lot failed", zap.Error(err))
		}
	}

	// Always ACK — this is a terminal diagnostic sink, never recirculated.
	msg.Ack()
}

func (c *DLQConsumer) alertSlack(msg DLQMessage) {
	if c.slackClient == nil || c.slackChannel == "" {
		return
	}
	text := "outbox event exhausted retries: " + msg.ErrorType + " — " + msg.ErrorMessage
	if _, _, err := c.slackClient.PostMessage(c.slackChannel, slack.MsgOptionText(text, false)); err != nil {
		c.log.Error("slack dlq alert failed", zap.Error(err))
	}
}
