package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/arc-self/access-core/internal/platform/natsclient"
)

const (
	parkingDurable      = "access-core-parking-lot-consumer"
	parkingFetchBatch   = 10
	parkingFetchTimeout = 5 * time.Second
)

// ParkingLotConsumer is the terminal sink: it attempts to parse the
// nested DLQ envelope for diagnostics, logs it, and always ACKs.
// Nothing downstream of the parking lot ever recirculates a message
// (spec §4.4).
type ParkingLotConsumer struct {
	nc      *natsclient.Client
	subject string
	metrics *Metrics
	log     *zap.Logger
}

// NewParkingLotConsumer builds a ParkingLotConsumer listening on subject.
func NewParkingLotConsumer(nc *natsclient.Client, subject string, metrics *Metrics, log *zap.Logger) *ParkingLotConsumer {
	return &ParkingLotConsumer{nc: nc, subject: subject, metrics: metrics, log: log}
}

// Start subscribes as a durable pull consumer and processes messages
// until ctx is cancelled.
func (c *ParkingLotConsumer) Start(ctx context.Context) error {
	sub, err := c.nc.JS.PullSubscribe(c.subject, parkingDurable, nats.AckExplicit(), nats.ManualAck())
	if err != nil {
		return err
	}

	c.log.Info("parking lot consumer started", zap.String("subject", c.subject))

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.log.Info("parking lot consumer stopping")
				return
			default:
			}

			msgs, err := sub.Fetch(parkingFetchBatch, nats.MaxWait(parkingFetchTimeout))
			if err != nil {
				if err == nats.ErrTimeout {
					continue
				}
				c.log.Error("parking lot fetch error", zap.Error(err))
				continue
			}
			for _, msg := range msgs {
				c.process(msg)
			}
		}
	}()
	return nil
}

func (c *ParkingLotConsumer) process(msg *nats.Msg) {
	c.metrics.ParkingReceived.Inc()

	var env dlqEnvelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		c.log.Warn("parking lot received unparseable message", zap.Error(err))
	} else {
		c.log.Info("event parked permanently",
			zap.String("error_type", env.Original.ErrorType),
			zap.String("error_message", env.Original.ErrorMessage),
			zap.String("failed_at", env.Original.FailedAtUTC),
		)
	}

	// Terminal: always ACK, never recirculate.
	msg.Ack()
}
