package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// FailureKind classifies a transport failure for the retry policy (spec
// §4.4 failure taxonomy).
type FailureKind string

const (
	FailureHTTP       FailureKind = "HTTP"
	FailureTimeout    FailureKind = "TIMEOUT"
	FailureConnection FailureKind = "CONNECTION"
	FailureIO         FailureKind = "IO"
	FailureTransport  FailureKind = "TRANSPORT"
	FailureUnknown    FailureKind = "UNKNOWN"
)

// TransportFailure carries the classification the dispatcher needs to
// decide retry vs. terminal FAILED (spec §4.4).
type TransportFailure struct {
	Kind       FailureKind
	Retryable  bool
	HTTPStatus int
	RetryAfter time.Duration
	Err        error
}

func (f *TransportFailure) Error() string {
	return fmt.Sprintf("%s (retryable=%v, status=%d): %v", f.Kind, f.Retryable, f.HTTPStatus, f.Err)
}

// Envelope is the wire format delivered to the transport endpoint (spec
// §6 outbox envelope).
type Envelope struct {
	EventID       string `json:"idEvent"`
	OrganizationID string `json:"orgId"`
	EventType     string `json:"eventType"`
	AggregateType string `json:"aggregateType"`
	AggregateID   string `json:"aggregateId"`
	OccurredAt    string `json:"occurredAt"`
	Payload       string `json:"payload"`
}

// HTTPTransport delivers the envelope to a single configured endpoint
// over HTTP, wrapped in a circuit breaker so a degraded downstream does
// not pin every dispatcher goroutine in per-call timeouts (spec §5
// "bounded per-call transport timeouts").
type HTTPTransport struct {
	client  *http.Client
	url     string
	breaker *gobreaker.CircuitBreaker
}

// NewHTTPTransport builds an HTTPTransport posting to url with the given
// per-call timeout.
func NewHTTPTransport(url string, timeout time.Duration) *HTTPTransport {
	settings := gobreaker.Settings{
		Name:        "outbox-transport",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests > 10 && float64(counts.TotalFailures)/float64(counts.Requests) > 0.5)
		},
	}

	return &HTTPTransport{
		client:  &http.Client{Timeout: timeout},
		url:     url,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Send posts envelope to the configured endpoint and classifies the
// outcome into a *TransportFailure, or nil on success.
func (t *HTTPTransport) Send(ctx context.Context, env Envelope) *TransportFailure {
	_, err := t.breaker.Execute(func() (interface{}, error) {
		return nil, t.send(ctx, env)
	})
	if err == nil {
		return nil
	}

	var tf *TransportFailure
	if errors.As(err, &tf) {
		return tf
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &TransportFailure{Kind: FailureTransport, Retryable: true, Err: err}
	}
	return &TransportFailure{Kind: FailureUnknown, Retryable: true, Err: err}
}

func (t *HTTPTransport) send(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return &TransportFailure{Kind: FailureUnknown, Retryable: false, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return &TransportFailure{Kind: FailureUnknown, Retryable: false, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Aggregate-Id", env.AggregateID)

	resp, err := t.client.Do(req)
	if err != nil {
		return classifyNetError(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	retryable := resp.StatusCode >= 500 || resp.StatusCode == 429 || resp.StatusCode == 408
	var retryAfter time.Duration
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, perr := time.ParseDuration(ra + "s"); perr == nil {
			retryAfter = secs
		}
	}

	return &TransportFailure{
		Kind:       FailureHTTP,
		Retryable:  retryable,
		HTTPStatus: resp.StatusCode,
		RetryAfter: retryAfter,
		Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
	}
}

func classifyNetError(err error) *TransportFailure {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransportFailure{Kind: FailureTimeout, Retryable: true, HTTPStatus: http.StatusRequestTimeout, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &TransportFailure{Kind: FailureConnection, Retryable: true, Err: err}
	}
	return &TransportFailure{Kind: FailureIO, Retryable: true, Err: err}
}
