package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Envelope is the body of the synchronous fallback POST to the
// notification ingress endpoint.
type Envelope struct {
	Event json.RawMessage `json:"event"`
	Topic string          `json:"topic"`
}

// httpPublisher forwards events directly to the notification service when
// no broker is deployed. Delivery has no guarantee at all if the target is
// down; that is the documented weaker mode of this transport.
type httpPublisher struct {
	ingressURL string
	client     *http.Client
}

func newHTTPPublisher(ingressURL string) *httpPublisher {
	return &httpPublisher{
		ingressURL: strings.TrimRight(ingressURL, "/") + "/api/v1/events",
		client: &http.Client{
			Timeout:   5 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (p *httpPublisher) Publish(ctx context.Context, topic string, payload any) error {
	event, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	body, err := json.Marshal(Envelope{Event: event, Topic: topic})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.ingressURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("events: ingress returned %d", resp.StatusCode)
	}
	return nil
}

func (p *httpPublisher) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
