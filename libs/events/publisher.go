package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Publisher is the single contract both transports satisfy. Publishing is
// best-effort relative to the primary write: callers log failures as
// warnings and never fail the request that triggered the event.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
	Close() error
}

const (
	DriverKafka = "kafka"
	DriverHTTP  = "http"
)

// Config selects the transport once at process start. There is no dynamic
// failover between drivers mid-run.
type Config struct {
	// Driver is "kafka" or "http".
	Driver string
	// Brokers is the comma-separated Kafka broker list (kafka driver).
	Brokers string
	// IngressURL is the notification service base URL (http driver).
	IngressURL string
}

// New builds the configured publisher. The choice is fixed for the
// lifetime of the process.
func New(cfg Config, logger *slog.Logger) (Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverKafka, "":
		if strings.TrimSpace(cfg.Brokers) == "" {
			return nil, fmt.Errorf("events: kafka driver requires brokers")
		}
		logger.Info("event publisher initialized", "driver", DriverKafka, "brokers", cfg.Brokers)
		return newKafkaPublisher(cfg.Brokers), nil
	case DriverHTTP:
		if strings.TrimSpace(cfg.IngressURL) == "" {
			return nil, fmt.Errorf("events: http driver requires ingress url")
		}
		logger.Info("event publisher initialized", "driver", DriverHTTP, "ingress_url", cfg.IngressURL)
		return newHTTPPublisher(cfg.IngressURL), nil
	default:
		return nil, fmt.Errorf("events: unknown driver %q", cfg.Driver)
	}
}
