package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

// scriptedReader hands out a fixed sequence of messages, then cancels the
// run context so Run returns.
type scriptedReader struct {
	msgs   []kafka.Message
	cancel context.CancelFunc
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *scriptedReader) Close() error { return nil }

func TestRunContinuesPastHandlerErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &scriptedReader{
		msgs: []kafka.Message{
			{Topic: "appointment.created", Value: []byte(`not json`)},
			{Topic: "appointment.created", Value: []byte(`{"appointmentId":"a1"}`)},
		},
		cancel: cancel,
	}

	var handled []string
	c := &Consumer{
		reader: reader,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		handler: func(ctx context.Context, msg kafka.Message) error {
			handled = append(handled, string(msg.Value))
			if len(handled) == 1 {
				return errors.New("mapping failed")
			}
			return nil
		},
	}

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	if len(handled) != 2 {
		t.Fatalf("handler saw %d messages, want 2: %v", len(handled), handled)
	}
	if handled[1] != `{"appointmentId":"a1"}` {
		t.Fatalf("second message = %q, want the good payload", handled[1])
	}
}
