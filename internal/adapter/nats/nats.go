// Package nats implements the message queue port using NATS JetStream.
package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/agent0/runner/internal/logger"
	"github.com/agent0/runner/internal/port/messagequeue"
)

const (
	streamName = "RUNNER"

	headerRequestID  = "X-Request-ID"
	headerRunID      = "X-Run-ID"
	headerRetryCount = "Retry-Count"

	// maxRetries is how often a failing message is redelivered before it
	// is parked on <subject>.dlq.
	maxRetries = 3
)

// Queue implements messagequeue.Queue using NATS JetStream.
type Queue struct {
	nc *nats.Conn
	js jetstream.JetStream
}

var _ messagequeue.Queue = (*Queue)(nil)

// Connect establishes a connection to NATS and ensures the JetStream stream exists.
func Connect(ctx context.Context, url string) (*Queue, error) {
	nc, err := nats.Connect(url,
		nats.Name("agent0-runner"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"runs.>"},
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", streamName)
	return &Queue{nc: nc, js: js}, nil
}

// Publish sends a message to the given subject. The request and run IDs of
// ctx travel as headers.
func (q *Queue) Publish(ctx context.Context, subject string, data []byte) error {
	if err := messagequeue.Validate(subject, data); err != nil {
		return err
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	if id := logger.RequestID(ctx); id != "" {
		msg.Header.Set(headerRequestID, id)
	}
	if id := logger.RunID(ctx); id != "" {
		msg.Header.Set(headerRunID, id)
	}
	if _, err := q.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a handler for messages on the given subject. Messages
// that fail validation go straight to the dead-letter subject; handler
// failures are retried up to maxRetries times first.
func (q *Queue) Subscribe(ctx context.Context, subject string, handler messagequeue.Handler) (func(), error) {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		Durable:       durableName(subject),
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		q.handle(ctx, msg, handler)
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

func (q *Queue) handle(ctx context.Context, msg jetstream.Msg, handler messagequeue.Handler) {
	hdrs := msg.Headers()
	if err := messagequeue.Validate(msg.Subject(), msg.Data()); err != nil {
		slog.Error("invalid message", "subject", msg.Subject(), "error", err)
		q.moveToDLQ(ctx, msg)
		return
	}

	hctx := ctx
	if id := hdrs.Get(headerRequestID); id != "" {
		hctx = logger.WithRequestID(hctx, id)
	}
	if id := hdrs.Get(headerRunID); id != "" {
		hctx = logger.WithRunID(hctx, id)
	}

	if err := handler(hctx, msg.Subject(), msg.Data()); err != nil {
		retries := retryCount(hdrs)
		slog.Error("message handler failed", "subject", msg.Subject(), "retries", retries, "error", err)
		if retries >= maxRetries || errors.Is(err, messagequeue.ErrPermanent) {
			q.moveToDLQ(ctx, msg)
			return
		}
		q.retry(ctx, msg, retries+1)
		return
	}
	if ackErr := msg.Ack(); ackErr != nil {
		slog.Error("nats ack failed", "error", ackErr)
	}
}

// retry republishes the message with an incremented retry counter and acks
// the original.
func (q *Queue) retry(ctx context.Context, msg jetstream.Msg, attempt int) {
	out := nats.NewMsg(msg.Subject())
	out.Data = msg.Data()
	for k, v := range msg.Headers() {
		out.Header[k] = v
	}
	out.Header.Set(headerRetryCount, strconv.Itoa(attempt))
	if _, err := q.js.PublishMsg(ctx, out); err != nil {
		slog.Error("nats retry publish failed", "subject", msg.Subject(), "error", err)
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
}

func (q *Queue) moveToDLQ(ctx context.Context, msg jetstream.Msg) {
	dlq := nats.NewMsg(msg.Subject() + ".dlq")
	dlq.Data = msg.Data()
	for k, v := range msg.Headers() {
		dlq.Header[k] = v
	}
	if _, err := q.js.PublishMsg(ctx, dlq); err != nil {
		slog.Error("nats dlq publish failed", "subject", dlq.Subject, "error", err)
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
}

func retryCount(h nats.Header) int {
	n, err := strconv.Atoi(h.Get(headerRetryCount))
	if err != nil {
		return 0
	}
	return n
}

// durableName derives a consumer name from a subject. Dots are not allowed
// in durable names.
func durableName(subject string) string {
	b := []byte("runner_" + subject)
	for i, c := range b {
		if c == '.' || c == '*' || c == '>' {
			b[i] = '_'
		}
	}
	return string(b)
}

// KeyValue returns the named KV bucket, creating it with the given TTL.
func (q *Queue) KeyValue(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := q.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("nats kv %s: %w", bucket, err)
	}
	return kv, nil
}

// Drain processes pending messages, then closes the connection.
func (q *Queue) Drain() error {
	return q.nc.Drain()
}

// Close shuts down the NATS connection.
func (q *Queue) Close() error {
	q.nc.Close()
	return nil
}

// IsConnected reports whether the connection is up.
func (q *Queue) IsConnected() bool {
	return q.nc.IsConnected()
}
