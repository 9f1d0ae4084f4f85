// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/danielhkuo/quickly-elect/models"
)

// DefaultSubjectPrefix is used when NATSNotifier.Prefix is empty.
const DefaultSubjectPrefix = "quickly-elect.notify"

// sensitiveKeys are masked by LogNotifier unless Reveal is set.
var sensitiveKeys = map[string]bool{
	"secret": true,
	"code":   true,
}

// Envelope is the wire form of a notification on the bus.
type Envelope struct {
	ID        string            `msgpack:"id"`
	Kind      string            `msgpack:"kind"`
	Recipient string            `msgpack:"recipient"`
	Payload   map[string]string `msgpack:"payload"`
	SentAt    time.Time         `msgpack:"sent_at"`
}

// Encode wraps n in an Envelope and serializes it with msgpack.
func Encode(n models.Notification, at time.Time) ([]byte, error) {
	env := Envelope{
		ID:        uuid.NewString(),
		Kind:      n.Kind,
		Recipient: n.Recipient,
		Payload:   n.Payload,
		SentAt:    at.UTC(),
	}
	data, err := msgpack.Marshal(&env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notification: %w", err)
	}
	return data, nil
}

// Decode is the inverse of Encode, for consumers of the bus.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("failed to decode notification: %w", err)
	}
	return env, nil
}

// Subject returns the bus subject for a notification kind. Dots and spaces
// in the kind would create extra subject tokens, so they become underscores.
func Subject(prefix, kind string) string {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	safe := strings.NewReplacer(".", "_", " ", "_").Replace(kind)
	return prefix + "." + safe
}

// LogNotifier writes notifications to a structured log. It is the
// development transport; an outbound mailer would subscribe to the bus.
type LogNotifier struct {
	Logger *slog.Logger
	// Reveal logs secrets and codes in clear text.
	Reveal bool
}

func (l *LogNotifier) Send(ctx context.Context, n models.Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	keys := make([]string, 0, len(n.Payload))
	for k := range n.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]any, 0, 6+2*len(keys))
	attrs = append(attrs, "event", "notification_sent", "kind", n.Kind, "recipient", n.Recipient)
	for _, k := range keys {
		v := n.Payload[k]
		if sensitiveKeys[k] && !l.Reveal {
			v = "[redacted]"
		}
		attrs = append(attrs, "payload."+k, v)
	}
	logger.InfoContext(ctx, "notification", attrs...)
	return nil
}

// Publisher is the part of *nats.Conn that NATSNotifier needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes msgpack envelopes to <Prefix>.<kind>.
type NATSNotifier struct {
	Conn   Publisher
	Prefix string
	Logger *slog.Logger
}

func (n *NATSNotifier) Send(ctx context.Context, msg models.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(msg, time.Now())
	if err != nil {
		return err
	}
	subject := Subject(n.Prefix, msg.Kind)
	if err := n.Conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to NATS subject %s: %w", subject, err)
	}
	if n.Logger != nil {
		n.Logger.DebugContext(ctx, "published notification", "subject", subject, "kind", msg.Kind)
	}
	return nil
}

// Connect opens a NATS connection that logs async errors and reconnects.
func Connect(url string, logger *slog.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(
		url,
		nats.Name("quickly-elect"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.ErrorHandler(func(_ *nats.Conn, s *nats.Subscription, err error) {
			if s != nil {
				logger.Error("async NATS error", "error", err, "subject", s.Subject)
			} else {
				logger.Error("async NATS error outside subscription", "error", err)
			}
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}
