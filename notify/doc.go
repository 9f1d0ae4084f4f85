// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package notify delivers voter notifications.

# Transports

LogNotifier writes each notification as a structured log line. Secrets and
challenge codes are masked unless Reveal is set, which is only meant for local
development.

NATSNotifier publishes each notification to a NATS subject:

	nc, err := notify.Connect(natsURL, logger)
	n := &notify.NATSNotifier{Conn: nc, Prefix: "quickly-elect.notify"}

Subjects are <prefix>.<kind>, for example quickly-elect.notify.voting_credential.

# Wire Format

Messages are msgpack-encoded Envelope values carrying an id, kind,
recipient, payload map and send time. Consumers use Decode.
*/
package notify
