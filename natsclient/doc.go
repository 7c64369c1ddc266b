// Package natsclient wraps the NATS connection used by every broker-facing
// part of the engine.
//
// # Overview
//
// Client adds three things over a bare nats.Conn:
//
//   - A circuit breaker on connection attempts. After a threshold of
//     failures, Connect fails fast with ErrCircuitOpen while an
//     exponentially growing backoff elapses, then lets one attempt through.
//   - Reply-aware subscriptions. Handlers receive the subject, the reply
//     inbox (when the publisher requested a response), and the payload,
//     with a per-delivery context timeout.
//   - Broker observability. Status transitions drive the connected gauge
//     and reconnect counter when a metrics registry is attached.
//
// # Usage
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithName("interlink"),
//	    natsclient.WithMetrics(registry),
//	)
//	if err != nil { ... }
//	if err := client.Connect(ctx); err != nil { ... }
//	defer client.Close(ctx)
//
//	sub, err := client.Subscribe(ctx, "hospital.adt", func(ctx context.Context, msg *natsclient.Msg) {
//	    // msg.Reply is set when the publisher wants an answer
//	})
//	defer sub.Unsubscribe()
//
// PublishToStream publishes with JetStream acknowledgement for durable
// hand-off; EnsureStream creates the backing stream idempotently.
//
// # Error classification
//
// Connection problems are wrapped transient so retry loops keep trying;
// ErrCircuitOpen's message marks it transient too, signalling "back off,
// then retry" rather than "give up".
package natsclient
