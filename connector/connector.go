package connector

import (
	"context"
	"log/slog"
	"time"

	"github.com/careroute/interlink/message"
	"github.com/careroute/interlink/metric"
	"github.com/careroute/interlink/natsclient"
)

// Dependencies provides the shared runtime collaborators handed to connector
// factories. Fields may be nil where a connector does not need them.
type Dependencies struct {
	NATSClient *natsclient.Client      // broker access for NATS-backed connectors
	Metrics    *metric.MetricsRegistry // metrics registration (can be nil)
	Logger     *slog.Logger            // structured logger (can be nil, defaults to slog.Default())
}

// GetLogger returns the configured logger or a default logger if none is provided.
func (d *Dependencies) GetLogger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// GetLoggerWithComponent returns a logger configured with component context.
func (d *Dependencies) GetLoggerWithComponent(componentName string) *slog.Logger {
	return d.GetLogger().With("component", componentName)
}

// Payload is one raw unit handed from a source connector to the engine,
// before any batch splitting.
type Payload struct {
	// Data is the payload exactly as received.
	Data string
	// Metadata carries transport attributes the source wants seeded into
	// the message's source map, e.g. the subject and reply address.
	Metadata map[string]any
}

// Handler processes one received payload and returns the response the source
// should deliver back over its transport. A nil Response with a nil error
// means the channel selected no response.
type Handler func(ctx context.Context, payload *Payload) (*message.Response, error)

// Source receives data from an external transport and feeds it to the
// handler installed at Start. When the transport supports replies, the
// implementation delivers the handler's Response back to the caller.
type Source interface {
	// Initialize validates configuration and prepares resources without I/O.
	Initialize() error
	// Start begins receiving and invokes handler for every payload.
	Start(ctx context.Context, handler Handler) error
	// Stop halts delivery, waiting up to timeout for in-flight handlers.
	Stop(timeout time.Duration) error
}

// Destination writes processed message content to an external transport.
// Send is a single attempt; the retry policy belongs to the caller.
type Destination interface {
	// Initialize validates configuration and prepares resources without I/O.
	Initialize() error
	// Start acquires whatever the transport needs before the first Send.
	Start(ctx context.Context) error
	// Stop releases transport resources, waiting up to timeout.
	Stop(timeout time.Duration) error
	// Send dispatches the message content. It returns StatusSent on
	// confirmed delivery, or StatusQueued when the transport accepted the
	// message for durable delivery later.
	Send(ctx context.Context, msg *message.ConnectorMessage) (message.Status, error)
}

// DispatchContent returns what a destination should write: the encoded
// content when the pipeline produced it, otherwise the transformed or raw
// content.
func DispatchContent(msg *message.ConnectorMessage) string {
	for _, t := range []message.ContentType{
		message.ContentEncoded,
		message.ContentTransformed,
		message.ContentRaw,
	} {
		if c := msg.GetContent(t); c != nil {
			return c.Content
		}
	}
	return ""
}
