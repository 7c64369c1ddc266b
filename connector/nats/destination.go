package nats

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/careroute/interlink/channel"
	"github.com/careroute/interlink/connector"
	pkgerrors "github.com/careroute/interlink/errors"
	"github.com/careroute/interlink/message"
	"github.com/careroute/interlink/natsclient"
)

// DestinationConfig holds the settings of a NATS destination connector.
type DestinationConfig struct {
	// Subject published to. Required.
	Subject string `json:"subject" yaml:"subject"`
	// Stream names the JetStream stream ensured at Start. Required when the
	// destination is durable.
	Stream string `json:"stream,omitempty" yaml:"stream,omitempty"`
}

// Validate checks the destination settings.
func (c *DestinationConfig) Validate() error {
	if c.Subject == "" {
		return pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "nats.DestinationConfig", "Validate",
			"subject is required")
	}
	return nil
}

// Destination publishes dispatched message content to a NATS subject.
// Durable destinations publish through JetStream with acknowledgement and
// report QUEUED; everything else publishes core NATS and reports SENT.
type Destination struct {
	name    string
	cfg     DestinationConfig
	durable bool
	client  *natsclient.Client
	logger  *slog.Logger

	lifecycleMu sync.Mutex
	running     bool

	sent     atomic.Int64
	errCount atomic.Int64
}

// NewDestination builds a NATS destination from its channel definition.
func NewDestination(dest channel.Destination, deps connector.Dependencies) (connector.Destination, error) {
	var dc DestinationConfig
	if err := dest.Connector.DecodeSettings(&dc); err != nil {
		return nil, pkgerrors.Wrap(err, "nats.Destination", "NewDestination", "decode settings")
	}
	if err := dc.Validate(); err != nil {
		return nil, err
	}
	if dest.Durable && dc.Stream == "" {
		return nil, pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "nats.Destination", "NewDestination",
			"stream is required for durable destinations")
	}

	return &Destination{
		name:    dest.Name,
		cfg:     dc,
		durable: dest.Durable,
		client:  deps.NATSClient,
		logger:  deps.GetLoggerWithComponent("nats-destination").With("destination", dest.Name),
	}, nil
}

// Initialize checks the destination has what it needs before Start.
func (d *Destination) Initialize() error {
	if d.client == nil {
		return pkgerrors.WrapFatal(pkgerrors.ErrMissingConfig, "nats.Destination", "Initialize",
			"NATS client required")
	}
	return nil
}

// Start ensures the durable stream exists before the first Send.
func (d *Destination) Start(ctx context.Context) error {
	d.lifecycleMu.Lock()
	defer d.lifecycleMu.Unlock()

	if d.running {
		return pkgerrors.WrapFatal(pkgerrors.ErrAlreadyStarted, "nats.Destination", "Start",
			"check running state")
	}

	if d.durable {
		_, err := d.client.EnsureStream(ctx, jetstream.StreamConfig{
			Name:     d.cfg.Stream,
			Subjects: []string{d.cfg.Subject},
		})
		if err != nil {
			return pkgerrors.Wrap(err, "nats.Destination", "Start", "ensure stream")
		}
		d.logger.Info("durable stream ready", "stream", d.cfg.Stream, "subject", d.cfg.Subject)
	}

	d.running = true
	return nil
}

// Stop halts the destination.
func (d *Destination) Stop(time.Duration) error {
	d.lifecycleMu.Lock()
	defer d.lifecycleMu.Unlock()

	if !d.running {
		return nil
	}
	d.running = false

	d.logger.Info("NATS destination stopped",
		"sent", d.sent.Load(), "errors", d.errCount.Load())
	return nil
}

// Send publishes the message's dispatch content. One attempt; callers own
// retries.
func (d *Destination) Send(ctx context.Context, msg *message.ConnectorMessage) (message.Status, error) {
	data := []byte(connector.DispatchContent(msg))

	if d.durable {
		if err := d.client.PublishToStream(ctx, d.cfg.Subject, data); err != nil {
			d.errCount.Add(1)
			return message.StatusError, pkgerrors.Wrap(err, "nats.Destination", "Send", "publish to stream")
		}
		d.sent.Add(1)
		return message.StatusQueued, nil
	}

	if err := d.client.Publish(ctx, d.cfg.Subject, data); err != nil {
		d.errCount.Add(1)
		return message.StatusError, pkgerrors.Wrap(err, "nats.Destination", "Send", "publish")
	}
	d.sent.Add(1)
	return message.StatusSent, nil
}
