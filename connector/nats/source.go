// Package nats provides the NATS reference connectors: a request-reply aware
// source and a destination that can hand messages to JetStream for durable
// delivery.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/careroute/interlink/channel"
	"github.com/careroute/interlink/connector"
	pkgerrors "github.com/careroute/interlink/errors"
	"github.com/careroute/interlink/message"
	"github.com/careroute/interlink/natsclient"
)

// SourceConfig holds the settings of a NATS source connector.
type SourceConfig struct {
	// Subject the channel receives on. Required.
	Subject string `json:"subject" yaml:"subject"`
	// Queue, when set, joins a queue group so engine instances sharing the
	// subject split the load.
	Queue string `json:"queue,omitempty" yaml:"queue,omitempty"`
}

// Validate checks the source settings.
func (c *SourceConfig) Validate() error {
	if c.Subject == "" {
		return pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "nats.SourceConfig", "Validate",
			"subject is required")
	}
	return nil
}

// Source receives channel payloads from a NATS subject. When a delivery
// carries a reply subject, the pipeline's Response is published back to it.
type Source struct {
	cfg    SourceConfig
	client *natsclient.Client
	logger *slog.Logger

	lifecycleMu sync.Mutex
	running     atomic.Bool
	sub         *natsclient.Subscription
	handler     connector.Handler

	inFlight atomic.Int64
	received atomic.Int64
	replied  atomic.Int64
	errCount atomic.Int64
}

// NewSource builds a NATS source from a channel's source connector settings.
func NewSource(cfg channel.Connector, deps connector.Dependencies) (connector.Source, error) {
	var sc SourceConfig
	if err := cfg.DecodeSettings(&sc); err != nil {
		return nil, pkgerrors.Wrap(err, "nats.Source", "NewSource", "decode settings")
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	return &Source{
		cfg:    sc,
		client: deps.NATSClient,
		logger: deps.GetLoggerWithComponent("nats-source"),
	}, nil
}

// Initialize checks the source has what it needs before Start.
func (s *Source) Initialize() error {
	if s.client == nil {
		return pkgerrors.WrapFatal(pkgerrors.ErrMissingConfig, "nats.Source", "Initialize",
			"NATS client required")
	}
	return nil
}

// Start subscribes and feeds every delivery to handler.
func (s *Source) Start(ctx context.Context, handler connector.Handler) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.running.Load() {
		return pkgerrors.WrapFatal(pkgerrors.ErrAlreadyStarted, "nats.Source", "Start",
			"check running state")
	}
	if handler == nil {
		return pkgerrors.WrapInvalid(pkgerrors.ErrInvalidConfig, "nats.Source", "Start",
			"handler required")
	}
	s.handler = handler

	var (
		sub *natsclient.Subscription
		err error
	)
	if s.cfg.Queue != "" {
		sub, err = s.client.QueueSubscribe(ctx, s.cfg.Subject, s.cfg.Queue, s.handleMessage)
	} else {
		sub, err = s.client.Subscribe(ctx, s.cfg.Subject, s.handleMessage)
	}
	if err != nil {
		return pkgerrors.Wrap(err, "nats.Source", "Start", "subscribe")
	}
	s.sub = sub
	s.running.Store(true)

	s.logger.Info("NATS source started", "subject", s.cfg.Subject, "queue", s.cfg.Queue)
	return nil
}

// handleMessage runs one delivery through the channel and answers the reply
// subject when the caller asked for one.
func (s *Source) handleMessage(ctx context.Context, m *natsclient.Msg) {
	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	// Deliveries drained after Stop are dropped.
	if !s.running.Load() {
		return
	}
	s.received.Add(1)

	metadata := map[string]any{"subject": m.Subject}
	if m.Reply != "" {
		metadata["reply"] = m.Reply
	}

	resp, err := s.handler(ctx, &connector.Payload{
		Data:     string(m.Data),
		Metadata: metadata,
	})
	if err != nil {
		s.errCount.Add(1)
		s.logger.Error("payload rejected", "subject", m.Subject, "error", err)
		resp = message.NewResponse(message.StatusError, "message rejected")
		resp.Error = err.Error()
	}
	if resp == nil || m.Reply == "" {
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		s.errCount.Add(1)
		s.logger.Error("marshal response", "error", err)
		return
	}
	if err := s.client.Publish(ctx, m.Reply, data); err != nil {
		s.errCount.Add(1)
		s.logger.Error("publish response", "reply", m.Reply, "error", err)
		return
	}
	s.replied.Add(1)
}

// Stop unsubscribes and waits up to timeout for in-flight handlers. Payloads
// already inside the engine keep processing there.
func (s *Source) Stop(timeout time.Duration) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if !s.running.Load() {
		return nil
	}
	s.running.Store(false)

	if s.sub != nil {
		if err := s.sub.Unsubscribe(); err != nil {
			s.logger.Warn("unsubscribe failed", "subject", s.cfg.Subject, "error", err)
		}
		s.sub = nil
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for s.inFlight.Load() > 0 {
		if time.Now().After(deadline) {
			return pkgerrors.WrapTransient(
				fmt.Errorf("stop timeout after %v with %d handlers in flight", timeout, s.inFlight.Load()),
				"nats.Source", "Stop", "wait for handlers")
		}
		<-ticker.C
	}

	s.logger.Info("NATS source stopped",
		"received", s.received.Load(),
		"replied", s.replied.Load(),
		"errors", s.errCount.Load())
	return nil
}
