package response

import (
	"fmt"
	"log/slog"

	pkgerrors "github.com/careroute/interlink/errors"
	"github.com/careroute/interlink/message"
)

// statusPrecedence is the fixed dominance order used to reduce several
// destination outcomes to one: FILTERED < QUEUED < SENT < ERROR. Statuses
// outside the table never dominate a ranked one.
var statusPrecedence = map[message.Status]int{
	message.StatusFiltered: 1,
	message.StatusQueued:   2,
	message.StatusSent:     3,
	message.StatusError:    4,
}

// AutoResponder synthesizes the reply for an overall status. merged is the
// reconciled metaDataId-0 view of the message; implementations must treat
// it as read-only.
type AutoResponder interface {
	Generate(status message.Status, merged *message.ConnectorMessage) *message.Response
}

// Option configures a Selector.
type Option func(*Selector)

// WithAutoResponder replaces the default auto-responder.
func WithAutoResponder(a AutoResponder) Option {
	return func(s *Selector) {
		if a != nil {
			s.auto = a
		}
	}
}

// Selector computes the single response a channel hands back to its origin.
// One Selector serves a channel for its lifetime; Select is safe to call
// concurrently for independent messages.
type Selector struct {
	cfg    Config
	auto   AutoResponder
	logger *slog.Logger
}

// NewSelector validates cfg and builds a selector.
func NewSelector(cfg Config, logger *slog.Logger, opts ...Option) (*Selector, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Selector{
		cfg:    cfg,
		auto:   defaultAutoResponder{},
		logger: logger.With("component", "response-selector"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Mode reports the configured selection mode.
func (s *Selector) Mode() Mode {
	return s.cfg.Mode
}

// Select computes the reply for msg, or (nil, nil) when the configured mode
// produces none. Every mode except none requires the source connector
// message (metaDataId 0) to be present.
func (s *Selector) Select(msg *message.Message) (*message.Response, error) {
	if s.cfg.Mode == ModeNone {
		return nil, nil
	}
	if msg == nil {
		return nil, pkgerrors.WrapInvalid(fmt.Errorf("nil message"),
			"Selector", "Select", "validate input")
	}
	source := msg.Source()
	if source == nil {
		return nil, pkgerrors.WrapInvalid(pkgerrors.ErrNoSourceMessage,
			"Selector", "Select", fmt.Sprintf("message %d", msg.MessageID))
	}

	switch s.cfg.Mode {
	case ModePreProcessing:
		status := message.StatusReceived
		if source.Status() == message.StatusError {
			status = message.StatusError
		}
		return s.auto.Generate(status, source.Snapshot()), nil

	case ModePostSource:
		return s.auto.Generate(source.Status(), source.Snapshot()), nil

	case ModeDestinationsCompleted:
		return s.selectFromDestinations(msg, source), nil

	case ModeNamed:
		return s.selectNamed(source), nil
	}

	return nil, pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig,
		"Selector", "Select", fmt.Sprintf("unknown response mode %q", s.cfg.Mode))
}

// selectFromDestinations reconciles all recorded destination outcomes. The
// merged view starts from a snapshot of the source's own maps and folds in
// every destination's channelMap and responseMap in metaDataId order, so a
// later destination wins key collisions while the originals stay untouched.
func (s *Selector) selectFromDestinations(msg *message.Message, source *message.ConnectorMessage) *message.Response {
	destinations := msg.Destinations()

	merged := source.Snapshot()
	for _, d := range destinations {
		merged.MergeResponseData(d)
	}

	var overall message.Status
	var errDetail string
	if len(destinations) < s.cfg.DestinationCount {
		overall = message.StatusError
		errDetail = fmt.Sprintf("%v: %d of %d destination outcomes recorded",
			pkgerrors.ErrIncompleteDestinations, len(destinations), s.cfg.DestinationCount)
		s.logger.Warn("incomplete destination set",
			"messageId", msg.MessageID,
			"recorded", len(destinations),
			"configured", s.cfg.DestinationCount)
	} else {
		overall = dominantStatus(destinations)
	}

	resp := s.auto.Generate(overall, merged)
	if resp == nil {
		return nil
	}
	if errDetail != "" {
		resp.Error = errDetail
	}
	if overall == message.StatusError && resp.Error == "" {
		// Surface the first errored destination's failure text.
		for _, d := range destinations {
			if d.Status() != message.StatusError {
				continue
			}
			if c := d.GetContent(message.ContentProcessingError); c != nil {
				resp.Error = c.Content
			}
			break
		}
	}
	return resp
}

// dominantStatus picks the highest-precedence status among destinations.
// Ties keep the first destination in metaDataId order, so the outcome is
// deterministic for any recording order.
func dominantStatus(destinations []*message.ConnectorMessage) message.Status {
	best := destinations[0].Status()
	bestRank := statusPrecedence[best]
	for _, d := range destinations[1:] {
		if rank := statusPrecedence[d.Status()]; rank > bestRank {
			best = d.Status()
			bestRank = rank
		}
	}
	return best
}

// selectNamed looks the configured key up in the source's responseMap. A
// structured response passes through as-is; any other stored value becomes
// a plain successful response. An absent key means no response.
func (s *Selector) selectNamed(source *message.ConnectorMessage) *message.Response {
	v := source.ResponseMap().Get(s.cfg.ResponseKey)
	if v == nil {
		return nil
	}
	return message.FromValue(v)
}

// defaultAutoResponder builds a plain status-bearing reply. Deployments
// whose origin expects a wire-format acknowledgment install their own
// AutoResponder via WithAutoResponder.
type defaultAutoResponder struct{}

func (defaultAutoResponder) Generate(status message.Status, merged *message.ConnectorMessage) *message.Response {
	resp := message.NewResponse(status, statusText(status))
	if status == message.StatusError && merged != nil {
		if c := merged.GetContent(message.ContentProcessingError); c != nil {
			resp.Error = c.Content
		}
	}
	return resp
}

func statusText(status message.Status) string {
	switch status {
	case message.StatusReceived:
		return "Message received"
	case message.StatusFiltered:
		return "Message filtered"
	case message.StatusTransformed:
		return "Message transformed"
	case message.StatusSent:
		return "Message successfully processed"
	case message.StatusQueued:
		return "Message queued for delivery"
	case message.StatusError:
		return "Message processing failed"
	}
	return fmt.Sprintf("Message status %s", status)
}
