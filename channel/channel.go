package channel

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/careroute/interlink/batch"
	pkgerrors "github.com/careroute/interlink/errors"
	"github.com/careroute/interlink/pipeline"
	"github.com/careroute/interlink/pkg/retry"
	"github.com/careroute/interlink/response"
)

// Channel is one deployable integration route: a source connector feeding a
// filter/transform pipeline that fans out to the configured destinations.
type Channel struct {
	// ID identifies the channel across deploys. Assigned when absent.
	ID          string `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	Source       Source        `json:"source" yaml:"source"`
	Destinations []Destination `json:"destinations" yaml:"destinations"`

	Response response.Config `json:"response,omitempty" yaml:"response,omitempty"`
}

// Source configures where a channel's payloads come from and what happens
// to them before any destination sees them.
type Source struct {
	Connector Connector `json:"connector" yaml:"connector"`

	// Batch controls how one inbound payload splits into message units.
	Batch batch.Config `json:"batch,omitempty" yaml:"batch,omitempty"`

	Filter      pipeline.Filter      `json:"filter,omitempty" yaml:"filter,omitempty"`
	Transformer pipeline.Transformer `json:"transformer,omitempty" yaml:"transformer,omitempty"`

	// MaxProcessingThreads is the number of payloads processed in
	// parallel. The default of 1 preserves arrival order end-to-end;
	// anything higher trades that for throughput.
	MaxProcessingThreads int `json:"maxProcessingThreads,omitempty" yaml:"maxProcessingThreads,omitempty"`

	// QueueCapacity bounds the payloads waiting for a processing slot.
	// A full queue pushes back on the connector.
	QueueCapacity int `json:"queueCapacity,omitempty" yaml:"queueCapacity,omitempty"`

	// RateLimit throttles payload admission. Zero means unlimited.
	RateLimit RateLimit `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty"`
}

// RateLimit caps how fast a source admits payloads into processing.
type RateLimit struct {
	PerSecond float64 `json:"perSecond,omitempty" yaml:"perSecond,omitempty"`
	Burst     int     `json:"burst,omitempty" yaml:"burst,omitempty"`
}

// Destination configures one dispatch target and its own pipeline.
type Destination struct {
	// MetaDataID orders destinations and keys their connector messages.
	// Assigned 1..N in declaration order when no destination sets one.
	MetaDataID int    `json:"metaDataId,omitempty" yaml:"metaDataId,omitempty"`
	Name       string `json:"name" yaml:"name"`

	// Disabled skips this destination without removing its configuration.
	Disabled bool `json:"disabled,omitempty" yaml:"disabled,omitempty"`

	Connector Connector `json:"connector" yaml:"connector"`

	Filter      pipeline.Filter      `json:"filter,omitempty" yaml:"filter,omitempty"`
	Transformer pipeline.Transformer `json:"transformer,omitempty" yaml:"transformer,omitempty"`

	// Durable hands the send to the broker's durable queue instead of
	// dispatching directly; the message is marked QUEUED, not SENT.
	Durable bool `json:"durable,omitempty" yaml:"durable,omitempty"`

	// QueueOnFailure marks a transiently-failed send QUEUED after the
	// retries run out, instead of ERROR.
	QueueOnFailure bool `json:"queueOnFailure,omitempty" yaml:"queueOnFailure,omitempty"`

	// RetryCount is the number of additional attempts after a failed
	// send. Zero means a single attempt.
	RetryCount int `json:"retryCount,omitempty" yaml:"retryCount,omitempty"`

	// RetryIntervalMillis is the wait before the first retry; later
	// waits back off from it.
	RetryIntervalMillis int `json:"retryIntervalMillis,omitempty" yaml:"retryIntervalMillis,omitempty"`
}

// Connector names a connector implementation and carries its free-form
// settings. The engine resolves Type against the registered connector
// factories at deploy time.
type Connector struct {
	Type     string         `json:"type" yaml:"type"`
	Settings map[string]any `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// DecodeSettings unmarshals the settings map into a connector's typed
// configuration struct by round-tripping through JSON. A nil settings map
// leaves v untouched.
func (c *Connector) DecodeSettings(v any) error {
	if c.Settings == nil {
		return nil
	}
	data, err := json.Marshal(c.Settings)
	if err != nil {
		return pkgerrors.WrapInvalid(err, "channel.Connector", "DecodeSettings", "marshal settings")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return pkgerrors.WrapInvalid(err, "channel.Connector", "DecodeSettings", "decode settings")
	}
	return nil
}

// RetryConfig translates the destination's retry settings into a backoff
// configuration for dispatch.
func (d *Destination) RetryConfig() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = d.RetryCount + 1
	if d.RetryIntervalMillis > 0 {
		cfg.InitialDelay = time.Duration(d.RetryIntervalMillis) * time.Millisecond
		cfg.MaxDelay = 10 * cfg.InitialDelay
	}
	return cfg
}

// ApplyDefaults fills the fields a definition may leave out: the channel ID,
// processing-thread and queue defaults, destination metaDataIds (1..N in
// declaration order when none are set), and the destination count consulted
// by destinations_completed response selection.
func (c *Channel) ApplyDefaults() {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Source.MaxProcessingThreads == 0 {
		c.Source.MaxProcessingThreads = 1
	}
	if c.Source.QueueCapacity == 0 {
		c.Source.QueueCapacity = 100
	}

	allZero := true
	for i := range c.Destinations {
		if c.Destinations[i].MetaDataID != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		for i := range c.Destinations {
			c.Destinations[i].MetaDataID = i + 1
		}
	}

	if c.Response.Mode == response.ModeDestinationsCompleted && c.Response.DestinationCount == 0 {
		c.Response.DestinationCount = len(c.EnabledDestinations())
	}
}

// EnabledDestinations returns the destinations that take part in dispatch,
// in declaration order.
func (c *Channel) EnabledDestinations() []Destination {
	out := make([]Destination, 0, len(c.Destinations))
	for _, d := range c.Destinations {
		if !d.Disabled {
			out = append(out, d)
		}
	}
	return out
}

// Validate checks the channel for problems that would make deployment
// pointless: missing names or connector types, duplicate destination
// identities, invalid embedded pipeline/batch/response configuration.
// Call after ApplyDefaults.
func (c *Channel) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid("channel name is required")
	}
	if strings.TrimSpace(c.Source.Connector.Type) == "" {
		return invalid(fmt.Sprintf("channel %q: source connector type is required", c.Name))
	}
	if c.Source.MaxProcessingThreads < 0 {
		return invalid(fmt.Sprintf("channel %q: maxProcessingThreads must not be negative", c.Name))
	}
	if c.Source.QueueCapacity < 0 {
		return invalid(fmt.Sprintf("channel %q: queueCapacity must not be negative", c.Name))
	}
	if c.Source.RateLimit.PerSecond < 0 || c.Source.RateLimit.Burst < 0 {
		return invalid(fmt.Sprintf("channel %q: rate limit must not be negative", c.Name))
	}
	if err := c.Source.Batch.Validate(); err != nil {
		return err
	}
	if err := c.Source.Filter.Validate(); err != nil {
		return err
	}
	if err := c.Source.Transformer.Validate(); err != nil {
		return err
	}

	if len(c.Destinations) == 0 {
		return invalid(fmt.Sprintf("channel %q: at least one destination is required", c.Name))
	}
	names := make(map[string]bool, len(c.Destinations))
	ids := make(map[int]bool, len(c.Destinations))
	for i := range c.Destinations {
		d := &c.Destinations[i]
		if strings.TrimSpace(d.Name) == "" {
			return invalid(fmt.Sprintf("channel %q: destination at index %d has no name", c.Name, i))
		}
		if names[d.Name] {
			return invalid(fmt.Sprintf("channel %q: duplicate destination name %q", c.Name, d.Name))
		}
		names[d.Name] = true
		if d.MetaDataID < 1 {
			return invalid(fmt.Sprintf("channel %q: destination %q needs a metaDataId of at least 1", c.Name, d.Name))
		}
		if ids[d.MetaDataID] {
			return invalid(fmt.Sprintf("channel %q: duplicate destination metaDataId %d", c.Name, d.MetaDataID))
		}
		ids[d.MetaDataID] = true
		if strings.TrimSpace(d.Connector.Type) == "" {
			return invalid(fmt.Sprintf("channel %q: destination %q has no connector type", c.Name, d.Name))
		}
		if d.RetryCount < 0 || d.RetryIntervalMillis < 0 {
			return invalid(fmt.Sprintf("channel %q: destination %q retry settings must not be negative", c.Name, d.Name))
		}
		if err := d.Filter.Validate(); err != nil {
			return err
		}
		if err := d.Transformer.Validate(); err != nil {
			return err
		}
	}

	if err := c.Response.Validate(); err != nil {
		return err
	}
	if c.Response.Mode == response.ModeDestinationsCompleted {
		if enabled := len(c.EnabledDestinations()); c.Response.DestinationCount != enabled {
			return invalid(fmt.Sprintf(
				"channel %q: response destinationCount %d does not match the %d enabled destinations",
				c.Name, c.Response.DestinationCount, enabled))
		}
	}
	return nil
}

func invalid(detail string) error {
	return pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "channel.Channel", "Validate", detail)
}
