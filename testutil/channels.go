package testutil

import (
	"github.com/careroute/interlink/batch"
	"github.com/careroute/interlink/channel"
	"github.com/careroute/interlink/pipeline"
	"github.com/careroute/interlink/response"
)

// Rule returns an enabled filter rule.
func Rule(seq int, name, script string) pipeline.Rule {
	return pipeline.Rule{SequenceNumber: seq, Name: name, Script: script, Enabled: true}
}

// Step returns an enabled transformer step.
func Step(seq int, name, script string) pipeline.Step {
	return pipeline.Step{SequenceNumber: seq, Name: name, Script: script, Enabled: true}
}

// AcceptAll is a filter whose single rule accepts every message.
func AcceptAll() pipeline.Filter {
	return pipeline.Filter{Rules: []pipeline.Rule{Rule(1, "accept all", "true")}}
}

// RejectAll is a filter whose single rule rejects every message.
func RejectAll() pipeline.Filter {
	return pipeline.Filter{Rules: []pipeline.Rule{Rule(1, "reject all", "false")}}
}

// Uppercase is a transformer whose single step uppercases the working
// content.
func Uppercase() pipeline.Transformer {
	return pipeline.Transformer{Steps: []pipeline.Step{Step(1, "uppercase", "msg.toUpperCase()")}}
}

// ChannelBuilder assembles channel definitions in test code without a
// YAML round-trip. Build returns the bare definition; defaults and
// validation run where they do for loaded definitions, when the channel
// is deployed.
type ChannelBuilder struct {
	ch channel.Channel
}

// NewChannel starts a definition with the given name and a source
// connector of type "test-source", the conventional fake registered by
// engine tests.
func NewChannel(name string) *ChannelBuilder {
	return &ChannelBuilder{ch: channel.Channel{
		Name: name,
		Source: channel.Source{
			Connector: channel.Connector{Type: "test-source"},
		},
	}}
}

// Source replaces the source connector.
func (b *ChannelBuilder) Source(connType string, settings map[string]any) *ChannelBuilder {
	b.ch.Source.Connector = channel.Connector{Type: connType, Settings: settings}
	return b
}

// Batch sets how inbound payloads split into units.
func (b *ChannelBuilder) Batch(cfg batch.Config) *ChannelBuilder {
	b.ch.Source.Batch = cfg
	return b
}

// Filter sets the source filter.
func (b *ChannelBuilder) Filter(f pipeline.Filter) *ChannelBuilder {
	b.ch.Source.Filter = f
	return b
}

// Transformer sets the source transformer.
func (b *ChannelBuilder) Transformer(t pipeline.Transformer) *ChannelBuilder {
	b.ch.Source.Transformer = t
	return b
}

// Threads sets the number of payloads processed in parallel.
func (b *ChannelBuilder) Threads(n int) *ChannelBuilder {
	b.ch.Source.MaxProcessingThreads = n
	return b
}

// Destination appends a destination with connector type "test-dest",
// the conventional fake registered by engine tests.
func (b *ChannelBuilder) Destination(name string) *ChannelBuilder {
	b.ch.Destinations = append(b.ch.Destinations, channel.Destination{
		Name:      name,
		Connector: channel.Connector{Type: "test-dest"},
	})
	return b
}

// DestinationSpec appends a fully specified destination.
func (b *ChannelBuilder) DestinationSpec(d channel.Destination) *ChannelBuilder {
	b.ch.Destinations = append(b.ch.Destinations, d)
	return b
}

// Respond sets the response selection mode.
func (b *ChannelBuilder) Respond(mode response.Mode) *ChannelBuilder {
	b.ch.Response.Mode = mode
	return b
}

// RespondNamed selects the response by destination name or alias.
func (b *ChannelBuilder) RespondNamed(key string) *ChannelBuilder {
	b.ch.Response.Mode = response.ModeNamed
	b.ch.Response.ResponseKey = key
	return b
}

// Build returns the assembled definition.
func (b *ChannelBuilder) Build() channel.Channel {
	return b.ch
}
