// Package connector defines the contracts between the engine and the
// transports that feed it and that it dispatches to.
//
// A Source receives raw payloads from an external system and hands each one
// to the Handler installed at Start; the Handler runs the channel's pipeline
// and returns the Response the source should deliver back when its transport
// supports replies. A Destination writes one processed message per Send call;
// retry policy and failure queueing stay with the caller, so Send is always a
// single attempt.
//
// Factories registered with a Registry build connectors from channel
// definitions:
//
//	registry := connector.NewRegistry()
//	registry.RegisterSource("nats", nats.NewSource)
//	registry.RegisterDestination("nats", nats.NewDestination)
//	registry.RegisterDestination("file", file.NewDestination)
//
// The reference implementations live in the nats and file subpackages.
package connector
