// Package testutil provides shared fixtures for interlink tests.
//
// It carries three kinds of material:
//
// Payloads: realistic inbound payloads in the formats channels actually
// carry. The HL7 content is structurally faithful (MSH-led segments,
// carriage-return separators) but every identifier in it is invented.
//
// Channel definitions: a ChannelBuilder that assembles channel.Channel
// values in test code without a YAML round-trip, plus canned filter
// rules and transformer steps for common pipeline shapes.
//
// Scripts: the small filter/transformer script snippets tests reach for
// repeatedly — accept-all, reject-all, uppercase, map reads and writes.
//
// Fixtures return fresh values each call, so a test mutating its copy
// never leaks into another test.
package testutil
