// Package config loads the node-level configuration for an interlink
// process.
//
// The configuration covers what is shared across every channel on the
// node: the NATS connection, the prometheus endpoint, where channel
// definition files live, and the script sandbox budget. Channel behavior
// itself is configured per definition file and loaded by the channel
// package.
//
// Files may be JSON or YAML; both decode over Default(), so a minimal
// file only states what differs from the defaults:
//
//	nats:
//	  url: nats://broker.internal:4222
//	channels:
//	  dir: /etc/interlink/channels
//
// Durations accept Go duration strings ("2s", "250ms").
//
// A handful of INTERLINK_* environment variables override the file for
// settings that differ between deployments of the same image:
// INTERLINK_SERVER_ID, INTERLINK_NATS_URL, INTERLINK_NATS_USERNAME,
// INTERLINK_NATS_PASSWORD, INTERLINK_NATS_TOKEN, INTERLINK_CHANNELS_DIR
// and INTERLINK_METRICS_PORT.
package config
