// Package message defines the message model that flows through an interlink
// channel: the per-connector message, its content slots, the shared variable
// maps, and the response type handed back to callers.
//
// # Architecture
//
// The model has three levels:
//
// 1. Message - One unit of work for a channel: a source connector message plus
// zero or more destination connector messages, keyed by metadata ID.
//
// 2. ConnectorMessage - One connector's view of that work. The source
// connector owns metadata ID 0; destinations are numbered 1..n in channel
// order. Each carries its own status, content slots and maps.
//
// 3. Content - Immutable snapshots of the payload at fixed points in the
// pipeline (raw, transformed, encoded, sent, response, error records).
//
// # Status Lifecycle
//
// A connector message moves through a small status machine:
//
//	RECEIVED ──▶ FILTERED                  (rejected by a filter rule)
//	    │
//	    ├──────▶ TRANSFORMED ──▶ SENT      (delivered by the connector)
//	    │             │
//	    │             ├────────▶ QUEUED    (accepted for deferred delivery)
//	    │             └────────▶ ERROR     (dispatch failed)
//	    └──────▶ ERROR                     (script or serializer failure)
//
// FILTERED is a normal outcome, never an error. PENDING marks a destination
// placeholder that has not been dispatched yet. Each status has a
// single-character code (R, F, T, S, Q, E, P) for compact storage.
//
// # Content Slots
//
// A connector message holds at most one Content per ContentType; writing a
// slot again replaces the previous entry. The pipeline populates RAW at
// receipt, TRANSFORMED and ENCODED after the transformer chain, SENT and
// RESPONSE around dispatch, and the *_ERROR slots when a stage fails. Working
// copies between stages are transient; only these named snapshots persist.
//
// # The Four Maps
//
// Scripts and the engine share state through four insertion-ordered maps:
//
//   - sourceMap: seeded by the source connector (batch position, origin
//     metadata); read-only by convention after receipt.
//   - channelMap: shared across every connector message of one message.
//   - connectorMap: private to a single connector message.
//   - responseMap: where destinations record responses for the source to
//     select from.
//
// Map preserves insertion order through overwrites, clones, merges and JSON
// round-trips. Merge semantics matter for response selection: existing keys
// keep their position and take the incoming value, new keys append in the
// source's order.
//
// # Responses
//
// Response is what a channel answers its caller with. FromValue normalizes
// whatever a script left in a response map: real Response values pass through,
// anything else is wrapped as a SENT response with the value's default
// formatting.
//
// # Thread Safety
//
// A ConnectorMessage is owned by one processing goroutine; its fields need no
// locking. The maps are individually synchronized because scripts hold live
// references to them during sandbox calls.
package message
