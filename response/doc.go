// Package response decides what, if anything, a channel sends back to its
// origin after a message has been handled.
//
// A channel configures one of five modes. Three answer immediately from a
// single status: none (no reply), pre_processing (status at receipt) and
// post_source (the source connector message's status after its own
// pipeline run). The named mode returns whatever value a user script stored
// in the source's responseMap under the configured key.
//
// The destinations_completed mode reconciles the outcomes of every
// destination once dispatch has been attempted for all of them. Fewer
// recorded outcomes than configured destinations is itself an error. With
// a complete set, the overall status is the highest-ranked destination
// status in the fixed precedence FILTERED < QUEUED < SENT < ERROR, ties
// resolved to the earliest destination. The auto-responder receives a
// merged read-only view of the message: the source's maps with every
// destination's channelMap and responseMap folded in, later destinations
// winning key collisions, the per-destination originals untouched.
package response
