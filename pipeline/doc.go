// Package pipeline orchestrates per-message filter and transformer
// execution for a channel.
//
// A channel configures an ordered chain of filter rules (accept/reject
// logic) and transformer steps (content mutation), both user-authored
// scripts run through the script sandbox. The Executor applies them to one
// ConnectorMessage at a time:
//
//  1. Normalize: when the inbound data type requires it, raw content is
//     converted to the sandbox-navigable form via the serializer registry.
//     The conversion is working state only, never a content slot.
//  2. Filter: enabled rules run in sequence-number order. Each rule's
//     boolean result combines with the running result through the rule's
//     operator — AND rejects early, OR accepts early, NONE stands alone.
//     A false outcome sets status FILTERED; a script failure sets status
//     ERROR and is never mistaken for a deliberate reject.
//  3. Transform: enabled steps run in sequence-number order against the
//     accepted message. A step returning a string replaces the working
//     content; steps freely read and write the four maps. A failing step
//     keeps the side effects already committed by earlier steps.
//  4. Writeback: the working content lands in the TRANSFORMED slot, its
//     outbound encoding in ENCODED, and the status becomes TRANSFORMED.
//
// Scripts see a closed binding surface: msg (the working content) and the
// sourceMap, channelMap, connectorMap and responseMap of the message. No
// host filesystem, network or process state is reachable from a script.
//
// One Executor serves all workers of a channel concurrently; per-message
// state lives entirely in the ConnectorMessage being processed.
package pipeline
