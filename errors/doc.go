// Package errors provides standardized error handling patterns for Interlink
// components.
//
// # Overview
//
// The errors package implements a three-class error classification system for
// the message pipeline: Transient (temporary, retryable), Invalid (bad input,
// non-retryable), and Fatal (unrecoverable, stop processing).
//
// This classification lets the pipeline make informed decisions about retries
// and failure handling without hardcoded error string matching. The one hard
// rule of the taxonomy: a filter rejecting a message is NOT an error. Rejection
// is a business decision recorded as a message status; only execution failures
// (bad scripts, timeouts, broken transports, missing configuration) flow
// through this package.
//
// # Error Classification
//
//   - Transient: Connection issues, script timeouts, full queues (retry may help)
//   - Invalid: Malformed input, script compile/runtime failures, incomplete
//     destination sets (do not retry)
//   - Fatal: Invalid or missing configuration (abort before processing starts)
//
// The classification system integrates with Go's standard error handling,
// supporting errors.Is(), errors.As(), and error wrapping chains.
//
// # Script Failure Taxonomy
//
// User-authored filter and transformer scripts fail in exactly three ways, and
// each has a standard variable:
//
//	errors.ErrScriptCompile // malformed script, reported once per source text
//	errors.ErrScriptRuntime // script threw during execution
//	errors.ErrScriptTimeout // script exceeded its wall-clock budget
//
// IsScriptError recognizes all three. Components that run scripts convert any
// of them into the message's error status and continue with the next message;
// they never mistake one for a deliberate filter rejection.
//
// # Configuration Failures
//
// ErrInvalidConfig and ErrMissingConfig classify as Fatal. A batch splitter or
// response selector invoked without its required parameters fails with one of
// these before producing any unit - the failure aborts the whole run, not a
// single message.
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Component", "Method", "action")
//	errors.WrapInvalid(err, "Component", "Method", "action")
//	errors.WrapFatal(err, "Component", "Method", "action")
//
// The generic Wrap() preserves the original error's classification:
//
//	errors.Wrap(err, "Component", "Method", "action")
//
// # Integration with errors.As/Is
//
//	var ce *errors.ClassifiedError
//	if errors.As(err, &ce) {
//	    log.Printf("Component: %s, Class: %s", ce.Component, ce.Class)
//	}
//
//	wrapped := errors.Wrap(errors.ErrConnectionTimeout, "Client", "Connect", "dial")
//	if errors.IsTransient(wrapped) { // true - classification preserved
//	    // retry
//	}
//
// Context errors (context.DeadlineExceeded, context.Canceled) classify as
// Transient, so context-based timeouts and network timeouts are handled
// uniformly.
//
// # Thread Safety
//
// All classification and wrapping operations are thread-safe. Error variables
// are immutable and safe for concurrent access.
package errors
