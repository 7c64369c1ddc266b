// Package script executes user-supplied JavaScript for filter rules,
// transformer steps and custom batch splitting.
//
// # Execution Model
//
// Scripts are compiled once and run many times. Compile turns source text
// into an immutable Compiled program; Run executes a Compiled in a brand-new
// JavaScript runtime with exactly the host values the caller binds. Nothing
// persists between invocations inside the runtime: state a script wants to
// keep must go through a bound map.
//
// # Isolation
//
// The runtime exposes standard ECMAScript builtins only. There is no module
// loader, no filesystem, no network and no timers; a script's entire view of
// the host is its Bindings. Bound Go values follow Go's method sets with the
// first letter lowercased, which is what makes channelMap.put("key", value)
// resolve to (*message.Map).Put.
//
// # Failure Taxonomy
//
// Three things can go wrong, each with its own sentinel in the errors
// package:
//
//   - ErrScriptCompile: the source does not parse. Compile failures are
//     cached alongside successes, so a broken script fails fast on every
//     message instead of recompiling.
//   - ErrScriptRuntime: the script threw or referenced something undefined.
//   - ErrScriptTimeout: the invocation exceeded the sandbox timeout or its
//     context was canceled; the runtime is interrupted and discarded. Writes
//     the script committed to bound maps before the interrupt remain.
//
// A rule script returning false is not a failure; that distinction belongs
// to the pipeline.
package script
