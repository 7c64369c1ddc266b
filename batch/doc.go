// Package batch decomposes one raw inbound payload into an ordered sequence
// of units, each becoming its own message.
//
// # Model
//
// A Splitter is built per payload and driven by repeated Next calls until it
// returns ErrExhausted. Sequence IDs are 1-based and contiguous for one run;
// Reset restarts from the beginning of the payload (there is no mid-stream
// resume). Exhaustion is always the explicit ErrExhausted signal, never an
// empty unit, because an empty record is a legitimate unit in record mode.
//
// # Strategies
//
// Four mutually exclusive strategies cover the common batch shapes:
//
//   - record: one unit per record delimiter, optionally prefixing every unit
//     with a held-back header record.
//   - sentinel: records accumulate into a unit until a record equals the
//     configured sentinel exactly.
//   - grouping: consecutive records with the same value in one column form a
//     unit; the tokenizer honors quoted regions and doubled-quote escapes.
//   - script: a user script pulls records through a reader object and
//     returns each unit, running inside the script sandbox with its timeout.
//
// Strategy parameters are validated before the first unit is produced; a
// misconfigured splitter aborts the whole batch run rather than failing per
// message.
package batch
