package batch

import (
	"context"

	"github.com/careroute/interlink/message"
	"github.com/careroute/interlink/script"
)

// lineReader is the reader object handed to batch scripts. It walks the
// records of the remaining payload; readLine() returns the next record or
// null at the end. Position is shared across script invocations so each
// fetch continues where the previous one stopped.
type lineReader struct {
	records []string
	pos     int
}

// ReadLine returns the next record, or nil once the payload is consumed.
// Scripts see it as reader.readLine().
func (r *lineReader) ReadLine() any {
	if r.pos >= len(r.records) {
		return nil
	}
	record := r.records[r.pos]
	r.pos++
	return record
}

// scriptSplitter delegates unit extraction to a user script. Each Next runs
// the script once with exactly two bindings: the shared reader and the
// message's source map. The script returns the next unit as a string; an
// empty, null or undefined result signals exhaustion. Sandbox failures
// (compile, runtime, timeout) surface to the caller untouched.
type scriptSplitter struct {
	sandbox   *script.Sandbox
	compiled  *script.Compiled
	reader    *lineReader
	sourceMap *message.Map

	seq int
}

func newScriptSplitter(cfg Config, raw string, env *ScriptEnv) (*scriptSplitter, error) {
	compiled, err := env.Sandbox.Compile("batch", cfg.Script)
	if err != nil {
		return nil, err
	}
	sourceMap := env.SourceMap
	if sourceMap == nil {
		sourceMap = message.NewMap()
	}
	return &scriptSplitter{
		sandbox:   env.Sandbox,
		compiled:  compiled,
		reader:    &lineReader{records: splitRecords(raw, cfg.RecordDelimiter)},
		sourceMap: sourceMap,
	}, nil
}

func (s *scriptSplitter) Next(ctx context.Context) (*Unit, error) {
	result, err := s.sandbox.Run(ctx, s.compiled, script.Bindings{
		"reader":    s.reader,
		"sourceMap": s.sourceMap,
	})
	if err != nil {
		return nil, err
	}
	if result.IsNullish() {
		return nil, ErrExhausted
	}
	data := result.String()
	if data == "" {
		return nil, ErrExhausted
	}

	s.seq++
	return &Unit{SequenceID: s.seq, Data: data}, nil
}

func (s *scriptSplitter) Reset() error {
	s.reader.pos = 0
	s.seq = 0
	return nil
}
