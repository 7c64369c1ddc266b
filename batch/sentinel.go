package batch

import (
	"context"
	"strings"
)

// sentinelSplitter groups records into one unit until a record exactly
// equals the sentinel. The sentinel record is consumed either way; whether
// it appears at the end of the unit is IncludeSentinel's call. A final
// non-empty group with no trailing sentinel is still emitted. A sentinel
// with no records before it yields a unit only when IncludeSentinel is set
// (the unit is the sentinel record itself); otherwise the empty group is
// skipped.
type sentinelSplitter struct {
	records   []string
	sentinel  string
	include   bool
	delimiter string

	pos int
	seq int
}

func newSentinelSplitter(cfg Config, raw string) *sentinelSplitter {
	return &sentinelSplitter{
		records:   splitRecords(raw, cfg.RecordDelimiter),
		sentinel:  cfg.Sentinel,
		include:   cfg.IncludeSentinel,
		delimiter: cfg.RecordDelimiter,
	}
}

func (s *sentinelSplitter) Next(ctx context.Context) (*Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for s.pos < len(s.records) {
		var group []string
		for s.pos < len(s.records) {
			record := s.records[s.pos]
			s.pos++
			if record == s.sentinel {
				if s.include {
					group = append(group, record)
				}
				break
			}
			group = append(group, record)
		}
		if len(group) == 0 {
			// Consecutive sentinels with IncludeSentinel off.
			continue
		}
		s.seq++
		return &Unit{SequenceID: s.seq, Data: strings.Join(group, s.delimiter)}, nil
	}
	return nil, ErrExhausted
}

func (s *sentinelSplitter) Reset() error {
	s.pos = 0
	s.seq = 0
	return nil
}
