package batch

import "context"

// recordSplitter emits one unit per record. With FirstRecordHeader set, the
// first record is held back and prepended (header + delimiter + record) to
// every unit; a payload that is only a header yields no units.
type recordSplitter struct {
	records   []string
	header    string
	hasHeader bool
	delimiter string

	pos int
	seq int
}

func newRecordSplitter(cfg Config, raw string) *recordSplitter {
	records := splitRecords(raw, cfg.RecordDelimiter)
	s := &recordSplitter{
		records:   records,
		delimiter: cfg.RecordDelimiter,
	}
	if cfg.FirstRecordHeader && len(records) > 0 {
		s.header = records[0]
		s.hasHeader = true
		s.records = records[1:]
	}
	return s
}

func (s *recordSplitter) Next(ctx context.Context) (*Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.records) {
		return nil, ErrExhausted
	}

	data := s.records[s.pos]
	if s.hasHeader {
		data = s.header + s.delimiter + data
	}
	s.pos++
	s.seq++
	return &Unit{SequenceID: s.seq, Data: data}, nil
}

func (s *recordSplitter) Reset() error {
	s.pos = 0
	s.seq = 0
	return nil
}
