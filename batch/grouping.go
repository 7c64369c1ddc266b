package batch

import (
	"context"
	"strconv"
	"strings"
)

// groupingSplitter groups consecutive records whose grouping-column value is
// unchanged. Grouping is on value transitions in the record order, not a
// global group-by: the same value reappearing after an interruption opens a
// new group. Records with fewer columns than the grouping index contribute
// the empty value.
type groupingSplitter struct {
	records         []string
	columnIndex     int
	columnDelimiter string
	quote           string
	recordDelimiter string

	pos int
	seq int
}

func newGroupingSplitter(cfg Config, raw string) *groupingSplitter {
	return &groupingSplitter{
		records:         splitRecords(raw, cfg.RecordDelimiter),
		columnIndex:     resolveColumnIndex(cfg.GroupingColumn, cfg.ColumnNames),
		columnDelimiter: cfg.ColumnDelimiter,
		quote:           cfg.QuoteToken,
		recordDelimiter: cfg.RecordDelimiter,
	}
}

// resolveColumnIndex maps a grouping column name to a 0-based index: an
// exact match in the configured column names wins, then trailing digits of
// a conventional name ("column3" is index 2), then index 0.
func resolveColumnIndex(name string, columnNames []string) int {
	for i, candidate := range columnNames {
		if candidate == name {
			return i
		}
	}

	start := len(name)
	for start > 0 && name[start-1] >= '0' && name[start-1] <= '9' {
		start--
	}
	if start < len(name) {
		if n, err := strconv.Atoi(name[start:]); err == nil && n > 0 {
			return n - 1
		}
	}
	return 0
}

func (g *groupingSplitter) columnValue(record string) string {
	columns := TokenizeRecord(record, g.columnDelimiter, g.quote)
	if g.columnIndex < len(columns) {
		return columns[g.columnIndex]
	}
	return ""
}

func (g *groupingSplitter) Next(ctx context.Context) (*Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.pos >= len(g.records) {
		return nil, ErrExhausted
	}

	group := []string{g.records[g.pos]}
	groupValue := g.columnValue(g.records[g.pos])
	g.pos++

	for g.pos < len(g.records) && g.columnValue(g.records[g.pos]) == groupValue {
		group = append(group, g.records[g.pos])
		g.pos++
	}

	g.seq++
	return &Unit{SequenceID: g.seq, Data: strings.Join(group, g.recordDelimiter)}, nil
}

func (g *groupingSplitter) Reset() error {
	g.pos = 0
	g.seq = 0
	return nil
}
