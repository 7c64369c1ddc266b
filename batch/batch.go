package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pkgerrors "github.com/careroute/interlink/errors"
	"github.com/careroute/interlink/message"
	"github.com/careroute/interlink/script"
)

// ErrExhausted is returned by Next when a splitter has produced its last
// unit. It is a control signal, not a failure; an empty record is a valid
// unit and never doubles as the end marker.
var ErrExhausted = errors.New("batch exhausted")

// Unit is one sub-message extracted from a raw batched payload. SequenceID
// is 1-based and strictly contiguous within one run of a splitter.
type Unit struct {
	SequenceID int
	Data       string
}

// Splitter produces the ordered units of one raw payload. Implementations
// are not safe for concurrent use; one goroutine owns a splitter for the
// payload's lifetime.
type Splitter interface {
	// Next returns the next unit, or ErrExhausted after the last one.
	Next(ctx context.Context) (*Unit, error)
	// Reset restarts the splitter from the beginning of the payload.
	// Mid-stream resumption is not supported.
	Reset() error
}

// Mode selects the splitting strategy for a channel.
type Mode string

const (
	// ModeRecord emits one unit per record delimiter.
	ModeRecord Mode = "record"
	// ModeSentinel groups records until a sentinel record is seen.
	ModeSentinel Mode = "sentinel"
	// ModeGrouping groups consecutive records by a column value.
	ModeGrouping Mode = "grouping"
	// ModeScript delegates unit extraction to a user script.
	ModeScript Mode = "script"
)

// Config selects and parameterizes a splitting strategy. Exactly one mode is
// active per channel source.
type Config struct {
	Mode Mode `json:"mode" yaml:"mode"`

	// RecordDelimiter separates records in every mode. Defaults to "\n".
	RecordDelimiter string `json:"recordDelimiter,omitempty" yaml:"recordDelimiter,omitempty"`

	// FirstRecordHeader treats the first record as a header that is
	// prepended to every emitted unit instead of emitted standalone.
	// Record mode only.
	FirstRecordHeader bool `json:"firstRecordHeader,omitempty" yaml:"firstRecordHeader,omitempty"`

	// Sentinel closes the current group when a record equals it exactly.
	// Required in sentinel mode.
	Sentinel string `json:"sentinel,omitempty" yaml:"sentinel,omitempty"`

	// IncludeSentinel appends the sentinel record to the unit it closes.
	IncludeSentinel bool `json:"includeSentinel,omitempty" yaml:"includeSentinel,omitempty"`

	// GroupingColumn names the column whose value transitions close groups.
	// Resolved against ColumnNames, then by trailing digits ("column3" is
	// index 2), else index 0. Required in grouping mode.
	GroupingColumn string `json:"groupingColumn,omitempty" yaml:"groupingColumn,omitempty"`

	// ColumnNames optionally names the columns of each record in order.
	ColumnNames []string `json:"columnNames,omitempty" yaml:"columnNames,omitempty"`

	// ColumnDelimiter separates columns within a record. Defaults to ",".
	ColumnDelimiter string `json:"columnDelimiter,omitempty" yaml:"columnDelimiter,omitempty"`

	// QuoteToken quotes column values; a doubled token inside a quoted
	// value is an escaped literal. Defaults to `"`.
	QuoteToken string `json:"quoteToken,omitempty" yaml:"quoteToken,omitempty"`

	// Script is the unit-extraction script for script mode. Required there.
	Script string `json:"script,omitempty" yaml:"script,omitempty"`
}

// DefaultConfig returns a record-mode configuration with standard delimiters.
func DefaultConfig() Config {
	return Config{
		Mode:            ModeRecord,
		RecordDelimiter: "\n",
		ColumnDelimiter: ",",
		QuoteToken:      `"`,
	}
}

// withDefaults fills unset fields that have conventional values.
func (c Config) withDefaults() Config {
	if c.Mode == "" {
		c.Mode = ModeRecord
	}
	if c.RecordDelimiter == "" {
		c.RecordDelimiter = "\n"
	}
	if c.ColumnDelimiter == "" {
		c.ColumnDelimiter = ","
	}
	if c.QuoteToken == "" {
		c.QuoteToken = `"`
	}
	return c
}

// Validate fails fast on a strategy missing its required parameters. This is
// a configuration error surfaced before any unit is produced, never a
// per-message error.
func (c Config) Validate() error {
	c = c.withDefaults()
	switch c.Mode {
	case ModeRecord:
	case ModeSentinel:
		if c.Sentinel == "" {
			return pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "batch.Config", "Validate",
				"sentinel mode requires a sentinel value")
		}
	case ModeGrouping:
		if c.GroupingColumn == "" {
			return pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "batch.Config", "Validate",
				"grouping mode requires a grouping column")
		}
	case ModeScript:
		if strings.TrimSpace(c.Script) == "" {
			return pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "batch.Config", "Validate",
				"script mode requires a script")
		}
	default:
		return pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "batch.Config", "Validate",
			fmt.Sprintf("unknown mode %q", c.Mode))
	}
	return nil
}

// ScriptEnv carries the dependencies script-mode splitting needs: the
// sandbox to run in and the message's source map, which the script may read
// and write.
type ScriptEnv struct {
	Sandbox   *script.Sandbox
	SourceMap *message.Map
}

// NewSplitter builds the splitter for cfg over one raw payload. Script mode
// compiles its script here, so an unparseable script aborts the batch run
// before any unit is produced. env may be nil for non-script modes.
func NewSplitter(cfg Config, raw string, env *ScriptEnv) (Splitter, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Mode {
	case ModeRecord:
		return newRecordSplitter(cfg, raw), nil
	case ModeSentinel:
		return newSentinelSplitter(cfg, raw), nil
	case ModeGrouping:
		return newGroupingSplitter(cfg, raw), nil
	case ModeScript:
		if env == nil || env.Sandbox == nil {
			return nil, pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "batch", "NewSplitter",
				"script mode requires a sandbox")
		}
		return newScriptSplitter(cfg, raw, env)
	default:
		return nil, pkgerrors.WrapFatal(pkgerrors.ErrInvalidConfig, "batch", "NewSplitter",
			fmt.Sprintf("unknown mode %q", cfg.Mode))
	}
}

// splitRecords splits raw on the record delimiter and drops trailing empty
// records left by a terminal delimiter. Interior empty records are kept;
// they are legitimate units.
func splitRecords(raw, delimiter string) []string {
	records := strings.Split(raw, delimiter)
	for len(records) > 0 && records[len(records)-1] == "" {
		records = records[:len(records)-1]
	}
	return records
}
