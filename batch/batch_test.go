package batch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/careroute/interlink/errors"
)

// drain collects every unit until exhaustion and checks the sequence IDs are
// 1..N with no gaps.
func drain(t *testing.T, s Splitter) []string {
	t.Helper()
	var units []string
	for {
		unit, err := s.Next(context.Background())
		if err == ErrExhausted {
			return units
		}
		require.NoError(t, err)
		require.Equal(t, len(units)+1, unit.SequenceID)
		units = append(units, unit.Data)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default record mode", DefaultConfig(), false},
		{"empty mode defaults to record", Config{}, false},
		{"sentinel with value", Config{Mode: ModeSentinel, Sentinel: "END"}, false},
		{"sentinel without value", Config{Mode: ModeSentinel}, true},
		{"grouping with column", Config{Mode: ModeGrouping, GroupingColumn: "column2"}, false},
		{"grouping without column", Config{Mode: ModeGrouping}, true},
		{"script with source", Config{Mode: ModeScript, Script: "null"}, false},
		{"script without source", Config{Mode: ModeScript}, true},
		{"script with blank source", Config{Mode: ModeScript, Script: "   "}, true},
		{"unknown mode", Config{Mode: "xml"}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.cfg.Validate()
			if test.wantErr {
				require.Error(t, err)
				assert.True(t, pkgerrors.IsFatal(err), "configuration errors are fatal")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewSplitter_InvalidConfigFailsFast(t *testing.T) {
	_, err := NewSplitter(Config{Mode: ModeSentinel}, "a\nb", nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsFatal(err))
}

func TestNewSplitter_ScriptModeRequiresSandbox(t *testing.T) {
	_, err := NewSplitter(Config{Mode: ModeScript, Script: "null"}, "a", nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsFatal(err))
}

func TestSplitRecords(t *testing.T) {
	// Trailing empties from terminal delimiters are dropped; interior
	// empties are kept.
	assert.Equal(t, []string{"a", "", "b"}, splitRecords("a\n\nb\n", "\n"))
	assert.Equal(t, []string{"a", "b"}, splitRecords("a\nb\n\n\n", "\n"))
	assert.Empty(t, splitRecords("", "\n"))
	assert.Empty(t, splitRecords("\n\n", "\n"))
}
