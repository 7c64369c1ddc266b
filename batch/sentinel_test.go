package batch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sentinelConfig(include bool) Config {
	return Config{
		Mode:            ModeSentinel,
		RecordDelimiter: "\n",
		Sentinel:        "END",
		IncludeSentinel: include,
	}
}

func TestSentinelSplitter_Groups(t *testing.T) {
	payload := "a\nb\nEND\nc\nEND"

	s, err := NewSplitter(sentinelConfig(false), payload, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a\nb", "c"}, drain(t, s))
}

func TestSentinelSplitter_IncludeSentinel(t *testing.T) {
	payload := "a\nb\nEND\nc\nEND"

	s, err := NewSplitter(sentinelConfig(true), payload, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a\nb\nEND", "c\nEND"}, drain(t, s))
}

func TestSentinelSplitter_FinalGroupWithoutSentinel(t *testing.T) {
	payload := "a\nEND\nb\nc"

	s, err := NewSplitter(sentinelConfig(false), payload, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b\nc"}, drain(t, s))
}

func TestSentinelSplitter_ConsecutiveSentinels(t *testing.T) {
	payload := "a\nEND\nEND\nb"

	// With the sentinel discarded, the empty middle group vanishes.
	s, err := NewSplitter(sentinelConfig(false), payload, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, drain(t, s))

	// With the sentinel kept, the middle group is the sentinel record.
	s, err = NewSplitter(sentinelConfig(true), payload, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a\nEND", "END", "b"}, drain(t, s))
}

func TestSentinelSplitter_RoundTrip(t *testing.T) {
	// With IncludeSentinel, rejoining all units with the record delimiter
	// reproduces the original record sequence exactly.
	payloads := []string{
		"a\nb\nEND\nc\nEND\nd",
		"END\na\nEND",
		"a\nEND\nEND\nb\nEND",
	}

	for _, payload := range payloads {
		s, err := NewSplitter(sentinelConfig(true), payload, nil)
		require.NoError(t, err)
		units := drain(t, s)
		assert.Equal(t, payload, strings.Join(units, "\n"), "payload %q", payload)
	}
}

func TestSentinelSplitter_Reset(t *testing.T) {
	s, err := NewSplitter(sentinelConfig(false), "a\nEND\nb", nil)
	require.NoError(t, err)

	first := drain(t, s)
	require.NoError(t, s.Reset())
	assert.Equal(t, first, drain(t, s))
}
