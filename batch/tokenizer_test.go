package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeRecord(t *testing.T) {
	tests := []struct {
		name     string
		record   string
		expected []string
	}{
		{
			name:     "plain columns",
			record:   "a,b,c",
			expected: []string{"a", "b", "c"},
		},
		{
			name:     "empty columns",
			record:   "a,,c,",
			expected: []string{"a", "", "c", ""},
		},
		{
			name:     "quoted delimiter is literal",
			record:   `a,"b,c",d`,
			expected: []string{"a", "b,c", "d"},
		},
		{
			name:     "doubled quote inside quotes escapes",
			record:   `a,"she said ""hi""",b`,
			expected: []string{"a", `she said "hi"`, "b"},
		},
		{
			name:     "unterminated quote runs to end",
			record:   `a,"b,c`,
			expected: []string{"a", "b,c"},
		},
		{
			name:     "single column",
			record:   "only",
			expected: []string{"only"},
		},
		{
			name:     "empty record",
			record:   "",
			expected: []string{""},
		},
		{
			name:     "multibyte content",
			record:   "α,β γ,δ",
			expected: []string{"α", "β γ", "δ"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, TokenizeRecord(test.record, ",", `"`))
		})
	}
}

func TestTokenizeRecord_CustomQuote(t *testing.T) {
	assert.Equal(t,
		[]string{"a", "b|c", "d"},
		TokenizeRecord("a|'b|c'|d", "|", "'"))
}

func TestTokenizeRecord_MultiCharDelimiter(t *testing.T) {
	assert.Equal(t,
		[]string{"a", "b", "c"},
		TokenizeRecord("a::b::c", "::", `"`))
}
