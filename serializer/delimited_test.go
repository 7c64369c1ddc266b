package serializer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careroute/interlink/message"
)

func TestDelimited_ToXML(t *testing.T) {
	s := NewDelimited(DefaultDelimitedConfig())

	xml, err := s.ToXML("a,b\nc,d\n")
	require.NoError(t, err)
	assert.Equal(t,
		"<delimited>"+
			"<row><column1>a</column1><column2>b</column2></row>"+
			"<row><column1>c</column1><column2>d</column2></row>"+
			"</delimited>",
		xml)
}

func TestDelimited_ToXML_NamedColumns(t *testing.T) {
	cfg := DefaultDelimitedConfig()
	cfg.ColumnNames = []string{"mrn", "name"}
	s := NewDelimited(cfg)

	xml, err := s.ToXML("123,smith,extra")
	require.NoError(t, err)
	assert.Equal(t,
		"<delimited><row><mrn>123</mrn><name>smith</name><column3>extra</column3></row></delimited>",
		xml)
}

func TestDelimited_ToXML_QuotedAndEscaped(t *testing.T) {
	s := NewDelimited(DefaultDelimitedConfig())

	xml, err := s.ToXML(`a,"b,c"` + "\n" + `"say ""hi""",d`)
	require.NoError(t, err)
	assert.Equal(t,
		"<delimited>"+
			"<row><column1>a</column1><column2>b,c</column2></row>"+
			`<row><column1>say &#34;hi&#34;</column1><column2>d</column2></row>`+
			"</delimited>",
		xml)
}

func TestDelimited_RoundTrip(t *testing.T) {
	s := NewDelimited(DefaultDelimitedConfig())

	payloads := []string{
		"a,b\nc,d",
		`a,"b,c"` + "\nd,e",
		"one",
	}

	for _, payload := range payloads {
		xml, err := s.ToXML(payload)
		require.NoError(t, err)
		back, err := s.FromXML(xml)
		require.NoError(t, err)
		assert.Equal(t, payload, back, "payload %q", payload)
	}
}

func TestDelimited_FromXML_RequotesStructuralValues(t *testing.T) {
	s := NewDelimited(DefaultDelimitedConfig())

	back, err := s.FromXML("<delimited><row><column1>has,comma</column1><column2>plain</column2></row></delimited>")
	require.NoError(t, err)
	assert.Equal(t, `"has,comma",plain`, back)
}

func TestDelimited_FromXML_Malformed(t *testing.T) {
	s := NewDelimited(DefaultDelimitedConfig())

	_, err := s.FromXML("<delimited><row>")
	assert.Error(t, err)
}

func TestDelimited_XMLSpecialCharacters(t *testing.T) {
	s := NewDelimited(DefaultDelimitedConfig())

	xml, err := s.ToXML("a<b,c&d")
	require.NoError(t, err)
	back, err := s.FromXML(xml)
	require.NoError(t, err)
	assert.Equal(t, "a<b,c&d", back)
}

func TestDelimited_PopulateMetaData(t *testing.T) {
	s := NewDelimited(DefaultDelimitedConfig())
	m := message.NewMap()

	s.PopulateMetaData("a,b,c\nd,e,f\n", m)
	assert.Equal(t, 2, m.Get("rowCount"))
	assert.Equal(t, 3, m.Get("columnCount"))
}
