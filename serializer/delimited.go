package serializer

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/careroute/interlink/batch"
	pkgerrors "github.com/careroute/interlink/errors"
	"github.com/careroute/interlink/message"
)

// DelimitedConfig parameterizes the delimited-text data type.
type DelimitedConfig struct {
	// RecordDelimiter separates rows. Defaults to "\n".
	RecordDelimiter string `json:"recordDelimiter,omitempty" yaml:"recordDelimiter,omitempty"`
	// ColumnDelimiter separates columns within a row. Defaults to ",".
	ColumnDelimiter string `json:"columnDelimiter,omitempty" yaml:"columnDelimiter,omitempty"`
	// QuoteToken quotes column values; doubled inside quotes it is a
	// literal. Defaults to `"`.
	QuoteToken string `json:"quoteToken,omitempty" yaml:"quoteToken,omitempty"`
	// ColumnNames names the XML elements for each column in order.
	// Columns beyond the list fall back to columnN naming.
	ColumnNames []string `json:"columnNames,omitempty" yaml:"columnNames,omitempty"`
}

// DefaultDelimitedConfig returns comma-separated, newline-delimited settings.
func DefaultDelimitedConfig() DelimitedConfig {
	return DelimitedConfig{
		RecordDelimiter: "\n",
		ColumnDelimiter: ",",
		QuoteToken:      `"`,
	}
}

func (c DelimitedConfig) withDefaults() DelimitedConfig {
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

// delimitedSerializer converts delimited text to a row/column XML document
// and back. The XML form is what scripts navigate:
//
//	<delimited>
//	  <row><column1>a</column1><column2>b</column2></row>
//	</delimited>
type delimitedSerializer struct {
	cfg DelimitedConfig
}

// NewDelimited returns the serializer for the DELIMITED data type.
func NewDelimited(cfg DelimitedConfig) Serializer {
	return &delimitedSerializer{cfg: cfg.withDefaults()}
}

func (s *delimitedSerializer) columnName(index int) string {
	if index < len(s.cfg.ColumnNames) && s.cfg.ColumnNames[index] != "" {
		return s.cfg.ColumnNames[index]
	}
	return fmt.Sprintf("column%d", index+1)
}

// IsSerializationRequired reports true inbound: scripts navigate the XML
// form. Outbound the XML must be folded back to delimited text as well.
func (s *delimitedSerializer) IsSerializationRequired(bool) bool {
	return true
}

func (s *delimitedSerializer) ToXML(raw string) (string, error) {
	rows := strings.Split(raw, s.cfg.RecordDelimiter)
	for len(rows) > 0 && rows[len(rows)-1] == "" {
		rows = rows[:len(rows)-1]
	}

	var buf bytes.Buffer
	buf.WriteString("<delimited>")
	for _, row := range rows {
		buf.WriteString("<row>")
		for i, value := range batch.TokenizeRecord(row, s.cfg.ColumnDelimiter, s.cfg.QuoteToken) {
			name := s.columnName(i)
			buf.WriteByte('<')
			buf.WriteString(name)
			buf.WriteByte('>')
			if err := xml.EscapeText(&buf, []byte(value)); err != nil {
				return "", pkgerrors.WrapInvalid(err, "delimitedSerializer", "ToXML", "escape column value")
			}
			buf.WriteString("</")
			buf.WriteString(name)
			buf.WriteByte('>')
		}
		buf.WriteString("</row>")
	}
	buf.WriteString("</delimited>")
	return buf.String(), nil
}

func (s *delimitedSerializer) FromXML(xmlText string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(xmlText))

	var (
		rows    []string
		columns []string
		value   strings.Builder
		depth   int
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", pkgerrors.WrapInvalid(pkgerrors.ErrParsingFailed, "delimitedSerializer", "FromXML",
				fmt.Sprintf("malformed XML: %v", err))
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch depth {
			case 2:
				columns = columns[:0]
			case 3:
				value.Reset()
			}
		case xml.CharData:
			if depth == 3 {
				value.Write(t)
			}
		case xml.EndElement:
			switch depth {
			case 3:
				columns = append(columns, s.quoteValue(value.String()))
			case 2:
				rows = append(rows, strings.Join(columns, s.cfg.ColumnDelimiter))
			}
			depth--
		}
	}

	return strings.Join(rows, s.cfg.RecordDelimiter), nil
}

// quoteValue re-quotes a column value that contains structural characters,
// doubling embedded quote tokens.
func (s *delimitedSerializer) quoteValue(value string) string {
	needsQuoting := strings.Contains(value, s.cfg.ColumnDelimiter) ||
		strings.Contains(value, s.cfg.RecordDelimiter) ||
		strings.Contains(value, s.cfg.QuoteToken)
	if !needsQuoting {
		return value
	}
	escaped := strings.ReplaceAll(value, s.cfg.QuoteToken, s.cfg.QuoteToken+s.cfg.QuoteToken)
	return s.cfg.QuoteToken + escaped + s.cfg.QuoteToken
}

// PopulateMetaData records the row count and the first row's column count.
func (s *delimitedSerializer) PopulateMetaData(raw string, target *message.Map) {
	rows := strings.Split(raw, s.cfg.RecordDelimiter)
	for len(rows) > 0 && rows[len(rows)-1] == "" {
		rows = rows[:len(rows)-1]
	}
	target.Put("rowCount", len(rows))
	if len(rows) > 0 {
		target.Put("columnCount", len(batch.TokenizeRecord(rows[0], s.cfg.ColumnDelimiter, s.cfg.QuoteToken)))
	}
}
