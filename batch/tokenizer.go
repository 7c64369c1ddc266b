package batch

import (
	"strings"
	"unicode/utf8"
)

// TokenizeRecord splits one record into column values. The column delimiter
// inside a quoted region is literal text; a doubled quote token inside a
// quoted region is an escaped literal quote. An unterminated quote runs to
// the end of the record.
func TokenizeRecord(record, delimiter, quote string) []string {
	var (
		tokens   []string
		current  strings.Builder
		inQuotes bool
	)

	for i := 0; i < len(record); {
		rest := record[i:]

		if quote != "" && strings.HasPrefix(rest, quote) {
			if inQuotes && strings.HasPrefix(rest, quote+quote) {
				current.WriteString(quote)
				i += 2 * len(quote)
				continue
			}
			inQuotes = !inQuotes
			i += len(quote)
			continue
		}

		if !inQuotes && delimiter != "" && strings.HasPrefix(rest, delimiter) {
			tokens = append(tokens, current.String())
			current.Reset()
			i += len(delimiter)
			continue
		}

		r, size := utf8.DecodeRuneInString(rest)
		current.WriteRune(r)
		i += size
	}

	return append(tokens, current.String())
}
