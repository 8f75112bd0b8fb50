// Package table parses delimited heart-rate exports into a types.Table.
//
// Both the agent's ingest layer and the server's upload endpoint read input
// through Parse, so a file behaves the same whichever way it arrives.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/hrstress/hrstress/pkg/types"
)

// MaxBytes caps how much of a single table is read.
const MaxBytes = 64 << 20

// ErrEmpty is returned for input without a header row.
var ErrEmpty = errors.New("empty table: no header row")

// DelimiterFor picks the field separator from a file name, URL path or
// content type. Tab for .tsv and text/tab-separated-values, comma otherwise.
func DelimiterFor(nameOrType string) rune {
	s := strings.ToLower(nameOrType)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	if strings.HasSuffix(s, ".tsv") || strings.Contains(s, "tab-separated-values") {
		return '\t'
	}
	return ','
}

// Parse reads a delimited table with a header row from r.
// Rows may have fewer or more cells than the header.
func Parse(r io.Reader, delim rune) (*types.Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	// leading-space trimming would swallow empty tab-separated fields
	cr.TrimLeadingSpace = !unicode.IsSpace(delim)
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = strings.TrimSpace(h)
	}
	cols[0] = strings.TrimSpace(strings.TrimPrefix(cols[0], "\ufeff"))

	t := &types.Table{Columns: cols}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(t.Rows)+1, err)
		}
		// blank lines are skipped by encoding/csv; a lone empty field is not
		if len(rec) == 1 && rec[0] == "" && len(cols) > 1 {
			continue
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}
