package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hrstress/hrstress/pkg/table"
	"github.com/hrstress/hrstress/pkg/types"
)

// ReadFile parses the CSV or TSV file at path.
func ReadFile(path string) (*types.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	t, err := table.Parse(io.LimitReader(f, table.MaxBytes), table.DelimiterFor(path))
	if err != nil {
		return nil, fmt.Errorf("ingest: %s: %w", filepath.Base(path), err)
	}
	return t, nil
}
