package writer

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
)

// CSVWriter writes transactions to CSV format.
type CSVWriter struct {
	IncludeHeader bool
}

// Write writes the statement in CSV format to the given writer. Summary rows,
// when enabled, come first and are prefixed with "#".
func (w *CSVWriter) Write(out io.Writer, s Statement) error {
	if w.IncludeHeader {
		meta := csv.NewWriter(out)
		for _, kv := range summary(s) {
			if err := meta.Write([]string{"# " + kv[0], kv[1]}); err != nil {
				return fmt.Errorf("failed to write CSV metadata: %w", err)
			}
		}
		meta.Flush()
		if err := meta.Error(); err != nil {
			return fmt.Errorf("failed to write CSV metadata: %w", err)
		}
	}

	if err := gocsv.Marshal(rows(s), out); err != nil {
		return fmt.Errorf("failed to write CSV rows: %w", err)
	}
	return nil
}
