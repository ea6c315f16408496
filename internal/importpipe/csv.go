package importpipe

import (
	"encoding/csv"
	"fmt"
	"io"
)

// sampleSize is how many data rows Analyse shows the AI collaborator (and
// the operator) as a preview, per spec §4.M.
const sampleSize = 3

// ParseCSV reads a CSV file's header and data rows. XLSX is out of scope:
// no spreadsheet-parsing library appears anywhere in the example pack, and
// operators are expected to export to CSV before uploading (see DESIGN.md).
func ParseCSV(r io.Reader) (header []string, rows [][]string, err error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // tolerate ragged rows; Validate flags them per-cell

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("parse csv: file is empty")
	}

	header = records[0]
	rows = records[1:]
	return header, rows, nil
}

// sampleRows returns up to sampleSize rows from rows, for the column mapper
// and operator preview.
func sampleRows(rows [][]string) [][]string {
	if len(rows) <= sampleSize {
		return rows
	}
	return rows[:sampleSize]
}

// rowToMap zips a header with one data row into a source_column -> raw
// string map, tolerating a row shorter than header (missing trailing cells
// become "").
func rowToMap(header, row []string) map[string]string {
	out := make(map[string]string, len(header))
	for i, col := range header {
		if i < len(row) {
			out[col] = row[i]
		} else {
			out[col] = ""
		}
	}
	return out
}
