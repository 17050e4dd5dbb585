package frame

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CSVOptions mirrors the reader options used for the sample files
type CSVOptions struct {
	// Header treats the first record as column names
	Header bool
	// Delimiter defaults to ','
	Delimiter rune
	// NullValue is read as null. The default "" makes every empty field
	// null, quoted or not.
	NullValue string
}

// ReadCSV reads delimited text into a frame. Every value is a string or nil.
// Without a header, columns are named _c0, _c1, ...
// Records shorter than the header are padded with nulls; extra fields are dropped.
func ReadCSV(r io.Reader, opts CSVOptions) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}

	f := &Frame{}
	first := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}

		if first {
			first = false
			f.Columns = headerColumns(record, opts.Header)
			if opts.Header {
				continue
			}
		}

		row := make(Row, len(f.Columns))
		for i := range row {
			if i < len(record) && record[i] != opts.NullValue {
				row[i] = record[i]
			}
		}
		f.Rows = append(f.Rows, row)
	}

	return f, nil
}

// headerColumns names the columns. Blank names become _c<i> and duplicate
// names get their ordinal appended.
func headerColumns(record []string, header bool) []Column {
	cols := make([]Column, len(record))
	if !header {
		for i := range record {
			cols[i] = Column{Name: "_c" + strconv.Itoa(i), Type: "string"}
		}
		return cols
	}

	counts := make(map[string]int, len(record))
	for _, name := range record {
		counts[strings.ToLower(strings.TrimSpace(name))]++
	}
	for i, name := range record {
		name = strings.TrimSpace(name)
		switch {
		case name == "":
			name = "_c" + strconv.Itoa(i)
		case counts[strings.ToLower(name)] > 1:
			name += strconv.Itoa(i)
		}
		cols[i] = Column{Name: name, Type: "string"}
	}
	return cols
}
