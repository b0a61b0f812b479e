package taggs

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fedgrants-backend/internal/awardstore"
	"fmt"
	"io"
	"strings"
)

const byteOrderMark = "\ufeff"

// ReadCSV reads a TAGGS advanced search export. Headers are lowercased, columns
// without a header (the exporter inserts an empty one) are dropped.
func ReadCSV(r io.Reader) ([]awardstore.RawRecord, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i, name := range header {
		if i == 0 {
			name = strings.Trim(strings.TrimPrefix(name, byteOrderMark), `"`)
		}
		header[i] = strings.ToLower(strings.TrimSpace(name))
	}

	var records []awardstore.RawRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("read csv line %d: %w", line, err)
		}

		fields := map[string]string{}
		empty := true
		for i, value := range row {
			if i >= len(header) || header[i] == "" {
				continue
			}
			value = strings.TrimSpace(value)
			if value != "" {
				empty = false
			}
			fields[header[i]] = value
		}
		if empty {
			continue
		}
		records = append(records, awardstore.RawRecord{Fields: fields})
	}
}
