package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"currency-features/models"
)

// WriteCSV writes a header row followed by one row per record
func WriteCSV(w io.Writer, records []models.FeatureRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(Flatten(r)); err != nil {
			return fmt.Errorf("writing %s: %w", r.Key(), err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses rows written by WriteCSV. The header must list Columns, in any order.
func ReadCSV(r io.Reader) ([]models.FeatureRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Columns)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	order, err := columnOrder(header)
	if err != nil {
		return nil, err
	}

	var records []models.FeatureRecord
	cells := make([]string, len(Columns))
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		for i, src := range order {
			cells[i] = row[src]
		}
		rec, err := Unflatten(cells)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
}

// columnOrder maps each of Columns to its index in header
func columnOrder(header []string) ([]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[h] = i
	}
	order := make([]int, len(Columns))
	for i, c := range Columns {
		p, ok := pos[c]
		if !ok {
			return nil, fmt.Errorf("header missing column %q", c)
		}
		order[i] = p
	}
	return order, nil
}
