package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"currency-features/models"
)

// Row is one record as a JSON object with keys in Columns order
type Row struct {
	cells []string
}

// NewRow wraps r for JSON encoding
func NewRow(r models.FeatureRecord) Row {
	return Row{cells: Flatten(r)}
}

// Rows wraps every record
func Rows(records []models.FeatureRecord) []Row {
	out := make([]Row, len(records))
	for i, r := range records {
		out[i] = NewRow(r)
	}
	return out
}

// Record parses the row back into a FeatureRecord
func (row Row) Record() (models.FeatureRecord, error) {
	return Unflatten(row.cells)
}

// MarshalJSON writes numeric columns as bare numbers and empty optional cells as null
func (row Row) MarshalJSON() ([]byte, error) {
	if len(row.cells) != len(Columns) {
		return nil, ErrColumnCount
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(c)
		buf.Write(key)
		buf.WriteByte(':')

		cell := row.cells[i]
		switch {
		case cell == "" && i >= firstOptional && i != colLabel:
			buf.WriteString("null")
		case isNumeric(i):
			buf.WriteString(cell)
		default:
			v, err := json.Marshal(cell)
			if err != nil {
				return nil, err
			}
			buf.Write(v)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts numbers or numeric strings and null
func (row *Row) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	cells := make([]string, len(Columns))
	for i, c := range Columns {
		raw, ok := fields[c]
		if !ok || string(raw) == "null" {
			continue
		}
		if len(raw) > 0 && raw[0] == '"' {
			if err := json.Unmarshal(raw, &cells[i]); err != nil {
				return fmt.Errorf("%s: %w", c, err)
			}
			continue
		}
		cells[i] = string(raw)
	}
	row.cells = cells
	return nil
}

// WriteJSON writes records as a JSON array
func WriteJSON(w io.Writer, records []models.FeatureRecord) error {
	return json.NewEncoder(w).Encode(Rows(records))
}

// ReadJSON parses an array written by WriteJSON
func ReadJSON(r io.Reader) ([]models.FeatureRecord, error) {
	var rows []Row
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decoding rows: %w", err)
	}
	records := make([]models.FeatureRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := row.Record()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
