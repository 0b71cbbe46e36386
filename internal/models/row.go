package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Row is one table row with column order preserved from the remote schema.
type Row struct {
	Columns []string
	Values  map[string]interface{}
}

// NewRow builds a row from parallel column and value slices.
func NewRow(columns []string, values []interface{}) Row {
	row := Row{Columns: append([]string(nil), columns...), Values: make(map[string]interface{}, len(columns))}
	for i, col := range columns {
		if i < len(values) {
			row.Values[col] = values[i]
		} else {
			row.Values[col] = nil
		}
	}
	return row
}

// Get returns the raw value for column.
func (r Row) Get(column string) (interface{}, bool) {
	if r.Values == nil {
		return nil, false
	}
	v, ok := r.Values[column]
	return v, ok
}

// Has reports whether the row carries column.
func (r Row) Has(column string) bool {
	_, ok := r.Get(column)
	return ok
}

// String returns column rendered as text; NULL and missing columns are "".
func (r Row) String(column string) string {
	v, _ := r.Get(column)
	return Stringify(v)
}

// MarshalJSON keeps the column order of the table.
func (r Row) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	for i, col := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(r.Values[col])
		if err != nil {
			return nil, fmt.Errorf("marshal column %s: %w", col, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON restores a row written by MarshalJSON, keeping key order.
// Numbers are kept as json.Number so identity values survive unchanged.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*r = Row{}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("row must be a JSON object")
	}
	row := Row{Values: make(map[string]interface{})}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("row key must be a string")
		}
		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decode column %s: %w", key, err)
		}
		if _, dup := row.Values[key]; !dup {
			row.Columns = append(row.Columns, key)
		}
		row.Values[key] = value
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = row
	return nil
}

// Stringify renders a scanned database value as text.
func Stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(ReviewTimestampLayout)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// Contains reports whether any column value contains term, case-insensitively.
func (r Row) Contains(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, col := range r.Columns {
		if strings.Contains(strings.ToLower(r.String(col)), term) {
			return true
		}
	}
	return false
}

// ColumnInfo describes one column of a reviewed table.
type ColumnInfo struct {
	Name     string `db:"column_name" json:"name"`
	DataType string `db:"data_type" json:"dataType"`
}
