package imports

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

// RecordReader pulls header-keyed records from a delimited text stream one
// at a time. A leading byte-order mark is honoured, fields are trimmed and
// empty lines are skipped. A line of empty fields is still a record. Nothing
// is read ahead of the caller.
type RecordReader struct {
	csv     *csv.Reader
	headers []string
	count   int
}

// NewRecordReader consumes the header row of r.
func NewRecordReader(r io.Reader) (*RecordReader, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	record, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, shared.Validation("CSV has no header row")
	}
	if err != nil {
		return nil, readError("read header", err)
	}
	fields := trimAll(record)
	if err := checkFields(cr, fields); err != nil {
		return nil, shared.Processing("read header", err)
	}
	seen := make(map[string]struct{}, len(fields))
	for i, h := range fields {
		if h == "" {
			return nil, shared.Processing("read header", fmt.Errorf("column %d has no name", i+1))
		}
		if _, dup := seen[h]; dup {
			return nil, shared.Processing("read header", fmt.Errorf("duplicate column %q", h))
		}
		seen[h] = struct{}{}
	}
	return &RecordReader{csv: cr, headers: fields}, nil
}

// Headers returns the literal header row.
func (r *RecordReader) Headers() []string {
	out := make([]string, len(r.headers))
	copy(out, r.headers)
	return out
}

// Count is the number of records returned so far.
func (r *RecordReader) Count() int {
	return r.count
}

// Next returns the next record keyed by header, or io.EOF.
func (r *RecordReader) Next() (map[string]string, error) {
	record, err := r.csv.Read()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, readError("read record", err)
	}
	fields := trimAll(record)
	if len(fields) != len(r.headers) {
		line, _ := r.csv.FieldPos(0)
		return nil, shared.Processing("read record",
			fmt.Errorf("line %d: expected %d fields, got %d", line, len(r.headers), len(fields)))
	}
	if err := checkFields(r.csv, fields); err != nil {
		return nil, shared.Processing("read record", err)
	}
	data := make(map[string]string, len(fields))
	for i, h := range r.headers {
		data[h] = fields[i]
	}
	r.count++
	return data, nil
}

// readError keeps failures of the underlying stream distinct from malformed input.
func readError(op string, err error) error {
	if errors.Is(err, shared.ErrStorage) {
		return err
	}
	return shared.Processing(op, err)
}

func trimAll(record []string) []string {
	out := make([]string, len(record))
	for i, f := range record {
		out[i] = strings.TrimSpace(f)
	}
	return out
}

// checkFields rejects NUL bytes, which jsonb cannot store.
func checkFields(cr *csv.Reader, fields []string) error {
	for i, f := range fields {
		if strings.IndexByte(f, 0) >= 0 {
			line, _ := cr.FieldPos(i)
			return fmt.Errorf("line %d: field %d contains a NUL byte", line, i+1)
		}
	}
	return nil
}
