package imports

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

func readAll(t *testing.T, input string) (*RecordReader, []map[string]string, error) {
	t.Helper()
	reader, err := NewRecordReader(strings.NewReader(input))
	if err != nil {
		return nil, nil, err
	}
	var out []map[string]string
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return reader, out, nil
		}
		if err != nil {
			return reader, out, err
		}
		out = append(out, rec)
	}
}

func TestRecordReaderStripsBOMAndTrims(t *testing.T) {
	reader, records, err := readAll(t, "\ufeffdate, amount ,type\n 2024-01-01 , 10.00,income\n")
	require.NoError(t, err)

	assert.Equal(t, []string{"date", "amount", "type"}, reader.Headers())
	require.Len(t, records, 1)
	assert.Equal(t, map[string]string{"date": "2024-01-01", "amount": "10.00", "type": "income"}, records[0])
	assert.Equal(t, 1, reader.Count())
}

func TestRecordReaderSkipsEmptyLinesOnly(t *testing.T) {
	reader, records, err := readAll(t, "\n\na,b\n1,2\n\n , \n,\n3,4\n\n")
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, reader.Headers())
	require.Len(t, records, 4)
	assert.Equal(t, map[string]string{"a": "", "b": ""}, records[1])
	assert.Equal(t, map[string]string{"a": "", "b": ""}, records[2])
	assert.Equal(t, "3", records[3]["a"])
	assert.Equal(t, 4, reader.Count())
}

func TestRecordReaderRejectsNULBytes(t *testing.T) {
	_, records, err := readAll(t, "a,b\n1,2\n3,x\x00y\n")
	require.ErrorIs(t, err, shared.ErrProcessing)
	assert.Contains(t, err.Error(), "line 3")
	assert.Len(t, records, 1)

	_, err = NewRecordReader(strings.NewReader("a\x00,b\n1,2\n"))
	require.ErrorIs(t, err, shared.ErrProcessing)
}

func TestRecordReaderRejectsFieldCountMismatch(t *testing.T) {
	_, records, err := readAll(t, "a,b\n1,2\n3\n")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrProcessing)
	assert.Contains(t, err.Error(), "line 3")
	assert.Len(t, records, 1)
}

func TestRecordReaderHeaderErrors(t *testing.T) {
	_, err := NewRecordReader(strings.NewReader("\n\n"))
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = NewRecordReader(strings.NewReader("a,a\n1,2\n"))
	assert.ErrorIs(t, err, shared.ErrProcessing)

	_, err = NewRecordReader(strings.NewReader("a,,c\n1,2,3\n"))
	assert.ErrorIs(t, err, shared.ErrProcessing)
}

func TestRecordReaderHeadersAreCopied(t *testing.T) {
	reader, err := NewRecordReader(strings.NewReader("a,b\n"))
	require.NoError(t, err)
	h := reader.Headers()
	h[0] = "mutated"
	assert.Equal(t, "a", reader.Headers()[0])
}

type failingReader struct{ data io.Reader }

func (f failingReader) Read(p []byte) (int, error) {
	n, err := f.data.Read(p)
	if errors.Is(err, io.EOF) {
		return n, errors.New("connection reset")
	}
	return n, err
}

func TestObjectReaderTagsStorageFailures(t *testing.T) {
	reader, err := NewRecordReader(objectReader{failingReader{strings.NewReader("a,b\n1,2\n")}})
	require.NoError(t, err)

	_, err = reader.Next()
	require.NoError(t, err)
	_, err = reader.Next()
	assert.ErrorIs(t, err, shared.ErrStorage)
	assert.NotErrorIs(t, err, shared.ErrProcessing)
}
