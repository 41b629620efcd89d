package data

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"muscat-water/internal/model"
)

// ParseRegistryCSV reads a comma- or tab-separated meter registry. The
// delimiter is taken from the header line: tabs win when present.
func ParseRegistryCSV(r io.Reader) ([]model.MeterRecord, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4096)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("failed to read registry header: %w", err)
	}
	first := head
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		first = head[:i]
	}

	cr := csv.NewReader(br)
	if bytes.IndexByte(first, '\t') >= 0 {
		cr.Comma = '\t'
		cr.LazyQuotes = true
	}
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("registry is empty")
	}
	header := rows[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return RecordsFromRows(header, rows[1:]), nil
}

// CSVLoader reads a registry file on every Load.
type CSVLoader struct {
	Path string
}

func (l CSVLoader) Load(ctx context.Context) ([]model.MeterRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry file: %w", err)
	}
	defer f.Close()
	return ParseRegistryCSV(f)
}
