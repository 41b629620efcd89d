package data

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"muscat-water/internal/model"
)

// XLSXLoader reads a registry workbook. Sheet defaults to the first sheet.
type XLSXLoader struct {
	Path  string
	Sheet string
}

func (l XLSXLoader) Load(ctx context.Context) ([]model.MeterRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()
	return readRegistrySheet(f, l.Sheet)
}

// ParseRegistryXLSX reads a workbook from r.
func ParseRegistryXLSX(r io.Reader, sheet string) ([]model.MeterRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()
	return readRegistrySheet(f, sheet)
}

func readRegistrySheet(f *excelize.File, sheet string) ([]model.MeterRecord, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	name := sheets[0]
	if sheet != "" {
		name = ""
		for _, s := range sheets {
			if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(sheet)) {
				name = s
				break
			}
		}
		if name == "" {
			return nil, fmt.Errorf("sheet %q not found (have %s)", sheet, strings.Join(sheets, ", "))
		}
	}

	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", name, err)
	}
	// Skip title rows above the header.
	for len(rows) > 0 && !isHeaderRow(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q has no header row", name)
	}
	return RecordsFromRows(rows[0], rows[1:]), nil
}

func isHeaderRow(row []string) bool {
	for _, cell := range row {
		if f, _ := column(cell); f == fieldLabel {
			return true
		}
	}
	return false
}
