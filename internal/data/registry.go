package data

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"muscat-water/internal/model"
	"muscat-water/internal/period"
)

// Loader produces the canonical meter list from some backing store.
type Loader interface {
	Load(ctx context.Context) ([]model.MeterRecord, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) ([]model.MeterRecord, error)

func (f LoaderFunc) Load(ctx context.Context) ([]model.MeterRecord, error) { return f(ctx) }

// StaticLoader serves a fixed meter list.
type StaticLoader []model.MeterRecord

func (s StaticLoader) Load(context.Context) ([]model.MeterRecord, error) {
	return []model.MeterRecord(s), nil
}

// field identifies which MeterRecord attribute a column feeds.
type field int

const (
	fieldNone field = iota
	fieldLabel
	fieldAccount
	fieldLevel
	fieldZone
	fieldParent
	fieldType
	fieldPeriod
)

// fieldAliases lists the folded column names feeding each record field, in
// precedence order: when a row carries several of them, the first non-empty
// one wins. The sheet export names the hierarchy level column "Label" while
// the meter's own name lives in "Meter Label"; the database uses snake_case.
var fieldAliases = map[field][]string{
	fieldLabel:   {"meterlabel", "metername", "name"},
	fieldAccount: {"acct", "acctno", "accountnumber", "accountno", "meteraccountno", "account"},
	fieldLevel:   {"label", "level"},
	fieldZone:    {"zone"},
	fieldParent:  {"parentmeter", "parent"},
	fieldType:    {"type", "metertype"},
}

type alias struct {
	field field
	rank  int
}

var columnAliases = func() map[string]alias {
	out := map[string]alias{}
	for f, names := range fieldAliases {
		for i, n := range names {
			out[n] = alias{field: f, rank: i}
		}
	}
	return out
}()

func foldColumn(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// column classifies a header. Period columns come back with their canonical
// key ("jan_25" and "Jan-25" both yield "Jan-25").
func column(name string) (field, string) {
	f, _, key := classify(name)
	return f, key
}

func classify(name string) (field, int, string) {
	if a, ok := columnAliases[foldColumn(name)]; ok {
		return a.field, a.rank, ""
	}
	if period.IsPeriodKey(name) {
		if key, err := period.Normalize(name); err == nil {
			return fieldPeriod, 0, key
		}
	}
	return fieldNone, 0, ""
}

// namedCell is one column of a row, kept in column order.
type namedCell struct {
	name  string
	value any
}

// RecordFromFields maps one row of named values onto a MeterRecord. Unknown
// columns are ignored and month cells that are blank or non-numeric are left
// out of Consumption. ok is false when the row has no meter label.
//
// When several columns feed the same field the alias precedence decides, so
// an empty "Level" never overrides "Label". Two spellings of the same month
// are taken in column-name order.
func RecordFromFields(fields map[string]any) (model.MeterRecord, bool) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	cells := make([]namedCell, len(names))
	for i, name := range names {
		cells[i] = namedCell{name: name, value: fields[name]}
	}
	return recordFromCells(cells)
}

func recordFromCells(cells []namedCell) (model.MeterRecord, bool) {
	rec := model.MeterRecord{Consumption: map[string]float64{}}
	best := map[field]int{}
	for _, c := range cells {
		f, rank, key := classify(c.name)
		switch f {
		case fieldNone:
			continue
		case fieldPeriod:
			if _, seen := rec.Consumption[key]; seen {
				continue
			}
			if v, ok := cellNumber(c.value); ok {
				rec.Consumption[key] = v
			}
			continue
		}

		s := strings.TrimSpace(cellString(c.value))
		if s == "" {
			continue
		}
		if prev, ok := best[f]; ok && prev <= rank {
			continue
		}
		best[f] = rank

		switch f {
		case fieldLabel:
			rec.Label = s
		case fieldAccount:
			rec.AccountNumber = s
		case fieldLevel:
			rec.Level = model.ParseLevel(s)
		case fieldZone:
			rec.Zone = s
		case fieldParent:
			rec.ParentMeter = s
		case fieldType:
			rec.Type = s
		}
	}
	if rec.Level == "" {
		rec.Level = model.LevelNA
	}
	return rec, rec.Label != ""
}

// RecordsFromRows maps a header plus string rows (CSV, XLSX) onto records,
// skipping rows without a label. Columns are read in header order.
func RecordsFromRows(header []string, rows [][]string) []model.MeterRecord {
	out := make([]model.MeterRecord, 0, len(rows))
	for _, row := range rows {
		cells := make([]namedCell, 0, len(header))
		for i, h := range header {
			if i < len(row) {
				cells = append(cells, namedCell{name: h, value: row[i]})
			}
		}
		if rec, ok := recordFromCells(cells); ok {
			out = append(out, rec)
		}
	}
	return out
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case []any:
		// Airtable lookup fields arrive as single-element arrays.
		if len(t) > 0 {
			return cellString(t[0])
		}
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func cellNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case []byte:
		return cellNumber(string(t))
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		if s == "" || s == "-" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
