package period

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"muscat-water/internal/model"
)

// ErrInvalidPeriod is returned for inputs that cannot be resolved to a month.
var ErrInvalidPeriod = errors.New("invalid period")

// maxRangeMonths bounds Range so a typo'd year cannot allocate forever.
const maxRangeMonths = 1200

var monthAbbr = [...]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// Period is one calendar month.
type Period struct {
	Year  int
	Month time.Month
}

// Key renders the canonical "Mon-YY" form.
func (p Period) Key() string {
	return fmt.Sprintf("%s-%02d", monthAbbr[p.Month-1], p.Year%100)
}

// Column renders the relational column form ("mar_25").
func (p Period) Column() string {
	return strings.ToLower(monthAbbr[p.Month-1]) + "_" + fmt.Sprintf("%02d", p.Year%100)
}

// Start is midnight UTC on the first day of the month.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

func (p Period) Next() Period {
	if p.Month == time.December {
		return Period{Year: p.Year + 1, Month: time.January}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// ToPeriodKey builds "Mon-YY" from a year (2 or 4 digits) and a month given as a
// full name, an abbreviation or a number.
func ToPeriodKey(year int, month string) (string, error) {
	y, err := normalizeYear(year)
	if err != nil {
		return "", err
	}
	m, err := parseMonth(month)
	if err != nil {
		return "", err
	}
	return Period{Year: y, Month: m}.Key(), nil
}

// KeyFromStrings is ToPeriodKey for string inputs such as query parameters.
func KeyFromStrings(year, month string) (string, error) {
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil {
		return "", fmt.Errorf("%w: year %q", ErrInvalidPeriod, year)
	}
	return ToPeriodKey(y, month)
}

// Parse resolves a period key in any of the forms seen in the source data:
// "Mar-25", "mar_25", "Mar 2025", "March-25" and "2025-03".
func Parse(key string) (Period, error) {
	s := strings.TrimSpace(key)
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '-' || r == '_' || r == ' ' || r == '/'
	})
	if len(parts) != 2 {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, key)
	}
	monthPart, yearPart := parts[0], parts[1]
	// ISO "2025-03"
	if len(monthPart) == 4 && isDigits(monthPart) && isDigits(yearPart) {
		monthPart, yearPart = yearPart, monthPart
	}
	if !isDigits(yearPart) || (len(yearPart) != 2 && len(yearPart) != 4) {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, key)
	}
	y, _ := strconv.Atoi(yearPart)
	y, err := normalizeYear(y)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, key)
	}
	m, err := parseMonth(monthPart)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, key)
	}
	return Period{Year: y, Month: m}, nil
}

// Normalize returns the canonical key for any accepted spelling.
func Normalize(key string) (string, error) {
	p, err := Parse(key)
	if err != nil {
		return "", err
	}
	return p.Key(), nil
}

// IsPeriodKey reports whether s names a month column. Numeric month forms are
// rejected here so columns like "2024" or "1-2" are never mistaken for months.
func IsPeriodKey(s string) bool {
	p := strings.TrimSpace(s)
	if p == "" || !unicode.IsLetter(rune(p[0])) {
		return false
	}
	_, err := Parse(p)
	return err == nil
}

// Sort orders keys chronologically in place. Keys that do not parse sort last,
// lexically among themselves.
func Sort(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		pi, ei := Parse(keys[i])
		pj, ej := Parse(keys[j])
		switch {
		case ei != nil && ej != nil:
			return keys[i] < keys[j]
		case ei != nil:
			return false
		case ej != nil:
			return true
		}
		return pi.Before(pj)
	})
}

// AvailablePeriods lists every period key present in any meter's readings,
// sorted chronologically.
func AvailablePeriods(meters []model.MeterRecord) []string {
	return collect(meters, func(float64) bool { return true })
}

// PeriodsWithReadings is AvailablePeriods restricted to periods where at least
// one meter recorded positive consumption.
func PeriodsWithReadings(meters []model.MeterRecord) []string {
	return collect(meters, func(v float64) bool { return model.ClampReading(v) > 0 })
}

func collect(meters []model.MeterRecord, keep func(float64) bool) []string {
	seen := map[string]bool{}
	for _, m := range meters {
		for k, v := range m.Consumption {
			if seen[k] || !keep(v) {
				continue
			}
			seen[k] = true
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	Sort(out)
	return out
}

// Range enumerates the period keys from..to inclusive.
func Range(from, to string) ([]string, error) {
	start, err := Parse(from)
	if err != nil {
		return nil, err
	}
	end, err := Parse(to)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %s is after %s", ErrInvalidPeriod, start.Key(), end.Key())
	}
	var out []string
	for p := start; !end.Before(p); p = p.Next() {
		if len(out) >= maxRangeMonths {
			return nil, fmt.Errorf("%w: range %s..%s too long", ErrInvalidPeriod, start.Key(), end.Key())
		}
		out = append(out, p.Key())
	}
	return out, nil
}

// Latest returns the most recent key, or "" for an empty list.
func Latest(keys []string) string {
	if len(keys) == 0 {
		return ""
	}
	sorted := append([]string(nil), keys...)
	Sort(sorted)
	for i := len(sorted) - 1; i >= 0; i-- {
		if _, err := Parse(sorted[i]); err == nil {
			return sorted[i]
		}
	}
	return ""
}

func normalizeYear(y int) (int, error) {
	switch {
	case y >= 0 && y < 100:
		return 2000 + y, nil
	case y >= 1900 && y <= 2999:
		return y, nil
	}
	return 0, fmt.Errorf("%w: year %d", ErrInvalidPeriod, y)
}

func parseMonth(s string) (time.Month, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	if t == "" {
		return 0, fmt.Errorf("%w: empty month", ErrInvalidPeriod)
	}
	if isDigits(t) {
		n, _ := strconv.Atoi(t)
		if n < 1 || n > 12 {
			return 0, fmt.Errorf("%w: month %q", ErrInvalidPeriod, s)
		}
		return time.Month(n), nil
	}
	if len(t) < 3 {
		return 0, fmt.Errorf("%w: month %q", ErrInvalidPeriod, s)
	}
	for i := time.January; i <= time.December; i++ {
		full := strings.ToLower(i.String())
		if strings.HasPrefix(full, t) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: month %q", ErrInvalidPeriod, s)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
